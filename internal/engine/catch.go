package engine

import (
	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// catcherFor returns the first catcher, in declared order, matching kind.
func catcherFor(catchers []domain.Catcher, kind string) (domain.Catcher, bool) {
	for _, c := range catchers {
		if c.Matches(kind) {
			return c, true
		}
	}
	return domain.Catcher{}, false
}

// applyCatch merges the error object into data at the catcher's result path.
// Data outside that path is left as is.
func applyCatch(c domain.Catcher, data any, terr *domain.TaskError) (any, error) {
	if c.DiscardResult {
		return data, nil
	}
	p, err := datapath.Parse(c.ResultPath)
	if err != nil {
		return nil, err
	}
	return p.Set(data, terr.AsData())
}
