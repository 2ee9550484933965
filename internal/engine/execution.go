package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// execution is the live context of one run. Everything but def is guarded by mu.
type execution struct {
	mu  sync.Mutex
	def *domain.WorkflowDefinition

	rec    domain.Execution
	input  any
	output any
	err    *domain.TaskError

	cancel context.CancelFunc
	done   chan struct{}
}

func newExecution(def *domain.WorkflowDefinition, id, name string, input any, now time.Time) *execution {
	ex := &execution{
		def:   def,
		input: input,
		done:  make(chan struct{}),
		rec: domain.Execution{
			ID:             id,
			Name:           name,
			DefinitionName: def.Name,
			Digest:         def.Digest,
			Status:         domain.StatusPending,
			Created:        now,
			Modified:       now,
		},
	}
	ex.rec.Input = jsonString(input)
	return ex
}

func (ex *execution) id() string { return ex.rec.ID }

func (ex *execution) status() domain.ExecutionStatus {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.rec.Status
}

// record returns a copy of the persisted form.
func (ex *execution) record() domain.Execution {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.rec
}

func (ex *execution) view() *domain.ExecutionView {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	v := viewOf(&ex.rec)
	v.Input = datapath.DeepCopy(ex.input)
	v.Output = datapath.DeepCopy(ex.output)
	if ex.err != nil {
		e := *ex.err
		v.Error = &e
	}
	return v
}

// start moves a pending execution to RUNNING. It reports false when the
// execution was aborted while queued.
func (ex *execution) start(now time.Time, executorID int64, cancel context.CancelFunc) bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.rec.Status != domain.StatusPending {
		return false
	}
	ex.rec.Status = domain.StatusRunning
	ex.rec.Started = sql.NullTime{Time: now, Valid: true}
	ex.rec.Modified = now
	if executorID > 0 {
		ex.rec.ExecutorID = sql.NullInt64{Int64: executorID, Valid: true}
	}
	ex.cancel = cancel
	return true
}

func (ex *execution) enter(state string, now time.Time) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.rec.CurrentState = sql.NullString{String: state, Valid: true}
	ex.rec.Modified = now
}

// requestAbort aborts a pending execution on the spot and reports true. A
// running execution has its context cancelled; the driver finishes it at the
// next suspension point.
func (ex *execution) requestAbort(now time.Time) (bool, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	switch {
	case ex.rec.Status.Finished():
		return false, ErrExecutionFinished
	case ex.rec.Status == domain.StatusPending:
		ex.finishLocked(domain.StatusAborted, now)
		return true, nil
	default:
		if ex.cancel != nil {
			ex.cancel()
		}
		return false, nil
	}
}

// finish moves the execution to a terminal status once. It reports false if
// the execution had already finished.
func (ex *execution) finish(status domain.ExecutionStatus, now time.Time, apply func(ex *execution)) bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.rec.Status.Finished() {
		return false
	}
	if apply != nil {
		apply(ex)
	}
	ex.finishLocked(status, now)
	return true
}

func (ex *execution) finishLocked(status domain.ExecutionStatus, now time.Time) {
	ex.rec.Status = status
	ex.rec.Modified = now
	ex.rec.Finished = sql.NullTime{Time: now, Valid: true}
	close(ex.done)
}

// viewOf builds a view from a persisted record, used for executions no
// longer held in memory.
func viewOf(rec *domain.Execution) *domain.ExecutionView {
	v := &domain.ExecutionView{
		ID:             rec.ID,
		Name:           rec.Name,
		DefinitionName: rec.DefinitionName,
		Status:         rec.Status,
		CurrentState:   rec.CurrentState.String,
		EndState:       rec.EndState.String,
		FailedState:    rec.FailedState.String,
		Input:          fromJSON(rec.Input),
		Output:         fromJSON(rec.Output),
		Created:        rec.Created,
	}
	if rec.ErrorKind.Valid {
		v.Error = &domain.TaskError{Kind: rec.ErrorKind.String, Message: rec.ErrorMessage.String}
	}
	if rec.Started.Valid {
		t := rec.Started.Time
		v.Started = &t
	}
	if rec.Finished.Valid {
		t := rec.Finished.Time
		v.Finished = &t
	}
	return v
}

func jsonString(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func fromJSON(s sql.NullString) any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil
	}
	return v
}

// registry holds the executions owned by one Manager.
type registry struct {
	mu       sync.RWMutex
	byID     map[string]*execution
	byName   map[string]string // definition + "/" + name -> id
	finished []string          // retired ids, oldest first
}

func newRegistry() *registry {
	return &registry{byID: map[string]*execution{}, byName: map[string]string{}}
}

func nameKey(definition, name string) string { return definition + "/" + name }

func (r *registry) get(id string) (*execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.byID[id]
	return ex, ok
}

func (r *registry) byExecutionName(definition, name string) (*execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[nameKey(definition, name)]
	if !ok {
		return nil, false
	}
	ex, ok := r.byID[id]
	return ex, ok
}

// add registers ex. When ex is named and that name is taken, the existing
// execution is returned instead.
func (r *registry) add(ex *execution) (*execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ex.rec.Name != "" {
		key := nameKey(ex.rec.DefinitionName, ex.rec.Name)
		if id, ok := r.byName[key]; ok {
			return r.byID[id], false
		}
		r.byName[key] = ex.rec.ID
	}
	r.byID[ex.rec.ID] = ex
	return ex, true
}

func (r *registry) remove(ex *execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(ex)
}

func (r *registry) removeLocked(ex *execution) {
	delete(r.byID, ex.rec.ID)
	if ex.rec.Name != "" {
		delete(r.byName, nameKey(ex.rec.DefinitionName, ex.rec.Name))
	}
}

// retire marks ex finished and evicts the oldest finished executions beyond
// keep. It returns the evicted ids.
func (r *registry) retire(ex *execution, keep int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ex.rec.ID]; !ok {
		return nil
	}
	r.finished = append(r.finished, ex.rec.ID)
	var evicted []string
	for len(r.finished) > keep {
		id := r.finished[0]
		r.finished = r.finished[1:]
		if old, ok := r.byID[id]; ok {
			r.removeLocked(old)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// recent returns up to limit executions, newest first.
func (r *registry) recent(limit int) []*execution {
	r.mu.RLock()
	all := make([]*execution, 0, len(r.byID))
	for _, ex := range r.byID {
		all = append(all, ex)
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].rec.Created.Equal(all[j].rec.Created) {
			return all[i].rec.ID < all[j].rec.ID
		}
		return all[i].rec.Created.After(all[j].rec.Created)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
