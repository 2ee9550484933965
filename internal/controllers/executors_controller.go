package controllers

import (
	"log/slog"
	"net/http"

	"github.com/RealZimboGuy/gopherstep/internal/util"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

type ExecutorsController struct {
	Engine Engine
}

func NewExecutorsController(e Engine) *ExecutorsController {
	return &ExecutorsController{Engine: e}
}

func (c *ExecutorsController) handleGetExecutors(w http.ResponseWriter, r *http.Request) {
	slog.DebugContext(r.Context(), "GetExecutors called")
	results, err := c.Engine.ListExecutors(20)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	if results == nil {
		results = []*domain.Executor{}
	}
	util.WriteJSONResponse(w, http.StatusOK, results)
}
