package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/internal/util"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/models"
)

const defaultListLimit = 50

// ExecutionsController serves the execution endpoints.
type ExecutionsController struct {
	Engine Engine
}

func NewExecutionsController(e Engine) *ExecutionsController {
	return &ExecutionsController{Engine: e}
}

func (c *ExecutionsController) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.StartExecutionRequest](r)
	if err != nil {
		badRequest(w, r, "invalid JSON payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(w, r, validationDetail(err))
		return
	}

	slog.InfoContext(r.Context(), "Starting execution", "definition", req.Definition, "name", req.Name)
	id, err := c.Engine.StartExecution(r.Context(), req.Definition, req.Input, engine.StartOptions{Name: req.Name})
	if err != nil {
		handleEngineError(w, r, err)
		return
	}

	if req.WaitSeconds == 0 {
		util.WriteJSONResponse(w, http.StatusAccepted, models.StartExecutionResponse{ID: id})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.WaitSeconds)*time.Second)
	defer cancel()
	view, err := c.Engine.Wait(ctx, id)
	if errors.Is(err, context.DeadlineExceeded) {
		// still running, the caller polls with the id
		util.WriteJSONResponse(w, http.StatusAccepted, models.StartExecutionResponse{ID: id})
		return
	}
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.StartExecutionResponse{ID: id, Execution: view})
}

func (c *ExecutionsController) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}
	views, err := c.Engine.ListExecutions(r.Context(), limit)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, views)
}

func (c *ExecutionsController) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	view, err := c.Engine.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, view)
}

func (c *ExecutionsController) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := c.Engine.History(r.Context(), r.PathValue("id"))
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, history)
}

func (c *ExecutionsController) handleAbortExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := c.Engine.Abort(r.Context(), id); err != nil {
		handleEngineError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "Abort requested", "execution_id", id)
	view, err := c.Engine.Describe(r.Context(), id)
	if err != nil {
		handleEngineError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusAccepted, view)
}

// listLimit reads ?limit=, writing a problem and returning false when it is
// not a number between 1 and 500.
func listLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	q := models.ListQuery{Limit: defaultListLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, r, "limit must be an integer")
			return 0, false
		}
		q.Limit = n
	}
	if err := validate.Struct(q); err != nil {
		badRequest(w, r, validationDetail(err))
		return 0, false
	}
	return q.Limit, true
}
