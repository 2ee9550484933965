package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/go-playground/validator/v10"
	"github.com/moogar0880/problems"
)

func writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(typ).
		WithDetail(detail)
	w.Header().Set("Content-Type", problems.ProblemMediaType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Error("Failed to encode problem", "error", err)
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "validation_error", detail)
}

// validationDetail flattens validator field errors into one line.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// handleEngineError maps engine errors onto problem responses.
func handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrDefinitionNotFound):
		writeProblem(w, r, http.StatusNotFound, "definition_not_found", err.Error())
	case errors.Is(err, engine.ErrExecutionNotFound):
		writeProblem(w, r, http.StatusNotFound, "execution_not_found", err.Error())
	case errors.Is(err, engine.ErrInvalidInput):
		writeProblem(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, engine.ErrExecutionFinished):
		writeProblem(w, r, http.StatusConflict, "execution_finished", err.Error())
	case errors.Is(err, engine.ErrQueueFull):
		writeProblem(w, r, http.StatusServiceUnavailable, "queue_full", err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
