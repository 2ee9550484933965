package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/internal/util"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, e Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	RegisterAll(mux, e)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type problemBody struct {
	Type     string `json:"type"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problemBody {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p problemBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

func TestStartExecution(t *testing.T) {
	var gotDef, gotName string
	var gotInput any
	e := &MockEngine{
		StartExecutionFunc: func(_ context.Context, def string, payload any, opts engine.StartOptions) (string, error) {
			gotDef, gotName, gotInput = def, opts.Name, payload
			return "exec-42", nil
		},
	}
	w := serve(t, e, "POST", "/api/executions",
		`{"definition":"data_pipeline","name":"nightly","input":{"userId":"u-1"}}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp, err := util.DecodeJSONBodyResponse[models.StartExecutionResponse](w.Result())
	require.NoError(t, err)
	assert.Equal(t, "exec-42", resp.ID)
	assert.Nil(t, resp.Execution)
	assert.Equal(t, "data_pipeline", gotDef)
	assert.Equal(t, "nightly", gotName)
	assert.Equal(t, map[string]any{"userId": "u-1"}, gotInput)
}

func TestStartExecutionAndWait(t *testing.T) {
	e := &MockEngine{
		WaitFunc: func(_ context.Context, id string) (*domain.ExecutionView, error) {
			return &domain.ExecutionView{ID: id, Status: domain.StatusSucceeded, EndState: "Done"}, nil
		},
	}
	w := serve(t, e, "POST", "/api/executions", `{"definition":"data_pipeline","waitSeconds":5}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp, err := util.DecodeJSONBodyResponse[models.StartExecutionResponse](w.Result())
	require.NoError(t, err)
	require.NotNil(t, resp.Execution)
	assert.Equal(t, domain.StatusSucceeded, resp.Execution.Status)
	assert.Equal(t, "Done", resp.Execution.EndState)
}

func TestStartExecutionWaitTimesOut(t *testing.T) {
	e := &MockEngine{
		WaitFunc: func(context.Context, string) (*domain.ExecutionView, error) {
			return nil, context.DeadlineExceeded
		},
	}
	w := serve(t, e, "POST", "/api/executions", `{"definition":"data_pipeline","waitSeconds":1}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStartExecutionValidation(t *testing.T) {
	cases := map[string]string{
		"bad json":           `{"definition":`,
		"unknown field":      `{"definition":"a","bogus":true}`,
		"missing definition": `{"input":{}}`,
		"wait too long":      `{"definition":"a","waitSeconds":3600}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(t, &MockEngine{}, "POST", "/api/executions", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, "validation_error", p.Type)
			assert.Equal(t, "/api/executions", p.Instance)
		})
	}
}

func TestStartExecutionEngineErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{fmt.Errorf("%w: nope", engine.ErrDefinitionNotFound), http.StatusNotFound, "definition_not_found"},
		{fmt.Errorf("%w: userId is required", engine.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{engine.ErrQueueFull, http.StatusServiceUnavailable, "queue_full"},
		{errors.New("database down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		e := &MockEngine{
			StartExecutionFunc: func(context.Context, string, any, engine.StartOptions) (string, error) {
				return "", tc.err
			},
		}
		w := serve(t, e, "POST", "/api/executions", `{"definition":"a"}`)
		assert.Equal(t, tc.status, w.Code, tc.typ)
		assert.Equal(t, tc.typ, decodeProblem(t, w).Type)
	}
}

func TestGetExecution(t *testing.T) {
	e := &MockEngine{
		DescribeFunc: func(_ context.Context, id string) (*domain.ExecutionView, error) {
			if id != "exec-1" {
				return nil, engine.ErrExecutionNotFound
			}
			return &domain.ExecutionView{ID: id, Status: domain.StatusFailed,
				Error: &domain.TaskError{Kind: "States.Timeout"}, FailedState: "Process"}, nil
		},
	}
	w := serve(t, e, "GET", "/api/executions/exec-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	view, err := util.DecodeJSONBodyResponse[domain.ExecutionView](w.Result())
	require.NoError(t, err)
	assert.Equal(t, "States.Timeout", view.Error.Kind)
	assert.Equal(t, "Process", view.FailedState)

	w = serve(t, e, "GET", "/api/executions/other", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "execution_not_found", decodeProblem(t, w).Type)
}

func TestGetHistory(t *testing.T) {
	e := &MockEngine{
		HistoryFunc: func(_ context.Context, id string) ([]domain.HistoryEntry, error) {
			return []domain.HistoryEntry{{ExecutionID: id, Sequence: 1, StateName: "Process"}}, nil
		},
	}
	w := serve(t, e, "GET", "/api/executions/exec-1/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
	entries, err := util.DecodeJSONBodyResponse[[]domain.HistoryEntry](w.Result())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Process", entries[0].StateName)
}

func TestAbortExecution(t *testing.T) {
	var aborted string
	e := &MockEngine{
		AbortFunc: func(_ context.Context, id string) error {
			aborted = id
			return nil
		},
	}
	w := serve(t, e, "POST", "/api/executions/exec-1/abort", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "exec-1", aborted)

	e.AbortFunc = func(context.Context, string) error { return engine.ErrExecutionFinished }
	w = serve(t, e, "POST", "/api/executions/exec-1/abort", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListExecutions(t *testing.T) {
	var gotLimit int
	e := &MockEngine{
		ListExecutionsFunc: func(_ context.Context, limit int) ([]*domain.ExecutionView, error) {
			gotLimit = limit
			return []*domain.ExecutionView{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	w := serve(t, e, "GET", "/api/executions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultListLimit, gotLimit)

	w = serve(t, e, "GET", "/api/executions?limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	w = serve(t, e, "GET", "/api/executions?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = serve(t, e, "GET", "/api/executions?limit=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDefinitions(t *testing.T) {
	stored := &domain.StoredDefinition{Name: "data_pipeline", Digest: "abc", FlowChart: "flowchart TD"}
	e := &MockEngine{
		ListDefinitionsFunc: func() []*domain.StoredDefinition { return []*domain.StoredDefinition{stored} },
		GetDefinitionFunc: func(name string) (*domain.StoredDefinition, error) {
			if name == stored.Name {
				return stored, nil
			}
			return nil, engine.ErrDefinitionNotFound
		},
	}

	w := serve(t, e, "GET", "/api/definitions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	list, err := util.DecodeJSONBodyResponse[[]models.DefinitionSummary](w.Result())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "abc", list[0].Digest)

	w = serve(t, e, "GET", "/api/definitions/data_pipeline", "")
	assert.Equal(t, http.StatusOK, w.Code)
	def, err := util.DecodeJSONBodyResponse[domain.StoredDefinition](w.Result())
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD", def.FlowChart)

	w = serve(t, e, "GET", "/api/definitions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutorsController_GetExecutors(t *testing.T) {
	e := &MockEngine{
		ListExecutorsFunc: func(limit int) ([]*domain.Executor, error) {
			return []*domain.Executor{{ID: 1, Name: "executor1"}}, nil
		},
	}
	w := serve(t, e, "GET", "/api/executors", "")
	assert.Equal(t, http.StatusOK, w.Code)

	executors, err := util.DecodeJSONBodyResponse[[]domain.Executor](w.Result())
	require.NoError(t, err)
	assert.Len(t, executors, 1)

	w = serve(t, &MockEngine{}, "GET", "/api/executors", "")
	assert.Equal(t, "[]\n", w.Body.String())
}
