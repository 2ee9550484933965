package models

import "github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"

// StartExecutionRequest is the payload of POST /api/executions.
type StartExecutionRequest struct {
	Definition string `json:"definition" validate:"required,max=255"`
	// Name makes the start idempotent per definition.
	Name  string `json:"name,omitempty" validate:"omitempty,max=255"`
	Input any    `json:"input"`
	// WaitSeconds, when set, holds the response until the execution
	// finishes or the time runs out.
	WaitSeconds int `json:"waitSeconds,omitempty" validate:"gte=0,lte=300"`
}

// StartExecutionResponse is returned on a successful start. Execution is set
// when the caller asked to wait and the execution finished in time.
type StartExecutionResponse struct {
	ID        string                `json:"id"`
	Execution *domain.ExecutionView `json:"execution,omitempty"`
}

// ListQuery bounds list endpoints.
type ListQuery struct {
	Limit int `validate:"gte=1,lte=500"`
}
