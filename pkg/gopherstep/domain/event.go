package domain

import "time"

type EventType string

const (
	EventExecutionStarted   EventType = "ExecutionStarted"
	EventStateCompleted     EventType = "StateCompleted"
	EventExecutionSucceeded EventType = "ExecutionSucceeded"
	EventExecutionFailed    EventType = "ExecutionFailed"
	EventExecutionAborted   EventType = "ExecutionAborted"
)

// ExecutionEvent is published on every execution status change and after
// every completed state.
type ExecutionEvent struct {
	Type           EventType       `json:"type"`
	ExecutionID    string          `json:"executionId"`
	DefinitionName string          `json:"definition"`
	Status         ExecutionStatus `json:"status"`
	State          string          `json:"state,omitempty"`
	Error          *TaskError      `json:"error,omitempty"`
	Time           time.Time       `json:"time"`
}
