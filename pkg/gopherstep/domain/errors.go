package domain

import "fmt"

// TaskError is the failure reported by a task executor. Kind is matched
// against retry policies and catchers.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *TaskError) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// NewTaskError is a shorthand for executors.
func NewTaskError(kind, format string, args ...any) *TaskError {
	return &TaskError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsData is the value merged into workflow data by a catcher.
func (e *TaskError) AsData() map[string]any {
	return map[string]any{"kind": e.Kind, "message": e.Message}
}

// UnhandledExecutionError is the terminal error of an execution whose task
// error matched neither a retry policy with attempts left nor a catcher.
type UnhandledExecutionError struct {
	ExecutionID string
	State       string
	Err         *TaskError
	History     []HistoryEntry
}

func (e *UnhandledExecutionError) Error() string {
	return fmt.Sprintf("execution %s failed in state %s: %s", e.ExecutionID, e.State, e.Err.Error())
}

func (e *UnhandledExecutionError) Unwrap() error { return e.Err }
