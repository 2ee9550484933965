package domain

import (
	"database/sql"
	"time"
)

type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusSucceeded ExecutionStatus = "SUCCEEDED"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusAborted   ExecutionStatus = "ABORTED"
)

// Finished reports whether the status is terminal.
func (s ExecutionStatus) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAborted
}

// Execution is the persisted record of one run of a definition.
type Execution struct {
	ID             string
	Name           string
	DefinitionName string
	Digest         string
	Status         ExecutionStatus
	Input          sql.NullString
	Output         sql.NullString
	CurrentState   sql.NullString
	EndState       sql.NullString
	ErrorKind      sql.NullString
	ErrorMessage   sql.NullString
	FailedState    sql.NullString
	ExecutorID     sql.NullInt64
	Created        time.Time
	Modified       time.Time
	Started        sql.NullTime
	Finished       sql.NullTime
}

// ExecutionView is what callers querying an execution see.
type ExecutionView struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	DefinitionName string          `json:"definition"`
	Status         ExecutionStatus `json:"status"`
	CurrentState   string          `json:"currentState,omitempty"`
	// EndState is the terminal workflow state reached, the workflow level
	// outcome. It is independent of Status: a path that ends in a "failed"
	// Pass state still has Status SUCCEEDED.
	EndState     string         `json:"endState,omitempty"`
	Input        any            `json:"input,omitempty"`
	Output       any            `json:"output,omitempty"`
	Error        *TaskError     `json:"error,omitempty"`
	FailedState  string         `json:"failedState,omitempty"`
	History      []HistoryEntry `json:"history,omitempty"`
	Created      time.Time      `json:"created"`
	Started      *time.Time     `json:"started,omitempty"`
	Finished     *time.Time     `json:"finished,omitempty"`
}
