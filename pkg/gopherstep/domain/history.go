package domain

import "time"

// HistoryEntry records one completed state visit. Entries are immutable once
// appended; Sequence is monotonic per execution and starts at 1.
type HistoryEntry struct {
	ExecutionID string     `json:"executionId"`
	Sequence    int64      `json:"sequence"`
	StateName   string     `json:"stateName"`
	StateType   StateType  `json:"stateType"`
	EnteredAt   time.Time  `json:"enteredAt"`
	ExitedAt    time.Time  `json:"exitedAt"`
	Input       any        `json:"input"`
	Output      any        `json:"output,omitempty"`
	Error       *TaskError `json:"error,omitempty"`
	Retries     int        `json:"retries"`
	NextState   string     `json:"nextState,omitempty"`
}
