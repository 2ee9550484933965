package domain

import "time"

// Executor is a running engine instance; executions record which one owns them.
type Executor struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Started    time.Time `json:"started"`
	LastActive time.Time `json:"lastActive"`
}
