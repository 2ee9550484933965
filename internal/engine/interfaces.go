package engine

import (
	"context"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// HistorySink is the append only store of history entries, keyed by execution id.
type HistorySink interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	FindByExecutionID(ctx context.Context, executionID string) ([]domain.HistoryEntry, error)
}

// ExecutionRepo persists execution records. Find methods return (nil, nil)
// when nothing matches.
type ExecutionRepo interface {
	Save(ctx context.Context, e *domain.Execution) error
	Update(ctx context.Context, e *domain.Execution) error
	// UpdateIfModified writes e only if the stored record still carries the
	// given modified timestamp.
	UpdateIfModified(ctx context.Context, e *domain.Execution, modified time.Time) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Execution, error)
	FindByName(ctx context.Context, definitionName, name string) (*domain.Execution, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Execution, error)
	// FindStuck returns unfinished executions whose executor has not been
	// active since staleBefore.
	FindStuck(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.Execution, error)
}

// ExecutorRepo defines the interface for executor persistence.
type ExecutorRepo interface {
	Save(e *domain.Executor) (int64, error)
	UpdateLastActive(id int64, ts time.Time) error
	GetExecutorsByLastActive(limit int) ([]*domain.Executor, error)
}

// DefinitionRepo defines the interface for workflow definition persistence.
type DefinitionRepo interface {
	FindAll() ([]*domain.StoredDefinition, error)
	FindByName(name string) (*domain.StoredDefinition, error)
	Save(def *domain.StoredDefinition) error
}

// EventPublisher receives execution lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ExecutionEvent) error
}
