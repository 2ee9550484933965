package engine

import (
	"context"
	"sync"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// MockExecutionRepo implements ExecutionRepo for testing
type MockExecutionRepo struct {
	SaveFunc             func(ctx context.Context, e *domain.Execution) error
	UpdateFunc           func(ctx context.Context, e *domain.Execution) error
	UpdateIfModifiedFunc func(ctx context.Context, e *domain.Execution, modified time.Time) (bool, error)
	FindByIDFunc         func(ctx context.Context, id string) (*domain.Execution, error)
	FindByNameFunc       func(ctx context.Context, definitionName, name string) (*domain.Execution, error)
	FindRecentFunc       func(ctx context.Context, limit int) ([]*domain.Execution, error)
	FindStuckFunc        func(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.Execution, error)
}

func (m *MockExecutionRepo) Save(ctx context.Context, e *domain.Execution) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, e)
	}
	return nil
}
func (m *MockExecutionRepo) Update(ctx context.Context, e *domain.Execution) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, e)
	}
	return nil
}
func (m *MockExecutionRepo) UpdateIfModified(ctx context.Context, e *domain.Execution, modified time.Time) (bool, error) {
	if m.UpdateIfModifiedFunc != nil {
		return m.UpdateIfModifiedFunc(ctx, e, modified)
	}
	return true, nil
}
func (m *MockExecutionRepo) FindByID(ctx context.Context, id string) (*domain.Execution, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockExecutionRepo) FindByName(ctx context.Context, definitionName, name string) (*domain.Execution, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(ctx, definitionName, name)
	}
	return nil, nil
}
func (m *MockExecutionRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Execution, error) {
	if m.FindRecentFunc != nil {
		return m.FindRecentFunc(ctx, limit)
	}
	return nil, nil
}
func (m *MockExecutionRepo) FindStuck(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.Execution, error) {
	if m.FindStuckFunc != nil {
		return m.FindStuckFunc(ctx, staleBefore, limit)
	}
	return nil, nil
}

type MockExecutorRepo struct {
	SaveFunc                     func(e *domain.Executor) (int64, error)
	UpdateLastActiveFunc         func(id int64, ts time.Time) error
	GetExecutorsByLastActiveFunc func(limit int) ([]*domain.Executor, error)
}

func (m *MockExecutorRepo) Save(e *domain.Executor) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(e)
	}
	return 1, nil
}
func (m *MockExecutorRepo) UpdateLastActive(id int64, ts time.Time) error {
	if m.UpdateLastActiveFunc != nil {
		return m.UpdateLastActiveFunc(id, ts)
	}
	return nil
}
func (m *MockExecutorRepo) GetExecutorsByLastActive(limit int) ([]*domain.Executor, error) {
	if m.GetExecutorsByLastActiveFunc != nil {
		return m.GetExecutorsByLastActiveFunc(limit)
	}
	return nil, nil
}

type MockDefinitionRepo struct {
	FindAllFunc    func() ([]*domain.StoredDefinition, error)
	FindByNameFunc func(name string) (*domain.StoredDefinition, error)
	SaveFunc       func(def *domain.StoredDefinition) error
}

func (m *MockDefinitionRepo) FindAll() ([]*domain.StoredDefinition, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc()
	}
	return nil, nil
}
func (m *MockDefinitionRepo) FindByName(name string) (*domain.StoredDefinition, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(name)
	}
	return nil, nil // Not found
}
func (m *MockDefinitionRepo) Save(def *domain.StoredDefinition) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(def)
	}
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ExecutionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ExecutionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
