package controllers

import (
	"context"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// MockEngine implements Engine for testing
type MockEngine struct {
	StartExecutionFunc  func(ctx context.Context, definitionRef string, payload any, opts engine.StartOptions) (string, error)
	DescribeFunc        func(ctx context.Context, id string) (*domain.ExecutionView, error)
	HistoryFunc         func(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	AbortFunc           func(ctx context.Context, id string) error
	WaitFunc            func(ctx context.Context, id string) (*domain.ExecutionView, error)
	ListExecutionsFunc  func(ctx context.Context, limit int) ([]*domain.ExecutionView, error)
	ListDefinitionsFunc func() []*domain.StoredDefinition
	GetDefinitionFunc   func(name string) (*domain.StoredDefinition, error)
	ListExecutorsFunc   func(limit int) ([]*domain.Executor, error)
}

func (m *MockEngine) StartExecution(ctx context.Context, definitionRef string, payload any, opts engine.StartOptions) (string, error) {
	if m.StartExecutionFunc != nil {
		return m.StartExecutionFunc(ctx, definitionRef, payload, opts)
	}
	return "exec-1", nil
}
func (m *MockEngine) Describe(ctx context.Context, id string) (*domain.ExecutionView, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, id)
	}
	return &domain.ExecutionView{ID: id}, nil
}
func (m *MockEngine) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, id)
	}
	return nil, nil
}
func (m *MockEngine) Abort(ctx context.Context, id string) error {
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, id)
	}
	return nil
}
func (m *MockEngine) Wait(ctx context.Context, id string) (*domain.ExecutionView, error) {
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx, id)
	}
	return &domain.ExecutionView{ID: id, Status: domain.StatusSucceeded}, nil
}
func (m *MockEngine) ListExecutions(ctx context.Context, limit int) ([]*domain.ExecutionView, error) {
	if m.ListExecutionsFunc != nil {
		return m.ListExecutionsFunc(ctx, limit)
	}
	return nil, nil
}
func (m *MockEngine) ListDefinitions() []*domain.StoredDefinition {
	if m.ListDefinitionsFunc != nil {
		return m.ListDefinitionsFunc()
	}
	return nil
}
func (m *MockEngine) GetDefinition(name string) (*domain.StoredDefinition, error) {
	if m.GetDefinitionFunc != nil {
		return m.GetDefinitionFunc(name)
	}
	return nil, engine.ErrDefinitionNotFound
}
func (m *MockEngine) ListExecutors(limit int) ([]*domain.Executor, error) {
	if m.ListExecutorsFunc != nil {
		return m.ListExecutorsFunc(limit)
	}
	return nil, nil
}
