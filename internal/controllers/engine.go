package controllers

import (
	"context"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/go-playground/validator/v10"
)

// Engine is the part of engine.Manager the HTTP API drives.
type Engine interface {
	StartExecution(ctx context.Context, definitionRef string, payload any, opts engine.StartOptions) (string, error)
	Describe(ctx context.Context, id string) (*domain.ExecutionView, error)
	History(ctx context.Context, id string) ([]domain.HistoryEntry, error)
	Abort(ctx context.Context, id string) error
	Wait(ctx context.Context, id string) (*domain.ExecutionView, error)
	ListExecutions(ctx context.Context, limit int) ([]*domain.ExecutionView, error)
	ListDefinitions() []*domain.StoredDefinition
	GetDefinition(name string) (*domain.StoredDefinition, error)
	ListExecutors(limit int) ([]*domain.Executor, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())
