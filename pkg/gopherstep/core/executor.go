package core

import "context"

// TaskExecutor runs the external unit of work behind a Task state.
//
// Invoke returns the task output or an error. A *domain.TaskError carries the
// kind matched by retry policies and catchers; any other error is treated as
// kind States.TaskFailed. Retries call Invoke again with the same input, so
// implementations should not rely on being called once.
type TaskExecutor interface {
	Invoke(ctx context.Context, resource string, input any) (any, error)
}

// TaskExecutorFunc adapts a function to TaskExecutor.
type TaskExecutorFunc func(ctx context.Context, resource string, input any) (any, error)

func (f TaskExecutorFunc) Invoke(ctx context.Context, resource string, input any) (any, error) {
	return f(ctx, resource, input)
}
