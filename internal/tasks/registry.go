// Package tasks holds the task executors shipped with gopherstep and the
// registry that routes a Task state's resource to one of them.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
)

// Registry is a core.TaskExecutor dispatching on the resource name.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]core.TaskExecutor
}

func NewRegistry() *Registry {
	return &Registry{tasks: map[string]core.TaskExecutor{}}
}

// Register binds resource to exec, replacing any previous binding.
func (r *Registry) Register(resource string, exec core.TaskExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[resource] = exec
}

func (r *Registry) RegisterFunc(resource string, fn core.TaskExecutorFunc) {
	r.Register(resource, fn)
}

// Resources lists the registered resource names in order.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Invoke(ctx context.Context, resource string, input any) (any, error) {
	r.mu.RLock()
	exec, ok := r.tasks[resource]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no task registered for resource %q", resource)
	}
	return exec.Invoke(ctx, resource, input)
}

// NewBuiltinRegistry registers process_data and send_notification.
func NewBuiltinRegistry(env *Env) *Registry {
	r := NewRegistry()
	r.RegisterFunc(ResourceProcessData, env.ProcessData)
	r.RegisterFunc(ResourceSendNotification, env.SendNotification)
	return r
}
