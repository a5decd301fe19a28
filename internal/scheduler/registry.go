package scheduler

import (
	"context"
	"fmt"
)

// TaskFunc is one pass of a recurring maintenance task.
type TaskFunc func(ctx context.Context) error

// Registry maps task names to handlers. Tasks are registered explicitly at
// startup; a name without a handler is a wiring bug, not a runtime condition,
// so Register fails loudly on duplicates and Resolve on unknown names.
type Registry struct {
	tasks map[string]TaskFunc
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]TaskFunc)}
}

// Register binds a handler to a name. Registration order is the order tasks
// run in each pass.
func (r *Registry) Register(name string, fn TaskFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("task registration requires a name and a handler")
	}
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	r.tasks[name] = fn
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the handler for name.
func (r *Registry) Resolve(name string) (TaskFunc, error) {
	fn, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return fn, nil
}

// Names returns the registered task names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
