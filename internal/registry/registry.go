// Package registry is the compile-time mapping from a task's kind string to
// the Go function that executes it. Registration happens once, at process
// startup, before any worker starts polling — spec.md §4.3 explicitly rules
// out adding or replacing a handler while the supervisor is running.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

// Handler executes one claimed task. It returns nil on success, which the
// worker records as completed, or any error to signal failure (the store
// decides retryable vs discarded from the attempt counter, not the handler).
// A handler returns no state, so it cannot ask for any other outcome.
type Handler func(ctx context.Context, tctx *taskctx.Context) error

// ErrHandlerNotFound is the error the worker loop records against a claimed
// task whose kind has no registered Handler. It is treated the same as any
// other handler error: it counts as a failed attempt.
var ErrHandlerNotFound = errors.New("registry: no handler registered for kind")

// Registry is a read-only-after-construction map from kind to Handler. The
// zero value is not usable; construct with New.
type Registry struct {
	handlers map[string]Handler
	sealed   bool
}

// New returns an empty Registry ready for Register calls.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds kind to h. Panics on a duplicate kind or on a call after
// Seal — both are programmer errors caught at startup, not runtime
// conditions a caller should need to handle.
func (r *Registry) Register(kind string, h Handler) {
	if r.sealed {
		panic(fmt.Sprintf("registry: Register(%q) called after Seal", kind))
	}
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("registry: duplicate handler for kind %q", kind))
	}
	r.handlers[kind] = h
}

// Seal freezes the registry. The process wiring (cmd/runner) calls this
// once, after all producer packages have registered their handlers and
// before the registry is handed to NewSupervisor.
func (r *Registry) Seal() {
	r.sealed = true
}

// Lookup returns the handler registered for kind, or ErrHandlerNotFound.
func (r *Registry) Lookup(kind string) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, kind)
	}
	return h, nil
}

// Kinds returns every registered kind, for diagnostics.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

// CurrentTask extracts the claimed task.Task a handler is running under.
// Every handler invocation has one put into its taskctx.Context by the
// worker loop before the handler runs.
func CurrentTask(tctx *taskctx.Context) (task.Task, error) {
	t, ok := taskctx.Get[task.Task](tctx)
	if !ok {
		return task.Task{}, errors.New("registry: no current task in context")
	}
	return t, nil
}

// DecodeArgs extracts the current task and unmarshals its args into T. It is
// the typed counterpart to reading task.Task.Args directly.
func DecodeArgs[T any](tctx *taskctx.Context) (T, error) {
	var zero T
	t, err := CurrentTask(tctx)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(t.Args, &v); err != nil {
		return zero, fmt.Errorf("registry: decode args for kind %q: %w", t.Kind, err)
	}
	return v, nil
}
