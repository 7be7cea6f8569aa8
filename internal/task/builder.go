package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Builder constructs a NewTask from a typed args value, the Go shape of
// spec.md §6's "typed builder". Producers outside this module should go
// through Builder rather than constructing a NewTask by hand so Args is
// always well-formed JSON.
type Builder struct {
	newTask NewTask
	argsErr error
}

// NewBuilder starts a Builder with the spec's defaults: max_attempts 3,
// priority 0, queue "default".
func NewBuilder() *Builder {
	return &Builder{
		newTask: NewTask{
			MaxAttempts: DefaultMaxAttempts,
			Queue:       DefaultQueue,
		},
	}
}

// Kind sets the routing key a handler is registered under.
func (b *Builder) Kind(kind string) *Builder {
	b.newTask.Kind = kind
	return b
}

// Args marshals v as the task's payload. A nil v produces a JSON null,
// matching how the periodic scheduler inserts argument-less tasks.
func (b *Builder) Args(v any) *Builder {
	if v == nil {
		b.newTask.Args = json.RawMessage("null")
		return b
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b.argsErr = fmt.Errorf("task builder: marshal args: %w", err)
		return b
	}
	b.newTask.Args = raw
	return b
}

// RawArgs sets the payload directly from an already-encoded JSON document.
func (b *Builder) RawArgs(raw json.RawMessage) *Builder {
	b.newTask.Args = raw
	return b
}

// Priority sets the task's scheduling priority (higher wins under the
// Priority strategy).
func (b *Builder) Priority(p int16) *Builder {
	b.newTask.Priority = p
	return b
}

// Queue selects which named queue the task belongs to.
func (b *Builder) Queue(queue string) *Builder {
	b.newTask.Queue = queue
	return b
}

// MaxAttempts overrides the default retry ceiling.
func (b *Builder) MaxAttempts(n int16) *Builder {
	b.newTask.MaxAttempts = n
	return b
}

// ScheduledAt delays the task's availability until t.
func (b *Builder) ScheduledAt(t time.Time) *Builder {
	b.newTask.ScheduledAt = &t
	return b
}

// Tags attaches an opaque set of labels a producer can later filter by.
func (b *Builder) Tags(tags ...string) *Builder {
	b.newTask.Tags = tags
	return b
}

// DependsOn makes the task eligible for claim only once the named
// predecessor has reached state completed.
func (b *Builder) DependsOn(id uuid.UUID) *Builder {
	b.newTask.DependsOn = &id
	return b
}

// DependendID attaches an opaque grouping id a producer uses to stitch
// related tasks together; the core never interprets it.
func (b *Builder) DependendID(id uuid.UUID) *Builder {
	b.newTask.DependendID = &id
	return b
}

// Build validates and returns the assembled NewTask.
func (b *Builder) Build() (NewTask, error) {
	if b.argsErr != nil {
		return NewTask{}, b.argsErr
	}
	if b.newTask.Args == nil {
		b.newTask.Args = json.RawMessage("null")
	}
	if err := b.newTask.Validate(); err != nil {
		return NewTask{}, err
	}
	return b.newTask, nil
}
