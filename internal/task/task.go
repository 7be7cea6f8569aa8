// Package task defines the durable task row and its lifecycle — the central
// data model the rest of the runner operates on.
package task

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// State is one of the seven states a task can occupy. The allowed
// transitions are listed in this package (see CanTransition); the store
// enforces them — see store.TaskStore.SetState.
type State string

const (
	StateAvailable State = "available"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateRetryable State = "retryable"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateDiscarded State = "discarded"
)

// Terminal reports whether s is one of the three states no transition leaves.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateDiscarded:
		return true
	default:
		return false
	}
}

// DefaultQueue is the queue name used when a task or queue policy doesn't
// name one explicitly.
const DefaultQueue = "default"

// PeriodicTaskKind is the reserved kind the periodic scheduler registers
// itself under. It must never be used by a producer directly.
const PeriodicTaskKind = "chang_schedule_periodic_task"

// MaxPriority is the platform's signed 16-bit maximum, used by the periodic
// scheduler so its own bootstrap/self-invocation tasks always sort first
// under the Priority strategy.
const MaxPriority int16 = math.MaxInt16

// DefaultMaxAttempts is the max_attempts NewBuilder starts from. A NewTask
// built by hand gets no default: MaxAttempts 0 fails Validate.
const DefaultMaxAttempts int16 = 3

// ErrorRecord pairs a failure's timestamp with the text a handler (or the
// worker, for a kind with no registered handler) reported. errors is append-only:
// every failed attempt adds exactly one record.
type ErrorRecord struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Task is a claimed or claimable row as read back from the store.
type Task struct {
	ID           uuid.UUID
	Kind         string
	Args         json.RawMessage
	State        State
	Priority     int16
	Queue        string
	Attempt      int16
	MaxAttempts  int16
	ScheduledAt  *time.Time
	AttemptedBy  []string
	Errors       []ErrorRecord
	Tags         []string
	DependsOn    *uuid.UUID
	DependendID  *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CloneValue satisfies taskctx.Cloner so a Task put into an execution context
// isn't aliased by slices shared with the claim batch.
func (t Task) CloneValue() any {
	out := t
	if t.Args != nil {
		out.Args = append(json.RawMessage(nil), t.Args...)
	}
	if t.AttemptedBy != nil {
		out.AttemptedBy = append([]string(nil), t.AttemptedBy...)
	}
	if t.Errors != nil {
		out.Errors = append([]ErrorRecord(nil), t.Errors...)
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}

// NewTask is the producer-facing spec for a row to be inserted. It carries no
// id, state, attempt counter, or timestamps — the store assigns those.
type NewTask struct {
	Kind        string
	Args        json.RawMessage
	Priority    int16
	Queue       string
	MaxAttempts int16
	ScheduledAt *time.Time
	Tags        []string
	DependsOn   *uuid.UUID
	DependendID *uuid.UUID
}

var (
	// ErrEmptyKind is returned when a NewTask has no kind.
	ErrEmptyKind = errors.New("task: kind must not be empty")
	// ErrInvalidMaxAttempts is returned when max_attempts < 1.
	ErrInvalidMaxAttempts = errors.New("task: max_attempts must be >= 1")
)

// Validate checks the preconditions spec.md §4.1 places on insert: kind
// non-empty and max_attempts >= 1. It does not check args: Builder.Args
// produces well-formed JSON by marshalling, while Builder.RawArgs and a
// hand-built NewTask pass their bytes through unchecked.
func (n NewTask) Validate() error {
	if n.Kind == "" {
		return ErrEmptyKind
	}
	if n.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// StateForScheduledAt returns the state a newly inserted row should start
// in: scheduled if scheduledAt is non-nil and in the future, available
// otherwise.
func StateForScheduledAt(scheduledAt *time.Time, now time.Time) State {
	if scheduledAt != nil && scheduledAt.After(now) {
		return StateScheduled
	}
	return StateAvailable
}
