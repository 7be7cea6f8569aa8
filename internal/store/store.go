// Package store declares the contract the scheduler and handlers depend on
// for task persistence, independent of the backing database. internal/postgres
// is the only implementation; internal/postgres/postgrestest is an in-memory
// fake used by tests that don't want a live connection.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup by id or kind finds no row.
	ErrNotFound = errors.New("store: task not found")
	// ErrInvalidTransition is returned when a state change isn't reachable
	// from the row's current state — see task.CanTransition.
	ErrInvalidTransition = errors.New("store: invalid state transition")
	// ErrDuplicateKind is returned by Insert/BatchInsert when a unique
	// constraint on (kind, args) rejects the row — reserved for stores that
	// enforce task de-duplication; the default schema does not.
	ErrDuplicateKind = errors.New("store: duplicate task")
)

// TransientError wraps a failure the caller should treat as retryable at the
// infrastructure level (a dropped connection, a deadline exceeded talking to
// Postgres) rather than as a task-logic error.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store: %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ClaimResult is one row handed to a worker by Claim, along with the
// attempt number it was claimed under.
type ClaimResult = task.Task

// TaskStore is the full persistence contract spec.md §4.1 and §5 describe.
// Every method is safe for concurrent use by multiple workers against the
// same underlying connection pool.
type TaskStore interface {
	// Insert persists a single new task and returns its generated id.
	// The row starts in state available, or scheduled if NewTask.ScheduledAt
	// is non-nil and in the future.
	Insert(ctx context.Context, spec task.NewTask) (uuid.UUID, error)

	// BatchInsert persists all of specs atomically: either every row is
	// created or none are. Returns the generated ids in the same order as
	// specs.
	BatchInsert(ctx context.Context, specs []task.NewTask) ([]uuid.UUID, error)

	// Claim atomically selects up to limit eligible rows from queueName,
	// ordered per strategy, and transitions them to running, recording
	// workerLabel as their claimant. A row is eligible only if its state is
	// available, scheduled or retryable, its scheduled_at is unset or due,
	// and if it has a dependency, the dependency has reached state completed. Rows already locked by a
	// concurrent claim are skipped, never waited on.
	Claim(ctx context.Context, queueName string, strategy task.SchedulingStrategy, limit int, workerLabel string) ([]task.Task, error)

	// Complete transitions id from running to completed. It is an error to
	// call Complete on a row not currently running.
	Complete(ctx context.Context, id uuid.UUID) error

	// Fail records errMsg against id's error history and transitions it to
	// retryable (if attempt < max_attempts) or discarded (otherwise). nextAt
	// is the scheduled_at to apply when the outcome is retryable; it is
	// ignored when the task is discarded.
	Fail(ctx context.Context, id uuid.UUID, errMsg string, nextAt *time.Time) error

	// SetState forces id directly to state newState, bypassing the
	// claim/complete/fail protocol. Used for administrative actions like
	// cancellation. Returns ErrInvalidTransition if newState isn't reachable
	// from the row's current state.
	SetState(ctx context.Context, id uuid.UUID, newState task.State) error

	// Get returns a single task by id.
	Get(ctx context.Context, id uuid.UUID) (task.Task, error)

	// GetByKind returns every task of the given kind, most recently created
	// first.
	GetByKind(ctx context.Context, kind string, limit int) ([]task.Task, error)

	// GetAll returns every task matching the given queue and state filters.
	// An empty queue or a nil states slice means "don't filter on this
	// dimension".
	GetAll(ctx context.Context, queue string, states []task.State, limit int) ([]task.Task, error)
}
