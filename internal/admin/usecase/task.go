package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chang-tasks/chang-go/internal/events"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/google/uuid"
)

// TaskUsecase is the read/cancel/insert surface the admin API exposes over
// the task store. It never registers or swaps handlers — the registry stays
// frozen for the process's lifetime. Insert does not check the kind against
// the registry: a task whose kind has no handler is accepted and fails with
// registry.ErrHandlerNotFound when a worker claims it.
type TaskUsecase struct {
	store     store.TaskStore
	collector *events.Collector
}

// NewTaskUsecase builds a TaskUsecase. collector may be nil, in which case
// administrative actions aren't recorded as audit events.
func NewTaskUsecase(s store.TaskStore, collector *events.Collector) *TaskUsecase {
	return &TaskUsecase{store: s, collector: collector}
}

// InsertInput is the operator-facing request shape for inserting a task
// through the admin API, mirroring task.NewTask but with JSON-friendly
// fields for binding.
type InsertInput struct {
	Kind        string          `json:"kind" binding:"required"`
	Args        json.RawMessage `json:"args"`
	Priority    int16           `json:"priority"`
	Queue       string          `json:"queue"`
	MaxAttempts int16           `json:"max_attempts"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	Tags        []string        `json:"tags"`
}

func (u *TaskUsecase) Insert(ctx context.Context, in InsertInput) (task.Task, error) {
	b := task.NewBuilder().Kind(in.Kind)
	if in.Args != nil {
		b = b.RawArgs(in.Args)
	}
	if in.Priority != 0 {
		b = b.Priority(in.Priority)
	}
	if in.Queue != "" {
		b = b.Queue(in.Queue)
	}
	if in.MaxAttempts != 0 {
		b = b.MaxAttempts(in.MaxAttempts)
	}
	if in.ScheduledAt != nil {
		b = b.ScheduledAt(*in.ScheduledAt)
	}
	if len(in.Tags) > 0 {
		b = b.Tags(in.Tags...)
	}

	spec, err := b.Build()
	if err != nil {
		return task.Task{}, err
	}

	id, err := u.store.Insert(ctx, spec)
	if err != nil {
		return task.Task{}, err
	}
	return u.store.Get(ctx, id)
}

func (u *TaskUsecase) Get(ctx context.Context, id uuid.UUID) (task.Task, error) {
	return u.store.Get(ctx, id)
}

// ListInput filters the task listing by queue and/or state. An empty Queue
// or nil States means "don't filter on this dimension".
type ListInput struct {
	Queue  string
	States []task.State
	Limit  int
}

func (u *TaskUsecase) List(ctx context.Context, in ListInput) ([]task.Task, error) {
	limit := in.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return u.store.GetAll(ctx, in.Queue, in.States, limit)
}

// Cancel moves id directly to cancelled, regardless of its current
// non-terminal state.
func (u *TaskUsecase) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := u.store.SetState(ctx, id, task.StateCancelled); err != nil {
		return err
	}
	if u.collector != nil {
		u.collector.Record("task.cancelled", map[string]any{"task_id": id.String()})
	}
	return nil
}
