// Package postgrestest provides an in-memory store.TaskStore for tests that
// exercise the scheduler or admin layers without a live database connection.
// It reimplements postgres.Store's claim/complete/fail semantics over a
// plain map rather than SQL.
package postgrestest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/google/uuid"
)

// Store is a mutex-guarded in-memory store.TaskStore.
type Store struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]task.Task
	clock func() time.Time
}

// New returns an empty Store using time.Now for every timestamp it assigns.
func New() *Store {
	return &Store{rows: make(map[uuid.UUID]task.Task), clock: time.Now}
}

// WithClock overrides the time source, for deterministic scheduling tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

var _ store.TaskStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, spec task.NewTask) (uuid.UUID, error) {
	if err := spec.Validate(); err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(spec), nil
}

func (s *Store) BatchInsert(ctx context.Context, specs []task.NewTask) ([]uuid.UUID, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("batch insert: task %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, len(specs))
	for i, spec := range specs {
		ids[i] = s.insertLocked(spec)
	}
	return ids, nil
}

func (s *Store) insertLocked(spec task.NewTask) uuid.UUID {
	now := s.clock()
	id := uuid.New()
	s.rows[id] = task.Task{
		ID:          id,
		Kind:        spec.Kind,
		Args:        spec.Args,
		State:       task.StateForScheduledAt(spec.ScheduledAt, now),
		Priority:    spec.Priority,
		Queue:       spec.Queue,
		MaxAttempts: spec.MaxAttempts,
		ScheduledAt: spec.ScheduledAt,
		Tags:        spec.Tags,
		DependsOn:   spec.DependsOn,
		DependendID: spec.DependendID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return id
}

var claimableStates = map[task.State]bool{
	task.StateAvailable: true,
	task.StateScheduled: true,
	task.StateRetryable: true,
}

func (s *Store) Claim(ctx context.Context, queueName string, strategy task.SchedulingStrategy, limit int, workerLabel string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var eligible []task.Task
	for _, t := range s.rows {
		if t.Queue != queueName || !claimableStates[t.State] {
			continue
		}
		if t.ScheduledAt != nil && t.ScheduledAt.After(now) {
			continue
		}
		if t.DependsOn != nil {
			dep, ok := s.rows[*t.DependsOn]
			if !ok || dep.State != task.StateCompleted {
				continue
			}
		}
		eligible = append(eligible, t)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if strategy == task.Priority && a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		aSched, bSched := scheduledOrZero(a), scheduledOrZero(b)
		if !aSched.Equal(bSched) {
			return aSched.Before(bSched)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	if limit < len(eligible) {
		eligible = eligible[:limit]
	}

	claimed := make([]task.Task, 0, len(eligible))
	for _, t := range eligible {
		t.State = task.StateRunning
		t.Attempt++
		t.AttemptedBy = append(append([]string(nil), t.AttemptedBy...), workerLabel)
		t.UpdatedAt = now
		s.rows[t.ID] = t
		claimed = append(claimed, t.CloneValue().(task.Task))
	}
	return claimed, nil
}

func scheduledOrZero(t task.Task) time.Time {
	if t.ScheduledAt == nil {
		return time.Time{}
	}
	return *t.ScheduledAt
}

func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.State != task.StateRunning {
		return store.ErrInvalidTransition
	}
	t.State = task.StateCompleted
	t.UpdatedAt = s.clock()
	s.rows[id] = t
	return nil
}

func (s *Store) Fail(ctx context.Context, id uuid.UUID, errMsg string, nextAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.State != task.StateRunning {
		return store.ErrInvalidTransition
	}

	now := s.clock()
	discard := t.Attempt >= t.MaxAttempts
	if discard {
		t.State = task.StateDiscarded
		t.ScheduledAt = nil
	} else {
		t.State = task.StateRetryable
		if nextAt != nil {
			t.ScheduledAt = nextAt
		} else {
			at := now.Add(backoff(t.Attempt))
			t.ScheduledAt = &at
		}
	}
	t.Errors = append(t.Errors, task.ErrorRecord{At: now, Message: errMsg})
	t.UpdatedAt = now
	s.rows[id] = t
	return nil
}

func (s *Store) SetState(ctx context.Context, id uuid.UUID, newState task.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if !task.CanTransition(t.State, newState) {
		return store.ErrInvalidTransition
	}
	t.State = newState
	t.UpdatedAt = s.clock()
	s.rows[id] = t
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return task.Task{}, store.ErrNotFound
	}
	return t.CloneValue().(task.Task), nil
}

func (s *Store) GetByKind(ctx context.Context, kind string, limit int) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.rows {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetAll(ctx context.Context, queue string, states []task.State, limit int) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wantStates := make(map[task.State]bool, len(states))
	for _, st := range states {
		wantStates[st] = true
	}
	var out []task.Task
	for _, t := range s.rows {
		if queue != "" && t.Queue != queue {
			continue
		}
		if len(wantStates) > 0 && !wantStates[t.State] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

const (
	backoffBase = time.Second
	backoffCap  = time.Hour
)

func backoff(attempt int16) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt-1)))
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay/2 + time.Duration(rand.Int63n(int64(delay/2+1)))
}
