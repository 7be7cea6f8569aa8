package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed store.TaskStore. The schema it expects:
//
//	CREATE TABLE tasks (
//	    id            uuid PRIMARY KEY,
//	    kind          text NOT NULL,
//	    args          jsonb NOT NULL,
//	    state         text NOT NULL,
//	    priority      smallint NOT NULL DEFAULT 0,
//	    queue         text NOT NULL DEFAULT 'default',
//	    attempt       smallint NOT NULL DEFAULT 0,
//	    max_attempts  smallint NOT NULL DEFAULT 3,
//	    scheduled_at  timestamptz,
//	    attempted_by  text[] NOT NULL DEFAULT '{}',
//	    errors        jsonb NOT NULL DEFAULT '[]',
//	    tags          text[],
//	    depends_on    uuid REFERENCES tasks(id),
//	    dependend_id  uuid,
//	    created_at    timestamptz NOT NULL DEFAULT now(),
//	    updated_at    timestamptz NOT NULL DEFAULT now()
//	);
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-open pool as a store.TaskStore.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.TaskStore = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, spec task.NewTask) (uuid.UUID, error) {
	if err := spec.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	state := task.StateForScheduledAt(spec.ScheduledAt, time.Now())

	const query = `
		INSERT INTO tasks (id, kind, args, state, priority, queue, max_attempts, scheduled_at, tags, depends_on, dependend_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var returnedID uuid.UUID
	err := s.pool.QueryRow(ctx, query,
		id, spec.Kind, spec.Args, state, spec.Priority, spec.Queue, spec.MaxAttempts,
		spec.ScheduledAt, spec.Tags, spec.DependsOn, spec.DependendID,
	).Scan(&returnedID)
	if err != nil {
		return uuid.Nil, wrapInsertErr("insert task", err)
	}
	return returnedID, nil
}

func (s *Store) BatchInsert(ctx context.Context, specs []task.NewTask) ([]uuid.UUID, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	now := time.Now()
	ids := make([]uuid.UUID, len(specs))
	args := make([]any, 0, len(specs)*11)
	rows := make([]string, 0, len(specs))

	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("batch insert: task %d: %w", i, err)
		}
		id := uuid.New()
		ids[i] = id
		state := task.StateForScheduledAt(spec.ScheduledAt, now)

		base := len(args)
		args = append(args, id, spec.Kind, spec.Args, state, spec.Priority, spec.Queue,
			spec.MaxAttempts, spec.ScheduledAt, spec.Tags, spec.DependsOn, spec.DependendID)

		placeholders := make([]string, 11)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")
	}

	query := fmt.Sprintf(`
		INSERT INTO tasks (id, kind, args, state, priority, queue, max_attempts, scheduled_at, tags, depends_on, dependend_id)
		VALUES %s
		RETURNING id`, strings.Join(rows, ",\n\t\t"))

	dbRows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapInsertErr("batch insert tasks", err)
	}
	defer dbRows.Close()

	// Postgres preserves VALUES-list row order in a single-statement
	// RETURNING, so the nth row back corresponds to specs[n]. We scan
	// defensively anyway rather than assuming the count matches.
	returned := make([]uuid.UUID, 0, len(specs))
	for dbRows.Next() {
		var id uuid.UUID
		if err := dbRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("batch insert tasks: scan id: %w", err)
		}
		returned = append(returned, id)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("batch insert tasks: %w", err)
	}
	if len(returned) != len(specs) {
		return nil, fmt.Errorf("batch insert tasks: expected %d rows, got %d", len(specs), len(returned))
	}
	return returned, nil
}

// claimableStates are the states Claim considers eligible. retryable tasks
// are claimable directly — there is no separate promotion step that moves a
// retryable row back to available once its backoff elapses.
var claimableStates = []string{string(task.StateAvailable), string(task.StateScheduled), string(task.StateRetryable)}

func (s *Store) Claim(ctx context.Context, queueName string, strategy task.SchedulingStrategy, limit int, workerLabel string) ([]task.Task, error) {
	order := "scheduled_at ASC NULLS FIRST, created_at ASC, id ASC"
	if strategy == task.Priority {
		order = "priority DESC, scheduled_at ASC NULLS FIRST, created_at ASC, id ASC"
	}

	query := fmt.Sprintf(`
		UPDATE tasks
		SET    state        = 'running',
		       attempt      = attempt + 1,
		       attempted_by = array_append(attempted_by, $1),
		       updated_at   = now()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE  queue = $2
			  AND  state = ANY($3)
			  AND  (scheduled_at IS NULL OR scheduled_at <= now())
			  AND  (
			         depends_on IS NULL
			         OR EXISTS (
			             SELECT 1 FROM tasks dep
			             WHERE dep.id = tasks.depends_on AND dep.state = 'completed'
			         )
			       )
			ORDER BY %s
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, order, tasksColumns)

	rows, err := s.pool.Query(ctx, query, workerLabel, queueName, claimableStates, limit)
	if err != nil {
		return nil, &store.TransientError{Op: "claim tasks", Err: err}
	}
	defer rows.Close()

	var claimed []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.TransientError{Op: "claim tasks", Err: err}
	}
	return claimed, nil
}

func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET state = 'completed', updated_at = now()
		WHERE id = $1 AND state = 'running'`, id)
	if err != nil {
		return &store.TransientError{Op: "complete task", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return s.invalidOrNotFound(ctx, id)
	}
	return nil
}

func (s *Store) Fail(ctx context.Context, id uuid.UUID, errMsg string, nextAt *time.Time) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.State != task.StateRunning {
		return fmt.Errorf("%w: task %s is %s, not running", store.ErrInvalidTransition, id, current.State)
	}

	discard := current.Attempt >= current.MaxAttempts
	newState := task.StateRetryable
	scheduledAt := nextAt
	if discard {
		newState = task.StateDiscarded
		scheduledAt = nil
	} else if scheduledAt == nil {
		at := time.Now().Add(backoff(current.Attempt))
		scheduledAt = &at
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET    state        = $2,
		       scheduled_at = $3,
		       errors       = errors || jsonb_build_array(jsonb_build_object('at', $4::timestamptz, 'message', $5::text)),
		       updated_at   = now()
		WHERE id = $1 AND state = 'running'`,
		id, newState, scheduledAt, time.Now(), errMsg)
	if err != nil {
		return &store.TransientError{Op: "fail task", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return s.invalidOrNotFound(ctx, id)
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, id uuid.UUID, newState task.State) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !task.CanTransition(current.State, newState) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current.State, newState)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET state = $2, updated_at = now() WHERE id = $1 AND state = $3`,
		id, newState, current.State)
	if err != nil {
		return &store.TransientError{Op: "set task state", Err: err}
	}
	if tag.RowsAffected() == 0 {
		// Another writer raced us between Get and Exec; re-check rather
		// than reporting a stale verdict.
		return s.invalidOrNotFound(ctx, id)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (task.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, tasksColumns)
	row := s.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (s *Store) GetByKind(ctx context.Context, kind string, limit int) ([]task.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`, tasksColumns)

	rows, err := s.pool.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, &store.TransientError{Op: "get tasks by kind", Err: err}
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func (s *Store) GetAll(ctx context.Context, queue string, states []task.State, limit int) ([]task.Task, error) {
	args := []any{}
	where := []string{}

	if queue != "" {
		args = append(args, queue)
		where = append(where, fmt.Sprintf("queue = $%d", len(args)))
	}
	if len(states) > 0 {
		strStates := make([]string, len(states))
		for i, st := range states {
			strStates[i] = string(st)
		}
		args = append(args, strStates)
		where = append(where, fmt.Sprintf("state = ANY($%d)", len(args)))
	}

	whereClause := "TRUE"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, tasksColumns, whereClause, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &store.TransientError{Op: "get all tasks", Err: err}
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func scanTaskRows(rows pgx.Rows) ([]task.Task, error) {
	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return out, nil
}

// invalidOrNotFound distinguishes "row doesn't exist" from "row exists but
// isn't in a state the caller's WHERE clause expected" after a zero-row
// UPDATE, so callers get ErrNotFound vs ErrInvalidTransition correctly.
func (s *Store) invalidOrNotFound(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return err
	}
	return store.ErrInvalidTransition
}

func wrapInsertErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicateKind
	}
	return &store.TransientError{Op: op, Err: err}
}
