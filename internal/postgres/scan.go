package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/jackc/pgx/v5"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tasksColumns is the column list every SELECT/RETURNING against tasks uses,
// in the order scanTask expects. errors is stored as a single jsonb document
// (a JSON array of {"at","message"}) rather than a Postgres array type, so
// it round-trips through encoding/json without a custom pgtype.
const tasksColumns = `
	id, kind, args, state, priority, queue, attempt, max_attempts,
	scheduled_at, attempted_by, errors, tags, depends_on, dependend_id,
	created_at, updated_at`

// scanTask reads one tasks row. Shared by every query that returns full
// rows so the column order only has to be kept in sync once.
func scanTask(row rowScanner) (task.Task, error) {
	var t task.Task
	var errorsJSON []byte

	err := row.Scan(
		&t.ID, &t.Kind, &t.Args, &t.State, &t.Priority, &t.Queue, &t.Attempt, &t.MaxAttempts,
		&t.ScheduledAt, &t.AttemptedBy, &errorsJSON, &t.Tags, &t.DependsOn, &t.DependendID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, store.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}

	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &t.Errors); err != nil {
			return task.Task{}, fmt.Errorf("scan task: decode errors column: %w", err)
		}
	}
	return t, nil
}
