package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExporter writes a flushed batch into an append-only audit_events
// table:
//
//	CREATE TABLE audit_events (
//	    id         uuid PRIMARY KEY,
//	    kind       text NOT NULL,
//	    body       jsonb NOT NULL,
//	    created_at timestamptz NOT NULL
//	);
type PostgresExporter struct {
	pool *pgxpool.Pool
}

// NewPostgresExporter wraps an already-open pool as an Exporter.
func NewPostgresExporter(pool *pgxpool.Pool) *PostgresExporter {
	return &PostgresExporter{pool: pool}
}

func (e *PostgresExporter) Export(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}

	args := make([]any, 0, len(batch)*4)
	rows := make([]string, 0, len(batch))
	for i, r := range batch {
		body, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("events: marshal record %d body: %w", i, err)
		}
		base := len(args)
		args = append(args, r.ID, r.Kind, body, r.CreatedAt)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
	}

	query := fmt.Sprintf(`
		INSERT INTO audit_events (id, kind, body, created_at)
		VALUES %s`, strings.Join(rows, ",\n\t\t"))

	if _, err := e.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("events: insert batch: %w", err)
	}
	return nil
}
