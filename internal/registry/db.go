package registry

import (
	"errors"

	"github.com/chang-tasks/chang-go/internal/taskctx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pool a handler uses to reach the database for its own
// side-effects (separate from the store's internal use of the same pool).
// A supervisor puts exactly one DB into its base taskctx.Context at
// construction time, so every cloned per-task context carries it too.
type DB struct {
	*pgxpool.Pool
}

// CloneValue satisfies taskctx.Cloner. A pool handle is safe to share, so
// cloning just copies the wrapper.
func (d DB) CloneValue() any { return d }

// CurrentDB extracts the DB a supervisor wired into the base context.
func CurrentDB(tctx *taskctx.Context) (DB, error) {
	db, ok := taskctx.Get[DB](tctx)
	if !ok {
		return DB{}, errors.New("registry: no database handle in context")
	}
	return db, nil
}
