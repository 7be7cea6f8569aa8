package registry

import (
	"errors"

	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

// Store wraps the store.TaskStore a handler uses to insert follow-up work
// (the periodic scheduler's self-reinsertion, a fan-out handler inserting
// children). A supervisor puts exactly one Store into its base
// taskctx.Context.
type Store struct {
	store.TaskStore
}

// CloneValue satisfies taskctx.Cloner. The store is safe to share across
// concurrent handlers, so cloning just copies the wrapper.
func (s Store) CloneValue() any { return s }

// CurrentStore extracts the Store a supervisor wired into the base context.
func CurrentStore(tctx *taskctx.Context) (Store, error) {
	s, ok := taskctx.Get[Store](tctx)
	if !ok {
		return Store{}, errors.New("registry: no task store in context")
	}
	return s, nil
}
