package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/chang-tasks/chang-go/internal/postgres/postgrestest"
	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

func TestSupervisorRunsMultipleWorkersConcurrently(t *testing.T) {
	s := postgrestest.New()
	const total = 20
	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		id, err := s.Insert(context.Background(), task.NewTask{Kind: "work", MaxAttempts: 1, Queue: task.DefaultQueue})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id.String())
	}

	reg := registry.New()
	reg.Register("work", func(ctx context.Context, tctx *taskctx.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	reg.Seal()

	queue := task.NewQueue(task.WithInterval(5*time.Millisecond), task.WithLimit(5))
	sup := NewSupervisor(s, reg, taskctx.New(), queue, 4, "sup-test", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	done := make(chan error, 1)
	go func() { done <- sup.Start(ctx) }()

	waitFor(t, 1500*time.Millisecond, func() bool {
		all, err := s.GetAll(context.Background(), task.DefaultQueue, []task.State{task.StateCompleted}, 0)
		return err == nil && len(all) == total
	})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("supervisor.Start returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("supervisor did not shut down after context cancellation")
	}
}

func TestSupervisorBootstrapsPeriodicSchedulerOnce(t *testing.T) {
	s := postgrestest.New()
	reg := registry.New()
	reg.Seal()

	base := taskctx.New()
	taskctx.Put(base, PeriodicJobs{"hourly-job": "@hourly"})

	queue := task.NewQueue(task.WithInterval(20 * time.Millisecond))
	sup := NewSupervisor(s, reg, base, queue, 1, "sup-test", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = sup.Start(ctx)

	rows, err := s.GetByKind(context.Background(), PeriodicKind, 10)
	if err != nil {
		t.Fatalf("get by kind: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d periodic bootstrap rows, want 1", len(rows))
	}
}
