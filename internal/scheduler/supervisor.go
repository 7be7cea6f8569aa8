package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

// Supervisor owns one runner process's workers: it bootstraps the periodic
// scheduler, starts RunnerConcurrency identical workers polling the same
// queue, and shuts all of them down together when its context is cancelled.
type Supervisor struct {
	store    store.TaskStore
	registry *registry.Registry
	base     *taskctx.Context
	queue    task.TaskQueue
	workers  int
	label    string
	logger   *slog.Logger
}

// NewSupervisor returns a Supervisor that will run workerCount workers
// against queue once Start is called. reg must already be sealed. label
// identifies this process in each worker's derived label; an empty label
// falls back to hostname-pid.
func NewSupervisor(s store.TaskStore, reg *registry.Registry, base *taskctx.Context, queue task.TaskQueue, workerCount int, label string, logger *slog.Logger) *Supervisor {
	if workerCount < 1 {
		workerCount = 1
	}
	if label == "" {
		hostname, _ := os.Hostname()
		label = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	return &Supervisor{
		store:    s,
		registry: reg,
		base:     base,
		queue:    queue,
		workers:  workerCount,
		label:    label,
		logger:   logger.With("component", "supervisor"),
	}
}

// Start bootstraps the periodic scheduler (a no-op if no jobs are registered
// in base, or one is already in flight) and then blocks running
// workerCount workers until ctx is cancelled, returning once every worker
// has drained its in-flight batch.
func (s *Supervisor) Start(ctx context.Context) error {
	if jobs, err := CurrentPeriodicJobs(s.base); err == nil {
		if err := BootstrapPeriodicScheduler(ctx, s.store, jobs, s.queue.Name, time.Now()); err != nil {
			return err
		}
	}

	metrics.WorkerStartTime.SetToCurrentTime()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		label := fmt.Sprintf("%s-%d", s.label, i)
		w := NewWorker(label, s.store, s.registry, s.base, s.queue, s.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	s.logger.Info("supervisor started", "workers", s.workers, "queue", s.queue.Name)
	wg.Wait()
	metrics.WorkerShutdownsTotal.Inc()
	s.logger.Info("supervisor shut down")
	return nil
}
