package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	ctxlog "github.com/chang-tasks/chang-go/internal/log"
	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

// Worker repeatedly claims a batch of tasks from one TaskQueue and runs the
// whole batch to completion before claiming again. Concurrency within a
// worker is bounded by the queue's Limit, not by how fast any single task
// finishes — there is no per-task goroutine racing ahead of the batch.
type Worker struct {
	label    string
	store    store.TaskStore
	registry *registry.Registry
	base     *taskctx.Context
	queue    task.TaskQueue
	logger   *slog.Logger
}

// NewWorker builds a Worker polling queue, dispatching claimed tasks through
// reg, cloning base once per claimed task before its handler runs. An empty
// label is replaced with hostname-pid.
func NewWorker(label string, s store.TaskStore, reg *registry.Registry, base *taskctx.Context, queue task.TaskQueue, logger *slog.Logger) *Worker {
	if label == "" {
		hostname, _ := os.Hostname()
		label = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	return &Worker{
		label:    label,
		store:    s,
		registry: reg,
		base:     base,
		queue:    queue,
		logger:   logger.With("component", "worker", "worker_label", label, "queue", queue.Name),
	}
}

// Start polls on queue.Interval until ctx is cancelled, returning once the
// in-flight batch (if any) has finished.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.queue.Interval)
	defer ticker.Stop()

	w.logger.Info("worker started", "limit", w.queue.Limit, "strategy", w.queue.Strategy, "interval", w.queue.Interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	claimed, err := w.store.Claim(ctx, w.queue.Name, w.queue.Strategy, w.queue.Limit, w.label)
	if err != nil {
		w.logger.Error("claim batch", "error", err)
		return
	}
	metrics.ClaimBatchSize.Observe(float64(len(claimed)))
	if len(claimed) == 0 {
		return
	}

	w.logger.Info("claimed batch", "count", len(claimed))

	var wg sync.WaitGroup
	for _, t := range claimed {
		wg.Add(1)
		go func(t task.Task) {
			defer wg.Done()
			w.runTask(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (w *Worker) runTask(ctx context.Context, t task.Task) {
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx = ctxlog.WithTaskID(ctx, t.ID.String(), t.Kind)

	tctx := w.base.Clone()
	taskctx.Put(tctx, t)

	start := time.Now()
	handler, lookupErr := w.registry.Lookup(t.Kind)

	var runErr error
	if lookupErr != nil {
		runErr = lookupErr
	} else {
		runErr = w.invoke(ctx, handler, tctx)
	}
	duration := time.Since(start)

	if runErr == nil {
		w.finalizeCompleted(ctx, t, duration)
		return
	}
	w.finalizeFailed(ctx, t, runErr, duration)
}

// invoke recovers a handler panic into an error so one misbehaving handler
// can't take the whole worker down with it.
func (w *Worker) invoke(ctx context.Context, h registry.Handler, tctx *taskctx.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, tctx)
}

func (w *Worker) finalizeCompleted(ctx context.Context, t task.Task, duration time.Duration) {
	if err := w.store.Complete(ctx, t.ID); err != nil {
		w.logger.ErrorContext(ctx, "complete task", "error", err)
		return
	}
	metrics.TaskExecutionDuration.WithLabelValues(t.Kind, "completed").Observe(duration.Seconds())
	metrics.TasksCompletedTotal.WithLabelValues(t.Kind, "completed").Inc()
	w.logger.InfoContext(ctx, "task completed", "duration", duration)
}

func (w *Worker) finalizeFailed(ctx context.Context, t task.Task, runErr error, duration time.Duration) {
	outcome := "retryable"
	if t.Attempt >= t.MaxAttempts {
		outcome = "discarded"
	}
	if errors.Is(runErr, registry.ErrHandlerNotFound) {
		w.logger.WarnContext(ctx, "no handler for task kind")
	}

	if err := w.store.Fail(ctx, t.ID, runErr.Error(), nil); err != nil {
		w.logger.ErrorContext(ctx, "fail task", "error", err)
		return
	}
	metrics.TaskExecutionDuration.WithLabelValues(t.Kind, outcome).Observe(duration.Seconds())
	metrics.TasksCompletedTotal.WithLabelValues(t.Kind, outcome).Inc()
	w.logger.WarnContext(ctx, "task failed", "outcome", outcome, "error", runErr, "duration", duration)
}

