package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/store"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
	"github.com/robfig/cron/v3"
)

// PeriodicKind is the reserved kind the periodic scheduler registers itself
// under. Re-exported from task for convenience; producers must never use it
// directly.
const PeriodicKind = task.PeriodicTaskKind

// PeriodicJobs maps a kind to the cron expression the periodic scheduler
// expands into one-shot task rows, an hour's worth at a time. Expressions
// use the seven-field dialect (sec min hour dom month dow year) or a
// "@hourly"-style descriptor. robfig/cron has no year field, so
// normalizeCronExpr drops it before parsing and the year is not checked.
type PeriodicJobs map[string]string

// CloneValue satisfies taskctx.Cloner so the registered map isn't aliased
// across cloned contexts.
func (p PeriodicJobs) CloneValue() any {
	out := make(PeriodicJobs, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// CurrentPeriodicJobs extracts the PeriodicJobs a supervisor wired into the
// base context.
func CurrentPeriodicJobs(tctx *taskctx.Context) (PeriodicJobs, error) {
	jobs, ok := taskctx.Get[PeriodicJobs](tctx)
	if !ok {
		return nil, fmt.Errorf("scheduler: no periodic jobs in context")
	}
	return jobs, nil
}

var periodicParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// normalizeCronExpr drops a trailing year field, which the registered
// expressions carry (seven space-separated fields: sec min hour dom month
// dow year) but robfig/cron doesn't model.
func normalizeCronExpr(expr string) string {
	if strings.HasPrefix(expr, "@") {
		return expr
	}
	fields := strings.Fields(expr)
	if len(fields) == 7 {
		fields = fields[:6]
	}
	return strings.Join(fields, " ")
}

// scheduleSlot is the hour-wide window get_scheduled_tasks expands cron
// expressions over: (now rounded up to the next hour, +1h).
type scheduleSlot struct {
	start time.Time
	end   time.Time
}

// nextHourSlot returns the slot starting at the next top of the hour after
// now and ending one hour after that.
func nextHourSlot(now time.Time) scheduleSlot {
	scheduleIn := time.Duration(60-now.Minute()) * time.Minute
	start := now.Add(scheduleIn).Truncate(time.Minute)
	return scheduleSlot{start: start, end: start.Add(time.Hour)}
}

// nextTopOfHour is when the periodic scheduler reinserts itself: the next
// whole-hour boundary after now.
func nextTopOfHour(now time.Time) time.Time {
	scheduleIn := time.Duration(60-now.Minute())*time.Minute - time.Duration(now.Second())*time.Second
	return now.Add(scheduleIn)
}

// expandPeriodicJobs expands every cron expression in jobs across slot,
// producing one NewTask per firing. Jobs whose expression fails to parse
// are skipped — registration-time validation is the caller's job, not
// this function's.
func expandPeriodicJobs(slot scheduleSlot, jobs PeriodicJobs, queue string) []task.NewTask {
	var out []task.NewTask
	for kind, expr := range jobs {
		sched, err := periodicParser.Parse(normalizeCronExpr(expr))
		if err != nil {
			continue
		}

		for at := sched.Next(slot.start); !at.After(slot.end); at = sched.Next(at) {
			nt, err := task.NewBuilder().
				Kind(kind).
				Args(nil).
				ScheduledAt(at).
				Queue(queue).
				Build()
			if err != nil {
				continue
			}
			out = append(out, nt)
		}
	}
	return out
}

// BootstrapPeriodicScheduler inserts a chang_schedule_periodic_task row on
// queue unless one already exists. Called once at supervisor startup; a
// no-op if jobs is empty or a row already exists (the self-reinserting
// handler keeps exactly one in flight forever after that). The existence
// check is by kind alone: a row of that kind on any queue, in any state,
// counts as existing.
func BootstrapPeriodicScheduler(ctx context.Context, s store.TaskStore, jobs PeriodicJobs, queue string, now time.Time) error {
	if len(jobs) == 0 {
		return nil
	}

	existing, err := s.GetByKind(ctx, PeriodicKind, 1)
	if err != nil {
		return fmt.Errorf("bootstrap periodic scheduler: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	startOfHour := now.Truncate(time.Hour)
	nt, err := task.NewBuilder().
		Kind(PeriodicKind).
		Args(nil).
		ScheduledAt(startOfHour).
		Priority(task.MaxPriority).
		Queue(queue).
		Build()
	if err != nil {
		return fmt.Errorf("bootstrap periodic scheduler: build task: %w", err)
	}

	if _, err := s.Insert(ctx, nt); err != nil {
		return fmt.Errorf("bootstrap periodic scheduler: insert task: %w", err)
	}
	return nil
}

// SchedulePeriodicTaskHandler is the registered handler for PeriodicKind. It
// expands every registered PeriodicJobs entry across the next hour, inserts
// the resulting one-shot tasks, and reinserts itself at the next hour
// boundary — so exactly one of these stays in flight for as long as the
// supervisor runs.
func SchedulePeriodicTaskHandler(logger *slog.Logger) registry.Handler {
	return func(ctx context.Context, tctx *taskctx.Context) error {
		s, err := registry.CurrentStore(tctx)
		if err != nil {
			return err
		}
		current, err := registry.CurrentTask(tctx)
		if err != nil {
			return err
		}
		jobs, err := CurrentPeriodicJobs(tctx)
		if err != nil {
			return err
		}

		queue := current.Queue
		if queue == "" {
			queue = task.DefaultQueue
		}

		now := time.Now()
		tasks := expandPeriodicJobs(nextHourSlot(now), jobs, queue)

		if len(tasks) > 0 {
			if _, err := s.BatchInsert(ctx, tasks); err != nil {
				metrics.PeriodicBootstrapTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("schedule periodic tasks: batch insert: %w", err)
			}
			metrics.PeriodicBootstrapTotal.WithLabelValues("ok").Add(float64(len(tasks)))
		}
		logger.InfoContext(ctx, "expanded periodic jobs", "count", len(tasks), "queue", queue)

		nextAt := nextTopOfHour(now)
		nt, err := task.NewBuilder().
			Kind(PeriodicKind).
			Args(nil).
			ScheduledAt(nextAt).
			Priority(task.MaxPriority).
			Queue(queue).
			Build()
		if err != nil {
			return fmt.Errorf("schedule periodic tasks: build self-reinsertion: %w", err)
		}
		if _, err := s.Insert(ctx, nt); err != nil {
			return fmt.Errorf("schedule periodic tasks: reinsert self: %w", err)
		}
		return nil
	}
}
