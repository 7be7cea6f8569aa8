// Package events implements the event collector: a process-wide batching
// primitive that drains produced records off a channel and periodically
// hands a batch to an Exporter. It is deliberately generic — the admin API
// uses it to build an audit trail of cancel actions, but nothing here
// is specific to that use.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/google/uuid"
)

// Record is an immutable produced event: who did what, recorded once and
// never mutated. Ownership transfers from the collector's buffer to the
// exporter exactly once, at flush time.
type Record struct {
	ID        uuid.UUID
	Kind      string
	Body      map[string]any
	CreatedAt time.Time
}

// Exporter hands a flushed batch of Records somewhere durable. Exporter
// errors are logged and the batch is dropped — the collector never retries
// a failed flush, per the baseline contract.
type Exporter interface {
	Export(ctx context.Context, batch []Record) error
}

// Collector is a singleton that accepts Records on a channel buffered to
// 1024 entries (Record drops, rather than queues, what does not fit),
// accumulates them under a mutex, and flushes on a fixed interval. The zero
// value is not usable; construct with New.
type Collector struct {
	exporter Exporter
	interval time.Duration
	logger   *slog.Logger

	incoming chan Record

	mu      sync.Mutex
	pending []Record
}

// New returns a Collector that will flush to exporter every interval once
// Start is called. exporter must be non-nil — a missing exporter is a
// startup-time failure, not something the collector tolerates at runtime.
func New(exporter Exporter, interval time.Duration, logger *slog.Logger) *Collector {
	if exporter == nil {
		panic("events: exporter must not be nil")
	}
	return &Collector{
		exporter: exporter,
		interval: interval,
		logger:   logger.With("component", "event_collector"),
		incoming: make(chan Record, 1024),
	}
}

// Record enqueues a new event for the next flush. It never blocks the
// caller on the database: the channel is drained by Start's own goroutine.
// If the channel itself is saturated, the record is dropped and counted
// rather than backing the caller up.
func (c *Collector) Record(kind string, body map[string]any) {
	r := Record{ID: uuid.New(), Kind: kind, Body: body, CreatedAt: time.Now()}
	select {
	case c.incoming <- r:
	default:
		metrics.EventsDroppedTotal.Inc()
		c.logger.Warn("event dropped: collector channel full", "kind", kind)
	}
}

// Start drains the incoming channel and flushes on interval until ctx is
// cancelled. It does not return until the final flush (of anything still
// pending) has been attempted.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("event collector started", "interval", c.interval)

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			c.logger.Info("event collector shut down")
			return
		case r := <-c.incoming:
			c.mu.Lock()
			c.pending = append(c.pending, r)
			c.mu.Unlock()
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

// flush atomically takes the pending buffer and hands it to the exporter.
// A failed export is logged and the batch is dropped, never requeued.
func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := c.exporter.Export(ctx, batch); err != nil {
		c.logger.Error("event export failed, batch dropped", "count", len(batch), "error", err)
		return
	}
	c.logger.Info("events exported", "count", len(batch))
}
