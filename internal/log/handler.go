package log

import (
	"context"
	"log/slog"

	"github.com/chang-tasks/chang-go/internal/requestid"
)

type taskIDKey struct{}

// taskInfo is what WithTaskID attaches to a context: the claimed task's id
// and kind, so every log line emitted while a handler runs carries both
// without the handler having to pass them explicitly.
type taskInfo struct {
	id   string
	kind string
}

// WithTaskID returns a copy of ctx carrying the claimed task's id and kind,
// picked up by ContextHandler on every subsequent log call made with that
// context.
func WithTaskID(ctx context.Context, id, kind string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskInfo{id: id, kind: kind})
}

// ContextHandler wraps an slog.Handler and automatically extracts
// request_id and (while a task is executing) task_id/task_kind from the
// context of each log record.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler returns a handler that enriches every record with
// context values (request_id, task_id, task_kind) before delegating to
// inner.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if info, ok := ctx.Value(taskIDKey{}).(taskInfo); ok {
		r.AddAttrs(slog.String("task_id", info.id), slog.String("task_kind", info.kind))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
