package events

import (
	"context"
	"log/slog"
)

// LogExporter writes each flushed record as a structured log line. Useful
// for local development and as the default when no audit_events table is
// configured.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter returns an Exporter that logs through logger.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger.With("component", "event_exporter")}
}

func (e *LogExporter) Export(ctx context.Context, batch []Record) error {
	for _, r := range batch {
		e.logger.Info("event", "id", r.ID, "kind", r.Kind, "body", r.Body, "created_at", r.CreatedAt)
	}
	return nil
}
