package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeExporter struct {
	mu      sync.Mutex
	batches [][]Record
	failN   int
}

func (f *fakeExporter) Export(ctx context.Context, batch []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("export failed")
	}
	cp := append([]Record(nil), batch...)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeExporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	exp := &fakeExporter{}
	c := New(exp, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	c.Record("task.cancelled", map[string]any{"task_id": "abc"})
	c.Record("task.cancelled", map[string]any{"task_id": "def"})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && exp.count() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if exp.count() != 2 {
		t.Fatalf("got %d exported records, want 2", exp.count())
	}
}

func TestCollectorFlushesPendingOnShutdown(t *testing.T) {
	exp := &fakeExporter{}
	c := New(exp, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx)

	c.Record("task.retried", map[string]any{"task_id": "xyz"})
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	if exp.count() != 1 {
		t.Fatalf("got %d exported records after shutdown, want 1", exp.count())
	}
}

func TestCollectorDropsBatchOnExportError(t *testing.T) {
	exp := &fakeExporter{failN: 1}
	c := New(exp, 15*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go c.Start(ctx)

	c.Record("task.cancelled", map[string]any{"task_id": "lost"})
	time.Sleep(100 * time.Millisecond)

	if exp.count() != 0 {
		t.Fatalf("got %d exported records, want 0 (first flush should have failed and dropped)", exp.count())
	}
}

func TestCollectorDropsWhenChannelFull(t *testing.T) {
	exp := &fakeExporter{}
	c := New(exp, time.Hour, testLogger())
	// Don't Start the collector's drain goroutine: fill the channel directly.
	for i := 0; i < cap(c.incoming)+10; i++ {
		c.Record("overflow", nil)
	}
	if len(c.incoming) != cap(c.incoming) {
		t.Fatalf("channel len = %d, want full at %d", len(c.incoming), cap(c.incoming))
	}
}

func TestNewPanicsOnNilExporter(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil exporter")
		}
	}()
	New(nil, time.Second, testLogger())
}

func TestLogExporterExportNeverErrors(t *testing.T) {
	exp := NewLogExporter(testLogger())
	err := exp.Export(context.Background(), []Record{{Kind: "x", CreatedAt: time.Now()}})
	if err != nil {
		t.Fatalf("log exporter returned error: %v", err)
	}
}
