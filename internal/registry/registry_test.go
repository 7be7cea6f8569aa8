package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

func TestRegisterAndLookup(t *testing.T) {
	r := registry.New()
	called := false
	r.Register("send_email", func(ctx context.Context, tctx *taskctx.Context) error {
		called = true
		return nil
	})
	r.Seal()

	h, err := r.Lookup("send_email")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if err := h(context.Background(), taskctx.New()); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !called {
		t.Fatalf("handler was not invoked")
	}
}

func TestLookupUnknownKindReturnsHandlerNotFound(t *testing.T) {
	r := registry.New()
	r.Seal()

	_, err := r.Lookup("nonexistent")
	if !errors.Is(err, registry.ErrHandlerNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrHandlerNotFound", err)
	}
}

func TestRegisterDuplicateKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()

	r := registry.New()
	r.Register("k", func(context.Context, *taskctx.Context) error { return nil })
	r.Register("k", func(context.Context, *taskctx.Context) error { return nil })
}

func TestRegisterAfterSealPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on Register after Seal")
		}
	}()

	r := registry.New()
	r.Seal()
	r.Register("k", func(context.Context, *taskctx.Context) error { return nil })
}

func TestCurrentTask(t *testing.T) {
	tctx := taskctx.New()
	want := task.Task{Kind: "send_email"}
	taskctx.Put(tctx, want)

	got, err := registry.CurrentTask(tctx)
	if err != nil {
		t.Fatalf("CurrentTask() error = %v", err)
	}
	if got.Kind != want.Kind {
		t.Errorf("CurrentTask() = %+v, want %+v", got, want)
	}
}

func TestCurrentTaskMissing(t *testing.T) {
	_, err := registry.CurrentTask(taskctx.New())
	if err == nil {
		t.Fatalf("expected error when no task in context")
	}
}

type emailArgs struct {
	To string `json:"to"`
}

func TestDecodeArgs(t *testing.T) {
	raw, _ := json.Marshal(emailArgs{To: "a@example.com"})
	tctx := taskctx.New()
	taskctx.Put(tctx, task.Task{Kind: "send_email", Args: raw})

	got, err := registry.DecodeArgs[emailArgs](tctx)
	if err != nil {
		t.Fatalf("DecodeArgs() error = %v", err)
	}
	if got.To != "a@example.com" {
		t.Errorf("DecodeArgs() = %+v", got)
	}
}

func TestKinds(t *testing.T) {
	r := registry.New()
	r.Register("a", func(context.Context, *taskctx.Context) error { return nil })
	r.Register("b", func(context.Context, *taskctx.Context) error { return nil })
	r.Seal()

	kinds := r.Kinds()
	if len(kinds) != 2 {
		t.Fatalf("Kinds() = %v, want 2 entries", kinds)
	}
}
