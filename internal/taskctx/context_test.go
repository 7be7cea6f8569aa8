package taskctx_test

import (
	"testing"

	"github.com/chang-tasks/chang-go/internal/taskctx"
)

type widget struct {
	Count int
	Tags  []string
}

func (w widget) CloneValue() any {
	out := w
	out.Tags = append([]string(nil), w.Tags...)
	return out
}

type gadget struct{ Name string }

func TestPutGetRoundTrip(t *testing.T) {
	ctx := taskctx.New()
	taskctx.Put(ctx, widget{Count: 1})

	got, ok := taskctx.Get[widget](ctx)
	if !ok {
		t.Fatalf("expected widget to be present")
	}
	if got.Count != 1 {
		t.Fatalf("expected count 1, got %d", got.Count)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	ctx := taskctx.New()
	_, ok := taskctx.Get[gadget](ctx)
	if ok {
		t.Fatalf("expected no gadget in empty context")
	}
}

func TestPutReplacesByType(t *testing.T) {
	ctx := taskctx.New()
	taskctx.Put(ctx, widget{Count: 1})
	taskctx.Put(ctx, widget{Count: 2})

	got, _ := taskctx.Get[widget](ctx)
	if got.Count != 2 {
		t.Fatalf("expected second put to replace first, got count %d", got.Count)
	}
}

func TestCloneIsIndependentForCloners(t *testing.T) {
	ctx := taskctx.New()
	taskctx.Put(ctx, widget{Count: 1, Tags: []string{"a"}})

	clone := ctx.Clone()
	cloned, _ := taskctx.Get[widget](clone)
	cloned.Tags[0] = "mutated"

	original, _ := taskctx.Get[widget](ctx)
	if original.Tags[0] != "a" {
		t.Fatalf("mutating clone's slice leaked into original: %v", original.Tags)
	}
}

func TestCloneSharesNonCloners(t *testing.T) {
	ctx := taskctx.New()
	taskctx.Put(ctx, gadget{Name: "g1"})

	clone := ctx.Clone()
	got, ok := taskctx.Get[gadget](clone)
	if !ok || got.Name != "g1" {
		t.Fatalf("expected non-cloner value to be copied by reference into clone")
	}
}
