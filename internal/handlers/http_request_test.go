package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contextWithArgs(t *testing.T, args HTTPRequestArgs) *taskctx.Context {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	tctx := taskctx.New()
	taskctx.Put(tctx, task.Task{Kind: Kind, Args: raw})
	return tctx
}

func TestHTTPRequestHandlerSucceedsOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTPRequestHandler(testLogger())
	tctx := contextWithArgs(t, HTTPRequestArgs{Method: http.MethodGet, URL: srv.URL})

	if err := h.Handle(context.Background(), tctx); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
}

func TestHTTPRequestHandlerFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTPRequestHandler(testLogger())
	tctx := contextWithArgs(t, HTTPRequestArgs{Method: http.MethodGet, URL: srv.URL})

	if err := h.Handle(context.Background(), tctx); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPRequestHandlerDefaultsToGET(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTPRequestHandler(testLogger())
	tctx := contextWithArgs(t, HTTPRequestArgs{URL: srv.URL})

	if err := h.Handle(context.Background(), tctx); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
}

func TestHTTPRequestHandlerSendsHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTPRequestHandler(testLogger())
	tctx := contextWithArgs(t, HTTPRequestArgs{
		URL:     srv.URL,
		Headers: map[string]string{"X-Custom": "value"},
	})

	if err := h.Handle(context.Background(), tctx); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if gotHeader != "value" {
		t.Errorf("X-Custom header = %q, want %q", gotHeader, "value")
	}
}
