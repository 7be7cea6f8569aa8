// Package handlers holds the registered task kinds a runner ships with out
// of the box. Each handler is an ordinary registry.Handler: it reads its
// args via registry.DecodeArgs and whatever else it needs from the
// taskctx.Context, and returns an error to signal a retryable/discardable
// failure.
package handlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chang-tasks/chang-go/internal/registry"
	"github.com/chang-tasks/chang-go/internal/requestid"
	"github.com/chang-tasks/chang-go/internal/taskctx"
)

// HTTPRequestArgs is the args shape for the "http_request" task kind: fire a
// single outbound HTTP request and treat anything outside 2xx as failed.
type HTTPRequestArgs struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	Body           *string           `json:"body"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// HTTPRequestHandler fires one outbound HTTP request per task, registered
// under kind "http_request". It is the pack's canonical example of a
// producer-registered handler built on registry.DecodeArgs.
type HTTPRequestHandler struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPRequestHandler builds an HTTPRequestHandler with a connection-pooled
// client tuned the way a long-running outbound-request workload needs:
// bounded idle connections, TLS 1.2 minimum, and a generous top-level
// timeout that per-task TimeoutSeconds can always tighten.
func NewHTTPRequestHandler(logger *slog.Logger) *HTTPRequestHandler {
	return &HTTPRequestHandler{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "http_request_handler"),
	}
}

// Kind is the registry key this handler is registered under.
const Kind = "http_request"

// Handle implements registry.Handler.
func (h *HTTPRequestHandler) Handle(ctx context.Context, tctx *taskctx.Context) error {
	args, err := registry.DecodeArgs[HTTPRequestArgs](tctx)
	if err != nil {
		return err
	}

	timeout := 30 * time.Second
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if args.Body != nil {
		bodyReader = strings.NewReader(*args.Body)
	}

	method := args.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, args.URL, bodyReader)
	if err != nil {
		return fmt.Errorf("http_request: build request: %w", err)
	}
	for k, v := range args.Headers {
		req.Header.Set(k, v)
	}

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	ctx = requestid.WithRequestID(ctx, reqID)

	start := time.Now()
	h.logger.InfoContext(ctx, "sending request", "method", method, "url", args.URL)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http_request: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	duration := time.Since(start)
	h.logger.InfoContext(ctx, "received response", "status", resp.StatusCode, "duration", duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http_request: unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
