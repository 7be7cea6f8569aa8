package handlers

import (
	"log/slog"

	"github.com/chang-tasks/chang-go/internal/registry"
)

// Register binds every built-in handler kind into reg. Called once at
// process startup before reg.Seal.
func Register(reg *registry.Registry, logger *slog.Logger) {
	h := NewHTTPRequestHandler(logger)
	reg.Register(Kind, h.Handle)
}
