// Package admin is the operator-facing HTTP surface: magic-link sign-in,
// task introspection, and cancellation. It never registers or swaps task
// handlers at runtime — that stays fixed at supervisor construction, per
// the registry's seal-once contract.
package admin

import (
	"log/slog"

	"github.com/chang-tasks/chang-go/internal/admin/handler"
	"github.com/chang-tasks/chang-go/internal/admin/middleware"
	"github.com/chang-tasks/chang-go/internal/health"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the admin API's routes. checker is optional — pass nil to
// omit the /healthz endpoints (e.g. when the runner is wired to expose
// health elsewhere).
func NewRouter(taskHandler *handler.TaskHandler, authHandler *handler.AuthHandler, checker *health.Checker, jwtKey []byte, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	if checker != nil {
		r.GET("/healthz/live", func(c *gin.Context) {
			c.JSON(200, checker.Liveness(c.Request.Context()))
		})
		r.GET("/healthz/ready", func(c *gin.Context) {
			result := checker.Readiness(c.Request.Context())
			status := 200
			if result.Status != "up" {
				status = 503
			}
			c.JSON(status, result)
		})
	}

	r.POST("/auth/magic-link", authHandler.RequestMagicLink)
	r.GET("/auth/verify", authHandler.Verify)

	tasks := r.Group("/tasks", middleware.Auth(jwtKey))
	tasks.POST("", taskHandler.Insert)
	tasks.GET("", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.POST("/:id/cancel", taskHandler.Cancel)

	return r
}
