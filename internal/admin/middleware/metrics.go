package middleware

import (
	"strconv"
	"time"

	"github.com/chang-tasks/chang-go/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records per-request latency and outcome against the admin API's
// HTTP metrics, labeled by route template rather than raw path so dynamic
// segments (task ids) don't blow up cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method
		duration := time.Since(start).Seconds()

		metrics.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}
