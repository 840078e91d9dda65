package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damp-platform/damp-api/internal/service"
)

// Metrics records request latency and totals on the telemetry service.
func Metrics(telemetry *service.TelemetryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if telemetry == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			// Unmatched routes share one label so scanners cannot blow up cardinality.
			path = "unmatched"
		}
		telemetry.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
