package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/shared/telemetry"
)

// requestAnnotations are context keys handlers set as they learn them.
var requestAnnotations = []struct{ key, field string }{
	{"analysisId", "analysis_id"},
	{"requestType", "request_type"},
	{"usedProvider", "used_provider"},
	{"statusTransition", "status_transition"},
}

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		fields := map[string]any{
			"request_id":  reqID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		for _, a := range requestAnnotations {
			if v, ok := c.Get(a.key); ok {
				fields[a.field] = v
			}
		}
		telemetry.Info("request.complete", fields)
	}
}
