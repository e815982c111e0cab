package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"seqgen/pkg/logger"
)

// Logger middleware logs HTTP requests with timing, status and the scope
// resolved by the scope middleware, when the route carries one.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		}
		if scopeID := c.GetString("scope_id"); scopeID != "" {
			fields = append(fields, "scope", scopeID)
		}

		log.WithContext(c.Request.Context()).Infow("http request", fields...)
	}
}
