package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware returns a gin middleware that attaches a request-scoped logger
// to the context and logs each completed request.
func Middleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLogger := l.WithRequestID(c.GetString("request_id"))
		c.Set("logger", reqLogger)

		c.Next()

		latency := time.Since(start)
		reqLogger.Info("request completed",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
		)
	}
}

// FromContext returns the request-scoped logger, falling back to the global
// logger when the middleware has not run.
func FromContext(c *gin.Context) *Logger {
	if l, exists := c.Get("logger"); exists {
		if lg, ok := l.(*Logger); ok {
			return lg
		}
	}
	return GetGlobal()
}
