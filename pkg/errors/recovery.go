package errors

import (
	"net/http"
	"runtime/debug"
	"time"

	"chat-brain/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLogger returns a middleware that recovers from panics and logs
// the stack trace with structured fields before answering 500.
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				log := logger.FromContext(c)
				log.Error("panic recovered",
					"error", r,
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success":   false,
					"error":     "internal server error",
					"timestamp": time.Now().Unix(),
				})
			}
		}()

		c.Next()
	}
}
