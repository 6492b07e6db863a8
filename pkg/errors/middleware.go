package errors

import (
	"time"

	"chat-brain/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that catches application errors and
// renders the API failure envelope: {success:false, error, timestamp}.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors[0].Err
		appErr := FromError(err)

		log := logger.FromContext(c)
		log.Error("request error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		)
		if appErr.Err != nil {
			log.Error("request error cause", "cause", appErr.Err.Error())
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"success":   false,
			"error":     appErr.Message,
			"timestamp": time.Now().Unix(),
		})
	}
}
