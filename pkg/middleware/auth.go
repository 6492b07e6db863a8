package middleware

import (
	"strings"

	"chat-brain/backend/pkg/errors"
	"chat-brain/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware validates the bearer token and stores the caller
// identity in the context. Conversation handlers use that identity for the
// owner check.
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Error(errors.NewUnauthorizedError("authorization header is required"))
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.Error(errors.NewUnauthorizedError("invalid token"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("platform", claims.Platform)
		c.Next()
	}
}
