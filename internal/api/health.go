package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is stamped at build time via -ldflags
var Version = "1.0.0"

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// HealthHandler reports process liveness
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   Version,
	})
}

// RegisterHealthRoutes registers the health check route
func RegisterHealthRoutes(router *gin.Engine) {
	router.GET("/health", HealthHandler)
}
