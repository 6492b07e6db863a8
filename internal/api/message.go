package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-brain/backend/internal/models"
	"chat-brain/backend/internal/service"
	"chat-brain/backend/pkg/errors"
)

// Submitter accepts a message into the pipeline and returns the response
type Submitter interface {
	Submit(ctx context.Context, msg *models.Message) (string, error)
	Stats() service.Stats
}

// MessageController handles message intake and pipeline stats
type MessageController struct {
	pipeline Submitter
}

// NewMessageController creates a new message controller
func NewMessageController(pipeline Submitter) *MessageController {
	return &MessageController{pipeline: pipeline}
}

// RegisterRoutes registers the message intake routes
func (mc *MessageController) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/v1")
	{
		group.POST("/message", mc.SubmitMessage)
		group.GET("/stats", mc.GetStats)
	}
}

// SubmitMessageRequest is the intake payload
type SubmitMessageRequest struct {
	ID       string            `json:"id" binding:"required"`
	UserID   string            `json:"user_id" binding:"required"`
	Platform string            `json:"platform" binding:"required"`
	Content  string            `json:"content"`
	Priority string            `json:"priority"`
	ThreadID *string           `json:"thread_id"`
	Metadata map[string]string `json:"metadata"`
}

// SubmitMessage accepts a message, waits for processing and returns the
// assistant's response
func (mc *MessageController) SubmitMessage(c *gin.Context) {
	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidMessageError(err.Error()))
		c.Abort()
		return
	}

	msg := models.NewMessage(req.ID, req.UserID, req.Platform, req.Content)
	if req.Priority != "" {
		msg.Priority = req.Priority
	}
	msg.ThreadID = req.ThreadID
	if req.Metadata != nil {
		msg.Metadata = req.Metadata
	}

	response, err := mc.pipeline.Submit(c.Request.Context(), msg)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"response":   response,
		"message_id": msg.ID,
		"timestamp":  time.Now().Unix(),
	})
}

// GetStats reports pipeline counters
func (mc *MessageController) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, mc.pipeline.Stats())
}
