package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-brain/backend/internal/service"
	"chat-brain/backend/pkg/errors"
)

// ConversationController serves conversation history endpoints. All routes
// require a valid token; the caller may only read their own conversations.
type ConversationController struct {
	queries *service.QueryService
	auth    gin.HandlerFunc
}

// NewConversationController creates a new conversation controller
func NewConversationController(queries *service.QueryService, auth gin.HandlerFunc) *ConversationController {
	return &ConversationController{queries: queries, auth: auth}
}

// RegisterRoutes registers the conversation read routes
func (cc *ConversationController) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/v1")
	if cc.auth != nil {
		group.Use(cc.auth)
	}
	{
		group.GET("/conversations", cc.ListConversations)
		group.GET("/conversation/:id", cc.GetConversation)
		group.GET("/conversation/:id/messages", cc.GetConversationMessages)
		group.POST("/conversation/:id/close", cc.CloseConversation)
	}
}

func (cc *ConversationController) userID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		c.Abort()
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		c.Abort()
		return "", false
	}
	return id, true
}

// ListConversations returns one page of the caller's conversations
func (cc *ConversationController) ListConversations(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	includeInactive := c.Query("include_inactive") == "true"

	result, err := cc.queries.ListConversations(c.Request.Context(), userID, includeInactive, page, pageSize)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetConversation returns a single conversation owned by the caller
func (cc *ConversationController) GetConversation(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	conversation, err := cc.queries.GetConversationForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// GetConversationMessages returns one page of a conversation's messages
func (cc *ConversationController) GetConversationMessages(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := cc.queries.GetConversationMessages(c.Request.Context(), c.Param("id"), userID, offset, limit)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, result)
}

// CloseConversation ends a conversation ahead of its expiry window
func (cc *ConversationController) CloseConversation(c *gin.Context) {
	userID, ok := cc.userID(c)
	if !ok {
		return
	}

	if err := cc.queries.CloseConversation(c.Request.Context(), c.Param("id"), userID); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
