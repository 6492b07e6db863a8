// Package store defines the durable conversation/message store consumed by
// the processing pipeline, and its postgres implementation.
package store

import (
	"context"
	"time"

	"chat-brain/backend/internal/models"
)

// ConversationStore is the persistence contract required by the pipeline.
// Implementations return (nil, nil) from the lookup methods on a miss.
type ConversationStore interface {
	// FindActiveConversation returns the user's active conversation started
	// within the conversation TTL window, if any.
	FindActiveConversation(ctx context.Context, userID string) (*models.Conversation, error)

	// CreateConversation opens a new active conversation for the user.
	CreateConversation(ctx context.Context, userID, platform string, metadata models.JSONMap) (*models.Conversation, error)

	// SaveMessage persists one side of an exchange under a conversation.
	// Saving the same message id twice is a no-op, which keeps retried
	// processing attempts idempotent.
	SaveMessage(ctx context.Context, messageID, conversationID, userID, content string, threadID *string, platform string, metadata models.JSONMap) (*models.StoredMessage, error)

	// GetRecentMessages returns the user's most recent stored messages,
	// newest first.
	GetRecentMessages(ctx context.Context, userID string, limit int) ([]models.StoredMessage, error)

	// CloseExpiredConversations closes every active conversation older than
	// the TTL and reports how many were closed. Idempotent.
	CloseExpiredConversations(ctx context.Context) (int64, error)

	// CloseUserExpiredConversations closes the user's active conversations
	// whose window has already elapsed. The uniqueness constraint blocks a
	// new conversation while the stale row is active, and the periodic sweep
	// may be up to a sweep interval away; this unblocks the user immediately.
	CloseUserExpiredConversations(ctx context.Context, userID string) (int64, error)

	// CloseConversation closes a single conversation explicitly.
	CloseConversation(ctx context.Context, conversationID string) error

	// GetConversationByID fetches a conversation by id.
	GetConversationByID(ctx context.Context, conversationID string) (*models.Conversation, error)

	// ListConversations pages through a user's conversations, newest first.
	ListConversations(ctx context.Context, userID string, includeInactive bool, limit, offset int) ([]models.Conversation, error)

	// CountConversations counts a user's conversations.
	CountConversations(ctx context.Context, userID string, includeInactive bool) (int64, error)

	// GetConversationMessages pages through a conversation's messages in
	// chronological order.
	GetConversationMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.StoredMessage, error)

	// MarkMessageFailed records terminal processing failure on a message.
	MarkMessageFailed(ctx context.Context, messageID string) error

	// RecordResponseMetrics records response size and processing latency on
	// the inbound message after a successful exchange.
	RecordResponseMetrics(ctx context.Context, messageID string, responseLength int, processingTime time.Duration) error
}
