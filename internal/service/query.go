package service

import (
	"context"
	"encoding/json"
	"time"

	"chat-brain/backend/internal/models"
	"chat-brain/backend/internal/store"
	"chat-brain/backend/pkg/errors"
	"chat-brain/backend/pkg/logger"
)

const (
	maxPageSize     = 100
	defaultPageSize = 20
	maxMessageLimit = 100
)

// Cache is the byte cache used for conversation lookups. Both the in-memory
// cache and the redis client satisfy it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// QueryService serves the read side: conversation lookup, listing and
// message history. Lookups by ID go through the cache.
type QueryService struct {
	store    store.ConversationStore
	cache    Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewQueryService creates the read-side service. A nil cache disables caching.
func NewQueryService(st store.ConversationStore, cache Cache, cacheTTL time.Duration, log *logger.Logger) *QueryService {
	return &QueryService{
		store:    st,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// ConversationPage is one page of a user's conversation listing
type ConversationPage struct {
	Conversations []models.Conversation `json:"conversations"`
	TotalCount    int64                 `json:"total_count"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
	HasMore       bool                  `json:"has_more"`
}

// MessagePage is one page of a conversation's messages
type MessagePage struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []models.StoredMessage `json:"messages"`
	Offset         int                    `json:"offset"`
	Limit          int                    `json:"limit"`
	HasMore        bool                   `json:"has_more"`
}

// GetConversation fetches one conversation by ID, consulting the cache first
func (q *QueryService) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	cacheKey := "conversation:" + conversationID

	if q.cache != nil {
		if raw, ok := q.cache.Get(ctx, cacheKey); ok {
			var conversation models.Conversation
			if err := json.Unmarshal(raw, &conversation); err == nil {
				return &conversation, nil
			}
			q.cache.Delete(ctx, cacheKey)
		}
	}

	conversation, err := q.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, errors.NewStoreError(err)
	}
	if conversation == nil {
		return nil, errors.NewNotFoundError("conversation not found")
	}

	if q.cache != nil {
		if raw, err := json.Marshal(conversation); err == nil {
			q.cache.Set(ctx, cacheKey, raw, q.cacheTTL)
		}
	}

	return conversation, nil
}

// GetConversationForUser fetches a conversation and verifies ownership
func (q *QueryService) GetConversationForUser(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	conversation, err := q.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, errors.NewForbiddenError("conversation belongs to another user")
	}
	return conversation, nil
}

// ListConversations returns one page of a user's conversations, newest first.
// Page numbering starts at zero; pageSize is clamped to 100. has_more is
// exact, computed from the total count.
func (q *QueryService) ListConversations(ctx context.Context, userID string, includeInactive bool, page, pageSize int) (*ConversationPage, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total, err := q.store.CountConversations(ctx, userID, includeInactive)
	if err != nil {
		return nil, errors.NewStoreError(err)
	}

	conversations, err := q.store.ListConversations(ctx, userID, includeInactive, pageSize, page*pageSize)
	if err != nil {
		return nil, errors.NewStoreError(err)
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	return &ConversationPage{
		Conversations: conversations,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
		HasMore:       int64(page+1)*int64(pageSize) < total,
	}, nil
}

// GetConversationMessages returns one page of a conversation's messages in
// chronological order. has_more is a heuristic — true when the page came
// back full — so a history whose length is an exact multiple of the limit
// yields one trailing empty page. Cheaper than a count per request.
func (q *QueryService) GetConversationMessages(ctx context.Context, conversationID, userID string, offset, limit int) (*MessagePage, error) {
	if _, err := q.GetConversationForUser(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := q.store.GetConversationMessages(ctx, conversationID, offset, limit)
	if err != nil {
		return nil, errors.NewStoreError(err)
	}
	if messages == nil {
		messages = []models.StoredMessage{}
	}

	return &MessagePage{
		ConversationID: conversationID,
		Messages:       messages,
		Offset:         offset,
		Limit:          limit,
		HasMore:        len(messages) == limit,
	}, nil
}

// CloseConversation explicitly ends a conversation ahead of its TTL and
// invalidates the cached copy
func (q *QueryService) CloseConversation(ctx context.Context, conversationID, userID string) error {
	if _, err := q.GetConversationForUser(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := q.store.CloseConversation(ctx, conversationID); err != nil {
		return errors.NewStoreError(err)
	}

	if q.cache != nil {
		q.cache.Delete(ctx, "conversation:"+conversationID)
	}
	return nil
}
