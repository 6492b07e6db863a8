package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-brain/backend/internal/models"
)

// fakeStore is an in-memory ConversationStore with injectable failures.
// It applies the same predicates as the gorm implementation: the active
// lookup is bounded by the started_at window, while the uniqueness conflict
// fires for any active row, windowed or not.
type fakeStore struct {
	mu            sync.Mutex
	conversations []*models.Conversation
	messages      []models.StoredMessage
	failedIDs     map[string]bool
	ttl           time.Duration

	findActiveFailures int
	findActiveMisses   int
	saveFailures       int
	expiredToClose     int64
	closeCalls         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failedIDs: map[string]bool{},
		ttl:       24 * time.Hour,
	}
}

func (s *fakeStore) FindActiveConversation(_ context.Context, userID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findActiveFailures > 0 {
		s.findActiveFailures--
		return nil, errors.New("connection refused")
	}
	if s.findActiveMisses > 0 {
		s.findActiveMisses--
		return nil, nil
	}

	cutoff := time.Now().Add(-s.ttl)
	for i := len(s.conversations) - 1; i >= 0; i-- {
		c := s.conversations[i]
		if c.UserID == userID && c.IsActive && c.StartedAt.After(cutoff) {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateConversation(_ context.Context, userID, platform string, metadata models.JSONMap) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.UserID == userID && c.IsActive {
			return nil, errors.New(`duplicate key value violates unique constraint "idx_conversations_one_active_per_user"`)
		}
	}

	now := time.Now()
	conversation := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Platform:  platform,
		StartedAt: now,
		IsActive:  true,
		Metadata:  metadata,
		CreatedAt: now,
	}
	s.conversations = append(s.conversations, conversation)
	return conversation, nil
}

func (s *fakeStore) SaveMessage(_ context.Context, messageID, conversationID, userID, content string, threadID *string, platform string, metadata models.JSONMap) (*models.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveFailures > 0 {
		s.saveFailures--
		return nil, errors.New("connection refused")
	}

	for i := range s.messages {
		if s.messages[i].ID == messageID {
			return &s.messages[i], nil
		}
	}

	message := models.StoredMessage{
		ID:             messageID,
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
		Platform:       platform,
		Priority:       "normal",
		ThreadID:       threadID,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, message)
	return &message, nil
}

func (s *fakeStore) GetRecentMessages(_ context.Context, userID string, limit int) ([]models.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := map[string]bool{}
	for _, c := range s.conversations {
		if c.UserID == userID {
			owned[c.ID] = true
		}
	}

	var recent []models.StoredMessage
	for i := len(s.messages) - 1; i >= 0 && len(recent) < limit; i-- {
		if owned[s.messages[i].ConversationID] {
			recent = append(recent, s.messages[i])
		}
	}
	return recent, nil
}

func (s *fakeStore) CloseExpiredConversations(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeCalls++
	n := s.expiredToClose
	s.expiredToClose = 0
	return n, nil
}

func (s *fakeStore) CloseUserExpiredConversations(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.ttl)
	var closed int64
	for _, c := range s.conversations {
		if c.UserID == userID && c.IsActive && !c.StartedAt.After(cutoff) {
			c.IsActive = false
			ended := now
			c.EndedAt = &ended
			closed++
		}
	}
	return closed, nil
}

func (s *fakeStore) CloseConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == conversationID {
			now := time.Now()
			c.IsActive = false
			c.EndedAt = &now
			return nil
		}
	}
	return nil
}

func (s *fakeStore) GetConversationByID(_ context.Context, conversationID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.ID == conversationID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListConversations(_ context.Context, userID string, includeInactive bool, limit, offset int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Conversation
	for i := len(s.conversations) - 1; i >= 0; i-- {
		c := s.conversations[i]
		if c.UserID != userID {
			continue
		}
		if !includeInactive && !c.IsActive {
			continue
		}
		matched = append(matched, *c)
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeStore) CountConversations(_ context.Context, userID string, includeInactive bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, c := range s.conversations {
		if c.UserID != userID {
			continue
		}
		if !includeInactive && !c.IsActive {
			continue
		}
		count++
	}
	return count, nil
}

func (s *fakeStore) GetConversationMessages(_ context.Context, conversationID string, offset, limit int) ([]models.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.StoredMessage
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			matched = append(matched, m)
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeStore) MarkMessageFailed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedIDs[messageID] = true
	return nil
}

func (s *fakeStore) RecordResponseMetrics(_ context.Context, messageID string, responseLength int, processingTime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].ResponseLength = responseLength
			s.messages[i].ProcessingTime = processingTime.Milliseconds()
		}
	}
	return nil
}

func (s *fakeStore) storedMessages() []models.StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StoredMessage(nil), s.messages...)
}

func (s *fakeStore) seedConversation(userID, platform string) *models.Conversation {
	conversation, _ := s.CreateConversation(context.Background(), userID, platform, models.JSONMap{})
	return conversation
}

func (s *fakeStore) ageConversation(conversationID string, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == conversationID {
			c.StartedAt = time.Now().Add(-age)
			c.CreatedAt = c.StartedAt
		}
	}
}

func (s *fakeStore) seedMessage(conversationID, userID, content string) {
	_, _ = s.SaveMessage(context.Background(), uuid.NewString(), conversationID, userID, content, nil, "telegram", models.JSONMap{})
}

// fakeCompletion records prompts and can fail a set number of calls
type fakeCompletion struct {
	mu       sync.Mutex
	prompts  []string
	response string
	failures int // negative means fail forever
}

func (f *fakeCompletion) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return "", errors.New("upstream timeout")
	}
	if f.response == "" {
		return fmt.Sprintf("echo %d", len(f.prompts)), nil
	}
	return f.response, nil
}

func (f *fakeCompletion) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeCompletion) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeNotifier records escalation calls
type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyFailure(_ context.Context, messageID, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messageID)
}

func (f *fakeNotifier) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
