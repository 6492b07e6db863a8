package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-brain/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConversationStore implements ConversationStore on postgres via gorm
type GormConversationStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewGormConversationStore creates a store with the given conversation TTL
func NewGormConversationStore(db *gorm.DB, conversationTTL time.Duration) *GormConversationStore {
	return &GormConversationStore{db: db, ttl: conversationTTL}
}

// Migrate creates the schema and the uniqueness constraint backing the
// find-or-create step: with multiple instances, concurrent creates for the
// same user surface as a unique violation the orchestrator retries.
func (s *GormConversationStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.Conversation{}, &models.StoredMessage{}); err != nil {
		return err
	}

	return s.db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_one_active_per_user " +
			"ON conversations (user_id) WHERE is_active",
	).Error
}

// IsUniqueViolation reports whether err is a uniqueness-constraint conflict
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key value")
}

func (s *GormConversationStore) FindActiveConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND started_at > ?", userID, true, time.Now().Add(-s.ttl)).
		Order("created_at DESC").
		First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *GormConversationStore) CreateConversation(ctx context.Context, userID, platform string, metadata models.JSONMap) (*models.Conversation, error) {
	now := time.Now()
	conversation := models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Platform:  platform,
		StartedAt: now,
		IsActive:  true,
		Metadata:  metadata,
		CreatedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *GormConversationStore) SaveMessage(ctx context.Context, messageID, conversationID, userID, content string, threadID *string, platform string, metadata models.JSONMap) (*models.StoredMessage, error) {
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

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetRecentMessages selects across the user's conversations rather than by
// message author, so the assistant's replies appear in the context window.
func (s *GormConversationStore) GetRecentMessages(ctx context.Context, userID string, limit int) ([]models.StoredMessage, error) {
	conversationIDs := s.db.Model(&models.Conversation{}).
		Select("id").
		Where("user_id = ?", userID)

	var messages []models.StoredMessage
	err := s.db.WithContext(ctx).
		Where("conversation_id IN (?)", conversationIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormConversationStore) CloseExpiredConversations(ctx context.Context) (int64, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("is_active = ? AND created_at < ?", true, now.Add(-s.ttl)).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  now,
		})
	return result.RowsAffected, result.Error
}

// CloseUserExpiredConversations uses the same started_at predicate as
// FindActiveConversation, so after it runs the user has no active row that
// the lookup would not also have returned.
func (s *GormConversationStore) CloseUserExpiredConversations(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("user_id = ? AND is_active = ? AND started_at <= ?", userID, true, now.Add(-s.ttl)).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  now,
		})
	return result.RowsAffected, result.Error
}

func (s *GormConversationStore) CloseConversation(ctx context.Context, conversationID string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  now,
		}).Error
}

func (s *GormConversationStore) GetConversationByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *GormConversationStore) ListConversations(ctx context.Context, userID string, includeInactive bool, limit, offset int) ([]models.Conversation, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var conversations []models.Conversation
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	return conversations, err
}

func (s *GormConversationStore) CountConversations(ctx context.Context, userID string, includeInactive bool) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("user_id = ?", userID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (s *GormConversationStore) GetConversationMessages(ctx context.Context, conversationID string, offset, limit int) ([]models.StoredMessage, error) {
	var messages []models.StoredMessage
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

func (s *GormConversationStore) MarkMessageFailed(ctx context.Context, messageID string) error {
	return s.db.WithContext(ctx).
		Model(&models.StoredMessage{}).
		Where("id = ?", messageID).
		Update("status", models.MessageStatusFailed).Error
}

func (s *GormConversationStore) RecordResponseMetrics(ctx context.Context, messageID string, responseLength int, processingTime time.Duration) error {
	return s.db.WithContext(ctx).
		Model(&models.StoredMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"response_length": responseLength,
			"processing_time": processingTime.Milliseconds(),
		}).Error
}
