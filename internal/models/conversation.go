package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message status values on the stored record
const (
	MessageStatusFailed = "failed"
)

// JSONMap stores a string map as a jsonb column
type JSONMap map[string]string

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("unsupported type for JSONMap")
	}
}

// Conversation is the durable session record grouping a user's messages
// within a rolling 24-hour window. At most one active conversation per user
// exists inside that window (enforced by a partial unique index).
type Conversation struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Platform  string     `json:"platform"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsActive  bool       `json:"is_active" gorm:"index"`
	Metadata  JSONMap    `json:"metadata" gorm:"type:jsonb"`
	CreatedAt time.Time  `json:"created_at"`
}

// StoredMessage is the durable record of one side of an exchange. Immutable
// once written except for the failure status and response-metrics columns.
type StoredMessage struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	ConversationID string    `json:"conversation_id" gorm:"index;not null"`
	UserID         string    `json:"user_id" gorm:"index"`
	Content        string    `json:"content"`
	Platform       string    `json:"platform"`
	Priority       string    `json:"priority"`
	ThreadID       *string   `json:"thread_id,omitempty"`
	Metadata       JSONMap   `json:"metadata" gorm:"type:jsonb"`
	Status         string    `json:"status,omitempty"`
	ResponseLength int       `json:"response_length,omitempty"`
	ProcessingTime int64     `json:"processing_time,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}
