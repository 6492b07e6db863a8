package models

import (
	"time"
)

// Message is an inbound chat message submitted by an external platform.
// The queue owns it while pending; ownership transfers to the orchestrator
// during processing. The orchestrator is the only writer of RetryCount.
type Message struct {
	ID         string            `json:"id" binding:"required"`
	UserID     string            `json:"user_id"`
	Platform   string            `json:"platform"`
	Content    string            `json:"content"`
	Timestamp  int64             `json:"timestamp"`
	Priority   string            `json:"priority"`
	Metadata   map[string]string `json:"metadata"`
	RetryCount int               `json:"retry_count"`
	ThreadID   *string           `json:"thread_id,omitempty"`
}

// NewMessage builds a message with submission defaults
func NewMessage(id, userID, platform, content string) *Message {
	return &Message{
		ID:        id,
		UserID:    userID,
		Platform:  platform,
		Content:   content,
		Timestamp: time.Now().Unix(),
		Priority:  "normal",
		Metadata:  map[string]string{},
	}
}
