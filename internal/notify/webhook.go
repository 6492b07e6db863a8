// Package notify delivers best-effort failure notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chat-brain/backend/pkg/logger"
)

// Notifier reports a message's terminal processing failure
type Notifier interface {
	NotifyFailure(ctx context.Context, messageID, userID, reason string)
}

// WebhookNotifier POSTs failure notifications to a configured endpoint.
// Delivery failures are logged and swallowed — they must never feed back
// into the retry cycle.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *logger.Logger
}

// NewWebhookNotifier creates a notifier for the given endpoint. An empty URL
// disables delivery.
func NewWebhookNotifier(url string, timeout time.Duration, log *logger.Logger) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type failurePayload struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// NotifyFailure delivers the notification if an endpoint is configured
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, messageID, userID, reason string) {
	if n.url == "" {
		return
	}

	payload := failurePayload{
		MessageID: messageID,
		UserID:    userID,
		Error:     reason,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.LogError(err, "failed to encode failure notification", "message_id", messageID)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.LogError(err, "failed to build failure notification request", "message_id", messageID)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.LogError(err, "failure notification delivery failed", "message_id", messageID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("failure notification rejected",
			"message_id", messageID,
			"status", fmt.Sprintf("%d", resp.StatusCode),
		)
	}
}
