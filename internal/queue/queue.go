// Package queue provides the bounded in-memory FIFO holding pending
// messages. The queue is intentionally not durable: queued work is lost on
// crash, and callers are told so by the backpressure error when it fills.
package queue

import (
	"fmt"
	"sync"

	"chat-brain/backend/internal/models"
	"chat-brain/backend/pkg/errors"
)

// MessageQueue is a fixed-capacity FIFO queue of pending messages
type MessageQueue struct {
	mu      sync.Mutex
	items   []*models.Message
	maxSize int
}

// New creates a queue with the given capacity
func New(maxSize int) *MessageQueue {
	return &MessageQueue{
		items:   make([]*models.Message, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push appends a message to the tail. Returns a QueueFull error when the
// queue is at capacity.
func (q *MessageQueue) Push(message *models.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		return errors.NewQueueFullError(
			fmt.Sprintf("message queue is at capacity: %d/%d", len(q.items), q.maxSize))
	}

	q.items = append(q.items, message)
	return nil
}

// Pop removes and returns the head of the queue, or nil when empty
func (q *MessageQueue) Pop() *models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	message := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return message
}

// Len returns the number of pending messages
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue holds no messages
func (q *MessageQueue) IsEmpty() bool {
	return q.Len() == 0
}

// MaxSize returns the configured capacity
func (q *MessageQueue) MaxSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxSize
}

// SetMaxSize reconfigures the capacity. Already-queued messages are never
// rejected retroactively; a shrink only affects future pushes.
func (q *MessageQueue) SetMaxSize(size int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxSize = size
}

// Clear discards all pending messages. Operational reset only, not used on
// the processing path.
func (q *MessageQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
