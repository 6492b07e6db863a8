// Package session tracks in-memory per-user conversation state.
//
// This tracker and the durable Conversation record are two independent
// lifecycle tracks with different timeouts (300s here, 24h in the store).
// The mismatch is inherited behavior and has been flagged to product; do not
// unify the constants without a decision there.
package session

import (
	"sync"
	"time"

	"chat-brain/backend/internal/models"
)

// Tracker owns the per-user session state map behind its own lock
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionState
	timeoutS int64
	now      func() int64
}

// NewTracker creates a tracker with the given idle timeout
func NewTracker(timeout time.Duration) *Tracker {
	return &Tracker{
		sessions: make(map[string]*models.SessionState),
		timeoutS: int64(timeout.Seconds()),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// WithClock overrides the time source, for tests
func (t *Tracker) WithClock(now func() int64) *Tracker {
	t.now = now
	return t
}

// Touch records a processed message for the user, creating the session on
// first contact. Returns the updated state.
func (t *Tracker) Touch(userID, platform string, threadID *string) models.SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.sessions[userID]
	if !exists {
		state = models.NewSessionState(platform)
		t.sessions[userID] = state
	}

	state.MessageCount++
	state.LastActivity = t.now()
	if threadID != nil {
		state.ThreadID = threadID
	}

	return *state
}

// Get returns a copy of the user's session state
func (t *Tracker) Get(userID string) (models.SessionState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.sessions[userID]
	if !exists {
		return models.SessionState{}, false
	}
	return *state, true
}

// SetLastAction records the agent's last decision for the session
func (t *Tracker) SetLastAction(userID string, action models.AgentAction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, exists := t.sessions[userID]; exists {
		state.LastAction = action
	}
}

// EvictExpired lazily drops sessions idle past the timeout and returns the
// number removed.
func (t *Tracker) EvictExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	evicted := 0
	for userID, state := range t.sessions {
		if state.IsExpired(now, t.timeoutS) {
			delete(t.sessions, userID)
			evicted++
		}
	}
	return evicted
}

// Active returns the number of tracked sessions
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
