package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chat-brain/backend/internal/models"
)

func TestTouchCreatesSession(t *testing.T) {
	tr := NewTracker(300 * time.Second)

	state := tr.Touch("user-1", "telegram", nil)

	assert.True(t, state.Active)
	assert.Equal(t, "telegram", state.Platform)
	assert.Equal(t, models.ActionIgnore, state.LastAction)
	assert.Equal(t, 1, state.MessageCount)
	assert.Equal(t, 1, tr.Active())
}

func TestTouchAccumulates(t *testing.T) {
	tr := NewTracker(300 * time.Second)
	threadID := "thread-7"

	tr.Touch("user-1", "telegram", nil)
	tr.Touch("user-1", "telegram", &threadID)
	state := tr.Touch("user-1", "telegram", nil)

	assert.Equal(t, 3, state.MessageCount)
	// Thread sticks once set; a nil touch does not clear it
	if assert.NotNil(t, state.ThreadID) {
		assert.Equal(t, "thread-7", *state.ThreadID)
	}
	assert.Equal(t, 1, tr.Active())
}

func TestSetLastAction(t *testing.T) {
	tr := NewTracker(300 * time.Second)
	tr.Touch("user-1", "telegram", nil)

	tr.SetLastAction("user-1", models.ActionContinue)

	state, ok := tr.Get("user-1")
	assert.True(t, ok)
	assert.Equal(t, models.ActionContinue, state.LastAction)
	assert.True(t, state.LastAction.ShouldContinue())

	// No-op for unknown users
	tr.SetLastAction("user-2", models.ActionSwapToken)
	_, ok = tr.Get("user-2")
	assert.False(t, ok)
}

func TestEvictExpired(t *testing.T) {
	clock := int64(1000)
	tr := NewTracker(300 * time.Second).WithClock(func() int64 { return clock })

	tr.Touch("idle-user", "telegram", nil)
	clock = 1200
	tr.Touch("busy-user", "telegram", nil)

	// idle-user is exactly 300s idle: both survive
	clock = 1300
	assert.Equal(t, 0, tr.EvictExpired())
	assert.Equal(t, 2, tr.Active())

	// idle-user crosses the 300s timeout, busy-user does not
	clock = 1301
	assert.Equal(t, 1, tr.EvictExpired())
	_, ok := tr.Get("idle-user")
	assert.False(t, ok)
	_, ok = tr.Get("busy-user")
	assert.True(t, ok)
}

func TestGetUnknownUser(t *testing.T) {
	tr := NewTracker(300 * time.Second)
	_, ok := tr.Get("nobody")
	assert.False(t, ok)
}
