package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-brain/backend/internal/models"
	"chat-brain/backend/internal/ratelimit"
	"chat-brain/backend/internal/session"
	"chat-brain/backend/internal/store"
	"chat-brain/backend/pkg/logger"
)

// expiryStore stubs the store with a controllable expiry count
type expiryStore struct {
	store.ConversationStore

	mu             sync.Mutex
	expiredToClose int64
	calls          int
}

func (s *expiryStore) CloseExpiredConversations(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	n := s.expiredToClose
	s.expiredToClose = 0
	return n, nil
}

func TestSweepClosesExpiredOnce(t *testing.T) {
	st := &expiryStore{expiredToClose: 3}
	clock := int64(1000)
	sessions := session.NewTracker(300 * time.Second).WithClock(func() int64 { return clock })
	gate := ratelimit.New(60*time.Second, 10).WithClock(func() int64 { return clock })
	log := logger.New(logger.Config{Level: "error"})

	sw := New(st, sessions, gate, log)

	closed, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), closed)

	// Idempotent: nothing left to close on the second pass
	closed, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), closed)
	assert.Equal(t, 2, st.calls)
}

func TestSweepEvictsInMemoryState(t *testing.T) {
	st := &expiryStore{}
	clock := int64(1000)
	sessions := session.NewTracker(300 * time.Second).WithClock(func() int64 { return clock })
	gate := ratelimit.New(60*time.Second, 10).WithClock(func() int64 { return clock })
	log := logger.New(logger.Config{Level: "error"})

	sessions.Touch("user-1", "telegram", nil)
	sessions.SetLastAction("user-1", models.ActionContinue)
	assert.NoError(t, gate.Allow("user-1"))

	sw := New(st, sessions, gate, log)

	// Nothing stale yet
	clock = 1100
	_, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.Active())
	assert.Equal(t, 1, gate.Tracked())

	// Past the session timeout and the rate-window retention horizon
	clock = 2000
	_, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Active())
	assert.Equal(t, 0, gate.Tracked())
}
