// Package sweeper closes conversations that outlived the 24-hour window and
// evicts stale in-memory state alongside.
package sweeper

import (
	"context"

	"chat-brain/backend/internal/ratelimit"
	"chat-brain/backend/internal/session"
	"chat-brain/backend/internal/store"
	"chat-brain/backend/pkg/logger"
)

// Sweeper runs the periodic expiry pass
type Sweeper struct {
	store    store.ConversationStore
	sessions *session.Tracker
	gate     *ratelimit.Gate
	log      *logger.Logger
}

// New creates a sweeper over the given store and in-memory trackers
func New(st store.ConversationStore, sessions *session.Tracker, gate *ratelimit.Gate, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		sessions: sessions,
		gate:     gate,
		log:      log,
	}
}

// Sweep closes every active conversation older than the TTL and returns the
// number closed. Idempotent: an immediate second call closes zero. Stale
// session and rate-limit entries are evicted in the same pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	closed, err := s.store.CloseExpiredConversations(ctx)
	if err != nil {
		return 0, err
	}

	evictedSessions := s.sessions.EvictExpired()
	evictedWindows := s.gate.Evict()

	if closed > 0 || evictedSessions > 0 || evictedWindows > 0 {
		s.log.Info("expiry sweep completed",
			"conversations_closed", closed,
			"sessions_evicted", evictedSessions,
			"rate_windows_evicted", evictedWindows,
		)
	}

	return closed, nil
}
