// Package ratelimit implements per-user admission control for message
// submissions.
//
// The gate is a fixed-window counter, not a sliding window: a user who
// exhausts the budget at the end of one window can immediately spend a full
// budget at the start of the next. That boundary burst is a documented
// limitation of the scheme, kept deliberately for its simplicity.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"chat-brain/backend/pkg/errors"
)

type window struct {
	start int64
	count int
}

// Gate is a per-user fixed-window submission counter
type Gate struct {
	mu      sync.Mutex
	users   map[string]*window
	windowS int64
	max     int
	now     func() int64
}

// New creates a gate admitting at most max submissions per user per window
func New(windowLength time.Duration, max int) *Gate {
	return &Gate{
		users:   make(map[string]*window),
		windowS: int64(windowLength.Seconds()),
		max:     max,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// WithClock overrides the time source, for tests
func (g *Gate) WithClock(now func() int64) *Gate {
	g.now = now
	return g
}

// Allow admits or rejects a submission for the given user
func (g *Gate) Allow(userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now()

	w, exists := g.users[userID]
	if !exists || t-w.start >= g.windowS {
		g.users[userID] = &window{start: t, count: 1}
		return nil
	}

	if w.count >= g.max {
		return errors.NewRateLimitError(
			fmt.Sprintf("rate limit exceeded for user %s: %d messages per %ds", userID, g.max, g.windowS))
	}

	w.count++
	return nil
}

// Evict drops window state for users whose window has long passed. Called
// opportunistically by the sweep cycle to bound memory.
func (g *Gate) Evict() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now()
	evicted := 0
	for userID, w := range g.users {
		if t-w.start >= 2*g.windowS {
			delete(g.users, userID)
			evicted++
		}
	}
	return evicted
}

// Tracked returns the number of users with live window state
func (g *Gate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.users)
}
