package models

// AgentAction is the last decision the agent took for a session
type AgentAction string

// Agent actions
const (
	ActionIgnore    AgentAction = "ignore"
	ActionContinue  AgentAction = "continue"
	ActionSwapToken AgentAction = "swap_token"
)

// ShouldContinue reports whether the action keeps the exchange going
func (a AgentAction) ShouldContinue() bool {
	return a == ActionContinue
}

// ShouldSwapToken reports whether the action requests a token swap
func (a AgentAction) ShouldSwapToken() bool {
	return a == ActionSwapToken
}

// SessionState is the in-memory per-user conversation state. It runs on its
// own 300s timeout, independent of the durable Conversation's 24h window.
type SessionState struct {
	Platform      string      `json:"platform"`
	LastAction    AgentAction `json:"last_action"`
	MessageCount  int         `json:"message_count"`
	Active        bool        `json:"active"`
	ThreadID      *string     `json:"thread_id,omitempty"`
	LastActivity  int64       `json:"last_activity"`
	RetryAttempts int         `json:"retry_attempts"`
}

// NewSessionState creates a session with first-message defaults
func NewSessionState(platform string) *SessionState {
	return &SessionState{
		Platform:   platform,
		LastAction: ActionIgnore,
		Active:     true,
	}
}

// IsExpired reports whether the session has been idle past timeout seconds
func (s *SessionState) IsExpired(currentTime, timeout int64) bool {
	return currentTime-s.LastActivity > timeout
}
