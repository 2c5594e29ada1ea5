package tui

import (
	"time"

	"github.com/jonandersen/tokenctl/internal/auth"
)

// Message types for async operations

// TokenLoadedMsg is sent when a credential was read or obtained.
// Cred is nil when Peek found nothing cached.
type TokenLoadedMsg struct {
	Cred   *auth.Credential
	Source string
}

// TokenErrorMsg is sent when reading or obtaining a credential fails.
type TokenErrorMsg struct {
	Op  string
	Err error
}

// TokenClearedMsg is sent after the cached credential was removed.
type TokenClearedMsg struct{}

// TickMsg is sent every second to advance the countdown.
type TickMsg time.Time
