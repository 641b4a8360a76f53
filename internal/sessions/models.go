package sessions

import (
	"time"

	"looped/internal/social"
)

// Session is the live state of one signed-in user.
type Session struct {
	UserID    string
	Store     *social.Store
	StartedAt time.Time
	LastSeen  time.Time

	ready chan struct{}
	err   error
}
