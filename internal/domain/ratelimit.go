package domain

import (
	"context"
	"time"
)

// RateLimitDecision reports the window that decided the request: the spent
// one when refused, otherwise the one closest to its limit.
type RateLimitDecision struct {
	Allowed   bool
	Window    string
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ChallengeScope is who a challenge request is charged to. UserID is empty
// when the presented certificate could not be parsed.
type ChallengeScope struct {
	RemoteAddr string
	UserID     string
}

// ChallengeLimiter meters challenge issuance. A request is charged to the
// client address and to the claimed identity at once, and only when neither
// window is spent.
type ChallengeLimiter interface {
	Admit(ctx context.Context, scope ChallengeScope) (RateLimitDecision, error)
}
