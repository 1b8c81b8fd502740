package ratelimit

import (
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	WindowAddress  = "address"
	WindowIdentity = "identity"
)

// Policy sizes the two challenge windows. A non-positive limit disables that
// window.
type Policy struct {
	PerAddress  int
	PerIdentity int
	Window      time.Duration
}

type window struct {
	name  string
	key   string
	limit int
}

// windows lists the counters a request is charged to. Address and identity
// counters live in separate key spaces so a user_id can never collide with
// an address.
func (p Policy) windows(scope domain.ChallengeScope) []window {
	var out []window
	if p.PerAddress > 0 && scope.RemoteAddr != "" {
		out = append(out, window{name: WindowAddress, key: "addr:" + scope.RemoteAddr, limit: p.PerAddress})
	}
	if p.PerIdentity > 0 && scope.UserID != "" {
		out = append(out, window{name: WindowIdentity, key: "identity:" + scope.UserID, limit: p.PerIdentity})
	}
	return out
}

func (p Policy) span() time.Duration {
	if p.Window <= 0 {
		return time.Minute
	}
	return p.Window
}

type windowCount struct {
	window
	count   int
	resetAt time.Time
}

func decide(counts []windowCount, admitted bool) domain.RateLimitDecision {
	if len(counts) == 0 {
		return domain.RateLimitDecision{Allowed: true}
	}
	var pick *windowCount
	for i := range counts {
		c := &counts[i]
		if admitted {
			if pick == nil || c.limit-c.count < pick.limit-pick.count {
				pick = c
			}
			continue
		}
		if c.count < c.limit {
			continue
		}
		if pick == nil || c.resetAt.After(pick.resetAt) {
			pick = c
		}
	}
	remaining := pick.limit - pick.count
	if remaining < 0 || !admitted {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   admitted,
		Window:    pick.name,
		Limit:     pick.limit,
		Remaining: remaining,
		ResetAt:   pick.resetAt,
	}
}
