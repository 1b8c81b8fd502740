package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

var ErrCapacityExceeded = errors.New("challenge limiter capacity exceeded")

type MemoryLimiterConfig struct {
	Policy  Policy
	Now     func() time.Time
	MaxKeys int
}

type counter struct {
	count     int
	windowEnd time.Time
}

// MemoryLimiter keeps fixed challenge windows in process. It refuses to
// track new counters once MaxKeys live windows exist.
type MemoryLimiter struct {
	policy  Policy
	now     func() time.Time
	maxKeys int

	mu       sync.Mutex
	counters map[string]*counter
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryLimiter{
		policy:   cfg.Policy,
		now:      cfg.Now,
		maxKeys:  cfg.MaxKeys,
		counters: make(map[string]*counter),
	}
}

func (m *MemoryLimiter) Admit(_ context.Context, scope domain.ChallengeScope) (domain.RateLimitDecision, error) {
	windows := m.policy.windows(scope)
	if len(windows) == 0 {
		return domain.RateLimitDecision{Allowed: true}, nil
	}
	now := m.now()
	span := m.policy.span()

	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make([]windowCount, len(windows))
	live := make([]*counter, len(windows))
	admitted := true
	for i, w := range windows {
		c, ok := m.counters[w.key]
		if !ok || now.After(c.windowEnd) {
			c = &counter{windowEnd: now.Add(span)}
		}
		live[i] = c
		counts[i] = windowCount{window: w, count: c.count, resetAt: c.windowEnd}
		if c.count >= w.limit {
			admitted = false
		}
	}
	if !admitted {
		return decide(counts, false), nil
	}
	if err := m.reserve(windows, now); err != nil {
		return domain.RateLimitDecision{}, err
	}
	for i, w := range windows {
		live[i].count++
		m.counters[w.key] = live[i]
		counts[i].count = live[i].count
	}
	return decide(counts, true), nil
}

// reserve makes room for counters that are not tracked yet.
func (m *MemoryLimiter) reserve(windows []window, now time.Time) error {
	missing := 0
	for _, w := range windows {
		if c, ok := m.counters[w.key]; !ok || now.After(c.windowEnd) {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}
	if len(m.counters)+missing > m.maxKeys {
		m.gc(now)
	}
	if len(m.counters)+missing > m.maxKeys {
		return ErrCapacityExceeded
	}
	return nil
}

func (m *MemoryLimiter) gc(now time.Time) {
	for key, c := range m.counters {
		if now.After(c.windowEnd) {
			delete(m.counters, key)
		}
	}
}

var _ domain.ChallengeLimiter = (*MemoryLimiter)(nil)
