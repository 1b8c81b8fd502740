package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const redisKeyPrefix = "certauth:challenge-window:"

// admitScript charges every window in KEYS only when none is spent.
// ARGV[1] is the window length in milliseconds, ARGV[2..] the limits in KEYS
// order. The reply is {admitted, count1, ttl1, count2, ttl2, ...}.
var admitScript = redis.NewScript(`
local span = tonumber(ARGV[1])
local admitted = 1
local out = {0}
for i, key in ipairs(KEYS) do
  local current = tonumber(redis.call("GET", key) or "0")
  if current >= tonumber(ARGV[i + 1]) then
    admitted = 0
  end
  out[2 * i] = current
  out[2 * i + 1] = redis.call("PTTL", key)
end
if admitted == 1 then
  for i, key in ipairs(KEYS) do
    local current = redis.call("INCR", key)
    if current == 1 then
      redis.call("PEXPIRE", key, span)
    end
    out[2 * i] = current
    out[2 * i + 1] = redis.call("PTTL", key)
  end
end
out[1] = admitted
return out
`)

// RedisLimiter shares challenge windows across every daemon pointed at the
// same Redis. The script touches several keys, so it needs a single node or
// a replicated primary rather than a cluster.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, policy Policy, now func() time.Time) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, policy: policy, now: now}, nil
}

func (r *RedisLimiter) Admit(ctx context.Context, scope domain.ChallengeScope) (domain.RateLimitDecision, error) {
	windows := r.policy.windows(scope)
	if len(windows) == 0 {
		return domain.RateLimitDecision{Allowed: true}, nil
	}
	keys := make([]string, len(windows))
	args := make([]any, 0, len(windows)+1)
	args = append(args, r.policy.span().Milliseconds())
	for i, w := range windows {
		keys[i] = redisKeyPrefix + w.key
		args = append(args, w.limit)
	}

	raw, err := admitScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	if len(raw) != 1+2*len(windows) {
		return domain.RateLimitDecision{}, fmt.Errorf("unexpected challenge window reply of %d values", len(raw))
	}
	now := r.now()
	counts := make([]windowCount, len(windows))
	for i, w := range windows {
		resetAt := now
		if ttl := raw[2+2*i]; ttl > 0 {
			resetAt = now.Add(time.Duration(ttl) * time.Millisecond)
		}
		counts[i] = windowCount{window: w, count: int(raw[1+2*i]), resetAt: resetAt}
	}
	return decide(counts, raw[0] == 1), nil
}

var _ domain.ChallengeLimiter = (*RedisLimiter)(nil)
