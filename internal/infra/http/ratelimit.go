package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

// admitChallenge charges a challenge request to the caller's address and
// claimed identity, writing the 429 itself when refused.
func (s *Server) admitChallenge(c *gin.Context, scope domain.ChallengeScope) bool {
	if s.deps.RateLimiter == nil {
		return true
	}
	decision, err := s.deps.RateLimiter.Admit(c.Request.Context(), scope)
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.Error(err))
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		if s.deps.RateLimits != nil {
			s.deps.RateLimits.RateLimited()
		}
		s.log.Info("challenge refused by rate limit",
			zap.String("window", decision.Window),
			zap.String("remote_addr", scope.RemoteAddr),
			zap.String("user_id", scope.UserID),
		)
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
