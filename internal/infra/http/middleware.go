package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// requestLog writes one zap line per request and appends every /v1 request
// to the request audit chain. Tokens appear only as fingerprints.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		principal, _ := getPrincipal(c)
		fingerprint := ""
		if token := getToken(c); token != "" {
			fingerprint = usecase.TokenFingerprint(token)
		}

		s.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("user_id", principal.Subject),
			zap.String("session", fingerprint),
		)

		if s.deps.Audit == nil || route == "/healthz" || route == "/metrics" {
			return
		}
		// The request context may already be cancelled by the client.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()
		if _, err := s.deps.Audit.RecordRequest(ctx, domain.RequestRecord{
			UserID:             principal.Subject,
			Role:               string(principal.Role),
			Action:             c.GetString(actionContextKey),
			Method:             c.Request.Method,
			Path:               route,
			Status:             status,
			Outcome:            outcomeFor(status),
			CertificateID:      principal.CertificateID,
			SessionFingerprint: fingerprint,
			RemoteAddr:         c.ClientIP(),
		}); err != nil {
			s.log.Error("request audit append failed", zap.String("route", route), zap.Error(err))
		}
	}
}

const actionContextKey = "audit_action"

func outcomeFor(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return "denied"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "success"
	}
}
