package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	principalContextKey = "principal"
	tokenContextKey     = "access_token"
	adminKeySubject     = "admin-key"
)

// requireSession runs session state enforcement and certificate
// re-validation for the bearer token.
func (s *Server) requireSession(c *gin.Context) {
	if s.deps.Guard == nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "auth configuration error")
		return
	}
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, string(domain.DenialSessionInvalid), domain.ErrSessionMissing.Message)
		return
	}
	principal, _, err := s.deps.Guard.Authenticate(c.Request.Context(), token, false)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Set(principalContextKey, principal)
	c.Set(tokenContextKey, token)
}

// requireAdmin accepts either a session allowed to perform action or, when
// configured, the bootstrap admin key.
func (s *Server) requireAdmin(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader("X-Admin-Key")); key != "" {
			if s.adminAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
				writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
				return
			}
			c.Set(principalContextKey, domain.Principal{
				Subject: adminKeySubject,
				Role:    domain.RoleAdmin,
				Actions: domain.RoleAdmin.Actions(),
			})
			return
		}
		s.requireSession(c)
		if c.IsAborted() {
			return
		}
		principal, _ := getPrincipal(c)
		if err := s.deps.Guard.Authorize(c.Request.Context(), principal, action); err != nil {
			s.writeError(c, err)
			return
		}
	}
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}

func getPrincipal(c *gin.Context) (domain.Principal, bool) {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := raw.(domain.Principal)
	return principal, ok
}

func getToken(c *gin.Context) string {
	return c.GetString(tokenContextKey)
}
