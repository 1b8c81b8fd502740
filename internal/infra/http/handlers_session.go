package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type sessionResponse struct {
	User             sessionUserResponse `json:"user"`
	CertificateID    string              `json:"certificate_id"`
	AllowedActions   []string            `json:"allowed_actions"`
	RequiresReauth   bool                `json:"requires_reauth"`
	AccessExpiresAt  time.Time           `json:"access_expires_at"`
	AbsoluteDeadline time.Time           `json:"absolute_deadline"`
	ReauthDeadline   time.Time           `json:"reauth_deadline"`
}

type intentRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	MAC     []byte          `json:"mac"`
}

type intentResponse struct {
	Verified   bool   `json:"verified"`
	IntentHash string `json:"intent_hash"`
	EventID    string `json:"event_id"`
}

func (s *Server) handleSession(c *gin.Context) {
	c.Set(actionContextKey, "session")
	principal, _ := getPrincipal(c)
	session, ok, err := s.deps.Sessions.Get(c.Request.Context(), getToken(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		s.writeError(c, domain.ErrSessionMissing)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		User:             sessionUserResponse{ID: session.User.ID, Name: session.User.Name, Role: string(session.User.Role)},
		CertificateID:    session.Certificate.CertificateID,
		AllowedActions:   principal.Actions,
		RequiresReauth:   principal.RequiresReauth,
		AccessExpiresAt:  session.AccessExpiresAt,
		AbsoluteDeadline: session.AbsoluteDeadline,
		ReauthDeadline:   session.ReauthDeadline,
	})
}

func (s *Server) handleAuthorizeAction(c *gin.Context) {
	action := c.Param("action")
	c.Set(actionContextKey, action)
	principal, _ := getPrincipal(c)
	if err := s.deps.Guard.Authorize(c.Request.Context(), principal, action); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true, "action": action})
}

func (s *Server) handleIntent(c *gin.Context) {
	c.Set(actionContextKey, domain.ActionSignIntent)
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, string(domain.DenialSessionInvalid), domain.ErrSessionMissing.Message)
		return
	}
	c.Set(tokenContextKey, token)
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" || len(req.Payload) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "type and payload are required")
		return
	}
	result, err := s.deps.Intents.VerifyIntent(c.Request.Context(), token, usecase.IntentRequest{
		Type:    req.Type,
		Payload: req.Payload,
		MAC:     req.MAC,
	})
	if errors.Is(err, usecase.ErrIntentMACInvalid) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":        string(domain.DenialDeviceProofInvalid),
			"message":     usecase.ErrIntentMACInvalid.Message,
			"intent_hash": result.IntentHash,
		})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intentResponse{
		Verified:   result.Verified,
		IntentHash: result.IntentHash,
		EventID:    result.Entry.EventID,
	})
}

func (s *Server) handleCRL(c *gin.Context) {
	if s.deps.CRL == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "revocation list not published")
		return
	}
	list, err := s.deps.CRL.Snapshot(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
