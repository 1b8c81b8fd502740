package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

const (
	refreshCookieName = "certauth_refresh"
	refreshCookiePath = "/v1/auth"
)

type challengeRequest struct {
	Certificate        string            `json:"certificate"`
	Purpose            string            `json:"purpose,omitempty"`
	LegacyDeviceSecret string            `json:"legacy_device_secret,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type challengeResponse struct {
	Token     string    `json:"token"`
	Nonce     []byte    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

type proofRequest struct {
	Token        string `json:"token"`
	HMAC         []byte `json:"hmac"`
	RSASignature []byte `json:"rsa_signature"`
	PQSignature  []byte `json:"pq_signature,omitempty"`
}

type sessionUserResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type loginResponse struct {
	AccessToken      string              `json:"access_token"`
	AccessExpiresAt  time.Time           `json:"access_expires_at"`
	RefreshExpiresAt time.Time           `json:"refresh_expires_at"`
	AbsoluteDeadline time.Time           `json:"absolute_deadline"`
	KEMCiphertext    []byte              `json:"kem_ciphertext,omitempty"`
	User             sessionUserResponse `json:"user"`
	AllowedActions   []string            `json:"allowed_actions"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type refreshResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (s *Server) handleChallenge(c *gin.Context) {
	c.Set(actionContextKey, "login_challenge")
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Certificate == "" {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "certificate is required")
		return
	}
	purpose := domain.ChallengePurpose(req.Purpose)
	if purpose != "" && purpose != domain.ChallengePurposeLogin && purpose != domain.ChallengePurposeQRLogin {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "purpose must be login or qr_login")
		return
	}
	userID := ""
	if s.deps.Authority != nil && s.deps.Authority.Codec != nil {
		if cert, err := s.deps.Authority.Codec.ParseCertificate([]byte(req.Certificate)); err == nil {
			userID = cert.UserID
		}
	}
	if !s.admitChallenge(c, domain.ChallengeScope{RemoteAddr: c.ClientIP(), UserID: userID}) {
		return
	}
	issued, err := s.deps.Login.BeginLogin(c.Request.Context(), usecase.BeginLoginRequest{
		Certificate:        []byte(req.Certificate),
		Purpose:            purpose,
		LegacyDeviceSecret: req.LegacyDeviceSecret,
		Metadata:           req.Metadata,
		BindingContext:     map[string]string{"user_agent": c.Request.UserAgent()},
		RemoteAddr:         c.ClientIP(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challengeResponse{Token: issued.Token, Nonce: issued.Nonce, ExpiresAt: issued.ExpiresAt})
}

func (s *Server) handleLogin(c *gin.Context) {
	c.Set(actionContextKey, "login")
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "token and proof are required")
		return
	}
	result, err := s.deps.Login.CompleteLogin(c.Request.Context(), usecase.CompleteLoginRequest{
		Token:      req.Token,
		Proof:      usecase.DeviceProof{HMAC: req.HMAC, RSASignature: req.RSASignature, PQSignature: req.PQSignature},
		RemoteAddr: c.ClientIP(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	session := result.Session
	c.Set(principalContextKey, domain.Principal{
		Subject:       session.User.ID,
		Role:          session.User.Role,
		CertificateID: session.Certificate.CertificateID,
	})
	c.Set(tokenContextKey, session.AccessToken)
	s.setRefreshCookie(c, session.RefreshToken, session.RefreshExpiresAt)
	c.JSON(http.StatusOK, loginResponse{
		AccessToken:      session.AccessToken,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
		AbsoluteDeadline: session.AbsoluteDeadline,
		KEMCiphertext:    result.KEMCiphertext,
		User:             sessionUserResponse{ID: session.User.ID, Name: session.User.Name, Role: string(session.User.Role)},
		AllowedActions:   session.Certificate.ActionList(),
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	c.Set(actionContextKey, "refresh")
	refreshToken, _ := c.Cookie(refreshCookieName)
	if refreshToken == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		writeErrorCode(c, http.StatusUnauthorized, string(domain.DenialSessionInvalid), domain.ErrSessionMissing.Message)
		return
	}
	tokens, err := s.deps.Sessions.RefreshSessionTokens(c.Request.Context(), refreshToken, "", "")
	if err != nil {
		if _, ok := domain.AsDenial(err); ok {
			s.clearRefreshCookie(c)
		}
		s.writeError(c, err)
		return
	}
	c.Set(tokenContextKey, tokens.AccessToken)
	s.setRefreshCookie(c, tokens.RefreshToken, tokens.RefreshExpiresAt)
	c.JSON(http.StatusOK, refreshResponse{
		AccessToken:      tokens.AccessToken,
		AccessExpiresAt:  tokens.AccessExpiresAt,
		RefreshExpiresAt: tokens.RefreshExpiresAt,
	})
}

// handleLogout accepts an expired access token so a client can always end
// its session.
func (s *Server) handleLogout(c *gin.Context) {
	c.Set(actionContextKey, "logout")
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, string(domain.DenialSessionInvalid), domain.ErrSessionMissing.Message)
		return
	}
	c.Set(tokenContextKey, token)
	if session, ok, err := s.deps.Sessions.Get(c.Request.Context(), token); err == nil && ok {
		c.Set(principalContextKey, domain.Principal{Subject: session.User.ID, Role: session.User.Role})
	}
	if err := s.deps.Sessions.Destroy(c.Request.Context(), token, "logout"); err != nil {
		s.writeError(c, err)
		return
	}
	s.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReverifyChallenge(c *gin.Context) {
	c.Set(actionContextKey, "reverify_challenge")
	issued, err := s.deps.Login.BeginReverify(c.Request.Context(), getToken(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challengeResponse{Token: issued.Token, Nonce: issued.Nonce, ExpiresAt: issued.ExpiresAt})
}

func (s *Server) handleReverify(c *gin.Context) {
	c.Set(actionContextKey, "reverify")
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "token and proof are required")
		return
	}
	session, err := s.deps.Login.CompleteReverify(c.Request.Context(), getToken(c), usecase.CompleteLoginRequest{
		Token:      req.Token,
		Purpose:    domain.ChallengePurposeReverify,
		Proof:      usecase.DeviceProof{HMAC: req.HMAC, RSASignature: req.RSASignature, PQSignature: req.PQSignature},
		RemoteAddr: c.ClientIP(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reverified": true, "reauth_deadline": session.ReauthDeadline})
}

func (s *Server) setRefreshCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, maxAge, refreshCookiePath, "", s.secureCookies(), true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", s.secureCookies(), true)
}

func (s *Server) secureCookies() bool {
	return s.cfg.Env != "dev" && s.cfg.Env != "test"
}
