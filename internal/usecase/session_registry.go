package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const sessionTokenBytes = 32

type SessionConfig struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	AbsoluteTTL    time.Duration
	IdleTimeout    time.Duration
	ReauthInterval time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     8 * time.Hour,
		AbsoluteTTL:    8 * time.Hour,
		IdleTimeout:    15 * time.Minute,
		ReauthInterval: 10 * time.Minute,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.AccessTTL <= 0 {
		c.AccessTTL = def.AccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = def.RefreshTTL
	}
	if c.AbsoluteTTL <= 0 {
		c.AbsoluteTTL = def.AbsoluteTTL
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ReauthInterval <= 0 {
		c.ReauthInterval = def.ReauthInterval
	}
	return c
}

type CertificateVerifier interface {
	Verify(ctx context.Context, cert domain.Certificate) (domain.Certificate, error)
	DeriveDeviceID(deviceSecret string) string
}

type NewSession struct {
	AccessToken  string
	RefreshToken string
	User         domain.SessionUser
	Certificate  domain.Certificate
	Binding      domain.SessionBinding
	SessionKey   []byte
}

// SessionRegistry owns the session table. Refresh tokens are indexed
// separately so a refresh never needs the access token.
type SessionRegistry struct {
	Sessions  KVStore[domain.Session]
	Refresh   KVStore[string]
	Authority CertificateVerifier
	Bindings  DeviceBindingStore
	Audit     *AuditRecorder
	Metrics   Metrics
	Logger    *zap.Logger
	Clock     Clock
	Config    SessionConfig

	refreshMu sync.Mutex
}

func (r *SessionRegistry) CreateSession(ctx context.Context, req NewSession) (domain.Session, error) {
	if err := r.ready(); err != nil {
		return domain.Session{}, err
	}
	if req.Binding.DeviceID == "" || req.Binding.CertHash == "" {
		return domain.Session{}, errors.New("session binding requires device_id and cert_hash")
	}
	if req.Binding.Role == "" {
		req.Binding.Role = req.Certificate.Role
	}
	var err error
	if req.AccessToken == "" {
		if req.AccessToken, err = randomToken(sessionTokenBytes); err != nil {
			return domain.Session{}, domain.NewFault("generate access token", err)
		}
	}
	if req.RefreshToken == "" {
		if req.RefreshToken, err = randomToken(sessionTokenBytes); err != nil {
			return domain.Session{}, domain.NewFault("generate refresh token", err)
		}
	}

	cfg := r.Config.withDefaults()
	now := r.now()
	absolute := now.Add(cfg.AbsoluteTTL)
	session := domain.Session{
		AccessToken:      req.AccessToken,
		User:             req.User,
		Certificate:      req.Certificate,
		CreatedAt:        now,
		LastVerified:     now,
		LastActivity:     now,
		ReauthDeadline:   now.Add(cfg.ReauthInterval),
		AccessExpiresAt:  capAt(now.Add(cfg.AccessTTL), absolute),
		AbsoluteDeadline: absolute,
		RefreshToken:     req.RefreshToken,
		RefreshExpiresAt: capAt(now.Add(cfg.RefreshTTL), absolute),
		Binding:          req.Binding,
		SessionKey:       req.SessionKey,
	}
	if err := r.Sessions.Put(ctx, session.AccessToken, session, session.AbsoluteDeadline); err != nil {
		return domain.Session{}, domain.NewFault("store session", err)
	}
	if err := r.Refresh.Put(ctx, session.RefreshToken, session.AccessToken, session.RefreshExpiresAt); err != nil {
		return domain.Session{}, domain.NewFault("store refresh token", err)
	}
	r.logger().Info("session created",
		zap.String("user_id", session.User.ID),
		zap.String("session", TokenFingerprint(session.AccessToken)),
		zap.String("certificate_id", session.Certificate.CertificateID),
	)
	return session, nil
}

func (r *SessionRegistry) Get(ctx context.Context, accessToken string) (domain.Session, bool, error) {
	if err := r.ready(); err != nil {
		return domain.Session{}, false, err
	}
	session, ok, err := r.Sessions.Get(ctx, accessToken)
	if err != nil {
		return domain.Session{}, false, domain.NewFault("load session", err)
	}
	return session, ok, nil
}

// EnforceSessionState checks the absolute deadline, then idle time, then
// access expiry. The first two destroy the session; access expiry only asks
// for a refresh. The activity touch never writes back a session that was
// destroyed or rotated after it was read.
func (r *SessionRegistry) EnforceSessionState(ctx context.Context, accessToken string, allowExpiredAccess bool) (domain.Session, error) {
	session, ok, err := r.Get(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionMissing
	}
	now := r.now()
	state := session.StateAt(now, r.Config.withDefaults().IdleTimeout)
	if state.Terminal() {
		return domain.Session{}, r.destroyWith(ctx, session, terminalDenial(state))
	}
	if state == domain.SessionAccessExpired && !allowExpiredAccess {
		return domain.Session{}, domain.ErrAccessExpired
	}

	touched, ok, err := r.Sessions.Update(ctx, accessToken, func(current domain.Session) (domain.Session, error) {
		if now.After(current.LastActivity) {
			current.LastActivity = now
		}
		return current, nil
	})
	if err != nil {
		return domain.Session{}, domain.NewFault("touch session", err)
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionMissing
	}
	return touched, nil
}

// ValidateSessionCertificate re-verifies the session's certificate and
// re-derives its binding. Any denial destroys the session.
func (r *SessionRegistry) ValidateSessionCertificate(ctx context.Context, accessToken string) (domain.Session, error) {
	session, ok, err := r.Get(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionMissing
	}

	verified, err := r.Authority.Verify(ctx, session.Certificate)
	if err != nil {
		if denial, denied := domain.AsDenial(err); denied {
			return domain.Session{}, r.securityEvent(ctx, session, denial, anomalyKindFor(err))
		}
		return domain.Session{}, err
	}

	secret, found, err := r.Bindings.GetSecret(ctx, session.User.ID)
	if err != nil {
		return domain.Session{}, domain.NewFault("load device binding", err)
	}
	if !found {
		return domain.Session{}, r.securityEvent(ctx, session, bindingMismatch(domain.ReasonDevice), domain.AnomalyBindingMismatch)
	}
	deviceID := r.Authority.DeriveDeviceID(secret)
	if !equalStrings(deviceID, verified.DeviceID) || !equalStrings(deviceID, session.Binding.DeviceID) {
		return domain.Session{}, r.securityEvent(ctx, session, bindingMismatch(domain.ReasonDevice), domain.AnomalyBindingMismatch)
	}
	if session.Binding.Role != verified.Role || session.User.Role != verified.Role {
		return domain.Session{}, r.securityEvent(ctx, session, bindingMismatch(domain.ReasonRole), domain.AnomalyBindingMismatch)
	}
	if !equalStrings(session.Binding.CertHash, verified.CertHash) {
		return domain.Session{}, r.securityEvent(ctx, session, bindingMismatch(domain.ReasonCertHash), domain.AnomalyBindingMismatch)
	}
	return session, nil
}

// RefreshSessionTokens rotates the token pair. The session must still be
// inside its absolute, idle and refresh windows and its certificate must
// still verify. The old pair stops working as soon as this returns.
func (r *SessionRegistry) RefreshSessionTokens(ctx context.Context, refreshToken, newAccessToken, newRefreshToken string) (domain.SessionTokens, error) {
	if err := r.ready(); err != nil {
		return domain.SessionTokens{}, err
	}
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	accessToken, ok, err := r.Refresh.Get(ctx, refreshToken)
	if err != nil {
		return domain.SessionTokens{}, domain.NewFault("load refresh token", err)
	}
	if !ok {
		return domain.SessionTokens{}, domain.ErrSessionMissing
	}
	if newAccessToken == "" {
		if newAccessToken, err = randomToken(sessionTokenBytes); err != nil {
			return domain.SessionTokens{}, domain.NewFault("generate access token", err)
		}
	}
	if newRefreshToken == "" {
		if newRefreshToken, err = randomToken(sessionTokenBytes); err != nil {
			return domain.SessionTokens{}, domain.NewFault("generate refresh token", err)
		}
	}
	if newAccessToken == accessToken || newRefreshToken == refreshToken {
		return domain.SessionTokens{}, errors.New("refreshed tokens must differ from the current pair")
	}

	session, ok, err := r.Get(ctx, accessToken)
	if err != nil {
		return domain.SessionTokens{}, err
	}
	if !ok || !equalStrings(session.RefreshToken, refreshToken) {
		if err := r.Refresh.Delete(ctx, refreshToken); err != nil {
			return domain.SessionTokens{}, domain.NewFault("drop dangling refresh token", err)
		}
		return domain.SessionTokens{}, domain.ErrSessionMissing
	}

	cfg := r.Config.withDefaults()
	now := r.now()
	if state := session.StateAt(now, cfg.IdleTimeout); state.Terminal() {
		return domain.SessionTokens{}, r.destroyWith(ctx, session, terminalDenial(state))
	}
	if !now.Before(session.RefreshExpiresAt) {
		return domain.SessionTokens{}, r.destroyWith(ctx, session, domain.ErrSessionRefreshExpired)
	}
	if _, err := r.Authority.Verify(ctx, session.Certificate); err != nil {
		if denial, denied := domain.AsDenial(err); denied {
			return domain.SessionTokens{}, r.securityEvent(ctx, session, denial, anomalyKindFor(err))
		}
		return domain.SessionTokens{}, err
	}

	if _, ok, err := r.Refresh.Take(ctx, refreshToken); err != nil {
		return domain.SessionTokens{}, domain.NewFault("consume refresh token", err)
	} else if !ok {
		return domain.SessionTokens{}, domain.ErrSessionMissing
	}
	// Taking the old entry both invalidates the old access token and fails
	// when a concurrent logout already removed it.
	current, ok, err := r.Sessions.Take(ctx, accessToken)
	if err != nil {
		return domain.SessionTokens{}, domain.NewFault("consume previous access token", err)
	}
	if !ok {
		return domain.SessionTokens{}, domain.ErrSessionMissing
	}

	rotated := current
	rotated.AccessToken = newAccessToken
	rotated.RefreshToken = newRefreshToken
	rotated.LastActivity = now
	rotated.AccessExpiresAt = capAt(now.Add(cfg.AccessTTL), current.AbsoluteDeadline)
	rotated.RefreshExpiresAt = capAt(now.Add(cfg.RefreshTTL), current.AbsoluteDeadline)

	if err := r.Sessions.Put(ctx, rotated.AccessToken, rotated, rotated.AbsoluteDeadline); err != nil {
		return domain.SessionTokens{}, domain.NewFault("store refreshed session", err)
	}
	if err := r.Refresh.Put(ctx, rotated.RefreshToken, rotated.AccessToken, rotated.RefreshExpiresAt); err != nil {
		return domain.SessionTokens{}, domain.NewFault("store refresh token", err)
	}

	r.logger().Info("session tokens rotated",
		zap.String("user_id", rotated.User.ID),
		zap.String("previous", TokenFingerprint(accessToken)),
		zap.String("session", TokenFingerprint(rotated.AccessToken)),
	)
	return domain.SessionTokens{
		AccessToken:      rotated.AccessToken,
		RefreshToken:     rotated.RefreshToken,
		AccessExpiresAt:  rotated.AccessExpiresAt,
		RefreshExpiresAt: rotated.RefreshExpiresAt,
	}, nil
}

// SessionRequiresReauth is independent of token expiry.
func (r *SessionRegistry) SessionRequiresReauth(ctx context.Context, accessToken string) (bool, error) {
	session, ok, err := r.Get(ctx, accessToken)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, domain.ErrSessionMissing
	}
	return !r.now().Before(session.ReauthDeadline), nil
}

func (r *SessionRegistry) MarkReverified(ctx context.Context, accessToken string) (domain.Session, error) {
	if err := r.ready(); err != nil {
		return domain.Session{}, err
	}
	now := r.now()
	interval := r.Config.withDefaults().ReauthInterval
	session, ok, err := r.Sessions.Update(ctx, accessToken, func(current domain.Session) (domain.Session, error) {
		current.LastVerified = now
		current.LastActivity = now
		current.ReauthDeadline = now.Add(interval)
		return current, nil
	})
	if err != nil {
		return domain.Session{}, domain.NewFault("store session", err)
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionMissing
	}
	return session, nil
}

func (r *SessionRegistry) Destroy(ctx context.Context, accessToken, reason string) error {
	session, ok, err := r.Get(ctx, accessToken)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return r.destroy(ctx, session, reason)
}

// DestroyForUser removes every session of userID and returns how many were
// removed.
func (r *SessionRegistry) DestroyForUser(ctx context.Context, userID, reason string) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var matched []domain.Session
	err := r.Sessions.Range(ctx, func(_ string, session domain.Session) bool {
		if session.User.ID == userID {
			matched = append(matched, session)
		}
		return true
	})
	if err != nil {
		return 0, domain.NewFault("scan sessions", err)
	}
	for _, session := range matched {
		if err := r.destroy(ctx, session, reason); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// ReapExpired drops sessions past their absolute deadline or idle timeout.
func (r *SessionRegistry) ReapExpired(ctx context.Context) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	now := r.now()
	idle := r.Config.withDefaults().IdleTimeout
	expired, err := r.Sessions.ScanExpired(ctx, now)
	if err != nil {
		return 0, domain.NewFault("scan expired sessions", err)
	}
	for _, token := range expired {
		if err := r.Sessions.Delete(ctx, token); err != nil {
			return 0, domain.NewFault("delete session", err)
		}
	}
	staleRefresh, err := r.Refresh.ScanExpired(ctx, now)
	if err != nil {
		return 0, domain.NewFault("scan expired refresh tokens", err)
	}
	for _, token := range staleRefresh {
		if err := r.Refresh.Delete(ctx, token); err != nil {
			return 0, domain.NewFault("delete refresh token", err)
		}
	}

	var idleSessions []domain.Session
	err = r.Sessions.Range(ctx, func(_ string, session domain.Session) bool {
		if session.StateAt(now, idle).Terminal() {
			idleSessions = append(idleSessions, session)
		}
		return true
	})
	if err != nil {
		return 0, domain.NewFault("scan sessions", err)
	}
	for _, session := range idleSessions {
		if err := r.destroy(ctx, session, terminalDenial(session.StateAt(now, idle)).Reason); err != nil {
			return 0, err
		}
	}
	return len(expired) + len(idleSessions), nil
}

func (r *SessionRegistry) securityEvent(ctx context.Context, session domain.Session, cause *domain.Denial, kind string) error {
	r.logger().Warn("session security check failed",
		zap.String("user_id", session.User.ID),
		zap.String("session", TokenFingerprint(session.AccessToken)),
		zap.String("certificate_id", session.Certificate.CertificateID),
		zap.Error(cause),
	)
	if r.Audit != nil {
		if _, err := r.Audit.RecordAnomaly(ctx, domain.AnomalyRecord{
			UserID:        session.User.ID,
			CertificateID: session.Certificate.CertificateID,
			Kind:          kind,
			Severity:      domain.AnomalySeverityHigh,
			Detail:        cause.Error(),
		}); err != nil {
			r.logger().Error("record anomaly failed", zap.Error(err))
		}
	}
	return r.destroyWith(ctx, session, cause)
}

func (r *SessionRegistry) destroyOnDenial(ctx context.Context, session domain.Session, err error) error {
	denial, ok := domain.AsDenial(err)
	if !ok {
		return err
	}
	return r.destroyWith(ctx, session, denial)
}

// destroyWith destroys session and returns cause, or the fault when the
// destroy itself failed.
func (r *SessionRegistry) destroyWith(ctx context.Context, session domain.Session, cause *domain.Denial) error {
	reason := cause.Reason
	if reason == "" {
		reason = string(cause.Code)
	}
	if err := r.destroy(ctx, session, reason); err != nil {
		return err
	}
	return cause
}

func (r *SessionRegistry) destroy(ctx context.Context, session domain.Session, reason string) error {
	if err := r.Sessions.Delete(ctx, session.AccessToken); err != nil {
		return domain.NewFault("destroy session", err)
	}
	if session.RefreshToken != "" {
		if err := r.Refresh.Delete(ctx, session.RefreshToken); err != nil {
			return domain.NewFault("destroy refresh token", err)
		}
	}
	r.logger().Info("session destroyed",
		zap.String("user_id", session.User.ID),
		zap.String("session", TokenFingerprint(session.AccessToken)),
		zap.String("reason", reason),
	)
	if r.Metrics != nil {
		r.Metrics.SessionDestroyed(reason)
	}
	return nil
}

func (r *SessionRegistry) ready() error {
	if r == nil {
		return errors.New("session registry is nil")
	}
	if r.Sessions == nil || r.Refresh == nil {
		return errors.New("session stores are required")
	}
	if r.Authority == nil || r.Bindings == nil {
		return errors.New("session registry requires an authority and binding store")
	}
	return nil
}

func (r *SessionRegistry) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *SessionRegistry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// TokenFingerprint is the only form of a token that may be logged.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

func terminalDenial(state domain.SessionState) *domain.Denial {
	if state == domain.SessionAbsoluteExpired {
		return domain.ErrSessionAbsoluteTimeout
	}
	return domain.ErrSessionIdleTimeout
}

func bindingMismatch(reason string) *domain.Denial {
	return domain.Deny(domain.DenialBindingMismatch, reason, domain.ErrBindingMismatch.Message)
}

func anomalyKindFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrCertificateRevoked):
		return domain.AnomalyRevokedCertificate
	case errors.Is(err, domain.ErrBindingMismatch):
		return domain.AnomalyBindingMismatch
	default:
		return domain.AnomalyInvalidCertificate
	}
}

func equalStrings(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func capAt(t, limit time.Time) time.Time {
	if t.After(limit) {
		return limit
	}
	return t
}
