package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	sessionKeyInfo   = "certauth session key v1"
	sessionKeyLength = 32

	metadataSession = "session"
)

type BeginLoginRequest struct {
	Certificate        []byte
	Purpose            domain.ChallengePurpose
	LegacyDeviceSecret string
	Metadata           map[string]string
	BindingContext     map[string]string
	RemoteAddr         string
}

// DeviceProof answers a challenge nonce: HMAC-SHA-256 keyed by the device
// secret plus the client's RSA-PSS and, when enrolled, ML-DSA signatures.
type DeviceProof struct {
	HMAC         []byte
	RSASignature []byte
	PQSignature  []byte
}

type CompleteLoginRequest struct {
	Token      string
	Purpose    domain.ChallengePurpose
	Proof      DeviceProof
	RemoteAddr string
}

type LoginResult struct {
	Session       domain.Session
	KEMCiphertext []byte
}

type LoginService struct {
	Authority  *CertificateAuthority
	Challenges *ChallengeManager
	Sessions   *SessionRegistry
	Bindings   DeviceBindingStore
	Crypto     domain.CryptoProvider
	Audit      *AuditRecorder
	Metrics    Metrics
	Logger     *zap.Logger
}

func (s *LoginService) BeginLogin(ctx context.Context, req BeginLoginRequest) (domain.IssuedChallenge, error) {
	if err := s.ready(); err != nil {
		return domain.IssuedChallenge{}, err
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = domain.ChallengePurposeLogin
	}
	if purpose != domain.ChallengePurposeLogin && purpose != domain.ChallengePurposeQRLogin {
		return domain.IssuedChallenge{}, errors.New("login challenges are issued for login or qr_login only")
	}

	cert, err := s.Authority.VerifyPlaintext(ctx, req.Certificate)
	if err != nil {
		s.recordFailure(ctx, domain.Certificate{}, "login_challenge", req.RemoteAddr, err)
		return domain.IssuedChallenge{}, err
	}
	issued, err := s.Challenges.CreateChallenge(ctx, domain.ChallengeRequest{
		Certificate:        cert,
		LegacyDeviceSecret: req.LegacyDeviceSecret,
		Purpose:            purpose,
		Metadata:           req.Metadata,
		BindingContext:     req.BindingContext,
	})
	if err != nil {
		return domain.IssuedChallenge{}, err
	}
	s.record(ctx, domain.RequestRecord{
		UserID:        cert.UserID,
		Role:          string(cert.Role),
		Action:        "login_challenge",
		Outcome:       "issued",
		CertificateID: cert.CertificateID,
		RemoteAddr:    req.RemoteAddr,
	})
	return issued, nil
}

// CompleteLogin consumes the challenge before any other check so a failed
// attempt cannot be retried with the same nonce.
func (s *LoginService) CompleteLogin(ctx context.Context, req CompleteLoginRequest) (LoginResult, error) {
	if err := s.ready(); err != nil {
		return LoginResult{}, err
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = domain.ChallengePurposeLogin
	}
	challenge, err := s.Challenges.ConsumeFor(ctx, req.Token, purpose)
	if err != nil {
		s.recordFailure(ctx, domain.Certificate{}, "login", req.RemoteAddr, err)
		return LoginResult{}, s.finish(err)
	}

	cert, err := s.Authority.Verify(ctx, challenge.Certificate)
	if err != nil {
		s.recordFailure(ctx, challenge.Certificate, "login", req.RemoteAddr, err)
		return LoginResult{}, s.finish(err)
	}

	secret, legacy, err := s.deviceSecret(ctx, cert.UserID, challenge.LegacyDeviceSecret)
	if err != nil {
		s.recordFailure(ctx, cert, "login", req.RemoteAddr, err)
		return LoginResult{}, s.finish(err)
	}
	if err := s.verifyPossession(cert, secret, challenge.Nonce, req.Proof); err != nil {
		s.recordFailure(ctx, cert, "login", req.RemoteAddr, err)
		return LoginResult{}, s.finish(err)
	}

	ciphertext, sharedSecret, err := s.Crypto.Encapsulate(cert.MLKEMPublicKey)
	if err != nil {
		return LoginResult{}, s.finish(domain.NewFault("encapsulate session key", err))
	}
	sessionKey, err := s.Crypto.HKDF(sharedSecret, challenge.Nonce, []byte(sessionKeyInfo), sessionKeyLength)
	if err != nil {
		return LoginResult{}, s.finish(domain.NewFault("derive session key", err))
	}

	if legacy {
		if err := s.Bindings.StoreBinding(ctx, cert.UserID, secret); err != nil {
			return LoginResult{}, s.finish(domain.NewFault("persist legacy device binding", err))
		}
		s.logger().Info("legacy device secret migrated", zap.String("user_id", cert.UserID))
	}

	session, err := s.Sessions.CreateSession(ctx, NewSession{
		User:        domain.SessionUser{ID: cert.UserID, Name: cert.Owner, Role: cert.Role},
		Certificate: cert,
		Binding:     domain.SessionBinding{DeviceID: cert.DeviceID, CertHash: cert.CertHash, Role: cert.Role},
		SessionKey:  sessionKey,
	})
	if err != nil {
		return LoginResult{}, s.finish(err)
	}

	s.record(ctx, domain.RequestRecord{
		UserID:             cert.UserID,
		Role:               string(cert.Role),
		Action:             "login",
		Outcome:            "success",
		CertificateID:      cert.CertificateID,
		SessionFingerprint: TokenFingerprint(session.AccessToken),
		RemoteAddr:         req.RemoteAddr,
	})
	return LoginResult{Session: session, KEMCiphertext: ciphertext}, s.finish(nil)
}

// BeginReverify issues a reverify challenge tied to the calling session.
func (s *LoginService) BeginReverify(ctx context.Context, accessToken string) (domain.IssuedChallenge, error) {
	if err := s.ready(); err != nil {
		return domain.IssuedChallenge{}, err
	}
	if _, err := s.Sessions.EnforceSessionState(ctx, accessToken, false); err != nil {
		return domain.IssuedChallenge{}, err
	}
	session, err := s.Sessions.ValidateSessionCertificate(ctx, accessToken)
	if err != nil {
		return domain.IssuedChallenge{}, err
	}
	return s.Challenges.CreateChallenge(ctx, domain.ChallengeRequest{
		Certificate: session.Certificate,
		Purpose:     domain.ChallengePurposeReverify,
		Metadata:    map[string]string{metadataSession: TokenFingerprint(accessToken)},
	})
}

func (s *LoginService) CompleteReverify(ctx context.Context, accessToken string, req CompleteLoginRequest) (domain.Session, error) {
	if err := s.ready(); err != nil {
		return domain.Session{}, err
	}
	challenge, err := s.Challenges.ConsumeFor(ctx, req.Token, domain.ChallengePurposeReverify)
	if err != nil {
		return domain.Session{}, err
	}
	if challenge.Metadata[metadataSession] != TokenFingerprint(accessToken) {
		return domain.Session{}, domain.ErrChallengeExpired
	}
	if _, err := s.Sessions.EnforceSessionState(ctx, accessToken, false); err != nil {
		return domain.Session{}, err
	}
	session, err := s.Sessions.ValidateSessionCertificate(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	secret, _, err := s.deviceSecret(ctx, session.User.ID, "")
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.verifyPossession(session.Certificate, secret, challenge.Nonce, req.Proof); err != nil {
		s.recordFailure(ctx, session.Certificate, "reverify", req.RemoteAddr, err)
		return domain.Session{}, s.Sessions.destroyOnDenial(ctx, session, err)
	}
	updated, err := s.Sessions.MarkReverified(ctx, accessToken)
	if err != nil {
		return domain.Session{}, err
	}
	s.record(ctx, domain.RequestRecord{
		UserID:             session.User.ID,
		Role:               string(session.User.Role),
		Action:             "reverify",
		Outcome:            "success",
		CertificateID:      session.Certificate.CertificateID,
		SessionFingerprint: TokenFingerprint(accessToken),
		RemoteAddr:         req.RemoteAddr,
	})
	return updated, nil
}

// deviceSecret prefers the binding store and falls back to a legacy secret
// carried by the challenge.
func (s *LoginService) deviceSecret(ctx context.Context, userID, legacySecret string) (string, bool, error) {
	secret, ok, err := s.Bindings.GetSecret(ctx, userID)
	if err != nil {
		return "", false, domain.NewFault("load device binding", err)
	}
	if ok {
		return secret, false, nil
	}
	if legacySecret != "" {
		return legacySecret, true, nil
	}
	return "", false, bindingMismatch(domain.ReasonDevice)
}

func (s *LoginService) verifyPossession(cert domain.Certificate, secret string, nonce []byte, proof DeviceProof) error {
	if !equalStrings(s.Authority.DeriveDeviceID(secret), cert.DeviceID) {
		return bindingMismatch(domain.ReasonDevice)
	}
	if !hmac.Equal(DeviceProofMAC(secret, nonce), proof.HMAC) {
		return domain.ErrDeviceProofInvalid
	}
	if err := s.Crypto.VerifyClassical(cert.RSAPublicKey, nonce, proof.RSASignature); err != nil {
		return domain.Deny(domain.DenialDeviceProofInvalid, "rsa_signature", domain.ErrDeviceProofInvalid.Message)
	}
	if cert.HasPQKey() {
		if err := s.Crypto.VerifyPQ(cert.PQPublicKey, nonce, proof.PQSignature); err != nil {
			return domain.Deny(domain.DenialDeviceProofInvalid, "pq_signature", domain.ErrDeviceProofInvalid.Message)
		}
	}
	return nil
}

// DeviceProofMAC is what an enrolled device sends back for nonce.
func DeviceProofMAC(deviceSecret string, nonce []byte) []byte {
	mac := hmac.New(sha256.New, []byte(deviceSecret))
	mac.Write(nonce)
	return mac.Sum(nil)
}

func (s *LoginService) recordFailure(ctx context.Context, cert domain.Certificate, action, remoteAddr string, cause error) {
	outcome := "fault"
	detail := "internal error"
	if d, ok := domain.AsDenial(cause); ok {
		outcome = "denied"
		detail = d.Error()
	}
	s.record(ctx, domain.RequestRecord{
		UserID:        cert.UserID,
		Role:          string(cert.Role),
		Action:        action,
		Outcome:       outcome,
		CertificateID: cert.CertificateID,
		RemoteAddr:    remoteAddr,
		Detail:        detail,
	})
	if outcome != "denied" || s.Audit == nil {
		return
	}
	kind := anomalyKindFor(cause)
	switch {
	case errors.Is(cause, domain.ErrDeviceProofInvalid):
		kind = domain.AnomalyDeviceProofFailed
	case errors.Is(cause, domain.ErrChallengeExpired):
		kind = domain.AnomalyChallengeReplay
	}
	if _, err := s.Audit.RecordAnomaly(ctx, domain.AnomalyRecord{
		UserID:        cert.UserID,
		CertificateID: cert.CertificateID,
		Kind:          kind,
		Severity:      domain.AnomalySeverityMedium,
		Detail:        detail,
	}); err != nil {
		s.logger().Error("record anomaly failed", zap.Error(err))
	}
	s.logger().Warn("login denied",
		zap.String("user_id", cert.UserID),
		zap.String("action", action),
		zap.String("detail", detail),
	)
}

func (s *LoginService) record(ctx context.Context, rec domain.RequestRecord) {
	if s.Audit == nil {
		return
	}
	if _, err := s.Audit.RecordRequest(ctx, rec); err != nil {
		s.logger().Error("record request failed", zap.Error(err))
	}
}

func (s *LoginService) finish(err error) error {
	if s.Metrics != nil {
		s.Metrics.LoginCompleted(verifyOutcome(err))
	}
	return err
}

func (s *LoginService) ready() error {
	if s == nil || s.Authority == nil || s.Challenges == nil || s.Sessions == nil || s.Bindings == nil || s.Crypto == nil {
		return errors.New("login service is not fully configured")
	}
	return nil
}

func (s *LoginService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
