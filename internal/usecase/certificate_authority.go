package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const (
	deviceSecretBytes   = 32
	lineagePrefixLength = 32
	maxValidityDays     = 3650
)

type CertificateAuthority struct {
	Keys     CAKeyManager
	Rotation *KeyRotationService
	Crypto   domain.CryptoProvider
	Codec    CertificateCodec
	Vault    CertificateVault
	Bindings DeviceBindingStore
	CRL      RevocationList
	Audit    *AuditRecorder
	Metrics  Metrics
	Logger   *zap.Logger
	Clock    Clock
	CRLURL   string
	NewID    func() string

	revokeMu   sync.Mutex
	issueLocks sync.Map
}

// lockIdentity serialises issuance per identity from the generation count
// through the vault write, so generations are assigned without gaps or
// collisions.
func (a *CertificateAuthority) lockIdentity(role domain.Role, userID string) func() {
	v, _ := a.issueLocks.LoadOrStore(string(role)+"/"+userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (a *CertificateAuthority) Issue(ctx context.Context, req domain.IssueRequest) (domain.IssuedBundle, error) {
	if err := a.ready(); err != nil {
		return domain.IssuedBundle{}, err
	}
	if err := validateIdentity(req.UserID, req.FullName); err != nil {
		return domain.IssuedBundle{}, err
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return domain.IssuedBundle{}, err
	}
	actions, _ := domain.AllowedActions(role)
	if req.ValidityDays <= 0 || req.ValidityDays > maxValidityDays {
		return domain.IssuedBundle{}, fmt.Errorf("validity_days must be between 1 and %d", maxValidityDays)
	}
	rsaKey, err := a.Codec.NormalizeRSAPublicKey(req.RSAPublicKey)
	if err != nil {
		return domain.IssuedBundle{}, fmt.Errorf("client rsa public key: %w", err)
	}
	if len(req.MLKEMPublicKey) == 0 {
		return domain.IssuedBundle{}, errors.New("client ml-kem public key is required")
	}
	if err := a.Codec.ValidateMLKEMPublicKey(req.MLKEMPublicKey); err != nil {
		return domain.IssuedBundle{}, fmt.Errorf("client ml-kem public key: %w", err)
	}
	if len(req.PQPublicKey) > 0 {
		if err := a.Codec.ValidateMLDSAPublicKey(req.PQPublicKey); err != nil {
			return domain.IssuedBundle{}, fmt.Errorf("client pq public key: %w", err)
		}
	}
	secret := strings.TrimSpace(req.DeviceSecret)
	if secret == "" {
		if secret, err = newDeviceSecret(); err != nil {
			return domain.IssuedBundle{}, domain.NewFault("generate device secret", err)
		}
	}

	caKeys, err := a.Keys.PublicKeys(ctx)
	if err != nil {
		return domain.IssuedBundle{}, domain.NewFault("load ca public keys", err)
	}
	unlock := a.lockIdentity(role, req.UserID)
	defer unlock()
	prior, err := a.Vault.Generations(ctx, role, req.UserID)
	if err != nil {
		return domain.IssuedBundle{}, domain.NewFault("count certificate generations", err)
	}
	generation := prior + 1

	now := a.now().UTC().Truncate(time.Second)
	cert := domain.Certificate{
		CertificateID:  a.newID(),
		UserID:         req.UserID,
		Owner:          strings.TrimSpace(req.FullName),
		Role:           role,
		AllowedActions: actions,
		LineageID:      a.lineageID(caKeys.Classical, generation),
		Generation:     generation,
		RSAPublicKey:   rsaKey,
		PQPublicKey:    req.PQPublicKey,
		MLKEMPublicKey: req.MLKEMPublicKey,
		ValidFrom:      now,
		ValidTo:        now.AddDate(0, 0, req.ValidityDays),
		IssuedAt:       now,
		DeviceID:       a.DeriveDeviceID(secret),
		CRLURL:         a.CRLURL,
		Descriptors:    domain.ExpectedDescriptors(),
	}

	payload, err := a.Codec.CanonicalCertificatePayload(cert)
	if err != nil {
		return domain.IssuedBundle{}, err
	}
	cert.CertHash = hex.EncodeToString(a.Crypto.Hash(payload))
	message := signedMessage(payload, cert.CertHash)
	if cert.RSASignature, err = a.Keys.Sign(ctx, domain.CAKeyClassical, message); err != nil {
		return domain.IssuedBundle{}, domain.NewFault("sign certificate (classical)", err)
	}
	if cert.PQSignature, err = a.Keys.Sign(ctx, domain.CAKeyPQ, message); err != nil {
		return domain.IssuedBundle{}, domain.NewFault("sign certificate (pq)", err)
	}

	plaintext, err := a.Codec.MarshalCertificate(cert)
	if err != nil {
		return domain.IssuedBundle{}, err
	}
	if err := a.Vault.Store(ctx, cert, plaintext); err != nil {
		return domain.IssuedBundle{}, domain.NewFault("store certificate", err)
	}
	if a.Bindings != nil {
		if err := a.Bindings.StoreBinding(ctx, cert.UserID, secret); err != nil {
			return domain.IssuedBundle{}, domain.NewFault("store device binding", err)
		}
	}

	a.logger().Info("certificate issued",
		zap.String("certificate_id", cert.CertificateID),
		zap.String("user_id", cert.UserID),
		zap.String("role", string(role)),
		zap.Int("generation", generation),
	)
	if a.Metrics != nil {
		a.Metrics.CertificateIssued(role)
	}
	if err := a.recordRequest(ctx, domain.RequestRecord{
		UserID:        cert.UserID,
		Role:          string(role),
		Action:        domain.ActionIssueCertificate,
		Outcome:       "issued",
		CertificateID: cert.CertificateID,
		Detail:        "generation " + strconv.Itoa(generation),
	}); err != nil {
		return domain.IssuedBundle{}, err
	}

	return domain.IssuedBundle{
		Certificate:  cert,
		Plaintext:    plaintext,
		DeviceSecret: secret,
		CertHash:     cert.CertHash,
	}, nil
}

// Verify runs every check in a fixed order and stops at the first failure.
func (a *CertificateAuthority) Verify(ctx context.Context, cert domain.Certificate) (domain.Certificate, error) {
	verified, err := a.verify(ctx, cert)
	if a.Metrics != nil {
		a.Metrics.CertificateVerified(verifyOutcome(err))
	}
	return verified, err
}

func (a *CertificateAuthority) VerifyPlaintext(ctx context.Context, plaintext []byte) (domain.Certificate, error) {
	if err := a.ready(); err != nil {
		return domain.Certificate{}, err
	}
	cert, err := a.Codec.ParseCertificate(plaintext)
	if err != nil {
		if a.Metrics != nil {
			a.Metrics.CertificateVerified(domain.ReasonMalformed)
		}
		return domain.Certificate{}, domain.ErrCertificateMalformed
	}
	return a.Verify(ctx, cert)
}

func (a *CertificateAuthority) verify(ctx context.Context, cert domain.Certificate) (domain.Certificate, error) {
	if err := a.ready(); err != nil {
		return domain.Certificate{}, err
	}
	if len(cert.RSASignature) == 0 || len(cert.PQSignature) == 0 {
		return domain.Certificate{}, domain.ErrCertificateSignatureInvalid
	}

	payload, err := a.Codec.CanonicalCertificatePayload(cert)
	if err != nil {
		return domain.Certificate{}, domain.ErrCertificateMalformed
	}
	expectedHash := hex.EncodeToString(a.Crypto.Hash(payload))
	if subtle.ConstantTimeCompare([]byte(expectedHash), []byte(cert.CertHash)) != 1 {
		return domain.Certificate{}, domain.ErrCertificateHashMismatch
	}

	if cert.Descriptors != domain.ExpectedDescriptors() {
		return domain.Certificate{}, domain.ErrCertificatePolicyMismatch
	}
	expectedActions, ok := domain.AllowedActions(cert.Role)
	if !ok || expectedActions != cert.AllowedActions {
		return domain.Certificate{}, domain.ErrCertificatePolicyMismatch
	}

	caKeys, err := a.Keys.PublicKeys(ctx)
	if err != nil {
		return domain.Certificate{}, domain.NewFault("load ca public keys", err)
	}
	message := signedMessage(payload, cert.CertHash)
	if err := a.Crypto.VerifyClassical(caKeys.Classical, message, cert.RSASignature); err != nil {
		return domain.Certificate{}, domain.ErrCertificateSignatureInvalid
	}
	if err := a.Crypto.VerifyPQ(caKeys.PQ, message, cert.PQSignature); err != nil {
		return domain.Certificate{}, domain.ErrCertificateSignatureInvalid
	}

	now := a.now()
	if now.Before(cert.ValidFrom) {
		return domain.Certificate{}, domain.ErrCertificateNotYetValid
	}
	if now.After(cert.ValidTo) {
		return domain.Certificate{}, domain.ErrCertificateExpired
	}

	revoked, err := a.IsRevoked(ctx, cert.CertificateID)
	if err != nil {
		return domain.Certificate{}, err
	}
	if revoked {
		return domain.Certificate{}, domain.ErrCertificateRevoked
	}
	return cert, nil
}

// Revoke is idempotent: repeated calls return the first entry unchanged.
func (a *CertificateAuthority) Revoke(ctx context.Context, certificateID, reason, requestedBy string) (domain.RevocationEntry, error) {
	if a == nil || a.CRL == nil {
		return domain.RevocationEntry{}, errors.New("revocation list is required")
	}
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return domain.RevocationEntry{}, errors.New("certificate_id is required")
	}
	if reason == "" {
		reason = "unspecified"
	}

	a.revokeMu.Lock()
	defer a.revokeMu.Unlock()
	entry, err := a.CRL.Revoke(ctx, domain.RevocationEntry{
		CertificateID: certificateID,
		Reason:        reason,
		RevokedAt:     a.now().UTC(),
		RequestedBy:   requestedBy,
	})
	if err != nil {
		return domain.RevocationEntry{}, domain.NewFault("revoke certificate", err)
	}

	a.logger().Warn("certificate revoked",
		zap.String("certificate_id", certificateID),
		zap.String("reason", entry.Reason),
		zap.String("requested_by", entry.RequestedBy),
	)
	if err := a.recordRequest(ctx, domain.RequestRecord{
		UserID:        requestedBy,
		Action:        domain.ActionRevokeCertificate,
		Outcome:       "revoked",
		CertificateID: certificateID,
		Detail:        entry.Reason,
	}); err != nil {
		return domain.RevocationEntry{}, err
	}
	return entry, nil
}

func (a *CertificateAuthority) IsRevoked(ctx context.Context, certificateID string) (bool, error) {
	if a == nil || a.CRL == nil {
		return false, errors.New("revocation list is required")
	}
	revoked, err := a.CRL.IsRevoked(ctx, certificateID)
	if err != nil {
		return false, domain.NewFault("read revocation list", err)
	}
	return revoked, nil
}

func (a *CertificateAuthority) RevocationEntry(ctx context.Context, certificateID string) (domain.RevocationEntry, bool, error) {
	if a == nil || a.CRL == nil {
		return domain.RevocationEntry{}, false, errors.New("revocation list is required")
	}
	entry, ok, err := a.CRL.Entry(ctx, certificateID)
	if err != nil {
		return domain.RevocationEntry{}, false, domain.NewFault("read revocation list", err)
	}
	return entry, ok, nil
}

// RotateCAKeys invalidates every certificate signed by the old key material.
func (a *CertificateAuthority) RotateCAKeys(ctx context.Context, kind domain.CAKeyKind, requestedBy string) (domain.CAKeyRotation, error) {
	if a == nil || a.Rotation == nil {
		return domain.CAKeyRotation{}, errors.New("key rotation service is required")
	}
	return a.Rotation.Rotate(ctx, kind, requestedBy)
}

// DeriveDeviceID is hex(SHA-256(device_secret)).
func (a *CertificateAuthority) DeriveDeviceID(deviceSecret string) string {
	return hex.EncodeToString(a.Crypto.Hash([]byte(deviceSecret)))
}

// LoadCertificate returns the latest stored generation for role and user.
func (a *CertificateAuthority) LoadCertificate(ctx context.Context, role domain.Role, userID string) (domain.Certificate, []byte, error) {
	if err := a.ready(); err != nil {
		return domain.Certificate{}, nil, err
	}
	plaintext, err := a.Vault.Load(ctx, role, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Certificate{}, nil, domain.ErrCertificateNotFound
		}
		return domain.Certificate{}, nil, domain.NewFault("load certificate", err)
	}
	cert, err := a.Codec.ParseCertificate(plaintext)
	if err != nil {
		return domain.Certificate{}, nil, domain.NewFault("parse stored certificate", fmt.Errorf("%w: %v", domain.ErrVault, err))
	}
	return cert, plaintext, nil
}

func (a *CertificateAuthority) lineageID(caClassical []byte, generation int) string {
	digest := hex.EncodeToString(a.Crypto.Hash(caClassical))
	if len(digest) > lineagePrefixLength {
		digest = digest[:lineagePrefixLength]
	}
	return digest + ":" + strconv.Itoa(generation)
}

func signedMessage(payload []byte, certHash string) []byte {
	out := make([]byte, 0, len(payload)+len(certHash)+11)
	out = append(out, payload...)
	out = append(out, "cert_hash="...)
	out = append(out, certHash...)
	return append(out, '\n')
}

func validateIdentity(userID, fullName string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	for _, r := range userID {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.' || r == '@') {
			return fmt.Errorf("user_id contains unsupported character %q", r)
		}
	}
	if userID == "." || userID == ".." {
		return errors.New("user_id is reserved")
	}
	if strings.TrimSpace(fullName) == "" {
		return errors.New("full_name is required")
	}
	if strings.ContainsAny(fullName, "\r\n") {
		return errors.New("full_name must be a single line")
	}
	return nil
}

func newDeviceSecret() (string, error) {
	buf := make([]byte, deviceSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func verifyOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if d, ok := domain.AsDenial(err); ok {
		if d.Reason != "" {
			return d.Reason
		}
		return strings.ToLower(string(d.Code))
	}
	return "fault"
}

func (a *CertificateAuthority) recordRequest(ctx context.Context, rec domain.RequestRecord) error {
	if a.Audit == nil {
		return nil
	}
	_, err := a.Audit.RecordRequest(ctx, rec)
	return err
}

func (a *CertificateAuthority) ready() error {
	if a == nil {
		return errors.New("certificate authority is nil")
	}
	if a.Keys == nil || a.Crypto == nil || a.Codec == nil || a.Vault == nil {
		return errors.New("certificate authority is not fully configured")
	}
	return nil
}

func (a *CertificateAuthority) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a *CertificateAuthority) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a *CertificateAuthority) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
