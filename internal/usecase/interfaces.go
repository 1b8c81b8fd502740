package usecase

import (
	"context"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

// KVStore backs the challenge and session tables. Expiry is advisory: Get
// may return an entry past expiresAt and callers re-check their own
// deadlines.
type KVStore[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Put(ctx context.Context, key string, value T, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	// Take removes the entry and returns it. Two concurrent Takes of the
	// same key never both succeed.
	Take(ctx context.Context, key string) (T, bool, error)
	// Update applies fn to the stored value and writes the result back only
	// if the key still exists, keeping its deadline. It reports false when
	// the key is gone. An error from fn aborts the write.
	Update(ctx context.Context, key string, fn func(T) (T, error)) (T, bool, error)
	ScanExpired(ctx context.Context, now time.Time) ([]string, error)
	Range(ctx context.Context, fn func(key string, value T) bool) error
}

// LedgerStore is one append-only audit store. build receives the entry_hash
// of the current tail ("" when empty) while the store's writer lock is held.
type LedgerStore interface {
	Append(ctx context.Context, build func(prevHash string) (domain.AuditEntry, error)) (domain.AuditEntry, error)
	ReadAll(ctx context.Context) ([]domain.AuditEntry, error)
}

type DeviceBindingStore interface {
	StoreBinding(ctx context.Context, userID, deviceSecret string) error
	GetSecret(ctx context.Context, userID string) (string, bool, error)
	DeleteSecret(ctx context.Context, userID string) error
}

// RevocationRepository is the persisted CRL. Add is idempotent and returns
// the stored entry with added=false when the id was already present.
type RevocationRepository interface {
	Load(ctx context.Context) (domain.CRL, error)
	Add(ctx context.Context, entry domain.RevocationEntry) (stored domain.RevocationEntry, added bool, err error)
}

type RevocationList interface {
	Revoke(ctx context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, error)
	IsRevoked(ctx context.Context, certificateID string) (bool, error)
	Entry(ctx context.Context, certificateID string) (domain.RevocationEntry, bool, error)
}

// CertificateVault returns domain.ErrNotFound for unknown identities or
// generations and wraps decrypt and format failures in domain.ErrVault.
type CertificateVault interface {
	Store(ctx context.Context, cert domain.Certificate, plaintext []byte) error
	Load(ctx context.Context, role domain.Role, userID string) ([]byte, error)
	LoadGeneration(ctx context.Context, role domain.Role, userID string, generation int) ([]byte, error)
	Generations(ctx context.Context, role domain.Role, userID string) (int, error)
}

type CAKeyManager interface {
	Sign(ctx context.Context, kind domain.CAKeyKind, payload []byte) ([]byte, error)
	PublicKeys(ctx context.Context) (domain.CAPublicKeys, error)
}

type CAKeyRotationManager interface {
	Rotate(ctx context.Context, kind domain.CAKeyKind) (domain.CAKeyRotation, error)
}

// CertificateCodec owns the plaintext form, the signable bytes and client
// key normalization.
type CertificateCodec interface {
	Canonicalizer
	CanonicalCertificatePayload(cert domain.Certificate) ([]byte, error)
	MarshalCertificate(cert domain.Certificate) ([]byte, error)
	ParseCertificate(data []byte) (domain.Certificate, error)
	NormalizeRSAPublicKey(input []byte) ([]byte, error)
	ValidateMLKEMPublicKey(pub []byte) error
	ValidateMLDSAPublicKey(pub []byte) error
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.ActionPolicyInput) (domain.PolicyEvaluation, error)
}

// Metrics is optional everywhere; a nil Metrics records nothing.
type Metrics interface {
	CertificateVerified(outcome string)
	CertificateIssued(role domain.Role)
	LoginCompleted(outcome string)
	SessionDestroyed(reason string)
	AuditAppended(chain domain.AuditChain)
}
