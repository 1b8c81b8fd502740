package domain

import "time"

type CAKeyKind string

const (
	CAKeyClassical CAKeyKind = "classical"
	CAKeyPQ        CAKeyKind = "pq"
)

func (k CAKeyKind) Valid() bool {
	return k == CAKeyClassical || k == CAKeyPQ
}

// CAPublicKeys is the verification material for certificates: PKIX DER for
// the classical key, packed ML-DSA-65 for the PQ key.
type CAPublicKeys struct {
	Classical            []byte
	PQ                   []byte
	ClassicalFingerprint string
	PQFingerprint        string
}

type CAKeyRotation struct {
	Kind           CAKeyKind
	OldFingerprint string
	NewFingerprint string
	RetiredPath    string
	RotatedAt      time.Time
}
