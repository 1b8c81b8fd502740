package soft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
)

type RotationManager struct {
	keys  *Manager
	clock func() time.Time
}

func NewRotationManager(keys *Manager) *RotationManager {
	return &RotationManager{keys: keys, clock: time.Now}
}

// Rotate retires the current key of kind and installs a fresh one. The
// cached keyring switches only after the new key is persisted.
func (r *RotationManager) Rotate(ctx context.Context, kind domain.CAKeyKind) (domain.CAKeyRotation, error) {
	if r == nil || r.keys == nil {
		return domain.CAKeyRotation{}, errors.New("ca keyring is required")
	}
	if !kind.Valid() {
		return domain.CAKeyRotation{}, fmt.Errorf("unsupported ca key kind %q", kind)
	}
	if err := r.keys.Load(ctx); err != nil {
		return domain.CAKeyRotation{}, err
	}
	next, err := r.keys.generate(kind)
	if err != nil {
		return domain.CAKeyRotation{}, err
	}

	m := r.keys
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.pairs[kind]
	now := r.clock().UTC()
	retiredPath, err := m.store.Retire(ctx, kind, now.Unix())
	if err != nil {
		return domain.CAKeyRotation{}, fmt.Errorf("retire %s ca key: %w", kind, err)
	}
	if err := m.store.Save(ctx, kind, next.Private); err != nil {
		return domain.CAKeyRotation{}, fmt.Errorf("persist rotated %s ca key: %w", kind, err)
	}
	m.pairs[kind] = next
	return domain.CAKeyRotation{
		Kind:           kind,
		OldFingerprint: crypto.Fingerprint(previous.Public),
		NewFingerprint: crypto.Fingerprint(next.Public),
		RetiredPath:    retiredPath,
		RotatedAt:      now,
	}, nil
}
