package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

type Clock func() time.Time

// KeyRotationService regenerates CA key material. Every certificate signed
// by the retired key stops verifying, so this is an operator action only.
type KeyRotationService struct {
	Manager CAKeyRotationManager
	Audit   *AuditRecorder
	Logger  *zap.Logger
	Clock   Clock
}

func NewKeyRotationService(manager CAKeyRotationManager, audit *AuditRecorder, logger *zap.Logger, clock Clock) *KeyRotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyRotationService{
		Manager: manager,
		Audit:   audit,
		Logger:  logger,
		Clock:   clock,
	}
}

func (s *KeyRotationService) Rotate(ctx context.Context, kind domain.CAKeyKind, requestedBy string) (domain.CAKeyRotation, error) {
	if s == nil || s.Manager == nil {
		return domain.CAKeyRotation{}, errors.New("ca key rotation manager is required")
	}
	if !kind.Valid() {
		return domain.CAKeyRotation{}, fmt.Errorf("unsupported ca key kind %q", kind)
	}
	rotation, err := s.Manager.Rotate(ctx, kind)
	if err != nil {
		return domain.CAKeyRotation{}, domain.NewFault("rotate ca key", err)
	}
	if rotation.RotatedAt.IsZero() {
		rotation.RotatedAt = s.now().UTC()
	}

	s.logger().Warn("ca key rotated",
		zap.String("kind", string(kind)),
		zap.String("old_fingerprint", rotation.OldFingerprint),
		zap.String("new_fingerprint", rotation.NewFingerprint),
		zap.String("requested_by", requestedBy),
	)
	if s.Audit != nil {
		_, err := s.Audit.RecordRequest(ctx, domain.RequestRecord{
			UserID:  requestedBy,
			Action:  domain.ActionRotateCAKeys,
			Outcome: "rotated",
			Detail:  string(kind) + ":" + rotation.NewFingerprint,
		})
		if err != nil {
			return rotation, err
		}
	}
	return rotation, nil
}

func (s *KeyRotationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *KeyRotationService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
