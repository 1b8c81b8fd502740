package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

const destroyReasonDeviceReset = "device_reset"

// DeviceResetService forgets an identity's device secret and ends its
// sessions. The next login re-binds: either a newly issued certificate
// stores its secret, or the challenge carries a legacy secret that must
// derive the presented certificate's device_id.
type DeviceResetService struct {
	Bindings DeviceBindingStore
	Sessions *SessionRegistry
	Audit    *AuditRecorder
	Logger   *zap.Logger
}

func (s *DeviceResetService) Reset(ctx context.Context, userID, requestedBy string) (int, error) {
	if s == nil || s.Bindings == nil {
		return 0, errors.New("device binding store is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("user_id is required")
	}
	if err := s.Bindings.DeleteSecret(ctx, userID); err != nil {
		return 0, domain.NewFault("delete device binding", err)
	}
	destroyed := 0
	if s.Sessions != nil {
		n, err := s.Sessions.DestroyForUser(ctx, userID, destroyReasonDeviceReset)
		if err != nil {
			return 0, err
		}
		destroyed = n
	}
	s.logger().Warn("device binding reset",
		zap.String("user_id", userID),
		zap.String("requested_by", requestedBy),
		zap.Int("sessions_destroyed", destroyed),
	)
	if s.Audit != nil {
		if _, err := s.Audit.RecordRequest(ctx, domain.RequestRecord{
			UserID:  requestedBy,
			Action:  domain.ActionResetDeviceBinding,
			Outcome: "reset",
			Detail:  userID + ":" + strconv.Itoa(destroyed),
		}); err != nil {
			return destroyed, err
		}
	}
	return destroyed, nil
}

func (s *DeviceResetService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
