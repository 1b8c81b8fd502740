package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type DeviceBindingRepository struct {
	db *gorm.DB
}

func NewDeviceBindingRepository(db *gorm.DB) *DeviceBindingRepository {
	return &DeviceBindingRepository{db: db}
}

func (r *DeviceBindingRepository) StoreBinding(ctx context.Context, userID, deviceSecret string) error {
	if r == nil || r.db == nil {
		return errDBUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || deviceSecret == "" {
		return errors.New("user id and device secret are required")
	}
	model := DeviceBindingModel{
		UserID:       userID,
		DeviceSecret: deviceSecret,
		UpdatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"device_secret", "updated_at"}),
		}).
		Create(&model).Error
}

func (r *DeviceBindingRepository) GetSecret(ctx context.Context, userID string) (string, bool, error) {
	if r == nil || r.db == nil {
		return "", false, errDBUnavailable
	}
	var model DeviceBindingModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.DeviceSecret, true, nil
}

func (r *DeviceBindingRepository) DeleteSecret(ctx context.Context, userID string) error {
	if r == nil || r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Delete(&DeviceBindingModel{}).Error
}

var _ usecase.DeviceBindingStore = (*DeviceBindingRepository)(nil)
