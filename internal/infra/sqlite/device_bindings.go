package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type DeviceBindingStore struct {
	db  *DB
	now func() time.Time
}

func (d *DB) DeviceBindings() *DeviceBindingStore {
	return &DeviceBindingStore{db: d, now: time.Now}
}

func (s *DeviceBindingStore) StoreBinding(ctx context.Context, userID, deviceSecret string) error {
	if err := s.db.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || deviceSecret == "" {
		return errors.New("user id and device secret are required")
	}
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO device_bindings (user_id, device_secret, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET device_secret = excluded.device_secret, updated_at = excluded.updated_at`,
		userID, deviceSecret, s.now().UTC().Format(time.RFC3339))
	return err
}

func (s *DeviceBindingStore) GetSecret(ctx context.Context, userID string) (string, bool, error) {
	if err := s.db.ready(); err != nil {
		return "", false, err
	}
	var secret string
	err := s.db.db.QueryRowContext(ctx,
		`SELECT device_secret FROM device_bindings WHERE user_id = ?`, strings.TrimSpace(userID)).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}

func (s *DeviceBindingStore) DeleteSecret(ctx context.Context, userID string) error {
	if err := s.db.ready(); err != nil {
		return err
	}
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM device_bindings WHERE user_id = ?`, strings.TrimSpace(userID))
	return err
}

var _ usecase.DeviceBindingStore = (*DeviceBindingStore)(nil)
