package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to postgres and brings the schema up to date.
func NewStore(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &Store{DB: gdb}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	logger.Info("postgres store ready")
	return store, nil
}

func (s *Store) Migrate() error {
	if s == nil || s.DB == nil {
		return errDBUnavailable
	}
	if err := s.DB.AutoMigrate(
		&AuditChainHeadModel{},
		&AuditEntryModel{},
		&DeviceBindingModel{},
		&CertificateRevocationModel{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
