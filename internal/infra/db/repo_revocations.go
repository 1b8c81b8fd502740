package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type RevocationRepository struct {
	db *gorm.DB
}

func NewRevocationRepository(db *gorm.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

func (r *RevocationRepository) Load(ctx context.Context) (domain.CRL, error) {
	if r == nil || r.db == nil {
		return domain.CRL{}, errDBUnavailable
	}
	var models []CertificateRevocationModel
	if err := r.db.WithContext(ctx).Order("certificate_id ASC").Find(&models).Error; err != nil {
		return domain.CRL{}, err
	}
	list := domain.NewCRL()
	for _, model := range models {
		list.Add(revocationFromModel(model))
	}
	return list, nil
}

func (r *RevocationRepository) Add(ctx context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, bool, error) {
	if r == nil || r.db == nil {
		return domain.RevocationEntry{}, false, errDBUnavailable
	}
	if entry.CertificateID == "" {
		return domain.RevocationEntry{}, false, errors.New("certificate id is required")
	}
	model := CertificateRevocationModel{
		CertificateID: entry.CertificateID,
		Reason:        entry.Reason,
		RevokedAt:     entry.RevokedAt.UTC().Truncate(time.Second),
		RequestedBy:   entry.RequestedBy,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return domain.RevocationEntry{}, false, res.Error
	}
	if res.RowsAffected == 1 {
		return revocationFromModel(model), true, nil
	}
	var existing CertificateRevocationModel
	if err := r.db.WithContext(ctx).
		Where("certificate_id = ?", entry.CertificateID).
		Take(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RevocationEntry{}, false, domain.ErrNotFound
		}
		return domain.RevocationEntry{}, false, err
	}
	return revocationFromModel(existing), false, nil
}

func revocationFromModel(model CertificateRevocationModel) domain.RevocationEntry {
	return domain.RevocationEntry{
		CertificateID: model.CertificateID,
		Reason:        model.Reason,
		RevokedAt:     model.RevokedAt.UTC(),
		RequestedBy:   model.RequestedBy,
	}
}

var _ usecase.RevocationRepository = (*RevocationRepository)(nil)
