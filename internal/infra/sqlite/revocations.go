package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type RevocationRepository struct {
	db *DB
}

func (d *DB) Revocations() *RevocationRepository {
	return &RevocationRepository{db: d}
}

func (r *RevocationRepository) Load(ctx context.Context) (domain.CRL, error) {
	if err := r.db.ready(); err != nil {
		return domain.CRL{}, err
	}
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT certificate_id, reason, revoked_at, requested_by FROM certificate_revocations ORDER BY certificate_id`)
	if err != nil {
		return domain.CRL{}, err
	}
	defer rows.Close() //nolint:errcheck

	list := domain.NewCRL()
	for rows.Next() {
		var (
			entry     domain.RevocationEntry
			revokedAt string
		)
		if err := rows.Scan(&entry.CertificateID, &entry.Reason, &revokedAt, &entry.RequestedBy); err != nil {
			return domain.CRL{}, err
		}
		entry.RevokedAt, _ = time.Parse(time.RFC3339, revokedAt)
		list.Add(entry)
	}
	return list, rows.Err()
}

// Add keeps the first revocation of an id; later calls return it unchanged.
func (r *RevocationRepository) Add(ctx context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, bool, error) {
	if err := r.db.ready(); err != nil {
		return domain.RevocationEntry{}, false, err
	}
	if entry.CertificateID == "" {
		return domain.RevocationEntry{}, false, errors.New("certificate id is required")
	}
	entry.RevokedAt = entry.RevokedAt.UTC().Truncate(time.Second)
	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO certificate_revocations (certificate_id, reason, revoked_at, requested_by)
		 VALUES (?, ?, ?, ?) ON CONFLICT (certificate_id) DO NOTHING`,
		entry.CertificateID, entry.Reason, entry.RevokedAt.Format(time.RFC3339), entry.RequestedBy)
	if err != nil {
		return domain.RevocationEntry{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.RevocationEntry{}, false, err
	}
	if affected == 1 {
		return entry, true, nil
	}
	list, err := r.Load(ctx)
	if err != nil {
		return domain.RevocationEntry{}, false, err
	}
	stored, _ := list.Entry(entry.CertificateID)
	return stored, false, nil
}

var _ usecase.RevocationRepository = (*RevocationRepository)(nil)
