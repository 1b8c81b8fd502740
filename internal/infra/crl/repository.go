package crl

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// FileRepository persists the CRL as one JSON document. A document that
// fails to decode is quarantined and replaced by an empty list.
type FileRepository struct {
	path   string
	clock  func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

func NewFileRepository(path string, logger *zap.Logger) *FileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRepository{path: path, clock: time.Now, logger: logger}
}

func (r *FileRepository) Load(_ context.Context) (domain.CRL, error) {
	if r == nil || r.path == "" {
		return domain.CRL{}, errors.New("crl path is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *FileRepository) Add(_ context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, bool, error) {
	if r == nil || r.path == "" {
		return domain.RevocationEntry{}, false, errors.New("crl path is required")
	}
	if entry.CertificateID == "" {
		return domain.RevocationEntry{}, false, errors.New("certificate id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.read()
	if err != nil {
		return domain.RevocationEntry{}, false, err
	}
	stored, added := list.Add(entry)
	stored.CertificateID = entry.CertificateID
	if !added {
		return stored, false, nil
	}
	if err := filestore.WriteJSON(r.path, list); err != nil {
		return domain.RevocationEntry{}, false, err
	}
	return stored, true, nil
}

func (r *FileRepository) read() (domain.CRL, error) {
	list := domain.NewCRL()
	found, err := filestore.ReadJSON(r.path, &list, r.clock(), r.logger)
	if err != nil {
		return domain.CRL{}, err
	}
	if !found {
		return domain.NewCRL(), nil
	}
	return normalize(list), nil
}

// normalize rebuilds the id list from metadata so a hand-edited document with
// an id but no metadata still revokes.
func normalize(list domain.CRL) domain.CRL {
	out := domain.NewCRL()
	for id, entry := range list.Metadata {
		entry.CertificateID = id
		out.Add(entry)
	}
	for _, id := range list.Revoked {
		if id != "" && !out.Contains(id) {
			out.Add(domain.RevocationEntry{CertificateID: id, Reason: "unspecified"})
		}
	}
	return out
}

var _ usecase.RevocationRepository = (*FileRepository)(nil)
