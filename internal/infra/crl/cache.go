package crl

import (
	"context"
	"errors"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

const (
	DefaultTTL  = 300 * time.Second
	snapshotKey = "crl"
)

// Cache serves revocation checks from a snapshot of the repository that is
// reloaded once its TTL lapses and after every successful revocation.
type Cache struct {
	repo   usecase.RevocationRepository
	logger *zap.Logger
	// Do not embed; the snapshot holds exactly one item.
	c *cache.Cache
	// revokeMu serialises read-modify-write revocations in this process.
	revokeMu sync.Mutex
}

func NewCache(repo usecase.RevocationRepository, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{repo: repo, logger: logger, c: cache.New(ttl, 2*ttl)}
}

// Revoke is idempotent. Revoking an already listed certificate returns the
// metadata recorded the first time.
func (c *Cache) Revoke(ctx context.Context, entry domain.RevocationEntry) (domain.RevocationEntry, error) {
	if c == nil || c.repo == nil {
		return domain.RevocationEntry{}, errors.New("revocation repository is required")
	}
	c.revokeMu.Lock()
	defer c.revokeMu.Unlock()
	stored, added, err := c.repo.Add(ctx, entry)
	if err != nil {
		return domain.RevocationEntry{}, err
	}
	if _, err := c.Refresh(ctx); err != nil {
		return domain.RevocationEntry{}, err
	}
	if added {
		c.logger.Info("certificate revoked",
			zap.String("certificate_id", stored.CertificateID),
			zap.String("reason", stored.Reason),
			zap.String("requested_by", stored.RequestedBy),
		)
	}
	return stored, nil
}

func (c *Cache) IsRevoked(ctx context.Context, certificateID string) (bool, error) {
	list, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return list.Contains(certificateID), nil
}

func (c *Cache) Entry(ctx context.Context, certificateID string) (domain.RevocationEntry, bool, error) {
	list, err := c.Snapshot(ctx)
	if err != nil {
		return domain.RevocationEntry{}, false, err
	}
	entry, ok := list.Entry(certificateID)
	return entry, ok, nil
}

// Snapshot returns the cached list, loading it when the TTL has lapsed.
// Callers must not mutate the result.
func (c *Cache) Snapshot(ctx context.Context) (domain.CRL, error) {
	if c == nil || c.repo == nil {
		return domain.CRL{}, errors.New("revocation repository is required")
	}
	if obj, ok := c.c.Get(snapshotKey); ok {
		return obj.(domain.CRL), nil
	}
	return c.Refresh(ctx)
}

func (c *Cache) Refresh(ctx context.Context) (domain.CRL, error) {
	list, err := c.repo.Load(ctx)
	if err != nil {
		return domain.CRL{}, err
	}
	c.c.SetDefault(snapshotKey, list)
	return list, nil
}

var _ usecase.RevocationList = (*Cache)(nil)
