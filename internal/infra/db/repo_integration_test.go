//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

func TestAuditLedgerConcurrentAppendsStayChained(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	rec := usecase.NewAuditRecorder(NewAuditLedgerRepositories(db), crypto.NewService(), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.RecordRequest(ctx, domain.RequestRecord{UserID: "alice", Action: "login", Status: 200, Outcome: "success"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	report, err := rec.VerifyChain(ctx, domain.AuditChainRequests)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 8, report.Entries)
}

func TestRevocationRepositoryIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRevocationRepository(db)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, added, err := repo.Add(ctx, domain.RevocationEntry{CertificateID: "c-1", Reason: "compromised", RevokedAt: at, RequestedBy: "admin"})
	require.NoError(t, err)
	assert.True(t, added)
	stored, added, err := repo.Add(ctx, domain.RevocationEntry{CertificateID: "c-1", Reason: "other", RevokedAt: at.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, "compromised", stored.Reason)

	list, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, list.Contains("c-1"))
}

func TestDeviceBindingRepositoryUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewDeviceBindingRepository(db)

	require.NoError(t, repo.StoreBinding(ctx, "alice", "one"))
	require.NoError(t, repo.StoreBinding(ctx, "alice", "two"))
	secret, ok, err := repo.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", secret)

	require.NoError(t, repo.DeleteSecret(ctx, "alice"))
	_, ok, err = repo.GetSecret(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CERTAUTH_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("CERTAUTH_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(dsn, nil)
	require.NoError(t, err)
	lockTestDB(t, store.DB)
	require.NoError(t, store.DB.Exec("TRUNCATE audit_entries, audit_chain_heads, device_bindings, certificate_revocations").Error)
	return store.DB
}

func lockTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	conn, err := sqlDB.Conn(context.Background())
	require.NoError(t, err)
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(424242)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(424242)")
		_ = conn.Close()
	})
}
