package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

func recorderOver(stores map[domain.AuditChain]usecase.LedgerStore) *usecase.AuditRecorder {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return usecase.NewAuditRecorder(stores, crypto.NewService(), func() time.Time { return now }, nil)
}

func TestFileStoreChainSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stores, err := OpenFileStores(dir, nil)
	require.NoError(t, err)
	rec := recorderOver(stores)

	for i := 0; i < 3; i++ {
		_, err := rec.RecordRequest(ctx, domain.RequestRecord{UserID: "alice", Action: "login", Status: 200, Outcome: "success"})
		require.NoError(t, err)
	}

	reopened, err := OpenFileStores(dir, nil)
	require.NoError(t, err)
	report, err := recorderOver(reopened).VerifyChain(ctx, domain.AuditChainRequests)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 3, report.Entries)

	entries, err := reopened[domain.AuditChainRequests].ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.AuditGenesis, entries[0].PrevHash)
	assert.Equal(t, entries[0].EntryHash, entries[1].PrevHash)
	assert.Equal(t, "200", entries[2].Field("status"))
}

func TestFileStoreDetectsTampering(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stores, err := OpenFileStores(dir, nil)
	require.NoError(t, err)
	rec := recorderOver(stores)
	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		_, err := rec.RecordTransfer(ctx, domain.TransferRecord{TransferID: "t-" + amount, FromAccount: "A", ToAccount: "B", Amount: amount, Currency: "USD", Status: "authorized"})
		require.NoError(t, err)
	}

	path := filepath.Join(dir, "transfers.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc []map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc[1]["amount"] = "2000.00"
	tampered, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0o600))

	report, err := rec.VerifyChain(ctx, domain.AuditChainTransfers)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.FirstInvalid)
	assert.Equal(t, []int{1, 2}, report.Mismatches)
}

func TestFileStoreQuarantinesCorruptLedger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "signed_intents.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o600))

	store := NewFileStore(path, nil)
	entries, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	rec := recorderOver(map[domain.AuditChain]usecase.LedgerStore{domain.AuditChainSignedIntents: store})
	entry, err := rec.RecordSignedIntent(ctx, domain.IntentRecord{UserID: "alice", IntentType: "transfer", Verified: true})
	require.NoError(t, err)
	assert.Equal(t, domain.AuditGenesis, entry.PrevHash)
}

func TestAnomalyStoreIsUnchained(t *testing.T) {
	ctx := context.Background()
	rec := recorderOver(NewMemoryStores())
	_, err := rec.RecordAnomaly(ctx, domain.AnomalyRecord{UserID: "bob", Kind: "device_proof_failed"})
	require.NoError(t, err)
	second, err := rec.RecordAnomaly(ctx, domain.AnomalyRecord{UserID: "bob", Kind: "challenge_replay"})
	require.NoError(t, err)
	assert.Empty(t, second.PrevHash)
	assert.Empty(t, second.EntryHash)

	found, err := rec.QueryAnomaliesByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestMemoryStoreReadAllIsACopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Append(ctx, func(prev string) (domain.AuditEntry, error) {
		assert.Empty(t, prev)
		return domain.AuditEntry{EventID: "e1", EntryHash: "h1"}, nil
	})
	require.NoError(t, err)
	_, err = m.Append(ctx, func(prev string) (domain.AuditEntry, error) {
		assert.Equal(t, "h1", prev)
		return domain.AuditEntry{EventID: "e2", EntryHash: "h2"}, nil
	})
	require.NoError(t, err)

	entries, err := m.ReadAll(ctx)
	require.NoError(t, err)
	entries[0].EventID = "changed"
	again, err := m.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e1", again[0].EventID)
}
