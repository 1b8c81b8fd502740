package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

type AuditRecorder struct {
	Stores  map[domain.AuditChain]LedgerStore
	Canon   Canonicalizer
	Clock   Clock
	Metrics Metrics
	Logger  *zap.Logger
	NewID   func() string
}

func NewAuditRecorder(stores map[domain.AuditChain]LedgerStore, canon Canonicalizer, clock Clock, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{
		Stores: stores,
		Canon:  canon,
		Clock:  clock,
		Logger: logger,
		NewID:  uuid.NewString,
	}
}

func (r *AuditRecorder) RecordRequest(ctx context.Context, rec domain.RequestRecord) (domain.AuditEntry, error) {
	return r.append(ctx, domain.AuditChainRequests, rec.Fields())
}

func (r *AuditRecorder) RecordSignedIntent(ctx context.Context, rec domain.IntentRecord) (domain.AuditEntry, error) {
	return r.append(ctx, domain.AuditChainSignedIntents, rec.Fields())
}

func (r *AuditRecorder) RecordTransfer(ctx context.Context, rec domain.TransferRecord) (domain.AuditEntry, error) {
	return r.append(ctx, domain.AuditChainTransfers, rec.Fields())
}

func (r *AuditRecorder) RecordAnomaly(ctx context.Context, rec domain.AnomalyRecord) (domain.AuditEntry, error) {
	if rec.Severity == "" {
		rec.Severity = domain.AnomalySeverityMedium
	}
	return r.append(ctx, domain.AuditChainAnomalies, rec.Fields())
}

func (r *AuditRecorder) QueryRequestsByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	return r.query(ctx, domain.AuditChainRequests, "user_id", userID)
}

func (r *AuditRecorder) QueryIntentsByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	return r.query(ctx, domain.AuditChainSignedIntents, "user_id", userID)
}

// QueryTransfersByAccount matches either side of the transfer.
func (r *AuditRecorder) QueryTransfersByAccount(ctx context.Context, account string) ([]domain.AuditEntry, error) {
	entries, err := r.readAll(ctx, domain.AuditChainTransfers)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0)
	for _, entry := range entries {
		if entry.Field("from_account") == account || entry.Field("to_account") == account {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *AuditRecorder) QueryAnomaliesByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	return r.query(ctx, domain.AuditChainAnomalies, "user_id", userID)
}

func (r *AuditRecorder) VerifyChain(ctx context.Context, chain domain.AuditChain) (ChainReport, error) {
	store, err := r.store(chain)
	if err != nil {
		return ChainReport{}, err
	}
	report, err := VerifyAuditChain(ctx, store, r.Canon, chain)
	if err != nil {
		return ChainReport{}, err
	}
	if !report.Valid {
		r.logger().Warn("audit chain verification failed",
			zap.String("chain", string(chain)),
			zap.Int("first_invalid", report.FirstInvalid),
			zap.Int("mismatches", len(report.Mismatches)),
		)
	}
	return report, nil
}

func (r *AuditRecorder) append(ctx context.Context, chain domain.AuditChain, fields map[string]any) (domain.AuditEntry, error) {
	store, err := r.store(chain)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	for key := range fields {
		if domain.IsReservedAuditKey(key) {
			return domain.AuditEntry{}, fmt.Errorf("audit field %q is reserved", key)
		}
	}
	entry := domain.AuditEntry{
		EventID:   r.newID(),
		Timestamp: r.now().UTC().Format(domain.AuditTimestampLayout),
		Fields:    fields,
	}

	stored, err := store.Append(ctx, func(prevHash string) (domain.AuditEntry, error) {
		if !chain.Chained() {
			return entry, nil
		}
		if prevHash == "" {
			prevHash = domain.AuditGenesis
		}
		hash, err := ComputeEntryHash(r.Canon, prevHash, entry.Body())
		if err != nil {
			return domain.AuditEntry{}, err
		}
		entry.PrevHash = prevHash
		entry.EntryHash = hash
		return entry, nil
	})
	if err != nil {
		return domain.AuditEntry{}, domain.NewFault("append audit entry", err)
	}
	if r.Metrics != nil {
		r.Metrics.AuditAppended(chain)
	}
	return stored, nil
}

func (r *AuditRecorder) query(ctx context.Context, chain domain.AuditChain, key, value string) ([]domain.AuditEntry, error) {
	entries, err := r.readAll(ctx, chain)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0)
	for _, entry := range entries {
		if entry.Field(key) == value {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *AuditRecorder) readAll(ctx context.Context, chain domain.AuditChain) ([]domain.AuditEntry, error) {
	store, err := r.store(chain)
	if err != nil {
		return nil, err
	}
	entries, err := store.ReadAll(ctx)
	if err != nil {
		return nil, domain.NewFault("read audit entries", err)
	}
	return entries, nil
}

func (r *AuditRecorder) store(chain domain.AuditChain) (LedgerStore, error) {
	if r == nil {
		return nil, errors.New("audit recorder is nil")
	}
	if !chain.Valid() {
		return nil, fmt.Errorf("unknown audit store %q", chain)
	}
	store, ok := r.Stores[chain]
	if !ok || store == nil {
		return nil, fmt.Errorf("audit store %q not configured", chain)
	}
	return store, nil
}

func (r *AuditRecorder) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *AuditRecorder) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *AuditRecorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
