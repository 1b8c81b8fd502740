package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// LedgerStore is one audit chain inside the shared audit_entries table.
type LedgerStore struct {
	db    *DB
	chain domain.AuditChain
}

func (d *DB) Ledger(chain domain.AuditChain) *LedgerStore {
	return &LedgerStore{db: d, chain: chain}
}

func (d *DB) LedgerStores() map[domain.AuditChain]usecase.LedgerStore {
	chains := append(domain.ChainedAuditChains(), domain.AuditChainAnomalies)
	out := make(map[domain.AuditChain]usecase.LedgerStore, len(chains))
	for _, chain := range chains {
		out[chain] = d.Ledger(chain)
	}
	return out
}

func (s *LedgerStore) Append(ctx context.Context, build func(prevHash string) (domain.AuditEntry, error)) (domain.AuditEntry, error) {
	if s == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	if err := s.db.ready(); err != nil {
		return domain.AuditEntry{}, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var (
		seq      int64
		prevHash string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, entry_hash FROM audit_entries WHERE chain = ? ORDER BY seq DESC LIMIT 1`,
		string(s.chain)).Scan(&seq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.AuditEntry{}, err
	}

	entry, err := build(prevHash)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_entries (chain, seq, event_id, timestamp, prev_hash, entry_hash, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(s.chain), seq+1, entry.EventID, entry.Timestamp, entry.PrevHash, entry.EntryHash, string(payload)); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.AuditEntry{}, err
	}
	return entry, nil
}

func (s *LedgerStore) ReadAll(ctx context.Context) ([]domain.AuditEntry, error) {
	if s == nil {
		return nil, errDBUnavailable
	}
	if err := s.db.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT payload FROM audit_entries WHERE chain = ? ORDER BY seq ASC`, string(s.chain))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ usecase.LedgerStore = (*LedgerStore)(nil)
