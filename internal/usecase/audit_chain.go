package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
)

// Canonicalizer produces the hashed form of an audit body.
type Canonicalizer interface {
	CanonicalJSON(v any) ([]byte, error)
}

// ChainReport describes a replay of one store from GENESIS. Mismatches lists
// every index whose stored entry_hash differs from the recomputed chain.
type ChainReport struct {
	Chain        domain.AuditChain `json:"chain"`
	Entries      int               `json:"entries"`
	Valid        bool              `json:"valid"`
	FirstInvalid int               `json:"first_invalid"`
	Mismatches   []int             `json:"mismatches,omitempty"`
}

// ComputeEntryHash is hex(SHA-256(prev || canonical(body))) with GENESIS
// standing in for an empty prev.
func ComputeEntryHash(canon Canonicalizer, prevHash string, body map[string]any) (string, error) {
	if canon == nil {
		return "", errors.New("canonicalizer required")
	}
	if prevHash == "" {
		prevHash = domain.AuditGenesis
	}
	canonical, err := canon.CanonicalJSON(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize audit body: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyAuditChain replays the store. Each recomputed hash feeds the next, so
// tampering at i also breaks every later index.
func VerifyAuditChain(ctx context.Context, store LedgerStore, canon Canonicalizer, chain domain.AuditChain) (ChainReport, error) {
	if store == nil {
		return ChainReport{}, errors.New("audit store required")
	}
	if !chain.Chained() {
		return ChainReport{}, fmt.Errorf("audit store %q is not hash chained", chain)
	}
	entries, err := store.ReadAll(ctx)
	if err != nil {
		return ChainReport{}, domain.NewFault("read audit chain", err)
	}

	report := ChainReport{Chain: chain, Entries: len(entries), Valid: true, FirstInvalid: -1}
	prev := domain.AuditGenesis
	for i, entry := range entries {
		expected, err := ComputeEntryHash(canon, prev, entry.Body())
		if err != nil {
			return ChainReport{}, fmt.Errorf("audit chain index %d: %w", i, err)
		}
		if entry.PrevHash != prev || entry.EntryHash != expected {
			report.Mismatches = append(report.Mismatches, i)
			if report.Valid {
				report.Valid = false
				report.FirstInvalid = i
			}
		}
		prev = expected
	}
	return report, nil
}
