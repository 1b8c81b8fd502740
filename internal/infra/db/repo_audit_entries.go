package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

type AuditLedgerRepository struct {
	db    *gorm.DB
	chain domain.AuditChain
}

func NewAuditLedgerRepository(db *gorm.DB, chain domain.AuditChain) *AuditLedgerRepository {
	return &AuditLedgerRepository{db: db, chain: chain}
}

func NewAuditLedgerRepositories(db *gorm.DB) map[domain.AuditChain]usecase.LedgerStore {
	chains := append(domain.ChainedAuditChains(), domain.AuditChainAnomalies)
	out := make(map[domain.AuditChain]usecase.LedgerStore, len(chains))
	for _, chain := range chains {
		out[chain] = NewAuditLedgerRepository(db, chain)
	}
	return out
}

func (r *AuditLedgerRepository) Append(ctx context.Context, build func(prevHash string) (domain.AuditEntry, error)) (domain.AuditEntry, error) {
	if r == nil || r.db == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	var out domain.AuditEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := lockChainHead(tx, r.chain)
		if err != nil {
			return err
		}
		entry, err := build(head.EntryHash)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		model := AuditEntryModel{
			Chain:     string(r.chain),
			Seq:       head.Seq + 1,
			EventID:   entry.EventID,
			Timestamp: entry.Timestamp,
			PrevHash:  entry.PrevHash,
			EntryHash: entry.EntryHash,
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		if err := tx.Model(&AuditChainHeadModel{}).
			Where("chain = ?", string(r.chain)).
			Updates(map[string]any{"seq": model.Seq, "entry_hash": model.EntryHash}).Error; err != nil {
			return err
		}
		out = entry
		return nil
	})
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return out, nil
}

func (r *AuditLedgerRepository) ReadAll(ctx context.Context) ([]domain.AuditEntry, error) {
	if r == nil || r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("chain = ?", string(r.chain)).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		var entry domain.AuditEntry
		if err := json.Unmarshal(model.Payload, &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry %d: %w", model.Seq, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func lockChainHead(tx *gorm.DB, chain domain.AuditChain) (AuditChainHeadModel, error) {
	seed := AuditChainHeadModel{Chain: string(chain)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return AuditChainHeadModel{}, err
	}
	var head AuditChainHeadModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("chain = ?", string(chain)).
		Take(&head).Error; err != nil {
		return AuditChainHeadModel{}, err
	}
	return head, nil
}

var _ usecase.LedgerStore = (*AuditLedgerRepository)(nil)
