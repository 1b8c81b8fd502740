package ledger

import (
	"context"
	"sync"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// Memory is a process-local ledger, used by tests and by dev runs without a
// data directory.
type Memory struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{}
}

func NewMemoryStores() map[domain.AuditChain]usecase.LedgerStore {
	stores := make(map[domain.AuditChain]usecase.LedgerStore, 4)
	for _, chain := range allChains() {
		stores[chain] = NewMemory()
	}
	return stores
}

func (m *Memory) Append(ctx context.Context, build func(prevHash string) (domain.AuditEntry, error)) (domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditEntry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, err := build(tailHash(m.entries))
	if err != nil {
		return domain.AuditEntry{}, err
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *Memory) ReadAll(ctx context.Context) ([]domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

var _ usecase.LedgerStore = (*Memory)(nil)
