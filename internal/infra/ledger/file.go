package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// FileStore keeps one audit store as a JSON array rewritten on every append.
type FileStore struct {
	path   string
	clock  func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, clock: time.Now, logger: logger}
}

// OpenFileStores returns one store per audit chain under dir, named
// <chain>.json.
func OpenFileStores(dir string, logger *zap.Logger) (map[domain.AuditChain]usecase.LedgerStore, error) {
	if dir == "" {
		return nil, errors.New("ledger directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stores := make(map[domain.AuditChain]usecase.LedgerStore, 4)
	for _, chain := range allChains() {
		stores[chain] = NewFileStore(filepath.Join(dir, string(chain)+".json"), logger.With(zap.String("chain", string(chain))))
	}
	return stores, nil
}

func (s *FileStore) Append(ctx context.Context, build func(prevHash string) (domain.AuditEntry, error)) (domain.AuditEntry, error) {
	if s == nil || s.path == "" {
		return domain.AuditEntry{}, errors.New("ledger path is required")
	}
	if err := ctx.Err(); err != nil {
		return domain.AuditEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return domain.AuditEntry{}, err
	}
	entry, err := build(tailHash(entries))
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if err := filestore.WriteJSON(s.path, append(entries, entry)); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("write ledger: %w", err)
	}
	return entry, nil
}

func (s *FileStore) ReadAll(ctx context.Context) ([]domain.AuditEntry, error) {
	if s == nil || s.path == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	found, err := filestore.ReadJSON(s.path, &entries, s.clock(), s.logger)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.AuditEntry{}, nil
	}
	return entries, nil
}

func tailHash(entries []domain.AuditEntry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].EntryHash
}

func allChains() []domain.AuditChain {
	return append(domain.ChainedAuditChains(), domain.AuditChainAnomalies)
}

var _ usecase.LedgerStore = (*FileStore)(nil)
