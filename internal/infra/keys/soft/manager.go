package soft

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
)

// KeyStore persists encoded CA private keys by kind.
type KeyStore interface {
	Load(ctx context.Context, kind domain.CAKeyKind) (private []byte, found bool, err error)
	Save(ctx context.Context, kind domain.CAKeyKind, private []byte) error
	// Retire moves the current key of kind aside and returns where it went.
	Retire(ctx context.Context, kind domain.CAKeyKind, unix int64) (string, error)
}

// Manager is the CA keyring. Keys are loaded once, generated and persisted
// when absent, and cached for the process lifetime.
type Manager struct {
	store    KeyStore
	rsaBits  int
	provider *crypto.HybridProvider
	logger   *zap.Logger

	mu     sync.RWMutex
	pairs  map[domain.CAKeyKind]crypto.KeyPair
	loaded bool
}

func NewManager(store KeyStore, rsaBits int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		rsaBits:  rsaBits,
		provider: crypto.NewHybridProvider(),
		logger:   logger,
	}
}

func NewManagerFromConfig(cfg config.Config, logger *zap.Logger) *Manager {
	return NewManager(NewFileStore(cfg.CAKeyDir), cfg.CARSABits, logger)
}

func (m *Manager) Sign(ctx context.Context, kind domain.CAKeyKind, payload []byte) ([]byte, error) {
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	pair, ok := m.pairs[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported ca key kind %q", kind)
	}
	switch kind {
	case domain.CAKeyClassical:
		return m.provider.SignClassical(pair.Private, payload)
	default:
		return m.provider.SignPQ(pair.Private, payload)
	}
}

func (m *Manager) PublicKeys(ctx context.Context) (domain.CAPublicKeys, error) {
	if err := m.Load(ctx); err != nil {
		return domain.CAPublicKeys{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	classical := m.pairs[domain.CAKeyClassical]
	pq := m.pairs[domain.CAKeyPQ]
	return domain.CAPublicKeys{
		Classical:            append([]byte(nil), classical.Public...),
		PQ:                   append([]byte(nil), pq.Public...),
		ClassicalFingerprint: crypto.Fingerprint(classical.Public),
		PQFingerprint:        crypto.Fingerprint(pq.Public),
	}, nil
}

// Load reads both CA keys, generating any that are missing.
func (m *Manager) Load(ctx context.Context) error {
	if m == nil || m.store == nil {
		return errors.New("ca key store is required")
	}
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	pairs := make(map[domain.CAKeyKind]crypto.KeyPair, 2)
	for _, kind := range []domain.CAKeyKind{domain.CAKeyClassical, domain.CAKeyPQ} {
		pair, err := m.loadOrCreate(ctx, kind)
		if err != nil {
			return err
		}
		pairs[kind] = pair
	}
	m.pairs = pairs
	m.loaded = true
	return nil
}

func (m *Manager) loadOrCreate(ctx context.Context, kind domain.CAKeyKind) (crypto.KeyPair, error) {
	private, found, err := m.store.Load(ctx, kind)
	if err != nil {
		return crypto.KeyPair{}, fmt.Errorf("load %s ca key: %w", kind, err)
	}
	if found {
		public, err := publicFromPrivate(kind, private)
		if err != nil {
			return crypto.KeyPair{}, fmt.Errorf("decode %s ca key: %w", kind, err)
		}
		return crypto.KeyPair{Private: private, Public: public}, nil
	}
	pair, err := m.generate(kind)
	if err != nil {
		return crypto.KeyPair{}, err
	}
	if err := m.store.Save(ctx, kind, pair.Private); err != nil {
		return crypto.KeyPair{}, fmt.Errorf("persist %s ca key: %w", kind, err)
	}
	m.logger.Info("generated ca key",
		zap.String("kind", string(kind)),
		zap.String("fingerprint", crypto.Fingerprint(pair.Public)),
	)
	return pair, nil
}

func (m *Manager) generate(kind domain.CAKeyKind) (crypto.KeyPair, error) {
	switch kind {
	case domain.CAKeyClassical:
		return crypto.GenerateRSAKeyPair(m.rsaBits)
	case domain.CAKeyPQ:
		return crypto.GenerateMLDSAKeyPair()
	default:
		return crypto.KeyPair{}, fmt.Errorf("unsupported ca key kind %q", kind)
	}
}

func publicFromPrivate(kind domain.CAKeyKind, private []byte) ([]byte, error) {
	switch kind {
	case domain.CAKeyClassical:
		return crypto.RSAPublicFromPrivate(private)
	case domain.CAKeyPQ:
		return crypto.MLDSAPublicFromPrivate(private)
	default:
		return nil, fmt.Errorf("unsupported ca key kind %q", kind)
	}
}
