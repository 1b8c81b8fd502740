package devicebind

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// FileStore keeps every identity's device secret in one JSON object keyed by
// user id. A document that does not decode is quarantined and the store
// starts empty, which forces affected users through the legacy secret path.
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

func (s *FileStore) StoreBinding(_ context.Context, userID, deviceSecret string) error {
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || deviceSecret == "" {
		return errors.New("user id and device secret are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bindings, err := s.read()
	if err != nil {
		return err
	}
	bindings[userID] = deviceSecret
	return filestore.WriteJSON(s.path, bindings)
}

func (s *FileStore) GetSecret(_ context.Context, userID string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bindings, err := s.read()
	if err != nil {
		return "", false, err
	}
	secret, ok := bindings[strings.TrimSpace(userID)]
	return secret, ok, nil
}

func (s *FileStore) DeleteSecret(_ context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bindings, err := s.read()
	if err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if _, ok := bindings[userID]; !ok {
		return nil
	}
	delete(bindings, userID)
	return filestore.WriteJSON(s.path, bindings)
}

func (s *FileStore) read() (map[string]string, error) {
	bindings := map[string]string{}
	found, err := filestore.ReadJSON(s.path, &bindings, s.clock(), s.logger)
	if err != nil {
		return nil, err
	}
	if !found || bindings == nil {
		return map[string]string{}, nil
	}
	return bindings, nil
}

func (s *FileStore) ready() error {
	if s == nil || s.path == "" {
		return errors.New("device binding path is required")
	}
	return nil
}

var _ usecase.DeviceBindingStore = (*FileStore)(nil)
