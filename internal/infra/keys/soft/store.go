package soft

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/filestore"
)

// FileStore keeps CA keys as PEM files under one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Load(_ context.Context, kind domain.CAKeyKind) ([]byte, bool, error) {
	path, blockType, err := s.locate(kind)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	key, err := crypto.DecodePrivatePEM(blockType, data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return key, true, nil
}

func (s *FileStore) Save(_ context.Context, kind domain.CAKeyKind, private []byte) error {
	path, blockType, err := s.locate(kind)
	if err != nil {
		return err
	}
	return filestore.WriteAtomic(path, crypto.EncodePrivatePEM(blockType, private))
}

func (s *FileStore) Retire(_ context.Context, kind domain.CAKeyKind, unix int64) (string, error) {
	path, _, err := s.locate(kind)
	if err != nil {
		return "", err
	}
	retired := path + ".retired-" + strconv.FormatInt(unix, 10)
	if err := os.Rename(path, retired); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return retired, nil
}

func (s *FileStore) locate(kind domain.CAKeyKind) (string, string, error) {
	if s == nil || s.dir == "" {
		return "", "", errors.New("CA_KEY_DIR is required")
	}
	switch kind {
	case domain.CAKeyClassical:
		return filepath.Join(s.dir, "ca_rsa_private.pem"), "PRIVATE KEY", nil
	case domain.CAKeyPQ:
		return filepath.Join(s.dir, "ca_mldsa65_private.pem"), "ML-DSA-65 PRIVATE KEY", nil
	default:
		return "", "", fmt.Errorf("unsupported ca key kind %q", kind)
	}
}
