package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/vaultclient"
)

// Store keeps CA private keys in HashiCorp Vault instead of on local disk.
type Store struct {
	client *vaultclient.Client
	env    string
	clock  func() time.Time
}

type vaultKeyPayload struct {
	Alg              string `json:"alg"`
	PrivateKeyBase64 string `json:"private_key_base64"`
	CreatedAt        string `json:"created_at,omitempty"`
	RetiredAt        string `json:"retired_at,omitempty"`
}

func NewStore(client *vaultclient.Client, env string) (*Store, error) {
	if env == "" {
		return nil, errors.New("CERTAUTH_ENV is required")
	}
	if client == nil {
		return nil, errors.New("vault client is required")
	}
	return &Store{client: client, env: env, clock: time.Now}, nil
}

func NewStoreFromConfig(cfg config.Config) (*Store, error) {
	if cfg.VaultAddr == "" || cfg.VaultToken == "" {
		return nil, errors.New("VAULT_ADDR and VAULT_TOKEN are required")
	}
	return NewStore(vaultclient.New(cfg.VaultAddr, cfg.VaultToken), cfg.Env)
}

func (s *Store) Load(ctx context.Context, kind domain.CAKeyKind) ([]byte, bool, error) {
	path, err := caKeyPath(s.env, kind)
	if err != nil {
		return nil, false, err
	}
	payload, found, err := s.read(ctx, path)
	if err != nil || !found {
		return nil, false, err
	}
	key, err := base64.StdEncoding.DecodeString(payload.PrivateKeyBase64)
	if err != nil || len(key) == 0 {
		return nil, false, fmt.Errorf("vault key %s is not valid base64", path)
	}
	return key, true, nil
}

func (s *Store) Save(ctx context.Context, kind domain.CAKeyKind, private []byte) error {
	path, err := caKeyPath(s.env, kind)
	if err != nil {
		return err
	}
	if len(private) == 0 {
		return errors.New("private key is required")
	}
	return s.client.WriteKV(ctx, path, vaultKeyPayload{
		Alg:              keyAlg(kind),
		PrivateKeyBase64: base64.StdEncoding.EncodeToString(private),
		CreatedAt:        s.clock().UTC().Format(time.RFC3339),
	})
}

// Retire copies the current key to a timestamped path. The current path is
// overwritten by the following Save.
func (s *Store) Retire(ctx context.Context, kind domain.CAKeyKind, unix int64) (string, error) {
	path, err := caKeyPath(s.env, kind)
	if err != nil {
		return "", err
	}
	payload, found, err := s.read(ctx, path)
	if err != nil || !found {
		return "", err
	}
	payload.RetiredAt = time.Unix(unix, 0).UTC().Format(time.RFC3339)
	retired := retiredKeyPath(path, unix)
	if err := s.client.WriteKV(ctx, retired, payload); err != nil {
		return "", err
	}
	return retired, nil
}

func (s *Store) read(ctx context.Context, path string) (vaultKeyPayload, bool, error) {
	if s == nil || s.client == nil {
		return vaultKeyPayload{}, false, errors.New("vault store not configured")
	}
	var payload vaultKeyPayload
	if err := s.client.ReadKV(ctx, path, &payload); err != nil {
		if errors.Is(err, vaultclient.ErrNotFound) {
			return vaultKeyPayload{}, false, nil
		}
		return vaultKeyPayload{}, false, err
	}
	return payload, true, nil
}
