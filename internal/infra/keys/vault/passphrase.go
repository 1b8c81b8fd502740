package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/vaultclient"
)

// PassphraseSource reads the certificate vault passphrase from a KV secret
// with a "passphrase" field.
type PassphraseSource struct {
	client *vaultclient.Client
	path   string
}

func NewPassphraseSource(client *vaultclient.Client, path string) *PassphraseSource {
	return &PassphraseSource{client: client, path: path}
}

func (p *PassphraseSource) Passphrase(ctx context.Context) (string, error) {
	if p == nil || p.client == nil || p.path == "" {
		return "", errors.New("vault passphrase source not configured")
	}
	var secret struct {
		Passphrase string `json:"passphrase"`
	}
	if err := p.client.ReadKV(ctx, p.path, &secret); err != nil {
		return "", fmt.Errorf("read vault passphrase: %w", err)
	}
	if secret.Passphrase == "" {
		return "", fmt.Errorf("vault secret %s has no passphrase", p.path)
	}
	return secret.Passphrase, nil
}
