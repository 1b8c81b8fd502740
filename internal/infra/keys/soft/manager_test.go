package soft

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
)

func TestManager_GeneratesPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first := NewManager(NewFileStore(dir), 2048, nil)

	keys, err := first.PublicKeys(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, keys.Classical)
	assert.NotEmpty(t, keys.PQ)

	for _, name := range []string{"ca_rsa_private.pem", "ca_mldsa65_private.pem"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	second := NewManager(NewFileStore(dir), 2048, nil)
	reloaded, err := second.PublicKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, keys.ClassicalFingerprint, reloaded.ClassicalFingerprint)
	assert.Equal(t, keys.PQFingerprint, reloaded.PQFingerprint)
}

func TestManager_SignaturesVerify(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewFileStore(t.TempDir()), 2048, nil)
	provider := crypto.NewHybridProvider()
	keys, err := m.PublicKeys(ctx)
	require.NoError(t, err)
	msg := []byte("certificate payload")

	sig, err := m.Sign(ctx, domain.CAKeyClassical, msg)
	require.NoError(t, err)
	require.NoError(t, provider.VerifyClassical(keys.Classical, msg, sig))

	sig, err = m.Sign(ctx, domain.CAKeyPQ, msg)
	require.NoError(t, err)
	require.NoError(t, provider.VerifyPQ(keys.PQ, msg, sig))

	_, err = m.Sign(ctx, "ed25519", msg)
	require.Error(t, err)
}

func TestRotationManager_RetiresOldKey(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m := NewManager(NewFileStore(dir), 2048, nil)
	before, err := m.PublicKeys(ctx)
	require.NoError(t, err)

	rot := NewRotationManager(m)
	rot.clock = func() time.Time { return time.Unix(1767225600, 0) }
	rotation, err := rot.Rotate(ctx, domain.CAKeyPQ)
	require.NoError(t, err)
	assert.Equal(t, before.PQFingerprint, rotation.OldFingerprint)
	assert.Equal(t, filepath.Join(dir, "ca_mldsa65_private.pem.retired-1767225600"), rotation.RetiredPath)
	_, err = os.Stat(rotation.RetiredPath)
	require.NoError(t, err)

	after, err := m.PublicKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, rotation.NewFingerprint, after.PQFingerprint)
	assert.Equal(t, before.ClassicalFingerprint, after.ClassicalFingerprint)

	reloaded, err := NewManager(NewFileStore(dir), 2048, nil).PublicKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, after.PQFingerprint, reloaded.PQFingerprint)
}

func TestFileStore_RejectsForeignPEM(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca_rsa_private.pem"), []byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"), 0o600))
	_, err := NewManager(NewFileStore(dir), 2048, nil).PublicKeys(context.Background())
	require.Error(t, err)
}
