package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/certauth")
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 8*time.Hour, cfg.AbsoluteTTL())
	assert.Equal(t, 10*time.Minute, cfg.ReauthInterval())
	assert.Equal(t, 2*time.Minute, cfg.ChallengeTTL())
	assert.Equal(t, 300*time.Second, cfg.CRLCacheTTL())
	assert.Equal(t, filepath.Join("/srv/certauth", "ca"), cfg.CAKeyDir)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certauth.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr = ":9000"
storage_backend = "sqlite"
idle_timeout_seconds = 60
vault_passphrase = "from-file"
`), 0o600))
	t.Setenv("IDLE_TIMEOUT_SECONDS", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, "from-file", cfg.VaultPassphrase)
}

func TestLoadValidates(t *testing.T) {
	t.Setenv("VAULT_PASSPHRASE", "pw")
	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("SESSION_BACKEND", "memcached")
	_, err = Load("")
	require.Error(t, err)
}

func TestEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("ACCESS_TTL_SECONDS", "soon")
	assert.Equal(t, 15*time.Minute, FromEnv().AccessTTL())
}
