package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"

	CAKeysFile  = "file"
	CAKeysVault = "vault"
)

// Config is resolved in three layers: defaults, then the optional TOML
// file, then environment variables.
type Config struct {
	Env       string `toml:"env"`
	HTTPAddr  string `toml:"http_addr"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	DataDir   string `toml:"data_dir"`

	StorageBackend string `toml:"storage_backend"`
	SQLitePath     string `toml:"sqlite_path"`
	PostgresDSN    string `toml:"postgres_dsn"`

	SessionBackend string `toml:"session_backend"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`

	VaultPassphrase     string `toml:"vault_passphrase"`
	VaultKDFIterations  int    `toml:"vault_kdf_iterations"`
	VaultAddr           string `toml:"vault_addr"`
	VaultToken          string `toml:"vault_token"`
	VaultPassphrasePath string `toml:"vault_passphrase_path"`

	CAKeyBackend string `toml:"ca_key_backend"`
	CAKeyDir     string `toml:"ca_key_dir"`
	CARSABits    int    `toml:"ca_rsa_bits"`
	CRLURL       string `toml:"crl_url"`

	CertificateValidityDays int `toml:"certificate_validity_days"`

	CRLCacheTTLSeconds    int `toml:"crl_cache_ttl_seconds"`
	AccessTTLSeconds      int `toml:"access_ttl_seconds"`
	RefreshTTLSeconds     int `toml:"refresh_ttl_seconds"`
	AbsoluteTTLSeconds    int `toml:"absolute_ttl_seconds"`
	IdleTimeoutSeconds    int `toml:"idle_timeout_seconds"`
	ReauthIntervalSeconds int `toml:"reauth_interval_seconds"`
	ChallengeTTLSeconds   int `toml:"challenge_ttl_seconds"`

	PolicyBundlePath string `toml:"policy_bundle_path"`
	AdminAPIKey      string `toml:"admin_api_key"`

	// RateLimitRequests caps challenges per client address per window;
	// RateLimitIdentityRequests caps challenges per claimed user_id across
	// all addresses.
	RateLimitRequests         int  `toml:"rate_limit_requests"`
	RateLimitIdentityRequests int  `toml:"rate_limit_identity_requests"`
	RateLimitWindowSeconds    int  `toml:"rate_limit_window_seconds"`
	RateLimitFailClosed       bool `toml:"rate_limit_fail_closed"`
	RateLimitMaxKeys          int  `toml:"rate_limit_max_keys"`
}

func Defaults() Config {
	return Config{
		Env:                       "dev",
		HTTPAddr:                  ":8080",
		LogLevel:                  "info",
		LogFormat:                 "json",
		DataDir:                   "data",
		StorageBackend:            StorageFile,
		SessionBackend:            SessionsMemory,
		VaultKDFIterations:        200000,
		CAKeyBackend:              CAKeysFile,
		CARSABits:                 3072,
		CRLURL:                    "/v1/crl",
		CertificateValidityDays:   365,
		CRLCacheTTLSeconds:        300,
		AccessTTLSeconds:          900,
		RefreshTTLSeconds:         28800,
		AbsoluteTTLSeconds:        28800,
		IdleTimeoutSeconds:        900,
		ReauthIntervalSeconds:     600,
		ChallengeTTLSeconds:       120,
		RateLimitRequests:         30,
		RateLimitIdentityRequests: 10,
		RateLimitWindowSeconds:    60,
		RateLimitMaxKeys:          10000,
	}
}

func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	cfg.fillDerived()
	return cfg
}

// Load overlays the TOML file at path (when non-empty) and then the
// environment on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StorageBackend {
	case StorageFile, StorageSQLite:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.StorageBackend)
	}
	switch c.SessionBackend {
	case SessionsMemory:
	case SessionsRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unsupported session backend %q", c.SessionBackend)
	}
	switch c.CAKeyBackend {
	case CAKeysFile:
	case CAKeysVault:
		if c.VaultAddr == "" || c.VaultToken == "" {
			return errors.New("VAULT_ADDR and VAULT_TOKEN are required for the vault CA key backend")
		}
	default:
		return fmt.Errorf("unsupported CA key backend %q", c.CAKeyBackend)
	}
	if c.VaultPassphrase == "" && (c.VaultAddr == "" || c.VaultPassphrasePath == "") {
		return errors.New("VAULT_PASSPHRASE or VAULT_ADDR with VAULT_PASSPHRASE_PATH is required")
	}
	return nil
}

func applyEnv(c *Config) {
	c.Env = envDefault("CERTAUTH_ENV", c.Env)
	c.HTTPAddr = envDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = envDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envDefault("LOG_FORMAT", c.LogFormat)
	c.DataDir = envDefault("DATA_DIR", c.DataDir)
	c.StorageBackend = envDefault("STORAGE_BACKEND", c.StorageBackend)
	c.SQLitePath = envDefault("SQLITE_PATH", c.SQLitePath)
	c.PostgresDSN = envDefault("POSTGRES_DSN", c.PostgresDSN)
	c.SessionBackend = envDefault("SESSION_BACKEND", c.SessionBackend)
	c.RedisAddr = envDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envDefault("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envIntDefault("REDIS_DB", c.RedisDB)
	c.VaultPassphrase = envDefault("VAULT_PASSPHRASE", c.VaultPassphrase)
	c.VaultKDFIterations = envIntDefault("VAULT_KDF_ITERATIONS", c.VaultKDFIterations)
	c.VaultAddr = envDefault("VAULT_ADDR", c.VaultAddr)
	c.VaultToken = envDefault("VAULT_TOKEN", c.VaultToken)
	c.VaultPassphrasePath = envDefault("VAULT_PASSPHRASE_PATH", c.VaultPassphrasePath)
	c.CAKeyBackend = envDefault("CA_KEY_BACKEND", c.CAKeyBackend)
	c.CAKeyDir = envDefault("CA_KEY_DIR", c.CAKeyDir)
	c.CARSABits = envIntDefault("CA_RSA_BITS", c.CARSABits)
	c.CRLURL = envDefault("CRL_URL", c.CRLURL)
	c.CertificateValidityDays = envIntDefault("CERTIFICATE_VALIDITY_DAYS", c.CertificateValidityDays)
	c.CRLCacheTTLSeconds = envIntDefault("CRL_CACHE_TTL_SECONDS", c.CRLCacheTTLSeconds)
	c.AccessTTLSeconds = envIntDefault("ACCESS_TTL_SECONDS", c.AccessTTLSeconds)
	c.RefreshTTLSeconds = envIntDefault("REFRESH_TTL_SECONDS", c.RefreshTTLSeconds)
	c.AbsoluteTTLSeconds = envIntDefault("ABSOLUTE_TTL_SECONDS", c.AbsoluteTTLSeconds)
	c.IdleTimeoutSeconds = envIntDefault("IDLE_TIMEOUT_SECONDS", c.IdleTimeoutSeconds)
	c.ReauthIntervalSeconds = envIntDefault("REAUTH_INTERVAL_SECONDS", c.ReauthIntervalSeconds)
	c.ChallengeTTLSeconds = envIntDefault("CHALLENGE_TTL_SECONDS", c.ChallengeTTLSeconds)
	c.PolicyBundlePath = envDefault("POLICY_BUNDLE_PATH", c.PolicyBundlePath)
	c.AdminAPIKey = envDefault("ADMIN_API_KEY", c.AdminAPIKey)
	c.RateLimitRequests = envIntDefault("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitIdentityRequests = envIntDefault("RATE_LIMIT_IDENTITY_REQUESTS", c.RateLimitIdentityRequests)
	c.RateLimitWindowSeconds = envIntDefault("RATE_LIMIT_WINDOW_SECONDS", c.RateLimitWindowSeconds)
	c.RateLimitFailClosed = envBoolDefault("RATE_LIMIT_FAIL_CLOSED", c.RateLimitFailClosed)
	c.RateLimitMaxKeys = envIntDefault("RATE_LIMIT_MAX_KEYS", c.RateLimitMaxKeys)
}

func (c *Config) fillDerived() {
	if c.CAKeyDir == "" {
		c.CAKeyDir = filepath.Join(c.DataDir, "ca")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "certauth.db")
	}
}

func (c Config) VaultDir() string { return filepath.Join(c.DataDir, "vault") }

func (c Config) CRLPath() string { return filepath.Join(c.DataDir, "crl.json") }

func (c Config) DeviceStorePath() string { return filepath.Join(c.DataDir, "device_bindings.json") }

func (c Config) LedgerDir() string { return filepath.Join(c.DataDir, "audit") }

func (c Config) CRLCacheTTL() time.Duration { return seconds(c.CRLCacheTTLSeconds) }

func (c Config) ChallengeTTL() time.Duration { return seconds(c.ChallengeTTLSeconds) }

func (c Config) RateLimitWindow() time.Duration { return seconds(c.RateLimitWindowSeconds) }

func (c Config) AccessTTL() time.Duration { return seconds(c.AccessTTLSeconds) }

func (c Config) RefreshTTL() time.Duration { return seconds(c.RefreshTTLSeconds) }

func (c Config) AbsoluteTTL() time.Duration { return seconds(c.AbsoluteTTLSeconds) }

func (c Config) IdleTimeout() time.Duration { return seconds(c.IdleTimeoutSeconds) }

func (c Config) ReauthInterval() time.Duration { return seconds(c.ReauthIntervalSeconds) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
