// Package app assembles the certificate authority, session and audit
// services from configuration. The daemon and the admin CLI share it so
// both see the same storage.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/auth/rbac"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/cachemem"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/cacheredis"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/certvault"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crl"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/crypto"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/db"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/devicebind"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/keys/soft"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/keys/vault"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/ledger"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/metrics"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/policyopa"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/ratelimit"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/sqlite"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/vaultclient"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

const (
	redisSessionPrefix   = "certauth:session:"
	redisRefreshPrefix   = "certauth:refresh:"
	redisChallengePrefix = "certauth:challenge:"
)

// App holds the wired services. Close releases every backend it opened.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *metrics.Prometheus

	Audit       *usecase.AuditRecorder
	Authority   *usecase.CertificateAuthority
	Challenges  *usecase.ChallengeManager
	Sessions    *usecase.SessionRegistry
	Login       *usecase.LoginService
	Guard       *usecase.AccessGuard
	Intents     *usecase.IntentService
	DeviceReset *usecase.DeviceResetService
	CRL         *crl.Cache
	RateLimiter domain.ChallengeLimiter
	Policy      *policyopa.Engine

	closers []func() error
}

type persistence struct {
	ledgers     map[domain.AuditChain]usecase.LedgerStore
	bindings    usecase.DeviceBindingStore
	revocations usecase.RevocationRepository
}

type ephemeral struct {
	sessions   usecase.KVStore[domain.Session]
	refresh    usecase.KVStore[string]
	challenges usecase.KVStore[domain.Challenge]
	limiter    domain.ChallengeLimiter
}

// Build opens the configured backends and wires the services on top of
// them. On error everything opened so far is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	p, err := a.openPersistence(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	e, err := a.openEphemeral(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	keys, passphrase, err := caKeys(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	policy, err := policyEngine(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Policy = policy

	codec := crypto.NewService()
	provider := crypto.NewHybridProvider()

	a.Audit = usecase.NewAuditRecorder(p.ledgers, codec, nil, logger.Named("audit"))
	a.Audit.Metrics = a.Metrics
	a.CRL = crl.NewCache(p.revocations, cfg.CRLCacheTTL(), logger.Named("crl"))
	a.Authority = &usecase.CertificateAuthority{
		Keys:     keys,
		Rotation: usecase.NewKeyRotationService(soft.NewRotationManager(keys), a.Audit, logger.Named("rotation"), nil),
		Crypto:   provider,
		Codec:    codec,
		Vault:    certvault.New(cfg.VaultDir(), passphrase, cfg.VaultKDFIterations, logger.Named("vault")),
		Bindings: p.bindings,
		CRL:      a.CRL,
		Audit:    a.Audit,
		Metrics:  a.Metrics,
		Logger:   logger.Named("authority"),
		CRLURL:   cfg.CRLURL,
	}
	a.Challenges = usecase.NewChallengeManager(e.challenges, nil, logger.Named("challenges"))
	a.Challenges.TTL = cfg.ChallengeTTL()
	a.Sessions = &usecase.SessionRegistry{
		Sessions:  e.sessions,
		Refresh:   e.refresh,
		Authority: a.Authority,
		Bindings:  p.bindings,
		Audit:     a.Audit,
		Metrics:   a.Metrics,
		Logger:    logger.Named("sessions"),
		Config: usecase.SessionConfig{
			AccessTTL:      cfg.AccessTTL(),
			RefreshTTL:     cfg.RefreshTTL(),
			AbsoluteTTL:    cfg.AbsoluteTTL(),
			IdleTimeout:    cfg.IdleTimeout(),
			ReauthInterval: cfg.ReauthInterval(),
		},
	}
	a.Login = &usecase.LoginService{
		Authority:  a.Authority,
		Challenges: a.Challenges,
		Sessions:   a.Sessions,
		Bindings:   p.bindings,
		Crypto:     provider,
		Audit:      a.Audit,
		Metrics:    a.Metrics,
		Logger:     logger.Named("login"),
	}
	a.Guard = &usecase.AccessGuard{
		Sessions:   a.Sessions,
		Authorizer: rbac.NewAuthorizer(),
		Policy:     policy,
		Logger:     logger.Named("access"),
	}
	a.Intents = &usecase.IntentService{Guard: a.Guard, Canon: codec, Audit: a.Audit, Logger: logger.Named("intents")}
	a.DeviceReset = &usecase.DeviceResetService{Bindings: p.bindings, Sessions: a.Sessions, Audit: a.Audit, Logger: logger.Named("devices")}
	a.RateLimiter = e.limiter

	logger.Info("services wired",
		zap.String("storage", cfg.StorageBackend),
		zap.String("sessions", cfg.SessionBackend),
		zap.String("ca_keys", cfg.CAKeyBackend),
		zap.String("policy_bundle", policy.BundleHash()),
	)
	return a, nil
}

func (a *App) openPersistence(cfg config.Config) (persistence, error) {
	switch cfg.StorageBackend {
	case config.StorageSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return persistence{}, err
		}
		a.closers = append(a.closers, store.Close)
		return persistence{
			ledgers:     store.LedgerStores(),
			bindings:    store.DeviceBindings(),
			revocations: store.Revocations(),
		}, nil
	case config.StoragePostgres:
		store, err := db.NewStore(cfg.PostgresDSN, a.Logger.Named("db"))
		if err != nil {
			return persistence{}, err
		}
		a.closers = append(a.closers, store.Close)
		return persistence{
			ledgers:     db.NewAuditLedgerRepositories(store.DB),
			bindings:    db.NewDeviceBindingRepository(store.DB),
			revocations: db.NewRevocationRepository(store.DB),
		}, nil
	default:
		ledgers, err := ledger.OpenFileStores(cfg.LedgerDir(), a.Logger.Named("ledger"))
		if err != nil {
			return persistence{}, err
		}
		return persistence{
			ledgers:     ledgers,
			bindings:    devicebind.NewFileStore(cfg.DeviceStorePath(), a.Logger.Named("devices")),
			revocations: crl.NewFileRepository(cfg.CRLPath(), a.Logger.Named("crl")),
		}, nil
	}
}

func (a *App) openEphemeral(cfg config.Config) (ephemeral, error) {
	if cfg.SessionBackend != config.SessionsRedis {
		return ephemeral{
			sessions:   cachemem.New[domain.Session](),
			refresh:    cachemem.New[string](),
			challenges: cachemem.New[domain.Challenge](),
			limiter:    ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{Policy: challengePolicy(cfg), MaxKeys: cfg.RateLimitMaxKeys}),
		}, nil
	}
	client, err := cacheredis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return ephemeral{}, err
	}
	a.closers = append(a.closers, client.Close)
	limiter, err := ratelimit.NewRedisLimiter(client, challengePolicy(cfg), nil)
	if err != nil {
		return ephemeral{}, err
	}
	return ephemeral{
		sessions:   cacheredis.New[domain.Session](client, redisSessionPrefix, nil),
		refresh:    cacheredis.New[string](client, redisRefreshPrefix, nil),
		challenges: cacheredis.New[domain.Challenge](client, redisChallengePrefix, nil),
		limiter:    limiter,
	}, nil
}

func challengePolicy(cfg config.Config) ratelimit.Policy {
	return ratelimit.Policy{
		PerAddress:  cfg.RateLimitRequests,
		PerIdentity: cfg.RateLimitIdentityRequests,
		Window:      cfg.RateLimitWindow(),
	}
}

func caKeys(cfg config.Config, logger *zap.Logger) (*soft.Manager, certvault.PassphraseSource, error) {
	var client *vaultclient.Client
	if cfg.VaultAddr != "" && cfg.VaultToken != "" {
		client = vaultclient.New(cfg.VaultAddr, cfg.VaultToken)
	}

	var passphrase certvault.PassphraseSource = certvault.StaticPassphrase(cfg.VaultPassphrase)
	if cfg.VaultPassphrase == "" {
		if client == nil || cfg.VaultPassphrasePath == "" {
			return nil, nil, errors.New("no certificate vault passphrase configured")
		}
		passphrase = vault.NewPassphraseSource(client, cfg.VaultPassphrasePath)
	}

	if cfg.CAKeyBackend != config.CAKeysVault {
		return soft.NewManagerFromConfig(cfg, logger.Named("ca")), passphrase, nil
	}
	if client == nil {
		return nil, nil, errors.New("vault CA key backend requires VAULT_ADDR and VAULT_TOKEN")
	}
	store, err := vault.NewStore(client, cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("vault key store: %w", err)
	}
	return soft.NewManager(store, cfg.CARSABits, logger.Named("ca")), passphrase, nil
}

func policyEngine(ctx context.Context, cfg config.Config) (*policyopa.Engine, error) {
	if cfg.PolicyBundlePath != "" {
		return policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath)
	}
	return policyopa.NewDefaultEngine(ctx)
}

// ReapLoop drops expired sessions on every tick until ctx ends.
func (a *App) ReapLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Sessions.ReapExpired(ctx)
			if err != nil {
				a.Logger.Warn("session reap failed", zap.Error(err))
				continue
			}
			if n > 0 {
				a.Logger.Info("expired sessions reaped", zap.Int("count", n))
			}
		}
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
