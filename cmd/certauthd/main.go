package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/app"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	httpinfra "github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/http"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/logging"
)

const reapInterval = time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("CERTAUTH_CONFIG"), "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "certauthd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close backends", zap.Error(err))
		}
	}()
	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY not set; admin routes require an admin session")
	}

	go a.ReapLoop(ctx, reapInterval)

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Authority:   a.Authority,
		Login:       a.Login,
		Sessions:    a.Sessions,
		Guard:       a.Guard,
		Intents:     a.Intents,
		Audit:       a.Audit,
		DeviceReset: a.DeviceReset,
		CRL:         a.CRL,
		RateLimiter: a.RateLimiter,
		RateLimits:  a.Metrics,
		Metrics:     a.Metrics.Handler(),
		Logger:      logger.Named("http"),
	})
	logger.Info("certauthd starting", zap.String("env", cfg.Env))
	return srv.Run(ctx)
}
