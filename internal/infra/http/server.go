package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// RateLimitObserver is told about refused challenge requests.
type RateLimitObserver interface {
	RateLimited()
}

// CRLSource serves the published revocation list.
type CRLSource interface {
	Snapshot(ctx context.Context) (domain.CRL, error)
}

type ServerDeps struct {
	Authority   *usecase.CertificateAuthority
	Login       *usecase.LoginService
	Sessions    *usecase.SessionRegistry
	Guard       *usecase.AccessGuard
	Intents     *usecase.IntentService
	Audit       *usecase.AuditRecorder
	DeviceReset *usecase.DeviceResetService
	CRL         CRLSource
	RateLimiter domain.ChallengeLimiter
	RateLimits  RateLimitObserver
	Metrics     http.Handler
	Logger      *zap.Logger
}

type Server struct {
	cfg  config.Config
	deps ServerDeps
	r    *gin.Engine
	log  *zap.Logger

	adminAPIKey         string
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:                 cfg,
		deps:                deps,
		r:                   r,
		log:                 logger,
		adminAPIKey:         cfg.AdminAPIKey,
		rateLimitFailClosed: cfg.RateLimitFailClosed,
	}
	r.Use(s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": s.cfg.StorageBackend, "sessions": s.cfg.SessionBackend})
	})
	if s.deps.Metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	v1 := s.r.Group("/v1")
	{
		v1.GET("/crl", s.handleCRL)
		v1.POST("/auth/challenge", s.handleChallenge)
		v1.POST("/auth/login", s.handleLogin)
		v1.POST("/auth/refresh", s.handleRefresh)
		v1.POST("/auth/logout", s.handleLogout)
		v1.POST("/auth/reverify/challenge", s.requireSession, s.handleReverifyChallenge)
		v1.POST("/auth/reverify", s.requireSession, s.handleReverify)

		v1.GET("/session", s.requireSession, s.handleSession)
		v1.POST("/actions/:action/authorize", s.requireSession, s.handleAuthorizeAction)
		v1.POST("/intents", s.handleIntent)
	}

	admin := v1.Group("/admin")
	{
		admin.POST("/certificates", s.requireAdmin(domain.ActionIssueCertificate), s.handleIssueCertificate)
		admin.POST("/certificates/:certificate_id/revoke", s.requireAdmin(domain.ActionRevokeCertificate), s.handleRevokeCertificate)
		admin.POST("/ca/rotate", s.requireAdmin(domain.ActionRotateCAKeys), s.handleRotateCA)
		admin.DELETE("/devices/:user_id", s.requireAdmin(domain.ActionResetDeviceBinding), s.handleResetDevice)
		admin.GET("/audit/:chain/verify", s.requireAdmin(domain.ActionVerifyAuditChain), s.handleVerifyChain)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "not found")
	})
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains for up to ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
