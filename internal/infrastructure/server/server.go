package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stubterm/backend/internal/api/http"
	"github.com/GriffinCanCode/stubterm/backend/internal/api/middleware"
	"github.com/GriffinCanCode/stubterm/backend/internal/domain/registry"
	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/database"
	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/monitor"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *nethttp.Server
	store    *database.Store
	registry *registry.Manager
	prober   *registry.Prober
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	proberCtx  context.Context
	stopProber context.CancelFunc
	proberDone chan struct{}
	started    atomic.Bool
}

// NewServer wires the store, transport, registry and API from cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.NewMetrics()

	store, err := database.Open(database.Config{
		Path:      cfg.Database.Path,
		FernetKey: cfg.Database.FernetKey,
		Quiet:     !cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open shell store: %w", err)
	}

	profile, err := config.LoadProfile(cfg.Protocol.ProfilePath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	transport := client.NewClient(client.Config{
		Timeout:           cfg.Transport.Timeout,
		Method:            profile.Method,
		Headers:           profile.HeaderMap(),
		Proxy:             cfg.Transport.Proxy,
		InsecureTLS:       cfg.Transport.InsecureTLS,
		RequestsPerSecond: cfg.Transport.RequestsPerSec,
		BreakerThreshold:  cfg.Transport.BreakerThreshold,
		BreakerCooldown:   cfg.Transport.BreakerCooldown,
	}, logger)
	transport.SetRecorder(metrics)

	manager, err := registry.NewManager(registry.Options{
		Store:            store,
		Profile:          profile,
		Transport:        transport,
		Logger:           logger,
		Recorder:         metrics,
		TranscriptSize:   cfg.Registry.TranscriptSize,
		ProbeConcurrency: cfg.Registry.ProbeConcurrency,
		OnSessionOpen:    onTerminalOpen(logger),
		OnSessionClose:   onTerminalClose(logger),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if cfg.Registry.SeedFile != "" {
		if _, err := registry.NewSeeder(manager, cfg.Registry.SeedFile, logger).Seed(context.Background()); err != nil {
			logger.Warn("shell seeding failed", zap.Error(err))
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSForOrigins(cfg.Server.CORSOrigins)))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: float64(cfg.RateLimit.RequestsPerSecond),
			Burst:             cfg.RateLimit.Burst,
		}))
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
	}

	handlers := http.NewHandlers(manager, monitor.NewProvider(nil, 0, logger), metrics, logger)
	handlers.Register(router)

	logger.Info("server initialized",
		zap.String("db", cfg.Database.Path),
		zap.String("profile", profile.Name),
		zap.Duration("probe_interval", cfg.Registry.ProbeInterval))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	proberCtx, stopProber := context.WithCancel(context.Background())
	return &Server{
		router: router,
		http: &nethttp.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:      store,
		registry:   manager,
		prober:     registry.NewProber(manager, cfg.Registry.ProbeInterval, logger),
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		proberCtx:  proberCtx,
		stopProber: stopProber,
		proberDone: make(chan struct{}),
	}, nil
}

// Handler returns the configured router.
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Run starts the prober and serves HTTP until Shutdown.
func (s *Server) Run() error {
	if s.started.CompareAndSwap(false, true) {
		go func() {
			defer close(s.proberDone)
			s.prober.Run(s.proberCtx)
		}()
	}

	s.logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every terminal and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.stopProber()
	if s.started.Load() {
		select {
		case <-s.proberDone:
		case <-ctx.Done():
		}
	}

	s.registry.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func onTerminalOpen(logger *logging.Logger) func(uint, types.TerminalInfo) {
	return func(shellID uint, info types.TerminalInfo) {
		logger.Info("terminal opened",
			zap.Uint("shell_id", shellID),
			zap.String("session_id", info.SessionID),
			zap.String("cwd", info.CurrentPath))
	}
}

func onTerminalClose(logger *logging.Logger) func(uint, string) {
	return func(shellID uint, sessionID string) {
		logger.Info("terminal closed", zap.Uint("shell_id", shellID), zap.String("session_id", sessionID))
	}
}
