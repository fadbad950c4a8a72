package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/config"
	"blockwatch/internal/enrich"
	"blockwatch/internal/firewall"
	"blockwatch/internal/jobs"
	"blockwatch/internal/metrics"
	"blockwatch/internal/middlewares"
	"blockwatch/internal/resolver"
	"blockwatch/internal/storage"
	"blockwatch/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisprometheus/v9"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	logCloser   io.Closer
	appCtx      *middlewares.AppContext
	httpServer  *http.Server
	debugServer *http.Server
	manager     *blocker.Manager
	store       storage.StorageProvider
	geoip       *enrich.GeoIP
	jobManager  *jobs.JobManager
	cancel      context.CancelFunc
}

func New(cfg *config.Config) (*Server, error) {
	logger, logCloser, err := setupLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("starting blockwatch", "version", version.String())
	metrics.BuildInfo.WithLabelValues(version.Version, version.Commit()).Set(1)

	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	var verifier *middlewares.TokenVerifier
	if cfg.API.TokenDigest != "" {
		verifier, err = middlewares.NewTokenVerifier(cfg.API.TokenDigest)
		if err != nil {
			_ = logCloser.Close()
			return nil, err
		}
	} else {
		logger.Warn("api.token_digest is not set, mutating endpoints are unauthenticated")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// everything opened below is released by cleanup if a later step fails
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		cancel()
		_ = logCloser.Close()
	}

	store, err := storage.NewStorageProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "type", cfg.Store.Type, "error", err)
		cleanup()
		return nil, err
	}
	closers = append(closers, func() { _ = store.Close() })

	if redisStore, ok := store.(*storage.RedisProvider); ok && cfg.Server.Debug != nil && cfg.Server.Debug.Enabled {
		collector := redisprometheus.NewCollector(metrics.Namespace, "store", redisStore)
		if err := prometheus.Register(collector); err != nil {
			logger.Debug("failed to register redis store collector: already registered", "error", err)
		}
	}

	fw, err := firewall.New(cfg.Firewall, logger)
	if err != nil {
		logger.Error("failed to initialize firewall", "backend", cfg.Firewall.Backend, "error", err)
		cleanup()
		return nil, err
	}

	opts := []blocker.Option{
		blocker.WithLogger(logger),
		blocker.WithDefaultTTL(cfg.Blocking.DefaultTTL),
		blocker.WithOperationTimeout(cfg.Blocking.OperationTimeout),
	}

	var geoip *enrich.GeoIP
	if cfg.Enrich.GeoIPDir != "" {
		geoip, err = enrich.Open(cfg.Enrich.GeoIPDir, logger)
		if err != nil {
			logger.Error("failed to open geoip databases", "dir", cfg.Enrich.GeoIPDir, "error", err)
			cleanup()
			return nil, err
		}
		closers = append(closers, geoip.Close)
		opts = append(opts, blocker.WithEnricher(geoip))
	}

	manager := blocker.New(fw, store, opts...)

	// no request may observe the registry before it agrees with the firewall
	if _, err := manager.Restore(ctx); err != nil {
		logger.Error("failed to restore block registry", "error", err)
		cleanup()
		return nil, err
	}

	appCtx := middlewares.NewAppContext(ctx, cfg, logger, manager, resolver.New(cfg.Resolver, logger), store)

	jobManager := jobs.NewJobManager(logger)
	jobManager.Register(jobs.NewExpiryJob(manager, cfg.Blocking.SweepInterval, logger))
	jobManager.Register(jobs.NewResyncJob(manager, cfg.Blocking.ResyncInterval, logger))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           setupRouter(appCtx, trusted, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var debugServer *http.Server
	if cfg.Server.Debug != nil && cfg.Server.Debug.Enabled {
		debugServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Debug.Host, cfg.Server.Debug.Port),
			Handler:           setupDebugRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return &Server{
		cfg:         cfg,
		logger:      logger,
		logCloser:   logCloser,
		appCtx:      appCtx,
		httpServer:  httpServer,
		debugServer: debugServer,
		manager:     manager,
		store:       store,
		geoip:       geoip,
		jobManager:  jobManager,
		cancel:      cancel,
	}, nil
}

func (s *Server) Start() error {
	defer s.close()

	s.jobManager.Start(s.appCtx)

	go func() {
		s.logger.Info("Server Started", "port", s.cfg.Server.Port, "active_blocks", len(s.manager.ListActive()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start", "error", err)
			s.cancel()
		}
	}()

	if s.debugServer != nil {
		go func() {
			s.logger.Info("Metrics server starting", "address", s.debugServer.Addr)
			if err := s.debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed to start", "error", err)
				s.cancel()
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		s.logger.Info("Shutdown signal received")
	case <-s.appCtx.Done():
		s.logger.Info("Context canceled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("Shutting Down Server")

	// stop the jobs first so an in-flight sweep can still persist
	if err := s.jobManager.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Jobs did not stop in time", "error", err)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	if s.debugServer != nil {
		if err := s.debugServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Debug server forced to shutdown", "error", err)
		}
	}

	s.logger.Info("Server Exited")
	return nil
}

func (s *Server) close() {
	s.cancel()

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close store", "error", err)
	}
	if s.geoip != nil {
		s.geoip.Close()
	}
	_ = s.logCloser.Close()
}
