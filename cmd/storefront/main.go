// storefront serves a local cart API over a remote GraphQL storefront.
// It keeps the client cart state, reconciles it with the server in the
// background and exposes it over REST and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/graphql"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/poller"
	"storefront/internal/storage"
	"storefront/internal/transport"
	"storefront/internal/visitor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.LogLevel, cfg.Environment)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("api_url", cfg.API.URL),
		slog.String("storage", cfg.Storage.Backend),
		slog.Duration("poll_interval", cfg.PollInterval),
	)

	kv, ready, closeKV, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer closeKV()

	notifications := notify.NewRecorder(50, notify.Log{Logger: logger})

	// The transport reads the token on every request, so it can be built
	// before the registrar that owns it.
	var registrar *visitor.Registrar
	tokens := transport.TokenFunc(func(ctx context.Context) (string, error) {
		return registrar.Token(ctx)
	})

	client, err := graphql.NewClient(cfg.API.URL, graphql.NewHTTPClient(cfg.API.Timeout, cfg.API.ChromeTLS, tokens), logger)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}
	registrar = visitor.NewRegistrar(client, kv, notifications, logger)

	if cfg.API.VisitorToken != "" {
		if err := registrar.Seed(ctx, cfg.API.VisitorToken); err != nil {
			return fmt.Errorf("seeding visitor token: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := cart.New(client, cart.Options{
		Repository: storage.NewStateRepository(kv, logger),
		Notifier:   notifications,
		Metrics:    metrics.NewCart(registry),
		Logger:     logger,
	})
	if err := store.Load(ctx); err != nil {
		logger.Warn("restoring cart state", slog.String("error", err.Error()))
	}

	syncer := &tokenSync{registrar: registrar, store: store, logger: logger}
	syncer.ensureToken(ctx)

	if cfg.PollInterval > 0 {
		p, err := poller.New(poller.Params{
			Logger:     logger,
			Reconciler: syncer,
			Interval:   cfg.PollInterval,
			Timeout:    cfg.API.Timeout,
		})
		if err != nil {
			return fmt.Errorf("creating poller: %w", err)
		}
		go func() {
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("poller stopped", slog.String("error", err.Error()))
			}
		}()
	}

	h := handler.New(store, client, logger, handler.Options{
		Notifications: notifications,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Ready:         ready,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()

		// Give outstanding requests time to complete
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// openStorage builds the configured KV backend, a readiness probe for
// /health and a close function.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.KV, func(context.Context) error, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case storage.BackendMemory:
		return storage.NewMemory(), nil, noop, nil
	case storage.BackendFile:
		kv, err := storage.NewFile(cfg.FilePath)
		if err != nil {
			return nil, nil, noop, err
		}
		return kv, nil, noop, nil
	case storage.BackendRedis:
		kv, err := storage.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, err
		}
		return kv, kv.Ping, func() { kv.Close() }, nil
	default:
		return nil, nil, noop, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// tokenSync keeps the visitor registered and the cart reconciled. A failed
// registration at startup is retried on every poll.
type tokenSync struct {
	registrar *visitor.Registrar
	store     *cart.Store
	logger    *slog.Logger
}

func (s *tokenSync) ensureToken(ctx context.Context) bool {
	_, err := s.registrar.Ensure(ctx)
	if err != nil {
		s.logger.Warn("visitor registration failed", slog.String("error", err.Error()))
	}
	hasToken := err == nil
	if s.store.Snapshot().HasToken != hasToken {
		if err := s.store.SetHasToken(ctx, hasToken); err != nil {
			s.logger.Warn("updating token state", slog.String("error", err.Error()))
		}
	}
	return hasToken
}

// Reconcile implements poller.Reconciler.
func (s *tokenSync) Reconcile(ctx context.Context) error {
	if !s.ensureToken(ctx) {
		return nil
	}
	return s.store.Reconcile(ctx)
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(logLevel, environment string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	var logger *slog.Logger
	if environment == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	return logger
}
