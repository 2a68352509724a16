package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Rocksteady808/roolify-sub002/internal/api"
	"github.com/Rocksteady808/roolify-sub002/internal/config"
	"github.com/Rocksteady808/roolify-sub002/internal/database"
	"github.com/Rocksteady808/roolify-sub002/internal/jobs"
	"github.com/Rocksteady808/roolify-sub002/internal/notification"
	"github.com/Rocksteady808/roolify-sub002/internal/service"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
	"github.com/Rocksteady808/roolify-sub002/internal/websocket"
)

const (
	shutdownTimeout     = 30 * time.Second
	limiterCleanupEvery = 10 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook and dashboard API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.GeneratedSecret {
		logger.Warn("JWT_SECRET not set, generated a random secret; dashboard tokens will not survive a restart")
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := notification.NewProvider(cfg.Email, logger)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(provider, cfg.Email.Concurrency, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(cfg.JWTSecret, originPatterns(cfg.CORSOrigins), logger)
	go hub.Run(ctx)

	processor := service.NewProcessor(st, dispatcher, logger, service.WithBroadcaster(hub))

	limiter := api.NewRateLimiter(rate.Limit(cfg.Webhook.RateLimit), cfg.Webhook.RateBurst)
	go limiter.RunCleanup(ctx, limiterCleanupEvery)

	// Initialize job scheduler
	scheduler := jobs.NewScheduler(st, cfg.Retention.SubmissionDays, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Store:     st,
		Processor: processor,
		Hub:       hub,
		Limiter:   limiter,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.Store.Backend),
			zap.String("email_provider", provider.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// openStore builds the configured backend, wrapped in the settings cache
// when Redis is configured. The returned func releases its connections.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	var (
		st      store.Store
		closers []func()
	)

	switch cfg.Store.Backend {
	case "xano":
		st = store.NewXanoStore(cfg.Xano.BaseURL, cfg.Xano.APIKey, cfg.Xano.Timeout)
	default:
		db, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get database connection: %w", err)
		}
		closers = append(closers, func() { sqlDB.Close() })

		version, err := database.Migrate(sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		logger.Info("Database schema ready", zap.Uint("version", version))
		st = store.NewGormStore(db)
	}

	if cfg.Redis.URL != "" {
		cache, err := store.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			// the cache is optional; run uncached rather than refuse to start
			logger.Warn("Settings cache unavailable", zap.Error(err))
		} else {
			closers = append(closers, func() { cache.Close() })
			st = store.NewCachedStore(st, cache, cfg.Redis.SettingsTTL, logger)
		}
	}

	return st, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
