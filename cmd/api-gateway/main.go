package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/snapsolve/backend/app"
	"github.com/snapsolve/backend/config"
	"github.com/snapsolve/backend/internal/observability"
	"github.com/snapsolve/backend/routes"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("api-gateway: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Auth.UsingGeneratedSecret() {
		logger.Warn("APP_JWT_SECRET not set, using a generated secret; all tokens die with this process")
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := startScheduler(deps, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	cronCtx := scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Let a mid-flight maintenance job finish within the shutdown window
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}

	logger.Info("shutdown complete")
	return nil
}

// startScheduler runs the periodic maintenance jobs: sweeping expired
// sessions hourly and zeroing stale daily usage counters at UTC midnight.
func startScheduler(deps *app.Dependencies, logger *zap.Logger) *cron.Cron {
	scheduler := cron.New(cron.WithLocation(time.UTC))

	_, err := scheduler.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		swept, err := deps.Sessions.SweepExpired(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("session sweep failed", zap.Error(err))
			return
		}
		if swept > 0 {
			logger.Info("swept expired sessions", zap.Int64("count", swept))
		}
	})
	if err != nil {
		logger.Error("failed to schedule session sweep", zap.Error(err))
	}

	_, err = scheduler.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		reset, err := deps.Accounts.ResetDailyUsage(ctx)
		if err != nil {
			logger.Error("daily usage reset failed", zap.Error(err))
			return
		}
		if reset > 0 {
			logger.Info("reset daily usage counters", zap.Int64("count", reset))
		}
	})
	if err != nil {
		logger.Error("failed to schedule usage reset", zap.Error(err))
	}

	scheduler.Start()
	return scheduler
}
