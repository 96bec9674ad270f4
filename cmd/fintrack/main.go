package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

const cacheCleanupInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	verifier, err := auth.NewStaticVerifier(cfg.UserEntries())
	if err != nil {
		logger.Error("Invalid USERS configuration",
			applog.NewFields().WithError(err, applog.ErrorTypeConfiguration).Args()...)
		os.Exit(1)
	}
	if verifier.Len() == 0 {
		logger.Warn("No users configured, every login will be rejected")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			applog.NewFields().WithError(err, applog.ErrorTypeConfiguration).Args()...)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := factory.CreateStore(startupCtx, backendCfg)
	startupCancel()
	if err != nil {
		logger.Error("Failed to initialize storage",
			applog.NewFields().
				WithOperation(applog.OpStartup).
				WithError(err, applog.ErrorTypeDatabase).
				Args()...)
		os.Exit(1)
	}

	svc := services.NewTransactionService(res.Store, factory.NewPublisher(backendCfg))
	sessions := auth.NewSessionStore(verifier, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, svc, sessions, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SessionTTL:         cfg.SessionTTL,
	})

	caches := cache.NewManager(logger.Logger)
	caches.Register(svc.ListCache())
	caches.Register(sessions.Cache())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Wait()
		// closes the store and the publisher
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", "error", err)
		}
	})
	caches.Start(ctx, cacheCleanupInterval)

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"users", verifier.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
