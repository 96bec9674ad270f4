package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed",
			applog.NewFields().WithError(err, applog.ErrorTypeConfiguration).Args()...)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			applog.NewFields().WithError(err, applog.ErrorTypeConfiguration).Args()...)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	store, cleanup, err := factory.CreateWorkerStore(startupCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage",
			applog.NewFields().WithError(err, applog.ErrorTypeDatabase).Args()...)
		os.Exit(1)
	}
	closeStore := func() {
		if err := cleanup(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}

	mirror, err := factory.NewMirror(startupCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets mirror",
			applog.NewFields().WithError(err, applog.ErrorTypeNetwork).Args()...)
		closeStore()
		os.Exit(1)
	}

	consumer, err := factory.NewConsumer(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			applog.NewFields().WithError(err, applog.ErrorTypeNetwork).Args()...)
		closeStore()
		os.Exit(1)
	}
	startupCancel()

	syncWorker := worker.NewSyncWorker(store, mirror, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// rows missed while the worker was down
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	logger.Info("Worker running",
		"backend", backendCfg.Type,
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval)

	if err := serve(ctx, logger, syncWorker, consumer, cleanup, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

type consumer interface {
	Consume(ctx context.Context, h amqp.Handlers) error
	Close() error
}

// serve consumes messages and reconciles pending rows every interval until ctx
// ends or the consumer fails. The consumer and the store are closed before it returns.
func serve(ctx context.Context, logger *applog.Logger, syncWorker *worker.SyncWorker, c consumer, cleanup backend.CleanupFunc, interval time.Duration) error {
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close AMQP client", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Consume(gctx, syncWorker.Handlers())
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPending(gctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})
	return g.Wait()
}
