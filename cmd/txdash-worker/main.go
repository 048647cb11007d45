package main

import (
	"context"
	"errors"
	"os"
	"time"

	"txdash/internal/amqp"
	"txdash/internal/backend"
	"txdash/internal/cli"
	"txdash/internal/log"
	"txdash/internal/seed"
	"txdash/internal/services"
	"txdash/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()
	logger.Info("Starting txdash-worker")

	if cfg.SeedInterval <= 0 && !cfg.SeedOnStartup {
		logger.Error("Nothing to do: set SEED_INTERVAL and/or SEED_ON_STARTUP")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The worker needs a shared store; memory backend is process-local")
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open transaction store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	var publisher services.SeedPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - API servers will not be told about reseeds")
	}

	feed := seed.NewFeed(cfg.SeedURL, seed.Options{
		Timeout:     cfg.SeedTimeout,
		MaxAttempts: cfg.SeedRetries,
	})
	svc := services.NewDashboardService(result.Store, feed, publisher, services.DefaultOptions())
	seedWorker := worker.NewSeedWorker(svc, cfg.SeedInterval)

	closeAll := func() {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Store close error", log.FieldError, err)
			}
		}
	}

	if cfg.SeedInterval <= 0 {
		_, err := seedWorker.RunOnce(context.Background())
		closeAll()
		if err != nil {
			logger.Error("Reseed failed", log.FieldOperation, log.OpReseed, log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("One-shot reseed finished")
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) { closeAll() })

	if cfg.SeedOnStartup {
		if _, err := seedWorker.RunOnce(ctx); err != nil {
			logger.Error("Startup reseed failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
		}
	}

	if err := seedWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Seed worker stopped", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
