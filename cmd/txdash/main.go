package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"txdash/internal/amqp"
	"txdash/internal/backend"
	"txdash/internal/cache"
	"txdash/internal/cli"
	apphttp "txdash/internal/http"
	"txdash/internal/log"
	"txdash/internal/seed"
	"txdash/internal/services"
	"txdash/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open transaction store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	feed := seed.NewFeed(cfg.SeedURL, seed.Options{
		Timeout:     cfg.SeedTimeout,
		MaxAttempts: cfg.SeedRetries,
	})

	// AMQP is optional; without it the service works standalone.
	var amqpClient *amqp.Client
	var publisher services.SeedPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without seed events", log.FieldError, err)
		} else {
			publisher = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewDashboardService(result.Store, feed, publisher, services.Options{
		CacheSize:         cfg.CacheSize,
		CacheTTL:          cfg.CacheTTL,
		BucketConcurrency: cfg.BucketConcurrency,
		LoadTimeout:       cfg.RequestTimeout,
	})

	cacheManager := cache.NewManager()
	svc.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(cfg.Addr(), svc, apphttp.Options{
		RequestTimeout: cfg.RequestTimeout,
		InitRateLimit:  cfg.InitRateLimit,
		TrustedProxies: cfg.TrustedProxies,
		InitTimeout:    feed.MaxDuration() + cfg.RequestTimeout,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
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
	})

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSeedCompleted(ctx, worker.InvalidationHandler(ctx, svc))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Seed event consumption stopped", log.FieldError, err)
			}
		}()
	}

	if cfg.SeedOnStartup {
		go func() {
			if _, err := worker.NewSeedWorker(svc, 0).RunOnce(ctx); err != nil {
				logger.Error("Startup reseed failed", log.FieldOperation, log.OpStartup, log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting txdash server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"seed_url", cfg.SeedURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
