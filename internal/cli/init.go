// Package cli provides the startup and shutdown plumbing shared by
// cmd/txdash and cmd/txdash-worker.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"txdash/internal/config"
	"txdash/internal/log"
)

// SetupLogger installs a text or JSON handler at the given level as the
// process default and returns the logger.
func SetupLogger(w io.Writer, level, format string) *slog.Logger {
	logger := slog.New(log.NewHandler(w, format, log.ParseLevel(level)))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env when present. A missing file is normal outside
// local development.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads .env and the environment, installs the configured
// logger and validates. The process exits on invalid configuration.
func LoadConfig() (*config.Config, *slog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// GracefulShutdown returns a context cancelled by SIGINT or SIGTERM and a
// channel closed once cleanup has run, or timeout has passed.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx, cleanupAfter(ctx, stop, logger, timeout, cleanup)
}

func cleanupAfter(ctx context.Context, stop func(), logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		// A second signal now kills the process the default way.
		stop()
		logger.Info("Shutdown signal received", "timeout", timeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached, exiting with cleanup still running")
		}
	}()
	return done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
