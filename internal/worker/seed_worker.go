package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"txdash/internal/amqp"
	"txdash/internal/log"
)

// Reseeder replaces the stored transactions with a fresh copy of the feed.
type Reseeder interface {
	Reseed(ctx context.Context) (int, error)
}

// Invalidator drops cached aggregates.
type Invalidator interface {
	InvalidateAggregates(ctx context.Context) int
}

// SeedWorker reloads the transaction store on startup and on a fixed interval.
type SeedWorker struct {
	reseeder Reseeder
	interval time.Duration
	logger   *slog.Logger
}

func NewSeedWorker(reseeder Reseeder, interval time.Duration) *SeedWorker {
	return &SeedWorker{
		reseeder: reseeder,
		interval: interval,
		logger:   slog.Default().With(log.FieldComponent, log.ComponentWorker),
	}
}

// RunOnce performs a single reseed and logs the outcome.
func (w *SeedWorker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := w.reseeder.Reseed(ctx)
	if err != nil {
		return 0, fmt.Errorf("reseed: %w", err)
	}
	w.logger.InfoContext(ctx, "Reseed completed",
		log.FieldOperation, log.OpReseed,
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())
	return n, nil
}

// Run reseeds every interval until ctx is cancelled. A failed run is logged
// and retried on the next tick. Run returns immediately when the interval
// is not positive.
func (w *SeedWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.InfoContext(ctx, "Periodic reseed disabled")
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Periodic reseed started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				w.logger.ErrorContext(ctx, "Periodic reseed failed",
					log.FieldOperation, log.OpReseed,
					log.FieldError, err)
			}
		}
	}
}

// InvalidationHandler returns an AMQP handler that clears cached aggregates
// whenever another process reports a completed reseed.
func InvalidationHandler(ctx context.Context, inv Invalidator) func(*amqp.SeedCompletedMessage) error {
	logger := slog.Default().With(log.FieldComponent, log.ComponentWorker)
	return func(msg *amqp.SeedCompletedMessage) error {
		if msg == nil {
			return fmt.Errorf("nil seed completed message")
		}
		cleared := inv.InvalidateAggregates(ctx)
		logger.InfoContext(ctx, "Seed completed elsewhere, aggregates invalidated",
			log.FieldOperation, log.OpInvalidate,
			"message_id", msg.ID,
			log.FieldSource, msg.Source,
			log.FieldCount, msg.Count,
			"cleared", cleared)
		return nil
	}
}
