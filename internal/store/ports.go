// Package store declares the ports the services use to reach the transaction
// store. Backends live in internal/storage (SQLite), store/mongo and store/memory.
package store

import (
	"context"

	"txdash/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionReplacer swaps the whole data set, as the seed operation does.
	TransactionReplacer interface {
		// ReplaceAll deletes every stored record and inserts items, returning the inserted count.
		ReplaceAll(ctx context.Context, items []core.Transaction) (int, error)
	}

	// TransactionLister serves the paginated listing.
	TransactionLister interface {
		ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error)
	}

	// AggregateReader runs the month aggregates. Implementations apply only the
	// month part of the filter they receive.
	AggregateReader interface {
		// SaleTotals returns price sum and sold/unsold counts.
		SaleTotals(ctx context.Context, f core.Filter) (core.Statistics, error)
		// CountInPriceBucket counts matching records whose price falls in b.
		CountInPriceBucket(ctx context.Context, f core.Filter, b core.PriceBucket) (int64, error)
		// CountByCategory groups matching records by category.
		CountByCategory(ctx context.Context, f core.Filter) ([]core.PieChartEntry, error)
	}

	// Pinger reports store liveness for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full set of operations a backend provides.
	Store interface {
		TransactionReplacer
		TransactionLister
		AggregateReader
		Pinger
		Close() error
	}
)
