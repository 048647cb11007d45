package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"txdash/internal/cache"
	"txdash/internal/core"
	"txdash/internal/log"
	"txdash/internal/store"
)

// FeedSource supplies the records a reseed stores.
type FeedSource interface {
	Fetch(ctx context.Context) ([]core.Transaction, error)
	URL() string
}

// SeedPublisher announces completed reseeds to other processes.
type SeedPublisher interface {
	PublishSeedCompleted(ctx context.Context, count int, source string) error
}

var ErrNoFeed = errors.New("no seed feed configured")

// Options tunes caching and fan-out.
type Options struct {
	CacheSize         int
	CacheTTL          time.Duration
	BucketConcurrency int
	// LoadTimeout bounds a shared aggregate load. It is independent of any
	// single request because concurrent requests wait on the same load.
	LoadTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{CacheSize: 100, CacheTTL: 5 * time.Minute, BucketConcurrency: 10, LoadTimeout: 7 * time.Second}
}

// DashboardService answers the listing and aggregate queries and owns the
// reseed flow. Aggregates are cached per month until the next reseed.
type DashboardService struct {
	store     store.Store
	feed      FeedSource
	publisher SeedPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	stats cache.Cache[core.Statistics]
	bars  cache.Cache[[]core.BarChartEntry]
	pies  cache.Cache[[]core.PieChartEntry]

	bucketConcurrency int
	loadTimeout       time.Duration
}

// NewDashboardService wires the service. feed and publisher may be nil: a nil
// feed disables Reseed, a nil publisher skips the announcement.
func NewDashboardService(st store.Store, feed FeedSource, publisher SeedPublisher, opts Options) *DashboardService {
	def := DefaultOptions()
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.BucketConcurrency <= 0 {
		opts.BucketConcurrency = def.BucketConcurrency
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentDashboard)
	return &DashboardService{
		store:             st,
		feed:              feed,
		publisher:         publisher,
		logger:            logger,
		events:            log.NewStructuredLogger(logger),
		stats:             cache.NewLRUCache[core.Statistics](opts.CacheSize, opts.CacheTTL),
		bars:              cache.NewLRUCache[[]core.BarChartEntry](opts.CacheSize, opts.CacheTTL),
		pies:              cache.NewLRUCache[[]core.PieChartEntry](opts.CacheSize, opts.CacheTTL),
		bucketConcurrency: opts.BucketConcurrency,
		loadTimeout:       opts.LoadTimeout,
	}
}

// RegisterCaches hands the aggregate caches to a cleanup manager.
func (s *DashboardService) RegisterCaches(m *cache.Manager) {
	m.Register(s.stats)
	m.Register(s.bars)
	m.Register(s.pies)
}

func (s *DashboardService) ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error) {
	page, err := s.store.ListTransactions(ctx, f, p)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	return page, nil
}

func (s *DashboardService) Statistics(ctx context.Context, m *core.Month) (core.Statistics, error) {
	return s.stats.GetOrLoad(ctx, cacheKey(m), func(ctx context.Context) (core.Statistics, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
		st, err := s.store.SaleTotals(ctx, core.ForMonth(m))
		if err != nil {
			return core.Statistics{}, fmt.Errorf("sale totals: %w", err)
		}
		return st, nil
	})
}

// BarChart counts the month's records per price bucket. The ten counts run
// concurrently and any failure fails the whole chart.
func (s *DashboardService) BarChart(ctx context.Context, m *core.Month) ([]core.BarChartEntry, error) {
	return s.bars.GetOrLoad(ctx, cacheKey(m), func(ctx context.Context) ([]core.BarChartEntry, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
		return s.countBuckets(ctx, core.ForMonth(m))
	})
}

func (s *DashboardService) countBuckets(ctx context.Context, f core.Filter) ([]core.BarChartEntry, error) {
	buckets := core.PriceBuckets()
	out := make([]core.BarChartEntry, len(buckets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bucketConcurrency)
	for i, b := range buckets {
		i, b := i, b
		g.Go(func() error {
			n, err := s.store.CountInPriceBucket(gctx, f, b)
			if err != nil {
				return fmt.Errorf("bucket %s: %w", b.Label, err)
			}
			out[i] = core.BarChartEntry{Range: b.Label, Count: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	return out, nil
}

func (s *DashboardService) PieChart(ctx context.Context, m *core.Month) ([]core.PieChartEntry, error) {
	return s.pies.GetOrLoad(ctx, cacheKey(m), func(ctx context.Context) ([]core.PieChartEntry, error) {
		ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
		pie, err := s.store.CountByCategory(ctx, core.ForMonth(m))
		if err != nil {
			return nil, fmt.Errorf("count by category: %w", err)
		}
		if pie == nil {
			pie = []core.PieChartEntry{}
		}
		return pie, nil
	})
}

// Combined runs the three aggregates for the same month concurrently.
func (s *DashboardService) Combined(ctx context.Context, m *core.Month) (core.CombinedReport, error) {
	var report core.CombinedReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.Statistics(gctx, m)
		report.Statistics = st
		return err
	})
	g.Go(func() error {
		bars, err := s.BarChart(gctx, m)
		report.BarChart = bars
		return err
	})
	g.Go(func() error {
		pie, err := s.PieChart(gctx, m)
		report.PieChart = pie
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CombinedReport{}, fmt.Errorf("combined report: %w", err)
	}
	return report, nil
}

// Reseed replaces the store contents with the feed, drops cached aggregates
// and announces the new data set. A failed announcement is logged only.
func (s *DashboardService) Reseed(ctx context.Context) (int, error) {
	if s.feed == nil {
		return 0, ErrNoFeed
	}

	items, err := s.feed.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch seed data: %w", err)
	}

	n, err := s.store.ReplaceAll(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("replace transactions: %w", err)
	}
	s.InvalidateAggregates(ctx)
	s.events.LogReseed(ctx, n, s.feed.URL())

	if s.publisher != nil {
		if err := s.publisher.PublishSeedCompleted(ctx, n, s.feed.URL()); err != nil {
			s.events.LogError(ctx, "Failed to publish seed completed message", err,
				log.ComponentAMQP, log.OpReseed, log.NewFields())
		}
	}
	return n, nil
}

// InvalidateAggregates drops every cached aggregate.
func (s *DashboardService) InvalidateAggregates(ctx context.Context) int {
	n := s.stats.Clear() + s.bars.Clear() + s.pies.Clear()
	s.logger.DebugContext(ctx, "Aggregate cache cleared",
		log.FieldOperation, log.OpInvalidate,
		log.FieldCount, n)
	return n
}

// Ping checks the store, for readiness probes.
func (s *DashboardService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func cacheKey(m *core.Month) string {
	if m == nil {
		return "all"
	}
	return m.String()
}
