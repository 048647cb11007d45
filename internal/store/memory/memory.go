// Package memory is an in-process transaction store, used for local runs and
// as the reference behaviour the database backends are tested against.
package memory

import (
	"context"
	"sort"
	"sync"

	"txdash/internal/core"
)

type Store struct {
	mu    sync.RWMutex
	items []core.Transaction
}

func New(items ...core.Transaction) *Store {
	s := &Store{}
	s.items = sortedCopy(items)
	return s
}

// ReplaceAll swaps the data set in one step, so readers never see a partial seed.
func (s *Store) ReplaceAll(_ context.Context, items []core.Transaction) (int, error) {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return 0, err
		}
	}
	next := sortedCopy(items)
	s.mu.Lock()
	s.items = next
	s.mu.Unlock()
	return len(next), nil
}

// ListTransactions filters, counts and then slices the requested window.
func (s *Store) ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error) {
	if err := ctx.Err(); err != nil {
		return core.TransactionPage{}, err
	}
	matched := s.matching(f)
	page := core.TransactionPage{Total: int64(len(matched)), Transactions: []core.Transaction{}}
	start := p.Offset()
	if start < 0 || start >= len(matched) {
		return page, nil
	}
	end := len(matched)
	if remaining := end - start; p.Limit() < remaining {
		end = start + p.Limit()
	}
	page.Transactions = append(page.Transactions, matched[start:end]...)
	return page, nil
}

func (s *Store) SaleTotals(ctx context.Context, f core.Filter) (core.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return core.Statistics{}, err
	}
	matched := s.matching(f.MonthOnly())
	st := core.Statistics{TotalSaleAmount: core.SumPrices(matched)}
	for _, t := range matched {
		if t.Sold {
			st.SoldItems++
		} else {
			st.NotSoldItems++
		}
	}
	return st, nil
}

func (s *Store) CountInPriceBucket(ctx context.Context, f core.Filter, b core.PriceBucket) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range s.matching(f.MonthOnly()) {
		if b.Contains(t.Price) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountByCategory(ctx context.Context, f core.Filter) ([]core.PieChartEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, t := range s.matching(f.MonthOnly()) {
		counts[t.Category]++
	}
	out := make([]core.PieChartEntry, 0, len(counts))
	for c, n := range counts {
		out = append(out, core.PieChartEntry{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) matching(f core.Filter) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.items {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// sortedCopy orders by id, keeping feed order for duplicate ids.
func sortedCopy(items []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
