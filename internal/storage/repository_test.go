package storage

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"txdash/internal/core"
	"txdash/internal/store"
)

var _ store.Store = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedRows() []core.Transaction {
	return []core.Transaction{
		{ID: 2, Title: "Mens Cotton Jacket", Description: "great outerwear", Price: 615.89, Category: "men's clothing", DateOfSale: time.Date(2022, 3, 27, 14, 59, 54, 0, time.UTC), Sold: true},
		{ID: 1, Title: "Fjallraven Backpack", Description: "fits 15 inch laptops", Price: 329.85, Category: "men's clothing", DateOfSale: time.Date(2021, 3, 27, 20, 29, 54, 0, time.UTC)},
		{ID: 3, Title: "WD 2TB Drive", Description: "100%_portable", Price: 64, Category: "electronics", DateOfSale: time.Date(2021, 10, 27, 20, 29, 54, 0, time.UTC), Sold: true},
		{ID: 4, Title: "Ring", Description: "gold", Price: 9999.99, Category: "jewelery", DateOfSale: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestSQLiteReplaceAllAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.ReplaceAll(ctx, seedRows())
	if err != nil || n != 4 {
		t.Fatalf("ReplaceAll = %d, %v", n, err)
	}

	page, err := repo.ListTransactions(ctx, core.Filter{}, core.NewPage(1, 10))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 4 || len(page.Transactions) != 4 {
		t.Fatalf("unexpected page %+v", page)
	}
	first := page.Transactions[0]
	if first.ID != 1 || first.Title != "Fjallraven Backpack" || first.Sold {
		t.Fatalf("unexpected first row %+v", first)
	}
	if !first.DateOfSale.Equal(time.Date(2021, 3, 27, 20, 29, 54, 0, time.UTC)) {
		t.Fatalf("date did not round trip: %v", first.DateOfSale)
	}

	// Reseed must not append.
	if _, err := repo.ReplaceAll(ctx, seedRows()[:1]); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	page, _ = repo.ListTransactions(ctx, core.Filter{}, core.NewPage(1, 10))
	if page.Total != 1 {
		t.Fatalf("expected 1 row after reseed, got %d", page.Total)
	}
}

func TestSQLiteReplaceAllInvalidKeepsData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceAll(ctx, seedRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.ReplaceAll(ctx, []core.Transaction{{ID: 9}}); err == nil {
		t.Fatalf("expected validation error")
	}
	page, _ := repo.ListTransactions(ctx, core.Filter{}, core.NewPage(1, 10))
	if page.Total != 4 {
		t.Fatalf("failed reseed changed data, total=%d", page.Total)
	}
}

func TestSQLiteListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceAll(ctx, seedRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	march := core.March

	tests := []struct {
		name    string
		filter  core.Filter
		wantIDs []int64
	}{
		{"month across years", core.Filter{Month: &march}, []int64{1, 2, 4}},
		{"search title case-insensitive", core.Filter{Search: "JACKET"}, []int64{2}},
		{"search description", core.Filter{Search: "laptops"}, []int64{1}},
		{"like wildcards are literal", core.Filter{Search: "%_"}, []int64{3}},
		{"underscore alone is literal", core.Filter{Search: "_"}, []int64{3}},
		{"month and search", core.Filter{Month: &march, Search: "drive"}, nil},
		{"price text never matches", core.Filter{Search: "615"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.ListTransactions(ctx, tt.filter, core.NewPage(1, 10))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if int(page.Total) != len(tt.wantIDs) || len(page.Transactions) != len(tt.wantIDs) {
				t.Fatalf("got %d rows (total %d), want %v", len(page.Transactions), page.Total, tt.wantIDs)
			}
			for i, id := range tt.wantIDs {
				if page.Transactions[i].ID != id {
					t.Errorf("row %d id = %d, want %d", i, page.Transactions[i].ID, id)
				}
			}
		})
	}
}

func TestSQLitePagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceAll(ctx, seedRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	page, err := repo.ListTransactions(ctx, core.Filter{}, core.NewPage(2, 3))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 4 || len(page.Transactions) != 1 || page.Transactions[0].ID != 4 {
		t.Fatalf("unexpected second page %+v", page)
	}

	page, _ = repo.ListTransactions(ctx, core.Filter{}, core.NewPage(5, 3))
	if page.Total != 4 || page.Transactions == nil || len(page.Transactions) != 0 {
		t.Fatalf("out of range page should be empty and non-nil: %+v", page)
	}

	page, err = repo.ListTransactions(ctx, core.Filter{}, core.NewPage(922337203685477582, 10))
	if err != nil || page.Total != 4 || len(page.Transactions) != 0 {
		t.Fatalf("huge page should be empty, got %+v, %v", page, err)
	}
}

func TestSQLiteAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceAll(ctx, seedRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	march := core.March
	f := core.Filter{Month: &march, Search: "not applied to aggregates"}

	st, err := repo.SaleTotals(ctx, f)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	want := core.Statistics{TotalSaleAmount: 10945.73, SoldItems: 1, NotSoldItems: 2}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}

	var sum int64
	for _, b := range core.PriceBuckets() {
		n, err := repo.CountInPriceBucket(ctx, f, b)
		if err != nil {
			t.Fatalf("bucket %s: %v", b.Label, err)
		}
		switch b.Label {
		case "301-400", "601-700", "901-above":
			if n != 1 {
				t.Errorf("bucket %s = %d, want 1", b.Label, n)
			}
		default:
			if n != 0 {
				t.Errorf("bucket %s = %d, want 0", b.Label, n)
			}
		}
		sum += n
	}
	if sum != 3 {
		t.Fatalf("bucket sum = %d, want 3", sum)
	}

	pie, err := repo.CountByCategory(ctx, f)
	if err != nil {
		t.Fatalf("pie: %v", err)
	}
	if len(pie) != 2 ||
		pie[0] != (core.PieChartEntry{Category: "jewelery", Count: 1}) ||
		pie[1] != (core.PieChartEntry{Category: "men's clothing", Count: 2}) {
		t.Fatalf("unexpected pie %+v", pie)
	}
}

func TestSQLiteAggregatesEmptyMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceAll(ctx, seedRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	june := core.June
	st, err := repo.SaleTotals(ctx, core.ForMonth(&june))
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if st != (core.Statistics{}) {
		t.Fatalf("expected zero stats, got %+v", st)
	}
	pie, err := repo.CountByCategory(ctx, core.ForMonth(&june))
	if err != nil || pie == nil || len(pie) != 0 {
		t.Fatalf("expected empty non-nil pie, got %v, %v", pie, err)
	}
}

func TestSQLiteSearchFoldsUnicode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	rows := []core.Transaction{
		{ID: 1, Title: "ÉCRAN Portable", Description: "Größe XL", Price: 10, DateOfSale: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "écran", Description: "", Price: 20, DateOfSale: time.Date(2021, 5, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Title: "table", Description: "end", Price: 30, DateOfSale: time.Date(2021, 5, 3, 0, 0, 0, 0, time.UTC)},
	}
	if _, err := repo.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	cases := []struct {
		search string
		want   []int64
	}{
		{"écran", []int64{1, 2}},
		{"ÉCRAN", []int64{1, 2}},
		{"GRÖSSE", nil},
		{"größe", []int64{1}},
		{"GRÖßE", []int64{1}},
		// title "table" and description "end" must not join into "tableend".
		{"tableend", nil},
	}
	for _, tc := range cases {
		f := core.Filter{Search: tc.search}
		page, err := repo.ListTransactions(ctx, f, core.NewPage(1, 10))
		if err != nil {
			t.Fatalf("%q: %v", tc.search, err)
		}
		var got []int64
		for _, it := range page.Transactions {
			got = append(got, it.ID)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("search %q = %v, want %v", tc.search, got, tc.want)
		}
		for _, it := range rows {
			if f.Match(it) != slices.Contains(tc.want, it.ID) {
				t.Fatalf("search %q: in-memory match disagrees for id %d", tc.search, it.ID)
			}
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if v1 != 2 {
		t.Errorf("version = %d, want 2", v1)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v2 != v1 {
		t.Errorf("version changed on rerun: %d -> %d", v1, v2)
	}
	got, err := SchemaVersion(path)
	if err != nil || got != v1 {
		t.Errorf("SchemaVersion = %d, %v", got, err)
	}
}
