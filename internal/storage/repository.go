package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"txdash/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is how date_of_sale is stored: UTC, readable by strftime.
const dateLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", schema)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceAll implements store.TransactionReplacer. Delete and insert share one
// database transaction, so readers see either the old or the new data set.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, items []core.Transaction) (int, error) {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, title, description, price, category, date_of_sale, sold, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		sold := 0
		if it.Sold {
			sold = 1
		}
		if _, err := stmt.ExecContext(ctx,
			it.ID,
			it.Title,
			it.Description,
			it.Price,
			it.Category,
			it.DateOfSale.UTC().Format(dateLayout),
			sold,
			searchText(it),
		); err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reseed: %w", err)
	}

	slog.InfoContext(ctx, "Transactions replaced in SQLite", "count", len(items))
	return len(items), nil
}

// ListTransactions implements store.TransactionLister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error) {
	where, args := filterPredicate(f).sql()
	page := core.TransactionPage{Transactions: []core.Transaction{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, price, category, date_of_sale, sold
		FROM transactions`+where+`
		ORDER BY id, row_id
		LIMIT ? OFFSET ?`, append(args, p.Limit(), p.Offset())...)
	if err != nil {
		return page, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    core.Transaction
			date string
			sold int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Price, &t.Category, &date, &sold); err != nil {
			return page, fmt.Errorf("scan transaction: %w", err)
		}
		t.DateOfSale, err = time.Parse(dateLayout, date)
		if err != nil {
			return page, fmt.Errorf("parse date_of_sale %q: %w", date, err)
		}
		t.Sold = sold != 0
		page.Transactions = append(page.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate transactions: %w", err)
	}

	return page, nil
}

// SaleTotals implements store.AggregateReader
func (r *SQLiteRepository) SaleTotals(ctx context.Context, f core.Filter) (core.Statistics, error) {
	where, args := filterPredicate(f.MonthOnly()).sql()
	var st core.Statistics
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(price), 0),
			COALESCE(SUM(CASE WHEN sold = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sold = 0 THEN 1 ELSE 0 END), 0)
		FROM transactions`+where, args...).Scan(&st.TotalSaleAmount, &st.SoldItems, &st.NotSoldItems)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("sum sales: %w", err)
	}
	st.TotalSaleAmount = core.RoundAmount(st.TotalSaleAmount)
	return st, nil
}

// CountInPriceBucket implements store.AggregateReader
func (r *SQLiteRepository) CountInPriceBucket(ctx context.Context, f core.Filter, b core.PriceBucket) (int64, error) {
	pred := filterPredicate(f.MonthOnly())
	if b.HasLower {
		pred.add("price > ?", b.Lower)
	}
	if b.HasUpper {
		pred.add("price <= ?", b.Upper)
	}
	where, args := pred.sql()

	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bucket %s: %w", b.Label, err)
	}
	return n, nil
}

// CountByCategory implements store.AggregateReader
func (r *SQLiteRepository) CountByCategory(ctx context.Context, f core.Filter) ([]core.PieChartEntry, error) {
	where, args := filterPredicate(f.MonthOnly()).sql()
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM transactions`+where+`
		GROUP BY category
		ORDER BY category`, args...)
	if err != nil {
		return nil, fmt.Errorf("group by category: %w", err)
	}
	defer rows.Close()

	out := []core.PieChartEntry{}
	for rows.Next() {
		var e core.PieChartEntry
		if err := rows.Scan(&e.Category, &e.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

// predicate accumulates AND-ed SQL conditions with their arguments.
type predicate struct {
	conds []string
	args  []any
}

func (p *predicate) add(cond string, args ...any) {
	p.conds = append(p.conds, cond)
	p.args = append(p.args, args...)
}

func (p *predicate) sql() (string, []any) {
	if len(p.conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(p.conds, " AND "), p.args
}

// filterPredicate translates a core.Filter into SQLite conditions. Month
// matching compares only the month component, which is what projecting onto
// the reference year amounts to.
func filterPredicate(f core.Filter) *predicate {
	p := &predicate{}
	if f.Month != nil {
		p.add("CAST(strftime('%m', date_of_sale) AS INTEGER) = ?", int(*f.Month))
	}
	if f.HasSearch() {
		// SQLite's LOWER folds ASCII only; search_text is folded in Go.
		p.add(`search_text LIKE ? ESCAPE '\'`, "%"+escapeLike(core.Fold(f.Search))+"%")
	}
	return p
}

// searchText joins the folded title and description. The newline keeps a
// match from spanning both fields.
func searchText(t core.Transaction) string {
	return core.Fold(t.Title) + "\n" + core.Fold(t.Description)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
