// Package seed fetches the upstream product transaction feed and turns it into
// domain transactions.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"txdash/internal/core"
)

var (
	ErrFeedStatus   = errors.New("unexpected feed status")
	ErrFeedTooLarge = errors.New("feed exceeds size limit")
	ErrMaxRetries  = errors.New("maximum retries exceeded")
	ErrInvalidFeed = errors.New("invalid feed")
)

// DefaultURL is the public feed the dashboard was built around.
const DefaultURL = "https://s3.amazonaws.com/roxiler.com/product_transaction.json"

// item is one record of the feed. The feed also carries an image URL, which
// is not stored.
type item struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Sold        bool    `json:"sold"`
	DateOfSale  string  `json:"dateOfSale"`
}

// DefaultMaxBytes caps the feed body. The public feed is well under 100 KiB.
const DefaultMaxBytes = 16 << 20

// Options tunes the HTTP fetch. Zero values take the defaults.
type Options struct {
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxBytes     int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// Feed is an HTTP source of seed data.
type Feed struct {
	url    string
	client *http.Client
	opts   Options
}

func NewFeed(url string, opts Options) *Feed {
	if url == "" {
		url = DefaultURL
	}
	opts = opts.withDefaults()
	return &Feed{
		url:    url,
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// URL returns the feed location, used as the event source.
func (f *Feed) URL() string {
	return f.url
}

// MaxDuration is the longest Fetch can run: every attempt timing out plus
// the backoff between attempts.
func (f *Feed) MaxDuration() time.Duration {
	total := time.Duration(f.opts.MaxAttempts) * f.opts.Timeout
	delay := f.opts.InitialDelay
	for i := 1; i < f.opts.MaxAttempts; i++ {
		total += delay
		delay = min(delay*2, f.opts.MaxDelay)
	}
	return total
}

// Fetch downloads and decodes the feed. Network errors and 5xx responses are
// retried with exponential backoff; anything else fails immediately.
func (f *Feed) Fetch(ctx context.Context) ([]core.Transaction, error) {
	var body []byte
	err := withRetry(ctx, f.opts, func() error {
		b, err := f.get(ctx)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
	}

	items, err := Decode(body)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Seed feed fetched", "url", f.url, "count", len(items))
	return items, nil
}

func (f *Feed) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: %d", ErrFeedStatus, resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, permanent(statusErr)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > f.opts.MaxBytes {
		return nil, permanent(fmt.Errorf("%w: more than %d bytes", ErrFeedTooLarge, f.opts.MaxBytes))
	}
	return b, nil
}

// Decode parses a feed document. A single unparsable dateOfSale rejects the
// whole feed so a reseed never stores a partial data set.
func Decode(data []byte) ([]core.Transaction, error) {
	var raw []item
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidFeed, err)
	}

	out := make([]core.Transaction, 0, len(raw))
	for i, it := range raw {
		date, err := parseDate(it.DateOfSale)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (id %d): %v", ErrInvalidFeed, i, it.ID, err)
		}
		out = append(out, core.Transaction{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			Price:       it.Price,
			Category:    it.Category,
			DateOfSale:  date,
			Sold:        it.Sold,
		})
	}
	return out, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable dateOfSale %q", s)
}
