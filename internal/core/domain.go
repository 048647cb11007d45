// Package core holds the transaction domain: the record type, the year-agnostic
// month filter, pagination and the fixed price buckets used by the charts.
//
// Search matches title and description only. The legacy dashboard also ran a
// text pattern against the numeric price field, which never matched anything;
// that clause is intentionally not reproduced.
package core

import (
	"errors"
	"fmt"
	"time"
)

type (
	// Transaction is a single sale record as served by the API.
	Transaction struct {
		ID          int64     `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Price       float64   `json:"price"`
		Category    string    `json:"category"`
		DateOfSale  time.Time `json:"dateOfSale"`
		Sold        bool      `json:"sold"`
	}

	// TransactionPage is one window of a filtered listing plus the unpaginated total.
	TransactionPage struct {
		Total        int64         `json:"total"`
		Transactions []Transaction `json:"transactions"`
	}
)

var (
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Validate checks the fields a stored transaction cannot do without.
func (t Transaction) Validate() error {
	if t.DateOfSale.IsZero() {
		return fmt.Errorf("%w: id %d has no date of sale", ErrInvalidTransaction, t.ID)
	}
	return nil
}
