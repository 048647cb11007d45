package core

import (
	"math"
	"strings"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100

	// MaxPageNumber keeps Offset within int for every allowed PerPage.
	MaxPageNumber = math.MaxInt / MaxPerPage
)

// Filter is the store-neutral query a listing or aggregate runs against.
// A nil Month and empty Search match every record.
type Filter struct {
	Month  *Month
	Search string
}

// ForMonth builds a month-only filter; aggregates never apply search.
func ForMonth(m *Month) Filter {
	return Filter{Month: m}
}

// HasSearch reports whether the text predicate is active.
func (f Filter) HasSearch() bool {
	return f.Search != ""
}

// MonthOnly drops the search predicate.
func (f Filter) MonthOnly() Filter {
	return Filter{Month: f.Month}
}

// Match evaluates the filter in memory. Store backends translate the same
// rules into their native query language.
func (f Filter) Match(t Transaction) bool {
	if f.Month != nil && !f.Month.Range().Contains(t.DateOfSale) {
		return false
	}
	if f.HasSearch() {
		needle := Fold(f.Search)
		if !strings.Contains(Fold(t.Title), needle) &&
			!strings.Contains(Fold(t.Description), needle) {
			return false
		}
	}
	return true
}

// Fold lowercases s for case-insensitive search, Unicode included.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Page selects a window of a listing. Number is 1-based.
type Page struct {
	Number  int
	PerPage int
}

// NewPage clamps the inputs: anything below 1 falls back to the defaults,
// PerPage is capped at MaxPerPage and Number at MaxPageNumber.
func NewPage(number, perPage int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPageNumber {
		number = MaxPageNumber
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Page{Number: number, PerPage: perPage}
}

// Offset is the number of records skipped before the window starts. It
// saturates at math.MaxInt for pages built without NewPage.
func (p Page) Offset() int {
	if p.Number < 1 || p.PerPage < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Number - 1) * p.PerPage
}

// Limit is the maximum window size.
func (p Page) Limit() int {
	return p.PerPage
}
