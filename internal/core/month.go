package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReferenceYear is the year every date is projected onto before month matching.
// 2000 is a leap year, so February 29 always has a place.
const ReferenceYear = 2000

// Month is a calendar month, January through December.
type Month time.Month

const (
	January Month = iota + 1
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

// ParseMonth accepts full English month names, three letter abbreviations
// and the numbers 1-12. Matching is case-insensitive.
func ParseMonth(s string) (Month, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidMonth)
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidMonth, n)
		}
		return Month(n), nil
	}
	for m := January; m <= December; m++ {
		name := strings.ToLower(m.String())
		if v == name || v == name[:3] {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

func (m Month) String() string {
	return time.Month(m).String()
}

// Valid reports whether m is one of the twelve calendar months.
func (m Month) Valid() bool {
	return m >= January && m <= December
}

// Range returns the half-open interval covering m in the reference year.
// An invalid month yields the empty range, which contains nothing.
func (m Month) Range() MonthRange {
	if !m.Valid() {
		return MonthRange{}
	}
	start := time.Date(ReferenceYear, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	return MonthRange{Start: start, End: start.AddDate(0, 1, 0)}
}

// MonthRange is [Start, End) in the reference year, UTC.
type MonthRange struct {
	Start time.Time
	End   time.Time
}

// Contains projects t onto the reference year and tests membership, so the
// record's own year never matters.
func (r MonthRange) Contains(t time.Time) bool {
	p := ProjectToReferenceYear(t)
	return !p.Before(r.Start) && p.Before(r.End)
}

// ProjectToReferenceYear keeps the UTC month, day and clock time of t and
// replaces its year with ReferenceYear.
func ProjectToReferenceYear(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(ReferenceYear, u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}
