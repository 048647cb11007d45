// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of the dashboard query string.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"txdash/internal/core"
)

// ListParams holds the parsed parameters of a listing request.
type ListParams struct {
	Filter core.Filter
	Page   core.Page
}

// ParseMonthParam reads the optional month parameter. An absent or blank
// value yields nil (no month restriction); anything unparsable is an error.
func ParseMonthParam(query url.Values) (*core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseListParams extracts month, search, page and perPage. Only a malformed
// month is rejected; bad paging values fall back to the defaults.
func ParseListParams(query url.Values) (ListParams, error) {
	m, err := ParseMonthParam(query)
	if err != nil {
		return ListParams{}, err
	}
	return ListParams{
		Filter: core.Filter{
			Month:  m,
			Search: sanitizeInput(query.Get("search")),
		},
		Page: core.NewPage(
			parseIntDefault(query.Get("page"), 1),
			parseIntDefault(query.Get("perPage"), core.DefaultPerPage),
		),
	}, nil
}

func parseIntDefault(v string, def int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET is a convenience function for GET-only handlers.
func RequireGET(r *http.Request) *JSONResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}
