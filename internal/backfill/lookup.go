// Package backfill fills missing company founding dates from an external,
// best-effort lookup (web search, page scrape and a generative model).
package backfill

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Values written into dateFounded when a lookup gives no date. The date
// sanitizer nulls both afterwards.
const (
	NotFoundSentinel = "Not Found"
	FailureSentinel  = "Error: AI Failure"
)

// ErrNotFound reports that the lookup ran but found nothing to extract from.
var ErrNotFound = errors.New("founding date not found")

// Lookup finds a founding date for a company in a location. It returns
// ErrNotFound when there is nothing to go on; any other error is a failure.
type Lookup interface {
	Lookup(ctx context.Context, companyName, location string) (string, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, companyName, location string) (string, error)

func (f LookupFunc) Lookup(ctx context.Context, companyName, location string) (string, error) {
	return f(ctx, companyName, location)
}

var bareYear = regexp.MustCompile(`^\d{4}$`)

// FormatFoundedDate expands a bare year to YYYY-01-01. Anything else is
// returned trimmed and left to the sanitizer.
func FormatFoundedDate(s string) string {
	s = strings.TrimSpace(s)
	if bareYear.MatchString(s) {
		return s + "-01-01"
	}
	return s
}
