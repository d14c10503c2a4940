package backfill

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	defaultMaxPages = 10
	defaultMaxChars = 2000
)

// WebLookup chains search, scrape and extraction into a Lookup.
type WebLookup struct {
	Searcher  Searcher
	Fetcher   Fetcher
	Extractor Extractor
	MaxPages  int
	MaxChars  int
	Logger    *slog.Logger
}

func NewWebLookup(s Searcher, f Fetcher, e Extractor, logger *slog.Logger) *WebLookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebLookup{
		Searcher:  s,
		Fetcher:   f,
		Extractor: e,
		MaxPages:  defaultMaxPages,
		MaxChars:  defaultMaxChars,
		Logger:    logger,
	}
}

// Lookup never retries. A failed search or an empty scrape is ErrNotFound;
// only an extractor error is reported as a failure.
func (w *WebLookup) Lookup(ctx context.Context, companyName, location string) (string, error) {
	urls, err := w.Searcher.Search(ctx, SearchQuery(companyName, location))
	if err != nil {
		return "", fmt.Errorf("%w: search: %v", ErrNotFound, err)
	}

	maxPages := w.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var texts []string
	for _, u := range urls {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := w.Fetcher.Fetch(ctx, u)
		if err != nil {
			w.Logger.Debug("scrape failed", "url", u, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		texts = append(texts, truncateRunes(text, w.MaxChars))
		if len(texts) >= maxPages {
			break
		}
	}
	if len(texts) == 0 {
		return "", ErrNotFound
	}

	date, err := w.Extractor.Extract(ctx, companyName, location, texts)
	if err != nil {
		return "", fmt.Errorf("extract founding date: %w", err)
	}
	if date == "" {
		return "", ErrNotFound
	}
	return date, nil
}
