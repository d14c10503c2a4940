package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dealflow/internal/impute"
	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepBackfill = "backfill"

// DefaultDelay is the pause between two lookups.
const DefaultDelay = 2 * time.Second

// Result extends the step report with lookup outcomes.
type Result struct {
	impute.Report
	Lookups  int `json:"lookups"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// Backfiller runs one lookup per distinct (companyName, ecosystemName) pair
// that still lacks a founding date, strictly one at a time.
type Backfiller struct {
	lookup  Lookup
	limiter *rate.Limiter
	logger  *slog.Logger

	// OnLookup, when set, is called after every lookup with its outcome:
	// "found", "not_found" or "failed".
	OnLookup func(outcome string, took time.Duration)
}

// New builds a Backfiller. A non-positive delay disables throttling.
func New(lookup Lookup, delay time.Duration, logger *slog.Logger) *Backfiller {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{
		lookup:  lookup,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

type companyKey struct {
	name     string
	location string
}

// Run fills null dateFounded cells in companies. Lookup errors never abort
// the run; they are recorded as sentinels. Only context cancellation does.
func (b *Backfiller) Run(ctx context.Context, companies *table.Table) (Result, error) {
	res := Result{Report: impute.Report{Step: stepBackfill, Column: models.ColDateFounded}}
	if err := companies.Require(models.ColCompanyName, models.ColEcosystemName); err != nil {
		return res, err
	}
	companies.EnsureColumn(models.ColDateFounded)

	rows := make(map[companyKey][]int)
	// display keeps the first spelling seen, which is what gets searched for
	display := make(map[companyKey]string)
	var order []companyKey
	for i := range companies.Rows {
		if companies.Get(i, models.ColDateFounded) != "" {
			continue
		}
		name := strings.TrimSpace(companies.Get(i, models.ColCompanyName))
		k := companyKey{
			name:     normalize.Key(name),
			location: companies.Get(i, models.ColEcosystemName),
		}
		if k.name == "" || k.location == "" {
			continue
		}
		if _, seen := rows[k]; !seen {
			order = append(order, k)
			display[k] = name
		}
		rows[k] = append(rows[k], i)
	}

	for _, k := range order {
		if err := b.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("backfill interrupted: %w", err)
		}

		start := time.Now()
		value, outcome := b.lookupOne(ctx, display[k], k.location)
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("backfill interrupted: %w", err)
		}
		if b.OnLookup != nil {
			b.OnLookup(outcome, time.Since(start))
		}

		res.Lookups++
		switch outcome {
		case "found":
			res.Found++
		case "not_found":
			res.NotFound++
		default:
			res.Failed++
		}

		for _, i := range rows[k] {
			companies.Set(i, models.ColDateFounded, value)
			if impute.IsISODate(value) {
				res.Filled++
			}
		}
	}

	for i := range companies.Rows {
		if !impute.IsISODate(companies.Get(i, models.ColDateFounded)) {
			res.Remaining++
		}
	}
	return res, nil
}

func (b *Backfiller) lookupOne(ctx context.Context, name, location string) (string, string) {
	b.logger.Debug("looking up founding date", "company", name, "location", location)

	v, err := b.lookup.Lookup(ctx, name, location)
	switch {
	case errors.Is(err, ErrNotFound):
		b.logger.Info("founding date not found", "company", name, "location", location)
		return NotFoundSentinel, "not_found"
	case err != nil:
		b.logger.Warn("founding date lookup failed", "company", name, "location", location, "error", err)
		return FailureSentinel, "failed"
	}

	v = FormatFoundedDate(v)
	if v == "" {
		return NotFoundSentinel, "not_found"
	}
	b.logger.Info("founding date found", "company", name, "location", location, "date_founded", v)
	return v, "found"
}
