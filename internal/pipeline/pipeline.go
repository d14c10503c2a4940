// Package pipeline loads the CSV snapshots, composes the impute transforms in
// order and writes the results once every step has succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"dealflow/internal/backfill"
	"dealflow/internal/events"
	"dealflow/internal/impute"
	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
	"dealflow/pkg/utils"
)

// Step names, also used as metric labels and cobra subcommands.
const (
	StepRoundType   = "roundtype"
	StepLatestRound = "latest-round"
	StepFounded     = "founded"
	StepBackfill    = "backfill"
	StepSanitize    = "sanitize"
	StepCountries   = "countries"
	StepTags        = "tags"
)

var ErrUnknownStep = errors.New("unknown step")

// Paths lists every CSV the pipeline reads or writes.
type Paths struct {
	RawDeals         string
	Deals            string
	Companies        string
	CompaniesCleaned string
	Investors        string
	InvestorsEDA     string
	DealInvestors    string

	CompaniesOut     string
	DealInvestorsOut string
	InvestorsOut     string
}

func PathsFromConfig(c utils.DataConfig) Paths {
	return Paths{
		RawDeals:         c.RawDeals,
		Deals:            c.Deals,
		Companies:        c.Companies,
		CompaniesCleaned: c.CompaniesCleaned,
		Investors:        c.Investors,
		InvestorsEDA:     c.InvestorsEDA,
		DealInvestors:    c.DealInvestors,
		CompaniesOut:     c.CompaniesOut,
		DealInvestorsOut: c.DealInvestorsOut,
		InvestorsOut:     c.InvestorsOut,
	}
}

type Options struct {
	// Lookup enables the founding-date backfill when non-nil.
	Lookup backfill.Lookup
	Delay  time.Duration
	RunID  string
}

// StepResult is what one step did and how long it took.
type StepResult struct {
	Name    string          `json:"name"`
	Reports []impute.Report `json:"reports"`
	Took    time.Duration   `json:"took"`
}

type Summary struct {
	RunID    string           `json:"run_id"`
	Steps    []StepResult     `json:"steps"`
	Backfill *backfill.Result `json:"backfill,omitempty"`
	Outputs  []string         `json:"outputs"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
}

// Reports flattens every step report in execution order.
func (s Summary) Reports() []impute.Report {
	var out []impute.Report
	for _, st := range s.Steps {
		out = append(out, st.Reports...)
	}
	return out
}

type Runner struct {
	Paths    Paths
	Options  Options
	Logger   *slog.Logger
	Metrics  *Metrics
	Notifier events.Publisher
}

func NewRunner(paths Paths, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Paths: paths, Options: opts, Logger: logger}
}

// slot names one in-memory table shared between steps.
type slot int

const (
	slotDeals slot = iota
	slotCompanies
	slotInvestors
	slotInvestorsEDA
	slotDealInvestors
)

type state map[slot]*table.Table

type step struct {
	name   string
	reads  []slot
	writes []slot
	apply  func(ctx context.Context, r *Runner, st state, sum *Summary) ([]impute.Report, error)
}

var steps = map[string]step{
	StepRoundType: {
		name:   StepRoundType,
		reads:  []slot{slotDeals},
		writes: []slot{slotDeals},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			rep, err := impute.RoundTypes(st[slotDeals])
			return []impute.Report{rep}, err
		},
	},
	StepLatestRound: {
		name:   StepLatestRound,
		reads:  []slot{slotCompanies, slotDeals},
		writes: []slot{slotCompanies},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			return impute.LatestRounds(st[slotCompanies], st[slotDeals])
		},
	},
	StepFounded: {
		name:   StepFounded,
		reads:  []slot{slotCompanies, slotDeals},
		writes: []slot{slotCompanies},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			rep, err := impute.FoundedDates(st[slotCompanies], st[slotDeals])
			return []impute.Report{rep}, err
		},
	},
	StepBackfill: {
		name:   StepBackfill,
		reads:  []slot{slotCompanies},
		writes: []slot{slotCompanies},
		apply:  applyBackfill,
	},
	StepSanitize: {
		name:   StepSanitize,
		reads:  []slot{slotCompanies},
		writes: []slot{slotCompanies},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			return impute.SanitizeDates(st[slotCompanies]), nil
		},
	},
	StepCountries: {
		name:   StepCountries,
		reads:  []slot{slotDealInvestors, slotInvestors},
		writes: []slot{slotDealInvestors},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			lookup, err := impute.BuildCountryLookup(st[slotInvestors])
			if err != nil {
				return nil, err
			}
			rep, err := impute.Countries(st[slotDealInvestors], lookup)
			return []impute.Report{rep}, err
		},
	},
	StepTags: {
		name:   StepTags,
		reads:  []slot{slotInvestorsEDA, slotDeals},
		writes: []slot{slotInvestorsEDA},
		apply: func(_ context.Context, _ *Runner, st state, _ *Summary) ([]impute.Report, error) {
			return impute.Tags(st[slotInvestorsEDA], st[slotDeals])
		},
	},
}

// order is the full-run sequence.
var order = []string{
	StepRoundType,
	StepLatestRound,
	StepFounded,
	StepBackfill,
	StepSanitize,
	StepCountries,
	StepTags,
}

// Steps lists the step names in full-run order.
func Steps() []string {
	return append([]string(nil), order...)
}

func applyBackfill(ctx context.Context, r *Runner, st state, sum *Summary) ([]impute.Report, error) {
	if r.Options.Lookup == nil {
		r.Logger.Info("backfill skipped, no lookup configured")
		return nil, nil
	}
	b := backfill.New(r.Options.Lookup, r.Options.Delay, r.Logger)
	b.OnLookup = r.Metrics.ObserveLookup
	res, err := b.Run(ctx, st[slotCompanies])
	sum.Backfill = &res
	if err != nil {
		return []impute.Report{res.Report}, err
	}
	r.Logger.Info("backfill lookups finished",
		"lookups", res.Lookups, "found", res.Found, "not_found", res.NotFound, "failed", res.Failed)
	return []impute.Report{res.Report}, nil
}

// Run executes every step in order over one set of loaded tables and writes
// the deals, companies, deal-investor and investor outputs.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	inputs := map[slot]string{
		slotDeals:         r.Paths.RawDeals,
		slotCompanies:     r.Paths.Companies,
		slotInvestors:     r.Paths.Investors,
		slotInvestorsEDA:  r.Paths.InvestorsEDA,
		slotDealInvestors: r.Paths.DealInvestors,
	}
	outputs := []slot{slotDeals, slotCompanies, slotDealInvestors, slotInvestorsEDA}
	return r.execute(ctx, order, inputs, outputs)
}

// RunStep executes a single step, reading its inputs from Paths and writing
// only the tables it changed. A table some earlier step already wrote is read
// back from that output, so single steps chain.
func (r *Runner) RunStep(ctx context.Context, name string) (Summary, error) {
	s, ok := steps[name]
	if !ok {
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	inputs := make(map[slot]string, len(s.reads))
	for _, sl := range s.reads {
		inputs[sl] = r.stepInput(name, sl)
	}
	return r.execute(ctx, []string{name}, inputs, s.writes)
}

// stepInput resolves where a single step reads a table from: the slot's
// output when it exists, otherwise its source file. Round types always start
// from the raw deals; the backfill falls back to the cleaned companies file.
func (r *Runner) stepInput(name string, sl slot) string {
	if sl == slotDeals && name == StepRoundType {
		return r.Paths.RawDeals
	}
	if out := r.outputPath(sl); fileExists(out) {
		return out
	}
	switch sl {
	case slotCompanies:
		if name == StepBackfill && r.Paths.CompaniesCleaned != "" {
			return r.Paths.CompaniesCleaned
		}
		return r.Paths.Companies
	case slotInvestorsEDA:
		return r.Paths.InvestorsEDA
	case slotDealInvestors:
		return r.Paths.DealInvestors
	default:
		return r.outputPath(sl)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func (r *Runner) outputPath(sl slot) string {
	switch sl {
	case slotDeals:
		return r.Paths.Deals
	case slotCompanies:
		return r.Paths.CompaniesOut
	case slotInvestors:
		return r.Paths.Investors
	case slotInvestorsEDA:
		return r.Paths.InvestorsOut
	default:
		return r.Paths.DealInvestorsOut
	}
}

func (r *Runner) execute(ctx context.Context, names []string, inputs map[slot]string, outputs []slot) (Summary, error) {
	runID := r.Options.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	sum := Summary{RunID: runID, Started: time.Now().UTC()}
	log := r.Logger.With("run_id", runID)

	r.publish(events.RunEvent{Type: events.TypeRunStarted, RunID: runID})
	log.Info("pipeline run started", "steps", names)

	fail := func(err error) (Summary, error) {
		sum.Finished = time.Now().UTC()
		r.Metrics.observeRun("error")
		r.publish(events.RunEvent{Type: events.TypeRunFailed, RunID: runID, Error: err.Error()})
		log.Error("pipeline run failed", "error", err)
		return sum, err
	}

	st, err := load(inputs)
	if err != nil {
		return fail(err)
	}

	for _, name := range names {
		s := steps[name]
		start := time.Now()
		reps, err := s.apply(ctx, r, st, &sum)
		took := time.Since(start)
		r.Metrics.observeStep(name, took, err, reps)
		if err != nil {
			return fail(fmt.Errorf("step %s: %w", name, err))
		}

		sum.Steps = append(sum.Steps, StepResult{Name: name, Reports: reps, Took: took})
		LogReports(log, reps)
		r.publish(events.RunEvent{Type: events.TypeStepFinished, RunID: runID, Step: name, Reports: reps})
	}

	for _, sl := range outputs {
		if sl == slotCompanies {
			normalize.Column(st[sl], models.ColCompanyName)
		}
		path := r.outputPath(sl)
		if err := st[sl].WriteFile(path); err != nil {
			return fail(fmt.Errorf("write %s: %w", path, err))
		}
		sum.Outputs = append(sum.Outputs, path)
	}

	sum.Finished = time.Now().UTC()
	r.Metrics.observeRun("ok")
	r.publish(events.RunEvent{Type: events.TypeRunFinished, RunID: runID, Reports: sum.Reports()})
	log.Info("pipeline run finished", "outputs", sum.Outputs, "took", sum.Finished.Sub(sum.Started))
	return sum, nil
}

func (r *Runner) publish(ev events.RunEvent) {
	if r.Notifier == nil {
		return
	}
	r.Notifier.Publish(ev)
}

// load reads every input and normalizes investor names on the investor
// tables. Company names keep their casing until the companies table is
// written, so the backfill searches for the name as listed; the transforms
// normalize company keys on the fly.
func load(inputs map[slot]string) (state, error) {
	st := make(state, len(inputs))
	for sl, path := range inputs {
		t, err := table.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch sl {
		case slotCompanies:
			normalize.Column(t, models.ColCompanyName)
		case slotInvestors, slotInvestorsEDA, slotDealInvestors:
			normalize.Column(t, models.ColInvestorName)
		}
		st[sl] = t
	}
	return st, nil
}

// LogReports writes one line per report. Unmatched names are logged at warn.
func LogReports(log *slog.Logger, reps []impute.Report) {
	for _, rep := range reps {
		log.Info("step report",
			"step", rep.Step,
			"column", rep.Column,
			"filled", rep.Filled,
			"cleared", rep.Cleared,
			"remaining", rep.Remaining,
		)
		if len(rep.Unmatched) > 0 {
			log.Warn("values without a lookup match",
				"step", rep.Step,
				"column", rep.Column,
				"count", len(rep.Unmatched),
				"names", rep.Unmatched,
			)
		}
	}
}
