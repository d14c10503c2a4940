package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/backfill"
	"dealflow/internal/events"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

type recorder struct {
	mu     sync.Mutex
	events []events.RunEvent
}

func (r *recorder) Publish(ev events.RunEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixturePaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	p := Paths{
		RawDeals:         filepath.Join(dir, "raw_data", "deals.csv"),
		Deals:            filepath.Join(dir, "data", "deals_updated.csv"),
		Companies:        filepath.Join(dir, "data", "companies_updated.csv"),
		CompaniesCleaned: filepath.Join(dir, "data", "companies_cleaned.csv"),
		Investors:        filepath.Join(dir, "data", "investors_updated.csv"),
		InvestorsEDA:     filepath.Join(dir, "data", "EDA", "investors_EDA.csv"),
		DealInvestors:    filepath.Join(dir, "data", "dealInvestor_updated.csv"),
		CompaniesOut:     filepath.Join(dir, "data", "companies_final.csv"),
		DealInvestorsOut: filepath.Join(dir, "data", "dealInvestor_final.csv"),
		InvestorsOut:     filepath.Join(dir, "data", "investors_final.csv"),
	}

	writeFile(t, p.RawDeals, "id,companyName,date,amount,roundType,investors,leadInvestors,primaryTag,headquarters,ecosystemName\n"+
		"1,Acme,2021-01-01,1000000,Series ?,\"Alpha Fund, Beta VC\",Alpha Fund,fintech,Toronto,Toronto\n"+
		"2,Acme,2022-03-01,10000000,Series A,Beta VC,,fintech,Toronto,Toronto\n")
	writeFile(t, p.Companies, "companyName,dateFounded,latestRoundType,latestRoundDate,dateAcquisition,ecosystemName\n"+
		" ACME ,,,,not-a-date,Toronto\n"+
		"Globex,2010-05-01,,,,Montreal\n"+
		"Initech,,,,,Ottawa\n"+
		"Hooli,,,,,Waterloo\n")
	writeFile(t, p.Investors, "investorName,country\n"+
		"Alpha Fund,Canada\n"+
		"beta vc,\n")
	writeFile(t, p.InvestorsEDA, "investorName,country,stages,sectors\n"+
		"alpha fund,Canada,Grant,\n"+
		"Beta VC,,,\n")
	writeFile(t, p.DealInvestors, "dealId,investorId,investorName,investorCountry,year\n"+
		"1,10,ALPHA FUND,,2021\n"+
		"1,11,Beta VC,,2021\n"+
		"2,11,beta vc,USA,2022\n")
	return p
}

func readTable(t *testing.T, path string) *table.Table {
	t.Helper()
	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	return tbl
}

// fakeLookup knows Initech under its listed spelling only.
func fakeLookup() backfill.Lookup {
	return backfill.LookupFunc(func(_ context.Context, name, _ string) (string, error) {
		if name == "Initech" {
			return "2015", nil
		}
		return "", backfill.ErrNotFound
	})
}

func TestRunEndToEnd(t *testing.T) {
	paths := fixturePaths(t)
	rec := &recorder{}
	reg := prometheus.NewRegistry()

	r := NewRunner(paths, Options{Lookup: fakeLookup(), RunID: "run-1"}, nil)
	r.Metrics = NewMetrics(reg)
	r.Notifier = rec

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", sum.RunID)
	assert.Len(t, sum.Steps, len(order))
	assert.ElementsMatch(t, []string{paths.Deals, paths.CompaniesOut, paths.DealInvestorsOut, paths.InvestorsOut}, sum.Outputs)
	require.NotNil(t, sum.Backfill)
	assert.Equal(t, 2, sum.Backfill.Lookups)
	assert.Equal(t, 1, sum.Backfill.Found)
	assert.Equal(t, 1, sum.Backfill.NotFound)

	deals := readTable(t, paths.Deals)
	assert.Equal(t, models.RoundSeed, deals.Get(0, models.ColRoundType))
	assert.Equal(t, models.RoundSeriesA, deals.Get(1, models.ColRoundType))

	companies := readTable(t, paths.CompaniesOut)
	assert.Equal(t, "acme", companies.Get(0, models.ColCompanyName))
	assert.Equal(t, "2020-01-01", companies.Get(0, models.ColDateFounded))
	assert.Equal(t, models.RoundSeriesA, companies.Get(0, models.ColLatestRoundType))
	assert.Equal(t, "2022-03-01", companies.Get(0, models.ColLatestRoundDate))
	assert.Equal(t, "", companies.Get(0, models.ColDateAcquisition))
	assert.Equal(t, "2010-05-01", companies.Get(1, models.ColDateFounded))
	assert.Equal(t, "2015-01-01", companies.Get(2, models.ColDateFounded))
	assert.Equal(t, "", companies.Get(3, models.ColDateFounded), "sentinel is sanitized away")

	dis := readTable(t, paths.DealInvestorsOut)
	assert.Equal(t, "Canada", dis.Get(0, models.ColInvestorCountry))
	assert.Equal(t, "", dis.Get(1, models.ColInvestorCountry))
	assert.Equal(t, "USA", dis.Get(2, models.ColInvestorCountry))

	inv := readTable(t, paths.InvestorsOut)
	assert.Equal(t, "alpha fund", inv.Get(0, models.ColInvestorName))
	assert.Equal(t, "Grant, Seed", inv.Get(0, models.ColStages))
	assert.Equal(t, "fintech", inv.Get(0, models.ColSectors))
	assert.Equal(t, "Seed, Series A", inv.Get(1, models.ColStages))

	types := rec.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.TypeRunStarted, types[0])
	assert.Equal(t, events.TypeRunFinished, types[len(types)-1])

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.lookups.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.filled.WithLabelValues("founded", models.ColDateFounded)))
}

func TestRunIsIdempotentOnOutputs(t *testing.T) {
	paths := fixturePaths(t)
	r := NewRunner(paths, Options{}, nil)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	first, err := os.ReadFile(paths.InvestorsOut)
	require.NoError(t, err)

	// feed the output back in as input
	paths.InvestorsEDA = paths.InvestorsOut
	r.Paths = paths
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	second, err := os.ReadFile(paths.InvestorsOut)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestRunMissingInputWritesNothing(t *testing.T) {
	paths := fixturePaths(t)
	require.NoError(t, os.Remove(paths.DealInvestors))
	rec := &recorder{}

	r := NewRunner(paths, Options{}, nil)
	r.Notifier = rec
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(paths.CompaniesOut)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
	assert.Contains(t, rec.types(), events.TypeRunFailed)
}

func TestRunMissingColumnFails(t *testing.T) {
	paths := fixturePaths(t)
	writeFile(t, paths.RawDeals, "id,companyName,date\n1,Acme,2021-01-01\n")

	_, err := NewRunner(paths, Options{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "step roundtype")
}

func TestRunStep(t *testing.T) {
	paths := fixturePaths(t)
	r := NewRunner(paths, Options{}, nil)

	sum, err := r.RunStep(context.Background(), StepRoundType)
	require.NoError(t, err)
	assert.Equal(t, []string{paths.Deals}, sum.Outputs)
	require.Len(t, sum.Steps, 1)
	assert.Equal(t, 1, sum.Steps[0].Reports[0].Filled)

	sum, err = r.RunStep(context.Background(), StepFounded)
	require.NoError(t, err)
	assert.Equal(t, []string{paths.CompaniesOut}, sum.Outputs)

	companies := readTable(t, paths.CompaniesOut)
	assert.Equal(t, "2020-01-01", companies.Get(0, models.ColDateFounded))
	assert.Equal(t, "not-a-date", companies.Get(0, models.ColDateAcquisition), "single step leaves other columns alone")

	sum, err = r.RunStep(context.Background(), StepCountries)
	require.NoError(t, err)
	require.Len(t, sum.Steps[0].Reports, 1)
	assert.Equal(t, []string{"beta vc"}, sum.Steps[0].Reports[0].Unmatched)
}

func TestRunStepsChainThroughOutputs(t *testing.T) {
	paths := fixturePaths(t)
	r := NewRunner(paths, Options{}, nil)

	for _, name := range []string{StepRoundType, StepLatestRound, StepFounded, StepSanitize} {
		_, err := r.RunStep(context.Background(), name)
		require.NoError(t, err, name)
	}

	companies := readTable(t, paths.CompaniesOut)
	require.Equal(t, 4, companies.Len())
	assert.Equal(t, "acme", companies.Get(0, models.ColCompanyName))
	assert.Equal(t, "2020-01-01", companies.Get(0, models.ColDateFounded))
	assert.Equal(t, models.RoundSeriesA, companies.Get(0, models.ColLatestRoundType))
	assert.Equal(t, "2022-03-01", companies.Get(0, models.ColLatestRoundDate))
	assert.Equal(t, "", companies.Get(0, models.ColDateAcquisition))

	// the source snapshot is never rewritten
	src := readTable(t, paths.Companies)
	assert.Equal(t, " ACME ", src.Get(0, models.ColCompanyName))
	assert.Equal(t, "", src.Get(0, models.ColLatestRoundType))
}

func TestRunStepBackfillReadsEarlierOutput(t *testing.T) {
	paths := fixturePaths(t)
	writeFile(t, paths.CompaniesCleaned, "companyName,dateFounded,ecosystemName\nInitech,,Ottawa\n")

	var names []string
	lookup := backfill.LookupFunc(func(ctx context.Context, name, location string) (string, error) {
		names = append(names, name)
		return fakeLookup().Lookup(ctx, name, location)
	})
	r := NewRunner(paths, Options{Lookup: lookup}, nil)

	_, err := r.RunStep(context.Background(), StepLatestRound)
	require.NoError(t, err)
	_, err = r.RunStep(context.Background(), StepBackfill)
	require.NoError(t, err)

	// the latest-round output wins over the one-row cleaned file
	assert.Len(t, names, 3)
	companies := readTable(t, paths.CompaniesOut)
	require.Equal(t, 4, companies.Len())
	assert.Equal(t, models.RoundSeriesA, companies.Get(0, models.ColLatestRoundType))
}

func TestRunBackfillSearchesListedName(t *testing.T) {
	paths := fixturePaths(t)
	var names []string
	lookup := backfill.LookupFunc(func(ctx context.Context, name, location string) (string, error) {
		names = append(names, name)
		return fakeLookup().Lookup(ctx, name, location)
	})

	_, err := NewRunner(paths, Options{Lookup: lookup}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Initech", "Hooli"}, names)

	companies := readTable(t, paths.CompaniesOut)
	assert.Equal(t, "initech", companies.Get(2, models.ColCompanyName))
	assert.Equal(t, "2015-01-01", companies.Get(2, models.ColDateFounded))
}

func TestRunStepBackfillPrefersCleanedCompanies(t *testing.T) {
	paths := fixturePaths(t)
	writeFile(t, paths.CompaniesCleaned, "companyName,dateFounded,ecosystemName\nInitech,,Ottawa\n")

	r := NewRunner(paths, Options{Lookup: fakeLookup()}, nil)
	sum, err := r.RunStep(context.Background(), StepBackfill)
	require.NoError(t, err)
	require.NotNil(t, sum.Backfill)
	assert.Equal(t, 1, sum.Backfill.Lookups)

	companies := readTable(t, paths.CompaniesOut)
	require.Equal(t, 1, companies.Len())
	assert.Equal(t, "2015-01-01", companies.Get(0, models.ColDateFounded))
}

func TestRunStepUnknown(t *testing.T) {
	_, err := NewRunner(Paths{}, Options{}, nil).RunStep(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestRunCancelledDuringBackfill(t *testing.T) {
	paths := fixturePaths(t)
	ctx, cancel := context.WithCancel(context.Background())
	lookup := backfill.LookupFunc(func(context.Context, string, string) (string, error) {
		cancel()
		return "2015", nil
	})

	_, err := NewRunner(paths, Options{Lookup: lookup}, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(paths.CompaniesOut)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
