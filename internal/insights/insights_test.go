package insights

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dealflow/pkg/models"
)

func amt(f float64) *float64 { return &f }

func sampleDeals() []models.Deal {
	return []models.Deal{
		{ID: "1", CompanyName: "acme", Date: "2021-01-15", Amount: amt(1_000_000), RoundType: "Seed", PrimaryTag: "fintech", Headquarters: "Toronto", EcosystemName: "Toronto"},
		{ID: "2", CompanyName: "acme", Date: "2021-02-20", Amount: amt(3_000_000), RoundType: "Series A", PrimaryTag: "fintech", Headquarters: "Toronto", EcosystemName: "Toronto"},
		{ID: "3", CompanyName: "globex", Date: "2021-07-01", Amount: amt(500_000), RoundType: "Seed", PrimaryTag: "health", Headquarters: "Montreal", EcosystemName: "Montreal"},
		{ID: "4", CompanyName: "initech", Date: "2022-03-31", RoundType: "Seed", PrimaryTag: "saas", Headquarters: "Ottawa", EcosystemName: "Ottawa"},
		{ID: "5", CompanyName: "hooli", Date: "2018-12-31", Amount: amt(9_000_000), RoundType: "Series B", PrimaryTag: "ai"},
		{ID: "6", CompanyName: "umbrella", Date: "", Amount: amt(7_000_000), RoundType: "Seed"},
		{ID: "7", CompanyName: "zero", Date: "2023-05-05", Amount: amt(0), RoundType: "Grant", PrimaryTag: "climate", Headquarters: "Calgary"},
	}
}

func sampleDealInvestors() []models.DealInvestor {
	return []models.DealInvestor{
		{DealID: "1", InvestorID: "10", InvestorName: "alpha fund", InvestorCountry: "Canada", Year: 2021},
		{DealID: "2", InvestorID: "10", InvestorName: "alpha fund", InvestorCountry: "Canada", Year: 2021},
		{DealID: "3", InvestorID: "11", InvestorName: "beta vc", InvestorCountry: "USA", Year: 2021},
		{DealID: "4", InvestorID: "12", InvestorName: "gamma", InvestorCountry: "Canada", Year: 2022},
		{DealID: "4", InvestorID: "11", InvestorName: "beta vc", InvestorCountry: "USA", Year: 2022},
		{DealID: "5", InvestorID: "13", InvestorName: "old money", InvestorCountry: "UK", Year: 2018},
		{DealID: "3", InvestorID: "14", InvestorName: "nowhere", Year: 2021},
	}
}

func TestFilterDeals(t *testing.T) {
	in := FilterDeals(sampleDeals(), DefaultWindow())
	ids := make([]string, 0, len(in))
	for _, d := range in {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "7"}, ids)
}

func TestSummarize(t *testing.T) {
	s := Summarize(FilterDeals(sampleDeals(), DefaultWindow()))
	assert.Equal(t, 5, s.Deals)
	assert.InDelta(t, 4_500_000, s.TotalAmount, 0.001)
	assert.InDelta(t, 3_000_000, s.Largest, 0.001)
	assert.InDelta(t, 0, s.Smallest, 0.001)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestQuarterLabel(t *testing.T) {
	assert.Equal(t, "'21 Q1", QuarterLabel(time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "'09 Q4", QuarterLabel(time.Date(2009, 10, 1, 0, 0, 0, 0, time.UTC)))
}

func TestQuarters(t *testing.T) {
	qs := Quarters(FilterDeals(sampleDeals(), DefaultWindow()))
	require.Len(t, qs, 4)

	assert.Equal(t, "'21 Q1", qs[0].Label)
	assert.Equal(t, 2, qs[0].Deals)
	assert.InDelta(t, 4_000_000, qs[0].Total, 0.001)
	assert.InDelta(t, 2_000_000, qs[0].Mean, 0.001)

	assert.Equal(t, "'21 Q3", qs[1].Label)
	assert.Equal(t, "'22 Q1", qs[2].Label)
	assert.Equal(t, 1, qs[2].Deals)
	assert.Zero(t, qs[2].Mean, "deals without amount do not count toward the mean")
	assert.Equal(t, "'23 Q2", qs[3].Label)
}

func TestYears(t *testing.T) {
	ys := Years(FilterDeals(sampleDeals(), DefaultWindow()))
	require.Len(t, ys, 3)
	assert.Equal(t, 2021, ys[0].Year)
	assert.Equal(t, 3, ys[0].Deals)
	assert.InDelta(t, 1_500_000, ys[0].Mean, 0.001)
	assert.Equal(t, 2022, ys[1].Year)
	assert.Equal(t, 2023, ys[2].Year)
}

func TestTopSectorsAndRegions(t *testing.T) {
	in := FilterDeals(sampleDeals(), DefaultWindow())

	sectors := TopSectors(in, 10)
	require.Len(t, sectors, 2, "zero and missing amounts are excluded")
	assert.Equal(t, Ranked{Name: "fintech", Amount: 4_000_000, Deals: 2}, sectors[0])
	assert.Equal(t, "health", sectors[1].Name)

	regions := TopRegions(in, 1)
	require.Len(t, regions, 1)
	assert.Equal(t, "Toronto", regions[0].Name)
}

func TestStageAggregates(t *testing.T) {
	in := FilterDeals(sampleDeals(), DefaultWindow())

	stages := StageTopSectors(in)
	require.Len(t, stages, 3)
	assert.Equal(t, "Grant", stages[0].Stage)
	assert.Empty(t, stages[0].Sectors)
	assert.Equal(t, "Seed", stages[1].Stage)
	require.Len(t, stages[1].Sectors, 2)
	assert.Equal(t, "fintech", stages[1].Sectors[0].Name)

	eco := StageEcosystemCounts(in)
	require.Len(t, eco, 3)
	assert.Equal(t, StageEcosystems{Stage: "Seed", Ecosystems: 3}, eco[1])
	assert.Equal(t, StageEcosystems{Stage: "Series A", Ecosystems: 1}, eco[2])
}

func TestInvestorsByCountry(t *testing.T) {
	got := InvestorsByCountry(FilterDealInvestors(sampleDealInvestors(), DefaultWindow()))
	assert.Equal(t, []CountryCount{
		{Country: "Canada", Investors: 2},
		{Country: "USA", Investors: 1},
	}, got)
}

func TestTopFirms(t *testing.T) {
	dis := FilterDealInvestors(sampleDealInvestors(), DefaultWindow())

	all := TopFirms(dis, 2, 0)
	assert.Equal(t, []FirmActivity{
		{Name: "alpha fund", Deals: 2},
		{Name: "beta vc", Deals: 2},
	}, all)

	y2022 := TopFirms(dis, 10, 2022)
	assert.Equal(t, []FirmActivity{
		{Name: "beta vc", Deals: 1},
		{Name: "gamma", Deals: 1},
	}, y2022)
}

func TestYearStageTotals(t *testing.T) {
	got := YearStageTotals(FilterDeals(sampleDeals(), DefaultWindow()))
	assert.Equal(t, []YearStage{
		{Year: 2021, Stage: "Seed", Deals: 2, Total: 1_500_000},
		{Year: 2021, Stage: "Series A", Deals: 1, Total: 3_000_000},
		{Year: 2022, Stage: "Seed", Deals: 1},
		{Year: 2023, Stage: "Grant", Deals: 1},
	}, got)
}

func TestSectorRegionTotals(t *testing.T) {
	got := SectorRegionTotals(FilterDeals(sampleDeals(), DefaultWindow()))
	assert.Equal(t, []SectorRegion{
		{Sector: "climate", Region: "Calgary", Deals: 1},
		{Sector: "fintech", Region: "Toronto", Deals: 2, Total: 4_000_000},
		{Sector: "health", Region: "Montreal", Deals: 1, Total: 500_000},
		{Sector: "saas", Region: "Ottawa", Deals: 1},
	}, got)
}

func TestStageCountryActivity(t *testing.T) {
	w := DefaultWindow()
	got := StageCountryActivity(FilterDealInvestors(sampleDealInvestors(), w), FilterDeals(sampleDeals(), w))
	assert.Equal(t, []StageCountry{
		{Stage: "Seed", Country: "Canada", Investors: 2, Deals: 2, AvgDealSize: 1_000_000},
		{Stage: "Seed", Country: "USA", Investors: 1, Deals: 2, AvgDealSize: 500_000},
		{Stage: "Series A", Country: "Canada", Investors: 1, Deals: 1, AvgDealSize: 3_000_000},
	}, got)

	// a round type on the row wins over the deal's
	dis := []models.DealInvestor{{DealID: "1", InvestorID: "10", InvestorCountry: "Canada", RoundType: "Pre-Seed"}}
	got = StageCountryActivity(dis, sampleDeals())
	require.Len(t, got, 1)
	assert.Equal(t, "Pre-Seed", got[0].Stage)

	assert.Empty(t, StageCountryActivity(sampleDealInvestors(), nil), "rows need their deal")
}

func TestBuildDefaultsTopN(t *testing.T) {
	r := Build(sampleDeals(), sampleDealInvestors(), DefaultWindow(), 0)
	assert.Equal(t, DefaultWindow(), r.Window)
	assert.Equal(t, 5, r.Summary.Deals)
	assert.Len(t, r.Firms, 4)
}

func TestSaveXLSX(t *testing.T) {
	r := Build(sampleDeals(), sampleDealInvestors(), DefaultWindow(), 5)
	path := filepath.Join(t.TempDir(), "insights.xlsx")
	require.NoError(t, r.SaveXLSX(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		SheetSummary, SheetQuarters, SheetYears, SheetSectors, SheetRegions,
		SheetStages, SheetEcosystems, SheetCountries, SheetFirms,
		SheetYearStages, SheetSectorRegions, SheetStageCountries,
	}, f.GetSheetList())

	rows, err := f.GetRows(SheetQuarters)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Period", "Deals", "Total", "Mean"}, rows[0])
	assert.Equal(t, "'21 Q1", rows[1][0])

	firms, err := f.GetRows(SheetFirms)
	require.NoError(t, err)
	assert.Equal(t, "alpha fund", firms[1][0])

	stageCountries, err := f.GetRows(SheetStageCountries)
	require.NoError(t, err)
	require.Len(t, stageCountries, 4)
	assert.Equal(t, []string{"Seed", "Canada", "2", "2", "1000000"}, stageCountries[1])

	sectorRegions, err := f.GetRows(SheetSectorRegions)
	require.NoError(t, err)
	assert.Len(t, sectorRegions, 5)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(nil, nil, DefaultWindow(), 5).WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2019", rows[1][0])
}
