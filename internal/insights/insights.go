// Package insights computes the dashboard aggregates over the cleaned deals
// and deal-investor rows.
package insights

import (
	"fmt"
	"sort"
	"time"

	"dealflow/internal/impute"
	"dealflow/pkg/models"
)

const (
	DefaultFromYear = 2019
	DefaultToYear   = 2024
	DefaultTopN     = 10

	stageSectorLimit = 5
)

// Window is an inclusive year range.
type Window struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func DefaultWindow() Window {
	return Window{From: DefaultFromYear, To: DefaultToYear}
}

func (w Window) Contains(year int) bool {
	return year >= w.From && year <= w.To
}

type Summary struct {
	TotalAmount float64 `json:"total_amount"`
	Deals       int     `json:"deals"`
	Largest     float64 `json:"largest"`
	Smallest    float64 `json:"smallest"`
}

// Period aggregates the deals of one quarter or one year.
type Period struct {
	Label string  `json:"label"`
	Year  int     `json:"year"`
	Deals int     `json:"deals"`
	Total float64 `json:"total"`
	Mean  float64 `json:"mean"`
}

type Ranked struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Deals  int     `json:"deals"`
}

type StageSectors struct {
	Stage   string   `json:"stage"`
	Sectors []Ranked `json:"sectors"`
}

type StageEcosystems struct {
	Stage      string `json:"stage"`
	Ecosystems int    `json:"ecosystems"`
}

type CountryCount struct {
	Country   string `json:"country"`
	Investors int    `json:"investors"`
}

type FirmActivity struct {
	Name  string `json:"name"`
	Deals int    `json:"deals"`
}

// datedDeal is a deal with its parsed date.
type datedDeal struct {
	models.Deal
	at time.Time
}

// FilterDeals keeps deals with a parsable date inside w, oldest first.
func FilterDeals(deals []models.Deal, w Window) []models.Deal {
	dated := filterDated(deals, w)
	out := make([]models.Deal, len(dated))
	for i, d := range dated {
		out[i] = d.Deal
	}
	return out
}

func filterDated(deals []models.Deal, w Window) []datedDeal {
	var out []datedDeal
	for _, d := range deals {
		at, ok := impute.ParseDate(d.Date)
		if !ok || !w.Contains(at.Year()) {
			continue
		}
		d.Year = at.Year()
		out = append(out, datedDeal{Deal: d, at: at})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

func amountOf(d models.Deal) (float64, bool) {
	if d.Amount == nil {
		return 0, false
	}
	return *d.Amount, true
}

// Summarize totals deals. Largest and Smallest ignore deals without an amount.
func Summarize(deals []models.Deal) Summary {
	s := Summary{Deals: len(deals)}
	seen := false
	for _, d := range deals {
		v, ok := amountOf(d)
		if !ok {
			continue
		}
		s.TotalAmount += v
		if !seen || v > s.Largest {
			s.Largest = v
		}
		if !seen || v < s.Smallest {
			s.Smallest = v
		}
		seen = true
	}
	return s
}

// QuarterLabel formats t as 'YY Qn, e.g. '21 Q3.
func QuarterLabel(t time.Time) string {
	return quarterLabel(t.Year(), (int(t.Month())-1)/3+1)
}

func quarterLabel(year, q int) string {
	return fmt.Sprintf("'%02d Q%d", year%100, q)
}

type acc struct {
	deals  int
	total  float64
	priced int
}

func (a *acc) add(d models.Deal) {
	a.deals++
	if v, ok := amountOf(d); ok {
		a.total += v
		a.priced++
	}
}

func (a acc) mean() float64 {
	if a.priced == 0 {
		return 0
	}
	return a.total / float64(a.priced)
}

// Quarters groups deals by calendar quarter in chronological order. Deals
// without a parsable date are skipped.
func Quarters(deals []models.Deal) []Period {
	type key struct{ year, q int }
	byKey := make(map[key]*acc)
	var keys []key
	for _, d := range deals {
		at, ok := impute.ParseDate(d.Date)
		if !ok {
			continue
		}
		k := key{at.Year(), (int(at.Month())-1)/3 + 1}
		a, seen := byKey[k]
		if !seen {
			a = &acc{}
			byKey[k] = a
			keys = append(keys, k)
		}
		a.add(d)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].q < keys[j].q
	})

	out := make([]Period, 0, len(keys))
	for _, k := range keys {
		a := byKey[k]
		out = append(out, Period{
			Label: quarterLabel(k.year, k.q),
			Year:  k.year,
			Deals: a.deals,
			Total: a.total,
			Mean:  a.mean(),
		})
	}
	return out
}

// Years groups deals by their year.
func Years(deals []models.Deal) []Period {
	byYear := make(map[int]*acc)
	for _, d := range deals {
		y := d.Year
		if at, ok := impute.ParseDate(d.Date); ok {
			y = at.Year()
		}
		if y == 0 {
			continue
		}
		a, ok := byYear[y]
		if !ok {
			a = &acc{}
			byYear[y] = a
		}
		a.add(d)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]Period, 0, len(years))
	for _, y := range years {
		a := byYear[y]
		out = append(out, Period{
			Label: fmt.Sprintf("%d", y),
			Year:  y,
			Deals: a.deals,
			Total: a.total,
			Mean:  a.mean(),
		})
	}
	return out
}

// rankBy sums positive amounts per key and returns the n largest. Ties break
// by name. n <= 0 returns every group.
func rankBy(deals []models.Deal, n int, key func(models.Deal) string) []Ranked {
	groups := make(map[string]*Ranked)
	for _, d := range deals {
		v, ok := amountOf(d)
		k := key(d)
		if !ok || v <= 0 || k == "" {
			continue
		}
		r, seen := groups[k]
		if !seen {
			r = &Ranked{Name: k}
			groups[k] = r
		}
		r.Amount += v
		r.Deals++
	}

	out := make([]Ranked, 0, len(groups))
	for _, r := range groups {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopSectors ranks primaryTag values by total invested amount.
func TopSectors(deals []models.Deal, n int) []Ranked {
	return rankBy(deals, n, func(d models.Deal) string { return d.PrimaryTag })
}

// TopRegions ranks headquarters by total invested amount.
func TopRegions(deals []models.Deal, n int) []Ranked {
	return rankBy(deals, n, func(d models.Deal) string { return d.Headquarters })
}

func byStage(deals []models.Deal) (map[string][]models.Deal, []string) {
	groups := make(map[string][]models.Deal)
	var stages []string
	for _, d := range deals {
		if d.RoundType == "" {
			continue
		}
		if _, ok := groups[d.RoundType]; !ok {
			stages = append(stages, d.RoundType)
		}
		groups[d.RoundType] = append(groups[d.RoundType], d)
	}
	sort.Strings(stages)
	return groups, stages
}

// StageTopSectors returns, per funding stage, its five largest sectors.
func StageTopSectors(deals []models.Deal) []StageSectors {
	groups, stages := byStage(deals)
	out := make([]StageSectors, 0, len(stages))
	for _, s := range stages {
		out = append(out, StageSectors{Stage: s, Sectors: TopSectors(groups[s], stageSectorLimit)})
	}
	return out
}

// StageEcosystemCounts counts distinct ecosystems reached per funding stage.
func StageEcosystemCounts(deals []models.Deal) []StageEcosystems {
	groups, stages := byStage(deals)
	out := make([]StageEcosystems, 0, len(stages))
	for _, s := range stages {
		seen := make(map[string]struct{})
		for _, d := range groups[s] {
			if d.EcosystemName != "" {
				seen[d.EcosystemName] = struct{}{}
			}
		}
		out = append(out, StageEcosystems{Stage: s, Ecosystems: len(seen)})
	}
	return out
}

// FilterDealInvestors keeps rows whose year lies inside w.
func FilterDealInvestors(dis []models.DealInvestor, w Window) []models.DealInvestor {
	var out []models.DealInvestor
	for _, di := range dis {
		if w.Contains(di.Year) {
			out = append(out, di)
		}
	}
	return out
}

// investorKey identifies an investor by id, falling back to its name.
func investorKey(di models.DealInvestor) string {
	if di.InvestorID != "" {
		return di.InvestorID
	}
	return di.InvestorName
}

// InvestorsByCountry counts distinct investors per country, largest first.
// Rows without a country are ignored.
func InvestorsByCountry(dis []models.DealInvestor) []CountryCount {
	seen := make(map[string]map[string]struct{})
	for _, di := range dis {
		if di.InvestorCountry == "" {
			continue
		}
		set, ok := seen[di.InvestorCountry]
		if !ok {
			set = make(map[string]struct{})
			seen[di.InvestorCountry] = set
		}
		set[investorKey(di)] = struct{}{}
	}

	out := make([]CountryCount, 0, len(seen))
	for c, set := range seen {
		out = append(out, CountryCount{Country: c, Investors: len(set)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Investors != out[j].Investors {
			return out[i].Investors > out[j].Investors
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// TopFirms ranks investors by the number of distinct deals they joined.
// A non-zero year restricts the count to that year.
func TopFirms(dis []models.DealInvestor, n, year int) []FirmActivity {
	deals := make(map[string]map[string]struct{})
	for _, di := range dis {
		if year != 0 && di.Year != year {
			continue
		}
		if di.InvestorName == "" || di.DealID == "" {
			continue
		}
		set, ok := deals[di.InvestorName]
		if !ok {
			set = make(map[string]struct{})
			deals[di.InvestorName] = set
		}
		set[di.DealID] = struct{}{}
	}

	out := make([]FirmActivity, 0, len(deals))
	for name, set := range deals {
		out = append(out, FirmActivity{Name: name, Deals: len(set)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deals != out[j].Deals {
			return out[i].Deals > out[j].Deals
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// YearStage is the investment of one funding stage in one year.
type YearStage struct {
	Year  int     `json:"year"`
	Stage string  `json:"stage"`
	Deals int     `json:"deals"`
	Total float64 `json:"total"`
}

// SectorRegion is one cell of the sector by headquarters cross-tab.
type SectorRegion struct {
	Sector string  `json:"sector"`
	Region string  `json:"region"`
	Deals  int     `json:"deals"`
	Total  float64 `json:"total"`
}

// StageCountry describes the investors of one country at one funding stage.
type StageCountry struct {
	Stage       string  `json:"stage"`
	Country     string  `json:"country"`
	Investors   int     `json:"investors"`
	Deals       int     `json:"deals"`
	AvgDealSize float64 `json:"avg_deal_size"`
}

// YearStageTotals sums investment per year and round type, oldest year
// first. Deals without a round type or a year are skipped.
func YearStageTotals(deals []models.Deal) []YearStage {
	type key struct {
		year  int
		stage string
	}
	byKey := make(map[key]*acc)
	for _, d := range deals {
		y := d.Year
		if at, ok := impute.ParseDate(d.Date); ok {
			y = at.Year()
		}
		if y == 0 || d.RoundType == "" {
			continue
		}
		k := key{y, d.RoundType}
		a, ok := byKey[k]
		if !ok {
			a = &acc{}
			byKey[k] = a
		}
		a.add(d)
	}

	out := make([]YearStage, 0, len(byKey))
	for k, a := range byKey {
		out = append(out, YearStage{Year: k.year, Stage: k.stage, Deals: a.deals, Total: a.total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// SectorRegionTotals cross-tabulates investment by primaryTag and
// headquarters. Only cells with at least one deal are returned.
func SectorRegionTotals(deals []models.Deal) []SectorRegion {
	type key struct{ sector, region string }
	byKey := make(map[key]*acc)
	for _, d := range deals {
		if d.PrimaryTag == "" || d.Headquarters == "" {
			continue
		}
		k := key{d.PrimaryTag, d.Headquarters}
		a, ok := byKey[k]
		if !ok {
			a = &acc{}
			byKey[k] = a
		}
		a.add(d)
	}

	out := make([]SectorRegion, 0, len(byKey))
	for k, a := range byKey {
		out = append(out, SectorRegion{Sector: k.sector, Region: k.region, Deals: a.deals, Total: a.total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sector != out[j].Sector {
			return out[i].Sector < out[j].Sector
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// StageCountryActivity counts distinct investors and deals per round type and
// investor country. AvgDealSize is the mean amount of the distinct deals that
// have one. The round type comes from the row, or from its deal when the row
// has none; rows whose deal is not in deals are skipped.
func StageCountryActivity(dis []models.DealInvestor, deals []models.Deal) []StageCountry {
	byID := make(map[string]models.Deal, len(deals))
	for _, d := range deals {
		byID[d.ID] = d
	}

	type key struct{ stage, country string }
	type group struct {
		investors map[string]struct{}
		deals     map[string]struct{}
		acc
	}
	groups := make(map[key]*group)
	for _, di := range dis {
		d, ok := byID[di.DealID]
		if !ok || di.InvestorCountry == "" {
			continue
		}
		stage := di.RoundType
		if stage == "" {
			stage = d.RoundType
		}
		if stage == "" {
			continue
		}
		k := key{stage, di.InvestorCountry}
		g, ok := groups[k]
		if !ok {
			g = &group{investors: make(map[string]struct{}), deals: make(map[string]struct{})}
			groups[k] = g
		}
		g.investors[investorKey(di)] = struct{}{}
		if _, seen := g.deals[d.ID]; !seen {
			g.deals[d.ID] = struct{}{}
			g.add(d)
		}
	}

	out := make([]StageCountry, 0, len(groups))
	for k, g := range groups {
		out = append(out, StageCountry{
			Stage:       k.stage,
			Country:     k.country,
			Investors:   len(g.investors),
			Deals:       len(g.deals),
			AvgDealSize: g.mean(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		if out[i].Investors != out[j].Investors {
			return out[i].Investors > out[j].Investors
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// Report bundles every aggregate for one window.
type Report struct {
	Window         Window            `json:"window"`
	Summary        Summary           `json:"summary"`
	Quarters       []Period          `json:"quarters"`
	Years          []Period          `json:"years"`
	YearStages     []YearStage       `json:"year_stages"`
	Sectors        []Ranked          `json:"sectors"`
	Regions        []Ranked          `json:"regions"`
	SectorRegions  []SectorRegion    `json:"sector_regions"`
	Stages         []StageSectors    `json:"stages"`
	Ecosystems     []StageEcosystems `json:"ecosystems"`
	Countries      []CountryCount    `json:"countries"`
	StageCountries []StageCountry    `json:"stage_countries"`
	Firms          []FirmActivity    `json:"firms"`
}

// Build computes every aggregate over deals and dis restricted to w.
func Build(deals []models.Deal, dis []models.DealInvestor, w Window, topN int) Report {
	if topN <= 0 {
		topN = DefaultTopN
	}
	in := FilterDeals(deals, w)
	dw := FilterDealInvestors(dis, w)
	return Report{
		Window:         w,
		Summary:        Summarize(in),
		Quarters:       Quarters(in),
		Years:          Years(in),
		YearStages:     YearStageTotals(in),
		Sectors:        TopSectors(in, topN),
		Regions:        TopRegions(in, topN),
		SectorRegions:  SectorRegionTotals(in),
		Stages:         StageTopSectors(in),
		Ecosystems:     StageEcosystemCounts(in),
		Countries:      InvestorsByCountry(dw),
		StageCountries: StageCountryActivity(dw, in),
		Firms:          TopFirms(dw, topN, 0),
	}
}
