// Package dataset turns pipeline output tables into typed models.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"dealflow/internal/impute"
	"dealflow/internal/table"
	"dealflow/pkg/models"
	"dealflow/pkg/utils"
)

// Dataset is one consistent snapshot of the four pipeline outputs.
type Dataset struct {
	Deals         []models.Deal
	Companies     []models.Company
	Investors     []models.Investor
	DealInvestors []models.DealInvestor
}

// Files names the CSVs Load reads. Empty entries are skipped.
type Files struct {
	Deals         string
	Companies     string
	Investors     string
	DealInvestors string
}

func Load(f Files) (*Dataset, error) {
	ds := &Dataset{}

	if f.Deals != "" {
		t, err := table.ReadFile(f.Deals)
		if err != nil {
			return nil, err
		}
		if ds.Deals, err = Deals(t); err != nil {
			return nil, fmt.Errorf("deals: %w", err)
		}
	}
	if f.Companies != "" {
		t, err := table.ReadFile(f.Companies)
		if err != nil {
			return nil, err
		}
		if ds.Companies, err = Companies(t); err != nil {
			return nil, fmt.Errorf("companies: %w", err)
		}
	}
	if f.Investors != "" {
		t, err := table.ReadFile(f.Investors)
		if err != nil {
			return nil, err
		}
		if ds.Investors, err = Investors(t); err != nil {
			return nil, fmt.Errorf("investors: %w", err)
		}
	}
	if f.DealInvestors != "" {
		t, err := table.ReadFile(f.DealInvestors)
		if err != nil {
			return nil, err
		}
		if ds.DealInvestors, err = DealInvestors(t); err != nil {
			return nil, fmt.Errorf("deal investors: %w", err)
		}
		AttachDeals(ds.DealInvestors, ds.Deals)
	}
	return ds, nil
}

// dealIDColumn accepts either id or dealId as the key column.
func dealIDColumn(t *table.Table) (string, error) {
	switch {
	case t.Has(models.ColID):
		return models.ColID, nil
	case t.Has(models.ColDealID):
		return models.ColDealID, nil
	default:
		return "", t.Require(models.ColID)
	}
}

func Deals(t *table.Table) ([]models.Deal, error) {
	idCol, err := dealIDColumn(t)
	if err != nil {
		return nil, err
	}
	if err := t.Require(models.ColCompanyName); err != nil {
		return nil, err
	}

	out := make([]models.Deal, 0, t.Len())
	for i := range t.Rows {
		d := models.Deal{
			ID:            t.Get(i, idCol),
			CompanyName:   t.Get(i, models.ColCompanyName),
			Date:          t.Get(i, models.ColDate),
			Amount:        impute.ParseAmount(t.Get(i, models.ColAmount)),
			RoundType:     t.Get(i, models.ColRoundType),
			Investors:     splitList(t.Get(i, models.ColInvestors)),
			LeadInvestors: splitList(t.Get(i, models.ColLeadInvestors)),
			PrimaryTag:    t.Get(i, models.ColPrimaryTag),
			Headquarters:  t.Get(i, models.ColHeadquarters),
			EcosystemName: t.Get(i, models.ColEcosystemName),
		}
		d.Year = yearOf(t.Get(i, models.ColYear), d.Date)
		out = append(out, d)
	}
	return out, nil
}

func Companies(t *table.Table) ([]models.Company, error) {
	if err := t.Require(models.ColCompanyName); err != nil {
		return nil, err
	}
	acqCol := models.ColDateAcquisition
	if !t.Has(acqCol) {
		acqCol = models.ColDateAcquisitionLegacy
	}

	out := make([]models.Company, 0, t.Len())
	for i := range t.Rows {
		out = append(out, models.Company{
			Name:            t.Get(i, models.ColCompanyName),
			DateFounded:     t.Get(i, models.ColDateFounded),
			LatestRoundType: t.Get(i, models.ColLatestRoundType),
			LatestRoundDate: t.Get(i, models.ColLatestRoundDate),
			DateAcquisition: t.Get(i, acqCol),
			IPODate:         t.Get(i, models.ColIPODate),
			PEDate:          t.Get(i, models.ColPEDate),
			EcosystemName:   t.Get(i, models.ColEcosystemName),
		})
	}
	return out, nil
}

func Investors(t *table.Table) ([]models.Investor, error) {
	if err := t.Require(models.ColInvestorName); err != nil {
		return nil, err
	}
	out := make([]models.Investor, 0, t.Len())
	for i := range t.Rows {
		out = append(out, models.Investor{
			Name:    t.Get(i, models.ColInvestorName),
			Country: t.Get(i, models.ColCountry),
			Stages:  splitList(t.Get(i, models.ColStages)),
			Sectors: splitList(t.Get(i, models.ColSectors)),
		})
	}
	return out, nil
}

func DealInvestors(t *table.Table) ([]models.DealInvestor, error) {
	if err := t.Require(models.ColDealID, models.ColInvestorName); err != nil {
		return nil, err
	}
	out := make([]models.DealInvestor, 0, t.Len())
	for i := range t.Rows {
		out = append(out, models.DealInvestor{
			DealID:          t.Get(i, models.ColDealID),
			InvestorID:      t.Get(i, models.ColInvestorID),
			InvestorName:    t.Get(i, models.ColInvestorName),
			InvestorCountry: t.Get(i, models.ColInvestorCountry),
			Year:            yearOf(t.Get(i, models.ColYear), t.Get(i, models.ColDate)),
			RoundType:       t.Get(i, models.ColRoundType),
			Date:            t.Get(i, models.ColDate),
		})
	}
	return out, nil
}

// AttachDeals copies round type, date and year from the matching deal onto
// deal-investor rows that lack them.
func AttachDeals(dis []models.DealInvestor, deals []models.Deal) {
	byID := make(map[string]*models.Deal, len(deals))
	for i := range deals {
		byID[deals[i].ID] = &deals[i]
	}
	for i := range dis {
		d, ok := byID[dis[i].DealID]
		if !ok {
			continue
		}
		if dis[i].RoundType == "" {
			dis[i].RoundType = d.RoundType
		}
		if dis[i].Date == "" {
			dis[i].Date = d.Date
		}
		if dis[i].Year == 0 {
			dis[i].Year = d.Year
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// yearOf prefers an explicit year cell and falls back to the date's year.
func yearOf(year, date string) int {
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		return y
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(year), 64); err == nil {
		return int(f)
	}
	if t, ok := impute.ParseDate(date); ok {
		return t.Year()
	}
	return 0
}

// FilesFromConfig names the pipeline outputs the API serves.
func FilesFromConfig(c utils.DataConfig) Files {
	return Files{
		Deals:         c.Deals,
		Companies:     c.CompaniesOut,
		Investors:     c.InvestorsOut,
		DealInvestors: c.DealInvestorsOut,
	}
}
