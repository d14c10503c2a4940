package dataset

import (
	"strconv"
	"strings"

	"dealflow/internal/table"
	"dealflow/pkg/models"
)

func joinList(v []string) string { return strings.Join(v, ", ") }

func formatYear(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// DealsTable is the inverse of Deals.
func DealsTable(deals []models.Deal) *table.Table {
	t := table.New(models.ColID, models.ColCompanyName, models.ColDate, models.ColYear, models.ColAmount,
		models.ColRoundType, models.ColInvestors, models.ColLeadInvestors, models.ColPrimaryTag,
		models.ColHeadquarters, models.ColEcosystemName)
	for _, d := range deals {
		t.Append(d.ID, d.CompanyName, d.Date, formatYear(d.Year), formatAmount(d.Amount),
			d.RoundType, joinList(d.Investors), joinList(d.LeadInvestors), d.PrimaryTag,
			d.Headquarters, d.EcosystemName)
	}
	return t
}

func CompaniesTable(companies []models.Company) *table.Table {
	t := table.New(models.ColCompanyName, models.ColDateFounded, models.ColLatestRoundType, models.ColLatestRoundDate,
		models.ColDateAcquisition, models.ColIPODate, models.ColPEDate, models.ColEcosystemName)
	for _, c := range companies {
		t.Append(c.Name, c.DateFounded, c.LatestRoundType, c.LatestRoundDate,
			c.DateAcquisition, c.IPODate, c.PEDate, c.EcosystemName)
	}
	return t
}

func InvestorsTable(investors []models.Investor) *table.Table {
	t := table.New(models.ColInvestorName, models.ColCountry, models.ColStages, models.ColSectors)
	for _, inv := range investors {
		t.Append(inv.Name, inv.Country, joinList(inv.Stages), joinList(inv.Sectors))
	}
	return t
}

func DealInvestorsTable(dis []models.DealInvestor) *table.Table {
	t := table.New(models.ColDealID, models.ColInvestorID, models.ColInvestorName, models.ColInvestorCountry,
		models.ColYear, models.ColRoundType, models.ColDate)
	for _, di := range dis {
		t.Append(di.DealID, di.InvestorID, di.InvestorName, di.InvestorCountry,
			formatYear(di.Year), di.RoundType, di.Date)
	}
	return t
}

// Save writes each non-empty path in f. Writes are atomic per file.
func (ds *Dataset) Save(f Files) error {
	writes := []struct {
		path string
		t    func() *table.Table
	}{
		{f.Deals, func() *table.Table { return DealsTable(ds.Deals) }},
		{f.Companies, func() *table.Table { return CompaniesTable(ds.Companies) }},
		{f.Investors, func() *table.Table { return InvestorsTable(ds.Investors) }},
		{f.DealInvestors, func() *table.Table { return DealInvestorsTable(ds.DealInvestors) }},
	}
	for _, w := range writes {
		if w.path == "" {
			continue
		}
		if err := w.t().WriteFile(w.path); err != nil {
			return err
		}
	}
	return nil
}
