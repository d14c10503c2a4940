package insights

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook.
const (
	SheetSummary    = "Summary"
	SheetQuarters   = "Quarters"
	SheetYears      = "Years"
	SheetSectors    = "Sectors"
	SheetRegions    = "Regions"
	SheetStages     = "Stage Sectors"
	SheetEcosystems = "Stage Ecosystems"
	SheetCountries  = "Countries"
	SheetFirms      = "Firms"

	SheetYearStages     = "Year Stages"
	SheetSectorRegions  = "Sector Regions"
	SheetStageCountries = "Stage Countries"
)

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

func (r Report) sheets() []sheet {
	sum := sheet{
		name:   SheetSummary,
		header: []any{"From", "To", "Deals", "Total Amount", "Largest", "Smallest"},
		rows: [][]any{{
			r.Window.From, r.Window.To, r.Summary.Deals,
			r.Summary.TotalAmount, r.Summary.Largest, r.Summary.Smallest,
		}},
	}

	periods := func(name string, ps []Period) sheet {
		s := sheet{name: name, header: []any{"Period", "Deals", "Total", "Mean"}}
		for _, p := range ps {
			s.rows = append(s.rows, []any{p.Label, p.Deals, p.Total, p.Mean})
		}
		return s
	}
	ranked := func(name, label string, rs []Ranked) sheet {
		s := sheet{name: name, header: []any{label, "Amount", "Deals"}}
		for _, x := range rs {
			s.rows = append(s.rows, []any{x.Name, x.Amount, x.Deals})
		}
		return s
	}

	stages := sheet{name: SheetStages, header: []any{"Stage", "Sector", "Amount", "Deals"}}
	for _, st := range r.Stages {
		for _, x := range st.Sectors {
			stages.rows = append(stages.rows, []any{st.Stage, x.Name, x.Amount, x.Deals})
		}
	}

	eco := sheet{name: SheetEcosystems, header: []any{"Stage", "Ecosystems"}}
	for _, e := range r.Ecosystems {
		eco.rows = append(eco.rows, []any{e.Stage, e.Ecosystems})
	}

	countries := sheet{name: SheetCountries, header: []any{"Country", "Investors"}}
	for _, c := range r.Countries {
		countries.rows = append(countries.rows, []any{c.Country, c.Investors})
	}

	yearStages := sheet{name: SheetYearStages, header: []any{"Year", "Stage", "Deals", "Total"}}
	for _, y := range r.YearStages {
		yearStages.rows = append(yearStages.rows, []any{y.Year, y.Stage, y.Deals, y.Total})
	}

	sectorRegions := sheet{name: SheetSectorRegions, header: []any{"Sector", "Region", "Deals", "Total"}}
	for _, x := range r.SectorRegions {
		sectorRegions.rows = append(sectorRegions.rows, []any{x.Sector, x.Region, x.Deals, x.Total})
	}

	stageCountries := sheet{
		name:   SheetStageCountries,
		header: []any{"Stage", "Country", "Investors", "Deals", "Avg Deal Size"},
	}
	for _, x := range r.StageCountries {
		stageCountries.rows = append(stageCountries.rows, []any{x.Stage, x.Country, x.Investors, x.Deals, x.AvgDealSize})
	}

	firms := sheet{name: SheetFirms, header: []any{"Investor", "Deals"}}
	for _, f := range r.Firms {
		firms.rows = append(firms.rows, []any{f.Name, f.Deals})
	}

	return []sheet{
		sum,
		periods(SheetQuarters, r.Quarters),
		periods(SheetYears, r.Years),
		ranked(SheetSectors, "Sector", r.Sectors),
		ranked(SheetRegions, "Region", r.Regions),
		stages,
		eco,
		countries,
		firms,
		yearStages,
		sectorRegions,
		stageCountries,
	}
}

// Workbook renders r with one sheet per aggregate. The caller closes it.
func (r Report) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, s := range r.sheets() {
		if i == 0 {
			// rename the default sheet instead of leaving an empty Sheet1
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}

		if err := writeSheet(f, s, headerStyle); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
		return fmt.Errorf("sheet %s header: %w", s.name, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(s.header), 1)
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("sheet %s style: %w", s.name, err)
	}

	for i, row := range s.rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", s.name, i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(s.header))
	return f.SetColWidth(s.name, "A", lastCol, 18)
}

// SaveXLSX writes the workbook to path.
func (r Report) SaveXLSX(path string) error {
	f, err := r.Workbook()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteXLSX streams the workbook to w.
func (r Report) WriteXLSX(w io.Writer) error {
	f, err := r.Workbook()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
