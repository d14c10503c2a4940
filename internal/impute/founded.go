package impute

import (
	"time"

	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepFounded = "founded"

// earlyStages are estimated to close about a year after founding; later
// stages about two.
var earlyStages = map[string]bool{
	models.RoundPreSeed: true,
	models.RoundSeed:    true,
	models.RoundSeriesA: true,
	models.RoundSeriesB: true,
}

// EstimateFounded derives a founding date from a company's first deal.
func EstimateFounded(firstDeal time.Time, roundType string) time.Time {
	if earlyStages[roundType] {
		return subtractYears(firstDeal, 1)
	}
	return subtractYears(firstDeal, 2)
}

type dealRef struct {
	row   int
	date  time.Time
	dated bool
}

// firstAndLastDeals indexes, per normalized company name, the earliest and
// newest dated deal. Ties keep the earlier row; companies whose deals carry
// no parsable date point at their first row with dated=false.
func firstAndLastDeals(deals *table.Table) (first, last map[string]dealRef) {
	first = make(map[string]dealRef)
	last = make(map[string]dealRef)
	for i := range deals.Rows {
		name := normalize.Key(deals.Get(i, models.ColCompanyName))
		if name == "" {
			continue
		}
		d, ok := ParseDate(deals.Get(i, models.ColDate))
		ref := dealRef{row: i, date: d, dated: ok}

		if cur, seen := first[name]; !seen || (ok && (!cur.dated || d.Before(cur.date))) {
			first[name] = ref
		}
		if cur, seen := last[name]; !seen || (ok && (!cur.dated || d.After(cur.date))) {
			last[name] = ref
		}
	}
	return first, last
}

// FoundedDates fills null dateFounded cells from each company's earliest
// deal. Existing values are never overwritten.
func FoundedDates(companies, deals *table.Table) (Report, error) {
	rep := Report{Step: stepFounded, Column: models.ColDateFounded}
	if err := companies.Require(models.ColCompanyName); err != nil {
		return rep, err
	}
	if err := deals.Require(models.ColCompanyName, models.ColDate); err != nil {
		return rep, err
	}
	companies.EnsureColumn(models.ColDateFounded)

	first, _ := firstAndLastDeals(deals)
	for i := range companies.Rows {
		if companies.Get(i, models.ColDateFounded) != "" {
			continue
		}
		ref, ok := first[normalize.Key(companies.Get(i, models.ColCompanyName))]
		if !ok || !ref.dated {
			rep.Remaining++
			continue
		}
		est := EstimateFounded(ref.date, deals.Get(ref.row, models.ColRoundType))
		companies.Set(i, models.ColDateFounded, est.Format(DateLayout))
		rep.Filled++
	}
	return rep, nil
}
