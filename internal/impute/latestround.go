package impute

import (
	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepLatestRound = "latest-round"

// LatestRounds fills null latestRoundType and latestRoundDate from each
// company's newest deal.
func LatestRounds(companies, deals *table.Table) ([]Report, error) {
	typeRep := Report{Step: stepLatestRound, Column: models.ColLatestRoundType}
	dateRep := Report{Step: stepLatestRound, Column: models.ColLatestRoundDate}
	if err := companies.Require(models.ColCompanyName); err != nil {
		return nil, err
	}
	if err := deals.Require(models.ColCompanyName, models.ColDate, models.ColRoundType); err != nil {
		return nil, err
	}
	companies.EnsureColumn(models.ColLatestRoundType)
	companies.EnsureColumn(models.ColLatestRoundDate)

	_, last := firstAndLastDeals(deals)
	for i := range companies.Rows {
		ref, ok := last[normalize.Key(companies.Get(i, models.ColCompanyName))]

		if companies.Get(i, models.ColLatestRoundType) == "" {
			if rt := roundTypeAt(deals, ref, ok); rt != "" {
				companies.Set(i, models.ColLatestRoundType, rt)
				typeRep.Filled++
			} else {
				typeRep.Remaining++
			}
		}

		if companies.Get(i, models.ColLatestRoundDate) == "" {
			if ok && ref.dated {
				companies.Set(i, models.ColLatestRoundDate, ref.date.Format(DateLayout))
				dateRep.Filled++
			} else {
				dateRep.Remaining++
			}
		}
	}
	return []Report{typeRep, dateRep}, nil
}

func roundTypeAt(deals *table.Table, ref dealRef, ok bool) string {
	if !ok {
		return ""
	}
	return deals.Get(ref.row, models.ColRoundType)
}
