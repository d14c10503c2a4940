package impute

import (
	"math"
	"strconv"
	"strings"

	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepRoundType = "roundtype"

// ClassifyRoundType buckets a placeholder round by its amount. Any other
// label passes through untouched.
func ClassifyRoundType(amount *float64, current string) string {
	if current != models.RoundPlaceholder {
		return current
	}
	if amount == nil {
		return models.RoundUnknown
	}
	switch a := *amount; {
	case a < 500_000:
		return models.RoundPreSeed
	case a < 2_000_000:
		return models.RoundSeed
	case a < 15_000_000:
		return models.RoundSeriesA
	case a < 50_000_000:
		return models.RoundSeriesB
	case a < 100_000_000:
		return models.RoundSeriesC
	default:
		return models.RoundSeriesDPlus
	}
}

// ParseAmount reads a deal amount cell. Currency symbols and thousands
// separators are tolerated; negative or unparsable values are null.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// RoundTypes reclassifies every placeholder roundType in deals.
// Remaining counts rows left null or Unknown.
func RoundTypes(deals *table.Table) (Report, error) {
	rep := Report{Step: stepRoundType, Column: models.ColRoundType}
	if err := deals.Require(models.ColRoundType, models.ColAmount); err != nil {
		return rep, err
	}

	for i := range deals.Rows {
		cur := deals.Get(i, models.ColRoundType)
		next := ClassifyRoundType(ParseAmount(deals.Get(i, models.ColAmount)), cur)
		if next != cur {
			deals.Set(i, models.ColRoundType, next)
			if next != models.RoundUnknown {
				rep.Filled++
			}
		}
		if next == "" || next == models.RoundUnknown {
			rep.Remaining++
		}
	}
	return rep, nil
}
