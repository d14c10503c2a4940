package impute

import (
	"regexp"

	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepSanitize = "sanitize"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsISODate reports whether s is exactly YYYY-MM-DD in shape.
func IsISODate(s string) bool {
	return isoDate.MatchString(s)
}

// SanitizeDates nulls every cell in the given columns that is not shaped
// YYYY-MM-DD. Columns absent from the table are skipped. With no columns,
// models.DateColumns is used.
func SanitizeDates(t *table.Table, cols ...string) []Report {
	if len(cols) == 0 {
		cols = models.DateColumns
	}

	var reps []Report
	for _, col := range cols {
		if !t.Has(col) {
			continue
		}
		rep := Report{Step: stepSanitize, Column: col}
		for i := range t.Rows {
			v := t.Get(i, col)
			if v == "" {
				rep.Remaining++
				continue
			}
			if !IsISODate(v) {
				t.Set(i, col, "")
				rep.Cleared++
				rep.Remaining++
			}
		}
		reps = append(reps, rep)
	}
	return reps
}
