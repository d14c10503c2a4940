// Package impute holds the table transforms that fill missing values in the
// deals, companies, investors and deal-investor tables. Every transform edits
// its table in place, only touches the columns it names and reports what it
// changed.
package impute

import (
	"strings"
	"time"
)

// Report summarizes one transform over one column.
type Report struct {
	Step      string   `json:"step"`
	Column    string   `json:"column"`
	Filled    int      `json:"filled"`
	Cleared   int      `json:"cleared,omitempty"`
	Remaining int      `json:"remaining"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// DateLayout is the on-disk date format for every date this package writes.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"2006-01",
}

// ParseDate accepts the date spellings found in the raw exports. Empty or
// unparsable input reports false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// subtractYears moves t back n calendar years, clamping Feb 29 to Feb 28
// when the target year is not a leap year.
func subtractYears(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	y -= n
	if m == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
