// Package normalize canonicalizes the join keys shared by the tables.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"dealflow/internal/table"
)

// Key trims, NFC-composes and lower-cases s. Null stays null.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToLower(norm.NFC.String(s))
}

// SplitNames splits a comma-separated name list into normalized names,
// dropping empty pieces.
func SplitNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := Key(p); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Column normalizes every cell of col in place. Missing columns are skipped.
func Column(t *table.Table, col string) {
	if !t.Has(col) {
		return
	}
	for i := range t.Rows {
		t.Set(i, col, Key(t.Get(i, col)))
	}
}

// ListColumn normalizes each name inside a comma-separated list column and
// rejoins with ", ".
func ListColumn(t *table.Table, col string) {
	if !t.Has(col) {
		return
	}
	for i := range t.Rows {
		t.Set(i, col, strings.Join(SplitNames(t.Get(i, col)), ", "))
	}
}
