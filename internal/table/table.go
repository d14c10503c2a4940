package table

import (
	"errors"
	"fmt"
)

// ErrColumnNotFound is returned when a transform needs a column the table lacks.
var ErrColumnNotFound = errors.New("column not found")

// Table is a header-indexed CSV held in memory. Every cell is a string and
// the empty string is null.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given header.
func New(columns ...string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; dup {
			continue
		}
		t.index[c] = i
	}
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Require returns ErrColumnNotFound naming the first missing column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%w: %s", ErrColumnNotFound, c)
		}
	}
	return nil
}

// Get returns the cell, or "" when the column does not exist.
func (t *Table) Get(row int, col string) string {
	idx, ok := t.index[col]
	if !ok || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

// Set writes a cell, appending the column first if needed.
func (t *Table) Set(row int, col, value string) {
	idx := t.EnsureColumn(col)
	r := t.Rows[row]
	for len(r) <= idx {
		r = append(r, "")
	}
	r[idx] = value
	t.Rows[row] = r
}

// EnsureColumn appends an all-null column when col is missing and returns its index.
func (t *Table) EnsureColumn(col string) int {
	if idx, ok := t.index[col]; ok {
		return idx
	}
	t.Columns = append(t.Columns, col)
	idx := len(t.Columns) - 1
	t.index[col] = idx
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return idx
}

// Append adds a row, padded or truncated to the header width.
func (t *Table) Append(row ...string) {
	r := make([]string, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// Column copies out one column.
func (t *Table) Column(col string) ([]string, error) {
	if err := t.Require(col); err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Get(i, col)
	}
	return out, nil
}

// NullCount counts empty cells in col. A missing column counts every row.
func (t *Table) NullCount(col string) int {
	n := 0
	for i := range t.Rows {
		if t.Get(i, col) == "" {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so transforms can run on a snapshot.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	c.reindex()
	return c
}
