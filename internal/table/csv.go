package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultNullTokens are the cell spellings read back as null. They match
// what pandas treats as missing when the upstream notebooks wrote the files.
var DefaultNullTokens = []string{
	"NaN", "nan", "-NaN", "-nan", "NA", "N/A", "n/a", "#N/A", "<NA>",
	"NULL", "null", "None", "NaT",
}

// CSVConfig controls how CSV files are parsed.
type CSVConfig struct {
	Comma      rune
	LazyQuotes bool
	NullTokens []string
}

// CSVOption is a functional option for Read and ReadFile.
type CSVOption func(*CSVConfig)

func WithComma(r rune) CSVOption {
	return func(c *CSVConfig) { c.Comma = r }
}

func WithLazyQuotes(lazy bool) CSVOption {
	return func(c *CSVConfig) { c.LazyQuotes = lazy }
}

// WithNullTokens replaces the null spellings; pass none to keep cells verbatim.
func WithNullTokens(tokens ...string) CSVOption {
	return func(c *CSVConfig) { c.NullTokens = tokens }
}

func defaultCSVConfig() CSVConfig {
	return CSVConfig{
		Comma:      ',',
		NullTokens: DefaultNullTokens,
	}
}

// ReadFile loads a header-having CSV file.
func ReadFile(path string, opts ...CSVOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read parses CSV from r. A leading UTF-8 BOM is dropped and short rows are
// padded with nulls.
func Read(r io.Reader, opts ...CSVOption) (*Table, error) {
	cfg := defaultCSVConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	nulls := make(map[string]struct{}, len(cfg.NullTokens))
	for _, tok := range cfg.NullTokens {
		nulls[tok] = struct{}{}
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = cfg.Comma
	cr.LazyQuotes = cfg.LazyQuotes
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := New(header...)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		if len(row) == 1 && row[0] == "" && len(header) > 1 {
			continue
		}

		r := make([]string, len(header))
		for i := 0; i < len(header) && i < len(row); i++ {
			v := row[i]
			if _, isNull := nulls[strings.TrimSpace(v)]; isNull {
				v = ""
			}
			r[i] = v
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

// Write emits the table as CSV with a header row.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces path atomically: the table is written to a temp file in
// the same directory and renamed over the target.
func (t *Table) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := t.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	tmpName = ""
	return nil
}
