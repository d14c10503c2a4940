package impute

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dealflow/internal/table"
)

func mustTable(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func ptr(f float64) *float64 { return &f }
