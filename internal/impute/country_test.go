package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCountryLookup(t *testing.T) {
	investors := mustTable(t, "investorName,country\n"+
		"Acme Ventures,Canada\n"+
		"acme ventures,USA\n"+
		"Beta Fund,\n"+
		",France\n")

	lookup, err := BuildCountryLookup(investors)
	require.NoError(t, err)
	assert.Equal(t, CountryLookup{"acme ventures": "Canada"}, lookup)
}

func TestCountries(t *testing.T) {
	lookup := CountryLookup{"acme ventures": "Canada"}
	di := mustTable(t, "dealId,investorName,investorCountry\n"+
		"1,acme ventures,\n"+
		"2,Acme Ventures,USA\n"+
		"3,ghost capital,\n"+
		"4,ghost capital,\n"+
		"5,,\n")

	rep, err := Countries(di, lookup)
	require.NoError(t, err)

	assert.Equal(t, "Canada", di.Get(0, "investorCountry"))
	assert.Equal(t, "USA", di.Get(1, "investorCountry"), "existing values are never overwritten")
	assert.Equal(t, "", di.Get(2, "investorCountry"))
	assert.Equal(t, 1, rep.Filled)
	assert.Equal(t, 3, rep.Remaining)
	assert.Equal(t, []string{"ghost capital"}, rep.Unmatched)
	assert.Equal(t, rep.Remaining, di.NullCount("investorCountry"))
}

func TestCountriesAddsMissingColumn(t *testing.T) {
	di := mustTable(t, "dealId,investorName\n1,acme\n")
	rep, err := Countries(di, CountryLookup{"acme": "Canada"})
	require.NoError(t, err)
	assert.Equal(t, "Canada", di.Get(0, "investorCountry"))
	assert.Equal(t, 1, rep.Filled)
}
