package impute

import (
	"sort"

	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepCountries = "countries"

// CountryLookup maps a normalized investor name to its country.
type CountryLookup map[string]string

// BuildCountryLookup reads investorName/country pairs, skipping null
// countries. The first non-null country seen for a name wins.
func BuildCountryLookup(investors *table.Table) (CountryLookup, error) {
	if err := investors.Require(models.ColInvestorName, models.ColCountry); err != nil {
		return nil, err
	}
	lookup := make(CountryLookup, investors.Len())
	for i := range investors.Rows {
		name := normalize.Key(investors.Get(i, models.ColInvestorName))
		country := investors.Get(i, models.ColCountry)
		if name == "" || country == "" {
			continue
		}
		if _, seen := lookup[name]; !seen {
			lookup[name] = country
		}
	}
	return lookup, nil
}

// Countries fills null investorCountry cells from lookup. Rows whose investor
// is not in the lookup stay null and are listed in Unmatched.
func Countries(dealInvestors *table.Table, lookup CountryLookup) (Report, error) {
	rep := Report{Step: stepCountries, Column: models.ColInvestorCountry}
	if err := dealInvestors.Require(models.ColInvestorName); err != nil {
		return rep, err
	}
	dealInvestors.EnsureColumn(models.ColInvestorCountry)

	unmatched := make(map[string]struct{})
	for i := range dealInvestors.Rows {
		if dealInvestors.Get(i, models.ColInvestorCountry) != "" {
			continue
		}
		name := normalize.Key(dealInvestors.Get(i, models.ColInvestorName))
		if country, ok := lookup[name]; ok {
			dealInvestors.Set(i, models.ColInvestorCountry, country)
			rep.Filled++
			continue
		}
		rep.Remaining++
		if name != "" {
			unmatched[name] = struct{}{}
		}
	}

	rep.Unmatched = sortedKeys(unmatched)
	return rep, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
