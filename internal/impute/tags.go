package impute

import (
	"strings"

	"dealflow/internal/normalize"
	"dealflow/internal/table"
	"dealflow/pkg/models"
)

const stepTags = "tags"

// TagSet is the set of stages and sectors an investor has been seen in.
type TagSet struct {
	Stages  map[string]struct{}
	Sectors map[string]struct{}
}

func newTagSet() *TagSet {
	return &TagSet{
		Stages:  make(map[string]struct{}),
		Sectors: make(map[string]struct{}),
	}
}

// BuildInvestorTags expands every deal into its participating and lead
// investors and collects, per normalized investor name, the non-null round
// types and primary tags.
func BuildInvestorTags(deals *table.Table) map[string]*TagSet {
	out := make(map[string]*TagSet)
	for i := range deals.Rows {
		stage := strings.TrimSpace(deals.Get(i, models.ColRoundType))
		sector := strings.TrimSpace(deals.Get(i, models.ColPrimaryTag))

		names := normalize.SplitNames(deals.Get(i, models.ColInvestors))
		names = append(names, normalize.SplitNames(deals.Get(i, models.ColLeadInvestors))...)
		for _, name := range names {
			ts, ok := out[name]
			if !ok {
				ts = newTagSet()
				out[name] = ts
			}
			if stage != "" {
				ts.Stages[stage] = struct{}{}
			}
			if sector != "" {
				ts.Sectors[sector] = struct{}{}
			}
		}
	}
	return out
}

// JoinTags serializes a tag set the canonical way: sorted, ", "-joined.
func JoinTags(set map[string]struct{}) string {
	return strings.Join(sortedKeys(set), ", ")
}

// SplitTags parses a serialized tag list into a set.
func SplitTags(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Tags merges derived stages and sectors into the investors table. Existing
// values are unioned with the derived set; every non-null cell is rewritten
// in canonical form so repeated runs give the same output.
func Tags(investors, deals *table.Table) ([]Report, error) {
	if err := investors.Require(models.ColInvestorName); err != nil {
		return nil, err
	}
	if !deals.Has(models.ColInvestors) && !deals.Has(models.ColLeadInvestors) {
		return nil, deals.Require(models.ColInvestors)
	}

	derived := BuildInvestorTags(deals)
	stageRep := mergeTagColumn(investors, derived, models.ColStages, func(ts *TagSet) map[string]struct{} { return ts.Stages })
	sectorRep := mergeTagColumn(investors, derived, models.ColSectors, func(ts *TagSet) map[string]struct{} { return ts.Sectors })
	return []Report{stageRep, sectorRep}, nil
}

func mergeTagColumn(investors *table.Table, derived map[string]*TagSet, col string, pick func(*TagSet) map[string]struct{}) Report {
	rep := Report{Step: stepTags, Column: col}
	investors.EnsureColumn(col)

	for i := range investors.Rows {
		before := investors.Get(i, col)
		merged := SplitTags(before)
		if ts, ok := derived[normalize.Key(investors.Get(i, models.ColInvestorName))]; ok {
			for v := range pick(ts) {
				merged[v] = struct{}{}
			}
		}

		after := JoinTags(merged)
		investors.Set(i, col, after)
		switch {
		case before == "" && after != "":
			rep.Filled++
		case after == "":
			rep.Remaining++
		}
	}
	return rep
}
