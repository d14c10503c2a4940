package impute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagDeals = "investors,leadInvestors,roundType,primaryTag\n" +
	"\"X Capital, Y Fund\",Z Partners,Seed,fintech\n" +
	"x capital,,Series A,healthtech\n" +
	"Y Fund,,,\n"

func TestBuildInvestorTags(t *testing.T) {
	tags := BuildInvestorTags(mustTable(t, tagDeals))

	require.Contains(t, tags, "x capital")
	assert.Equal(t, "Seed, Series A", JoinTags(tags["x capital"].Stages))
	assert.Equal(t, "fintech, healthtech", JoinTags(tags["x capital"].Sectors))
	assert.Equal(t, "Seed", JoinTags(tags["z partners"].Stages), "lead investors are included")
	assert.Equal(t, "Seed", JoinTags(tags["y fund"].Stages), "null tags are skipped")
}

func TestTagsMergeWithExisting(t *testing.T) {
	investors := mustTable(t, "investorName,stages,sectors\n"+
		"X Capital,Grant,\n"+
		"z partners,,\n"+
		"nobody,,cleantech\n")

	reps, err := Tags(investors, mustTable(t, tagDeals))
	require.NoError(t, err)
	require.Len(t, reps, 2)

	assert.Equal(t, "Grant, Seed, Series A", investors.Get(0, "stages"))
	assert.Equal(t, "fintech, healthtech", investors.Get(0, "sectors"))
	assert.Equal(t, "Seed", investors.Get(1, "stages"))
	assert.Equal(t, "", investors.Get(2, "stages"))
	assert.Equal(t, "cleantech", investors.Get(2, "sectors"))

	assert.Equal(t, 1, reps[0].Filled)
	assert.Equal(t, 1, reps[0].Remaining)
	assert.Equal(t, 2, reps[1].Filled)
	assert.Equal(t, 0, reps[1].Remaining)
}

func TestTagsIdempotentAndOrderIndependent(t *testing.T) {
	investors := mustTable(t, "investorName,stages,sectors\nx capital,\"Series A,Grant, Grant\",\n")
	deals := mustTable(t, tagDeals)

	_, err := Tags(investors, deals)
	require.NoError(t, err)
	first := investors.Clone()

	_, err = Tags(investors, deals)
	require.NoError(t, err)
	assert.Equal(t, first.Rows, investors.Rows)
	assert.Equal(t, "Grant, Seed, Series A", investors.Get(0, "stages"))
}

func TestTagsNeedsInvestorColumns(t *testing.T) {
	_, err := Tags(mustTable(t, "investorName\nx\n"), mustTable(t, "roundType\nSeed\n"))
	assert.Error(t, err)
}
