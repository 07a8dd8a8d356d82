package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/record"
)

func dialect(t *testing.T, graph string) *kg.Dialect {
	t.Helper()
	dialect, err := kg.NewDialect(graph)
	require.NoError(t, err)
	return dialect
}

func TestFoldAbsorbsSourceRecord(t *testing.T) {
	records := []record.ResourceRecord{
		{ID: "E1", PrimaryName: "Bob", Popularity: 50},
		{ID: "E9", PrimaryName: "Robert", Popularity: 900, Aliases: []string{"Bobby"}},
		{ID: "E3", PrimaryName: "Carol", Popularity: 5},
	}
	edges := []record.RedirectEdge{{CanonicalID: "E1", SourceIDs: []string{"E9"}}}

	result := Fold(records, edges, dialect(t, "generic"))

	assert.Equal(t, []string{"Bobby", "Robert"}, result.Aliases["E1"])
	assert.Equal(t, []string{"E9"}, result.Applied["E1"])
	require.Len(t, result.Records, 2)
	assert.Equal(t, "E1", result.Records[0].ID)
	assert.Equal(t, int64(50), result.Records[0].Popularity)
	assert.Equal(t, "E3", result.Records[1].ID)
	assert.Equal(t, 1, result.Stats.Applied)
	assert.Equal(t, 1, result.Stats.AbsorbedRecords)
}

func TestFoldSourceWithoutRecord(t *testing.T) {
	records := []record.ResourceRecord{{ID: "Barack_Obama", PrimaryName: "Barack Obama", Popularity: 10}}
	edges := []record.RedirectEdge{{CanonicalID: "Barack_Obama", SourceIDs: []string{"Obama", "Barack_Hussein_Obama", "Barack_Obama"}}}

	result := Fold(records, edges, dialect(t, "dbpedia"))

	assert.Equal(t, []string{"Barack Hussein Obama", "Obama"}, result.Aliases["Barack_Obama"])
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Stats.SelfRedirects)
	assert.Equal(t, 3, result.Stats.Edges)
}

func TestFoldConflictLastWins(t *testing.T) {
	records := []record.ResourceRecord{
		{ID: "A", PrimaryName: "Alpha"},
		{ID: "B", PrimaryName: "Beta"},
	}
	edges := []record.RedirectEdge{
		{CanonicalID: "A", SourceIDs: []string{"X"}},
		{CanonicalID: "B", SourceIDs: []string{"X"}},
	}

	result := Fold(records, edges, dialect(t, "generic"))

	assert.Equal(t, 1, result.Stats.Conflicts)
	assert.Equal(t, []string{"X"}, result.Aliases["B"])
	assert.NotContains(t, result.Aliases, "A")
}

func TestFoldSingleHop(t *testing.T) {
	records := []record.ResourceRecord{
		{ID: "B", PrimaryName: "Beta"},
		{ID: "C", PrimaryName: "Gamma"},
	}
	edges := []record.RedirectEdge{
		{CanonicalID: "B", SourceIDs: []string{"A"}},
		{CanonicalID: "C", SourceIDs: []string{"B"}},
		{CanonicalID: "Missing", SourceIDs: []string{"D"}},
	}

	result := Fold(records, edges, dialect(t, "generic"))

	assert.Equal(t, 2, result.Stats.Dangling)
	assert.Equal(t, []string{"Beta"}, result.Aliases["C"])
	assert.NotContains(t, result.Aliases, "B")
	require.Len(t, result.Records, 1)
	assert.Equal(t, "C", result.Records[0].ID)
}

func TestFoldDropsCanonicalOwnName(t *testing.T) {
	records := []record.ResourceRecord{
		{ID: "A", PrimaryName: "Same"},
		{ID: "S", PrimaryName: "Same"},
	}
	edges := []record.RedirectEdge{{CanonicalID: "A", SourceIDs: []string{"S"}}}

	result := Fold(records, edges, dialect(t, "generic"))
	assert.NotContains(t, result.Aliases, "A")
	assert.Equal(t, []string{"S"}, result.Applied["A"])
}

func TestFoldRetargetsTypes(t *testing.T) {
	records := []record.ResourceRecord{
		{ID: "C", PrimaryName: "human", Popularity: 800},
		{ID: "S", PrimaryName: "person", Popularity: 10},
		{ID: "A", PrimaryName: "Ada", Types: []string{"C", "S", "Z"}},
		{ID: "B", PrimaryName: "Byron", Types: []string{"S"}},
	}
	edges := []record.RedirectEdge{{CanonicalID: "C", SourceIDs: []string{"S"}}}

	result := Fold(records, edges, dialect(t, "generic"))

	require.Len(t, result.Records, 3)
	assert.Equal(t, []string{"C", "Z"}, result.Records[1].Types)
	assert.Equal(t, []string{"C"}, result.Records[2].Types)
	assert.Equal(t, 2, result.Stats.RetargetedTypes)
	assert.Equal(t, []string{"C", "S", "Z"}, records[2].Types)
}
