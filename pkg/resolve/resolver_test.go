package resolve

import (
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/kgindex/pkg/candidate"
)

func primary(surface, id string, popularity int64) candidate.Candidate {
	return candidate.Candidate{SurfaceForm: surface, ID: id, Popularity: popularity, Provenance: candidate.PrimaryName, Basis: candidate.PrimaryName}
}

func alias(surface, id string, popularity int64) candidate.Candidate {
	return candidate.Candidate{SurfaceForm: surface, ID: id, Popularity: popularity, Provenance: candidate.Alias, Basis: candidate.Alias}
}

func redirected(surface, id string, popularity int64) candidate.Candidate {
	return candidate.Candidate{SurfaceForm: surface, ID: id, Popularity: popularity, Provenance: candidate.RedirectAlias, Basis: candidate.RedirectAlias}
}

func entryMap(outcome Outcome) map[string]string {
	entries := make(map[string]string, len(outcome.Entries))
	for _, entry := range outcome.Entries {
		entries[entry.SurfaceForm] = entry.Candidate.Target()
	}
	return entries
}

func TestResolvePolicies(t *testing.T) {
	testCases := []struct {
		name       string
		resolver   *Resolver
		candidates []candidate.Candidate
		expected   map[string]string
	}{
		{
			name:       "unique group kept under drop",
			resolver:   New(DropAmbiguous{}),
			candidates: []candidate.Candidate{alias("Bob", "E1", 0), primary("Bobby", "E1", 0)},
			expected:   map[string]string{"Bob": "E1", "Bobby": "E1"},
		},
		{
			name:       "same target twice is unique",
			resolver:   New(DropAmbiguous{}),
			candidates: []candidate.Candidate{alias("Bob", "E1", 3), primary("Bob", "E1", 3)},
			expected:   map[string]string{"Bob": "E1"},
		},
		{
			name:       "ambiguous dropped by default",
			resolver:   New(DropAmbiguous{}),
			candidates: []candidate.Candidate{primary("Paris", "Q90", 1000), primary("Paris", "Q830149", 3)},
			expected:   map[string]string{},
		},
		{
			name:       "most common keeps highest popularity",
			resolver:   New(KeepMostCommon{}),
			candidates: []candidate.Candidate{primary("Paris", "Q830149", 3), alias("Paris", "Q90", 1000)},
			expected:   map[string]string{"Paris": "Q90"},
		},
		{
			name:       "tie prefers primary name",
			resolver:   New(KeepMostCommon{}),
			candidates: []candidate.Candidate{alias("Jo", "E1", 5), primary("Jo", "E2", 5)},
			expected:   map[string]string{"Jo": "E2"},
		},
		{
			name:       "tie prefers smaller id",
			resolver:   New(KeepMostCommon{}),
			candidates: []candidate.Candidate{redirected("Jo", "E3", 5), alias("Jo", "E2", 5)},
			expected:   map[string]string{"Jo": "E2"},
		},
		{
			name:       "popular alias filter drops shadowing alias",
			resolver:   New(DropAmbiguous{}, PopularAliasFilter{}),
			candidates: []candidate.Candidate{alias("Paris", "E1", 1), primary("Paris", "E2", 1000)},
			expected:   map[string]string{"Paris": "E2"},
		},
		{
			name:       "popular alias filter keeps more popular alias",
			resolver:   New(DropAmbiguous{}, PopularAliasFilter{}),
			candidates: []candidate.Candidate{alias("Paris", "E1", 2000), primary("Paris", "E2", 1000)},
			expected:   map[string]string{},
		},
		{
			name:       "popular alias filter ignores equal popularity",
			resolver:   New(KeepMostCommon{}, PopularAliasFilter{}),
			candidates: []candidate.Candidate{alias("Paris", "E1", 1000), primary("Paris", "E2", 1000)},
			expected:   map[string]string{"Paris": "E2"},
		},
		{
			name:       "popular alias filter without primary names",
			resolver:   New(KeepMostCommon{}, PopularAliasFilter{}),
			candidates: []candidate.Candidate{alias("Paris", "E1", 1), redirected("Paris", "E2", 9)},
			expected:   map[string]string{"Paris": "E2"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := tc.resolver.Resolve(tc.candidates)
			assert.Equal(t, tc.expected, entryMap(outcome), spew.Sdump(outcome))
		})
	}
}

func TestResolveStats(t *testing.T) {
	resolver := New(DropAmbiguous{}, PopularAliasFilter{})
	outcome := resolver.Resolve([]candidate.Candidate{
		primary("Paris", "E2", 1000),
		alias("Paris", "E1", 1),
		primary("Springfield", "E3", 10),
		primary("Springfield", "E4", 10),
		primary("Berlin", "E5", 10),
	})

	assert.Equal(t, 5, outcome.Stats.Candidates)
	assert.Equal(t, 3, outcome.Stats.SurfaceForms)
	assert.Equal(t, 1, outcome.Stats.Unique)
	assert.Equal(t, 2, outcome.Stats.Ambiguous)
	assert.Equal(t, 1, outcome.Stats.ResolvedByFilter)
	assert.Equal(t, 1, outcome.Stats.FilteredAliases)
	assert.Equal(t, 1, outcome.Stats.DroppedAmbiguous)
	assert.Len(t, outcome.Losers, 3)
}

func TestResolveOrderIndependent(t *testing.T) {
	candidates := []candidate.Candidate{
		primary("Jo", "E3", 5),
		alias("Jo", "E1", 5),
		primary("Jo", "E2", 5),
		alias("Jo", "E2", 5),
		primary("Ann", "E4", 1),
		alias("Ann", "E5", 1),
		redirected("Ann", "E6", 1),
	}
	resolver := New(KeepMostCommon{}, PopularAliasFilter{})
	expected := resolver.Resolve(candidates)

	random := rand.New(rand.NewSource(7))
	for range 20 {
		shuffled := append([]candidate.Candidate(nil), candidates...)
		random.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		assert.Equal(t, expected, resolver.Resolve(shuffled))
	}
	assert.Equal(t, map[string]string{"Jo": "E2", "Ann": "E4"}, entryMap(expected))
}

func TestResolveIsFunction(t *testing.T) {
	candidates := []candidate.Candidate{
		primary("a", "E1", 1), primary("a", "E2", 2), alias("b", "E1", 1),
		alias("b", "E3", 1), primary("c", "E3", 1), redirected("c", "E4", 8),
	}
	for _, resolver := range []*Resolver{New(DropAmbiguous{}), New(KeepMostCommon{}), New(KeepMostCommon{}, PopularAliasFilter{})} {
		outcome := resolver.Resolve(candidates)
		seen := make(map[string]bool)
		for _, entry := range outcome.Entries {
			assert.False(t, seen[entry.SurfaceForm], "surface form %q retained twice", entry.SurfaceForm)
			seen[entry.SurfaceForm] = true
		}
	}
}

func TestResolveQualifierVariants(t *testing.T) {
	statement := candidate.Candidate{
		SurfaceForm: "instance of (statement)", ID: "P31", Variant: "p",
		Popularity: 10, Provenance: candidate.Qualifier, Basis: candidate.PrimaryName,
	}
	outcome := New(KeepMostCommon{}, PopularAliasFilter{}).Resolve([]candidate.Candidate{
		statement,
		alias("instance of (statement)", "P999", 5),
	})

	require.Len(t, outcome.Entries, 1)
	assert.Equal(t, "p:P31", outcome.Entries[0].Candidate.Target())
	assert.Equal(t, 1, outcome.Stats.FilteredAliases)
}

func TestResolveWithInfo(t *testing.T) {
	info := map[string]string{"Q90": "city", "Q830149": "city", "Q167646": "mythological figure"}
	candidates := []candidate.Candidate{
		primary("Paris", "Q90", 1000),
		primary("Paris", "Q830149", 40),
		primary("Paris", "Q167646", 30),
		primary("Paris (mythological figure)", "Q999", 1),
	}

	outcome := New(DropAmbiguous{}).ResolveWithInfo(candidates, func(id string) string {
		return info[id]
	})

	assert.Equal(t, map[string]string{"Paris (mythological figure)": "Q999"}, entryMap(outcome))
	assert.Equal(t, 0, outcome.Stats.InfoForms)
	assert.Equal(t, 1, outcome.Stats.InfoDropped)

	outcome = New(KeepMostCommon{}).ResolveWithInfo(candidates, func(id string) string {
		return info[id]
	})
	assert.Equal(t, map[string]string{
		"Paris":                       "Q90",
		"Paris (city)":                "Q830149",
		"Paris (mythological figure)": "Q999",
	}, entryMap(outcome))
	assert.Equal(t, 1, outcome.Stats.InfoForms)
}

func TestResolveWithInfoNil(t *testing.T) {
	candidates := []candidate.Candidate{primary("Paris", "Q90", 1), primary("Paris", "Q91", 1)}
	outcome := New(DropAmbiguous{}).ResolveWithInfo(candidates, nil)
	assert.Empty(t, outcome.Entries)
	assert.Len(t, outcome.Losers, 2)
}

func TestNewPolicy(t *testing.T) {
	policy, err := NewPolicy("drop")
	require.NoError(t, err)
	assert.Equal(t, "drop", policy.Name())

	policy, err = NewPolicy("most-common")
	require.NoError(t, err)
	assert.Equal(t, "most-common", policy.Name())

	_, err = NewPolicy("random")
	assert.Error(t, err)
}
