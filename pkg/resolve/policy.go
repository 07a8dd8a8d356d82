package resolve

import (
	"fmt"

	"github.com/coolbeans/kgindex/pkg/candidate"
)

// Policy names accepted by NewPolicy.
const (
	PolicyDrop       = "drop"
	PolicyMostCommon = "most-common"
)

// AmbiguityPolicy decides what an ambiguous surface form resolves to.
// Candidates handed to Choose point at distinct targets.
type AmbiguityPolicy interface {
	Name() string
	// Choose returns the retained candidate, or false to drop the surface
	// form entirely.
	Choose(candidates []candidate.Candidate) (candidate.Candidate, bool)
}

// CandidateFilter removes candidates from a group before the ambiguity
// policy runs.
type CandidateFilter interface {
	Name() string
	Filter(candidates []candidate.Candidate) (kept, removed []candidate.Candidate)
}

// NewPolicy returns the named ambiguity policy.
func NewPolicy(name string) (AmbiguityPolicy, error) {
	switch name {
	case PolicyDrop:
		return DropAmbiguous{}, nil
	case PolicyMostCommon:
		return KeepMostCommon{}, nil
	default:
		return nil, fmt.Errorf("unknown ambiguity policy %q (available: %s, %s)", name, PolicyDrop, PolicyMostCommon)
	}
}

// DropAmbiguous never guesses: every ambiguous surface form is dropped.
type DropAmbiguous struct{}

func (DropAmbiguous) Name() string { return PolicyDrop }

func (DropAmbiguous) Choose([]candidate.Candidate) (candidate.Candidate, bool) {
	return candidate.Candidate{}, false
}

// KeepMostCommon keeps the most popular candidate. Ties prefer a primary
// name over an alias, then the smaller id.
type KeepMostCommon struct{}

func (KeepMostCommon) Name() string { return PolicyMostCommon }

func (KeepMostCommon) Choose(candidates []candidate.Candidate) (candidate.Candidate, bool) {
	if len(candidates) == 0 {
		return candidate.Candidate{}, false
	}
	winner := candidates[0]
	for _, challenger := range candidates[1:] {
		if outranks(challenger, winner) {
			winner = challenger
		}
	}
	return winner, true
}

func outranks(a, b candidate.Candidate) bool {
	if a.Popularity != b.Popularity {
		return a.Popularity > b.Popularity
	}
	if a.IsPrimary() != b.IsPrimary() {
		return a.IsPrimary()
	}
	return smallerID(a.ID, a.Variant, b.ID, b.Variant)
}

// morePopular is the tie-break shared by every popularity decision that has
// no provenance: higher popularity, then smaller id.
func morePopular(popularityA int64, idA string, popularityB int64, idB string) bool {
	if popularityA != popularityB {
		return popularityA > popularityB
	}
	return idA < idB
}

func smallerID(idA, variantA, idB, variantB string) bool {
	if idA != idB {
		return idA < idB
	}
	return variantA < variantB
}

// PopularAliasFilter drops alias candidates that would shadow the primary
// name of a strictly more popular target in the same group.
type PopularAliasFilter struct{}

func (PopularAliasFilter) Name() string { return "popular-alias" }

func (PopularAliasFilter) Filter(candidates []candidate.Candidate) (kept, removed []candidate.Candidate) {
	var strongest int64 = -1
	for _, c := range candidates {
		if c.IsPrimary() && c.Popularity > strongest {
			strongest = c.Popularity
		}
	}
	if strongest < 0 {
		return candidates, nil
	}

	kept = make([]candidate.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.IsPrimary() && c.Popularity < strongest {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, removed
}
