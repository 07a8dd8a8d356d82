// Package resolve turns candidates into an index: one target per surface
// form. Ambiguity is an outcome governed by an AmbiguityPolicy, optionally
// preceded by CandidateFilters; it is never an error.
package resolve

import (
	"fmt"
	"sort"

	"github.com/coolbeans/kgindex/pkg/candidate"
)

// Entry is one retained surface form.
type Entry struct {
	SurfaceForm string
	Candidate   candidate.Candidate
}

// Stats counts the decisions of one resolution.
type Stats struct {
	Candidates   int `json:"candidates"`
	SurfaceForms int `json:"surface_forms"`
	Unique       int `json:"unique"`
	Ambiguous    int `json:"ambiguous"`
	// DroppedAmbiguous counts surface forms removed from the index because
	// the policy declined to choose.
	DroppedAmbiguous int `json:"dropped_ambiguous"`
	ResolvedByFilter int `json:"resolved_by_filter"`
	ResolvedByPolicy int `json:"resolved_by_policy"`
	FilteredAliases  int `json:"filtered_aliases"`
	InfoForms        int `json:"info_forms"`
	InfoDropped      int `json:"info_dropped"`
}

// Outcome is the result of Resolve.
type Outcome struct {
	Entries []Entry
	// Losers are candidates removed by a filter or not retained by the
	// policy.
	Losers []candidate.Candidate
	Stats  Stats
}

// InfoFunc returns a short description of a target, or "" when there is
// none.
type InfoFunc func(id string) string

// Resolver composes one ambiguity policy with any number of filters.
type Resolver struct {
	policy  AmbiguityPolicy
	filters []CandidateFilter
}

// New creates a resolver. Filters run in order before the policy.
func New(policy AmbiguityPolicy, filters ...CandidateFilter) *Resolver {
	return &Resolver{
		policy:  policy,
		filters: filters,
	}
}

// Resolve groups candidates by exact surface form and resolves every group.
// The result does not depend on candidate order.
func (r *Resolver) Resolve(candidates []candidate.Candidate) Outcome {
	outcome, _ := r.resolveRound(candidates)
	return outcome
}

// ResolveWithInfo resolves candidates, then gives every loser whose target
// has info a second chance as "surface (info)". Second-round forms are kept
// only when no first-round group used the same text.
func (r *Resolver) ResolveWithInfo(candidates []candidate.Candidate, info InfoFunc) Outcome {
	outcome, surfaces := r.resolveRound(candidates)
	if info == nil {
		return outcome
	}

	var retry []candidate.Candidate
	for _, loser := range outcome.Losers {
		if loser.Provenance == candidate.Qualifier {
			continue
		}
		text := info(loser.ID)
		if text == "" {
			continue
		}
		surface := fmt.Sprintf("%s (%s)", loser.SurfaceForm, text)
		if surfaces[surface] {
			continue
		}
		loser.SurfaceForm = surface
		retry = append(retry, loser)
	}
	if len(retry) == 0 {
		return outcome
	}

	second, _ := r.resolveRound(retry)
	outcome.Entries = append(outcome.Entries, second.Entries...)
	outcome.Stats.InfoForms = len(second.Entries)
	outcome.Stats.InfoDropped = second.Stats.DroppedAmbiguous
	return outcome
}

func (r *Resolver) resolveRound(candidates []candidate.Candidate) (Outcome, map[string]bool) {
	groups := group(candidates)

	surfaces := make([]string, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for surface := range groups {
		surfaces = append(surfaces, surface)
		seen[surface] = true
	}
	sort.Strings(surfaces)

	outcome := Outcome{
		Entries: make([]Entry, 0, len(groups)),
	}
	outcome.Stats.Candidates = len(candidates)
	outcome.Stats.SurfaceForms = len(groups)

	for _, surface := range surfaces {
		r.resolveGroup(surface, groups[surface], &outcome)
	}
	return outcome, seen
}

func (r *Resolver) resolveGroup(surface string, members []candidate.Candidate, outcome *Outcome) {
	if len(members) == 1 {
		outcome.Stats.Unique++
		outcome.Entries = append(outcome.Entries, Entry{SurfaceForm: surface, Candidate: members[0]})
		return
	}
	outcome.Stats.Ambiguous++

	kept := members
	for _, filter := range r.filters {
		var removed []candidate.Candidate
		kept, removed = filter.Filter(kept)
		outcome.Stats.FilteredAliases += len(removed)
		outcome.Losers = append(outcome.Losers, removed...)
	}

	switch len(kept) {
	case 0:
		outcome.Stats.DroppedAmbiguous++
		return
	case 1:
		outcome.Stats.ResolvedByFilter++
		outcome.Entries = append(outcome.Entries, Entry{SurfaceForm: surface, Candidate: kept[0]})
		return
	}

	winner, ok := r.policy.Choose(kept)
	if !ok {
		outcome.Stats.DroppedAmbiguous++
		outcome.Losers = append(outcome.Losers, kept...)
		return
	}
	outcome.Stats.ResolvedByPolicy++
	outcome.Entries = append(outcome.Entries, Entry{SurfaceForm: surface, Candidate: winner})
	for _, member := range kept {
		if member.Target() != winner.Target() {
			outcome.Losers = append(outcome.Losers, member)
		}
	}
}

// group buckets candidates by surface form, keeping one candidate per
// target. Members of a group are sorted by target.
func group(candidates []candidate.Candidate) map[string][]candidate.Candidate {
	byTarget := make(map[string]map[string]candidate.Candidate)
	for _, c := range candidates {
		targets := byTarget[c.SurfaceForm]
		if targets == nil {
			targets = make(map[string]candidate.Candidate)
			byTarget[c.SurfaceForm] = targets
		}
		target := c.Target()
		if existing, exists := targets[target]; exists && !c.Preferred(existing) {
			continue
		}
		targets[target] = c
	}

	groups := make(map[string][]candidate.Candidate, len(byTarget))
	for surface, targets := range byTarget {
		members := make([]candidate.Candidate, 0, len(targets))
		for _, c := range targets {
			members = append(members, c)
		}
		sort.Slice(members, func(i, j int) bool {
			return smallerID(members[i].ID, members[i].Variant, members[j].ID, members[j].Variant)
		})
		groups[surface] = members
	}
	return groups
}
