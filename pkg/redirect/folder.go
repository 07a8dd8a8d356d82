// Package redirect folds a redirect relation into a record set. Folding is a
// single hop: every source id becomes an extra surface form of its canonical
// record and chained redirects are reported rather than followed.
package redirect

import (
	"sort"

	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/record"
)

// Stats counts what happened while folding.
type Stats struct {
	Edges   int `json:"edges"`
	Applied int `json:"applied"`
	// Conflicts counts sources that were redirected to more than one
	// canonical id; the last declaration won.
	Conflicts int `json:"conflicts"`
	// Dangling counts sources whose canonical id has no record or is itself
	// redirected.
	Dangling        int `json:"dangling"`
	SelfRedirects   int `json:"self_redirects"`
	AbsorbedRecords int `json:"absorbed_records"`
	// RetargetedTypes counts type references moved from a folded source to
	// its canonical id.
	RetargetedTypes int `json:"retargeted_types"`
}

// Result is the outcome of folding.
type Result struct {
	// Records is the input record set without the records that were
	// absorbed as redirect sources, in input order.
	Records []record.ResourceRecord

	// Aliases maps a canonical id to the sorted surface forms it gained.
	Aliases map[string][]string

	// Applied maps a canonical id to the sorted source ids folded into it.
	Applied map[string][]string

	Stats Stats
}

// Fold merges edges into records. A source with a record of its own hands
// its primary name and aliases to the canonical record and disappears from
// the record set; a source without one contributes its id text. Type
// references to a folded source are moved to its canonical id. Popularity
// is never transferred.
func Fold(records []record.ResourceRecord, edges []record.RedirectEdge, dialect *kg.Dialect) Result {
	result := Result{
		Aliases: make(map[string][]string),
		Applied: make(map[string][]string),
	}

	targets := make(map[string]string)
	for _, edge := range edges {
		for _, source := range edge.SourceIDs {
			result.Stats.Edges++
			if source == edge.CanonicalID {
				result.Stats.SelfRedirects++
				continue
			}
			if previous, exists := targets[source]; exists && previous != edge.CanonicalID {
				result.Stats.Conflicts++
				logger.Warn("Conflicting redirect, keeping last declaration",
					"source", source, "previous", previous, "canonical", edge.CanonicalID)
			}
			targets[source] = edge.CanonicalID
		}
	}

	byID := make(map[string]*record.ResourceRecord, len(records))
	for index := range records {
		byID[records[index].ID] = &records[index]
	}

	sources := make([]string, 0, len(targets))
	for source := range targets {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	absorbed := make(map[string]bool)
	folded := make(map[string]string)
	surfaces := make(map[string]map[string]bool)
	for _, source := range sources {
		canonical := targets[source]
		canonicalRecord, exists := byID[canonical]
		if _, chained := targets[canonical]; chained || !exists {
			result.Stats.Dangling++
			logger.Debug("Dangling redirect", "source", source, "canonical", canonical)
			continue
		}

		if surfaces[canonical] == nil {
			surfaces[canonical] = make(map[string]bool)
		}
		if sourceRecord, hasRecord := byID[source]; hasRecord {
			absorbed[source] = true
			surfaces[canonical][sourceRecord.PrimaryName] = true
			for _, alias := range sourceRecord.Aliases {
				surfaces[canonical][alias] = true
			}
		} else if surface := dialect.SurfaceFromID(source); surface != "" {
			surfaces[canonical][surface] = true
		}
		delete(surfaces[canonical], canonicalRecord.PrimaryName)

		folded[source] = canonical
		result.Applied[canonical] = append(result.Applied[canonical], source)
		result.Stats.Applied++
	}

	for canonical, forms := range surfaces {
		if len(forms) == 0 {
			continue
		}
		aliases := make([]string, 0, len(forms))
		for form := range forms {
			aliases = append(aliases, form)
		}
		sort.Strings(aliases)
		result.Aliases[canonical] = aliases
	}

	result.Records = make([]record.ResourceRecord, 0, len(records)-len(absorbed))
	for _, resource := range records {
		if absorbed[resource.ID] {
			continue
		}
		var moved int
		resource.Types, moved = retarget(resource.Types, folded)
		result.Stats.RetargetedTypes += moved
		result.Records = append(result.Records, resource)
	}
	result.Stats.AbsorbedRecords = len(absorbed)

	return result
}

// retarget replaces folded ids in a sorted id set. The input slice is never
// modified; the result stays sorted and free of duplicates.
func retarget(ids []string, folded map[string]string) ([]string, int) {
	moved := 0
	for _, id := range ids {
		if _, ok := folded[id]; ok {
			moved++
		}
	}
	if moved == 0 {
		return ids, 0
	}

	seen := make(map[string]bool, len(ids))
	retargeted := make([]string, 0, len(ids))
	for _, id := range ids {
		if canonical, ok := folded[id]; ok {
			id = canonical
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		retargeted = append(retargeted, id)
	}
	sort.Strings(retargeted)
	return retargeted, moved
}
