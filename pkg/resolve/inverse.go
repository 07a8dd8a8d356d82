package resolve

import (
	"sort"

	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/record"
)

// InversePair links a property to its inverse.
type InversePair struct {
	PropertyID string `json:"property_id"`
	InverseID  string `json:"inverse_id"`
	// Popularity is the popularity of PropertyID.
	Popularity int64 `json:"popularity"`
	// Synthesized marks reciprocals that were not declared.
	Synthesized bool `json:"synthesized"`
}

// InverseStats counts the decisions of ResolveInverses.
type InverseStats struct {
	Declared    int `json:"declared"`
	Pairs       int `json:"pairs"`
	Synthesized int `json:"synthesized"`
	Conflicts   int `json:"conflicts"`
	Dangling    int `json:"dangling"`
}

// ResolveInverses gives every property at most one inverse. Among several
// declared inverses the most popular wins. A property that declares nothing
// but is claimed as an inverse receives its most popular claimant. Pairs are
// returned ordered by property id.
func ResolveInverses(properties []record.ResourceRecord) ([]InversePair, InverseStats) {
	var stats InverseStats

	byID := make(map[string]*record.ResourceRecord, len(properties))
	for index := range properties {
		byID[properties[index].ID] = &properties[index]
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chosen := make(map[string]string)
	for _, id := range ids {
		property := byID[id]
		stats.Declared += len(property.Inverses)

		var best *record.ResourceRecord
		valid := 0
		for _, inverseID := range property.Inverses {
			inverse, exists := byID[inverseID]
			if !exists {
				stats.Dangling++
				logger.Debug("Dangling inverse property", "property", id, "inverse", inverseID)
				continue
			}
			valid++
			if best == nil || morePopular(inverse.Popularity, inverse.ID, best.Popularity, best.ID) {
				best = inverse
			}
		}
		if best == nil {
			continue
		}
		if valid > 1 {
			stats.Conflicts += valid - 1
			logger.Warn("Property declares several inverses, keeping most popular",
				"property", id, "declared", valid, "kept", best.ID)
		}
		chosen[id] = best.ID
	}

	synthesized := make(map[string]string)
	for _, id := range ids {
		target, declared := chosen[id]
		if !declared {
			continue
		}
		if _, answered := chosen[target]; answered {
			continue
		}
		claimant, claimed := synthesized[target]
		if claimed {
			current := byID[claimant]
			if !morePopular(byID[id].Popularity, id, current.Popularity, current.ID) {
				continue
			}
		}
		synthesized[target] = id
	}

	pairs := make([]InversePair, 0, len(chosen)+len(synthesized))
	for _, id := range ids {
		if inverseID, declared := chosen[id]; declared {
			pairs = append(pairs, InversePair{PropertyID: id, InverseID: inverseID, Popularity: byID[id].Popularity})
			continue
		}
		if inverseID, ok := synthesized[id]; ok {
			pairs = append(pairs, InversePair{PropertyID: id, InverseID: inverseID, Popularity: byID[id].Popularity, Synthesized: true})
			stats.Synthesized++
		}
	}
	stats.Pairs = len(pairs)

	return pairs, stats
}
