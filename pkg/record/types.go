// Package record turns the tab-separated rows of a bulk graph dump into
// resource records. Parsing is a pure per-row projection: malformed rows are
// skipped and counted, unparseable numbers default to zero, and nothing a
// single row contains can abort a batch.
package record

import (
	"sort"
	"strings"
)

// Kind distinguishes entity dumps from property dumps; the two use different
// column layouts.
type Kind string

const (
	KindEntity   Kind = "entity"
	KindProperty Kind = "property"
)

// ValueSeparator delimits the values of a multi-valued column.
const ValueSeparator = ";"

// ResourceRecord is one entity or property of a source graph. Set-valued
// fields are sorted and free of duplicates so records compare and iterate
// deterministically.
type ResourceRecord struct {
	// ID is the bare identifier, unique within one graph.
	ID string `json:"id"`

	// PrimaryName is the canonical label.
	PrimaryName string `json:"primary_name"`

	Description string `json:"description,omitempty"`

	// Popularity is the link or degree count, 0 when unknown.
	Popularity int64 `json:"popularity"`

	// Types holds bare ids of the record's (notable) types.
	Types []string `json:"types,omitempty"`

	// Aliases holds alternate surface forms.
	Aliases []string `json:"aliases,omitempty"`

	// ExtraKeys holds graph-specific lexical keys.
	ExtraKeys []string `json:"extra_keys,omitempty"`

	// Inverses holds bare ids of declared inverse properties (properties only).
	Inverses []string `json:"inverses,omitempty"`
}

// RedirectEdge declares that every source id is an alternate name of the
// canonical id.
type RedirectEdge struct {
	CanonicalID string   `json:"canonical_id"`
	SourceIDs   []string `json:"source_ids"`
}

// Defect classifies why a row was skipped.
type Defect string

const (
	DefectNone         Defect = ""
	DefectColumnCount  Defect = "column_count"
	DefectMissingID    Defect = "missing_id"
	DefectMissingLabel Defect = "missing_label"
	// DefectBadPropertyID marks property ids the graph cannot label, such as
	// freebase ids without a domain segment.
	DefectBadPropertyID Defect = "bad_property_id"
	// DefectOverlong marks rows longer than the reader's line limit.
	DefectOverlong Defect = "overlong"
)

// splitValues splits a multi-valued column, trims every value, drops empty
// values and returns the remaining values sorted and deduplicated.
func splitValues(field string, transform func(string) (string, bool)) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var values []string
	for _, raw := range strings.Split(field, ValueSeparator) {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if transform != nil {
			var ok bool
			value, ok = transform(value)
			if !ok || value == "" {
				continue
			}
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
