// Package kg describes the knowledge-graph dialects the index builder
// understands: how identifiers appear in bulk query dumps, how they are
// rendered in index outputs, and the few graph-specific label conventions.
package kg

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Graph names a supported knowledge graph.
type Graph string

const (
	Wikidata Graph = "wikidata"
	Freebase Graph = "freebase"
	DBpedia  Graph = "dbpedia"
	// Generic accepts any non-empty identifier and never rewrites it.
	Generic Graph = "generic"
)

// AllGraphs returns the supported graph names.
func AllGraphs() []string {
	return []string{string(Wikidata), string(Freebase), string(DBpedia), string(Generic)}
}

// IDFormat controls how identifiers are rendered in outputs.
type IDFormat string

const (
	// IDFormatBare strips namespaces: Q42.
	IDFormatBare IDFormat = "bare"
	// IDFormatPrefixed uses a compact prefix: wd:Q42.
	IDFormatPrefixed IDFormat = "prefixed"
	// IDFormatURI keeps the full URI: http://www.wikidata.org/entity/Q42.
	IDFormatURI IDFormat = "uri"
)

// ParseIDFormat validates an id format name.
func ParseIDFormat(value string) (IDFormat, error) {
	switch IDFormat(value) {
	case IDFormatBare, IDFormatPrefixed, IDFormatURI:
		return IDFormat(value), nil
	default:
		return "", fmt.Errorf("unknown id format %q (available: bare, prefixed, uri)", value)
	}
}

// Prefix is one short-to-long namespace mapping.
type Prefix struct {
	Short string
	Long  string
}

// Dialect bundles the patterns and rendering rules of one graph.
type Dialect struct {
	graph Graph

	entityPattern   *regexp.Regexp
	propertyPattern *regexp.Regexp
	bareEntity      *regexp.Regexp
	bareProperty    *regexp.Regexp

	entityPrefix   Prefix
	propertyPrefix Prefix
	extraPrefixes  []Prefix
}

var literalPattern = regexp.MustCompile(`^"(.*)"@([A-Za-z0-9-]+)$`)

// NewDialect returns the dialect for the named graph.
func NewDialect(name string) (*Dialect, error) {
	switch Graph(name) {
	case Wikidata:
		return &Dialect{
			graph:           Wikidata,
			entityPattern:   regexp.MustCompile(`^<?http://www\.wikidata\.org/entity/(Q\d+)>?$`),
			propertyPattern: regexp.MustCompile(`^<?http://www\.wikidata\.org/(?:entity|prop/direct|prop/direct-normalized)/(P\d+)>?$`),
			bareEntity:      regexp.MustCompile(`^Q\d+$`),
			bareProperty:    regexp.MustCompile(`^P\d+$`),
			entityPrefix:    Prefix{Short: "wd", Long: "http://www.wikidata.org/entity/"},
			propertyPrefix:  Prefix{Short: "wdt", Long: "http://www.wikidata.org/prop/direct/"},
			extraPrefixes:   wikidataQualifierPrefixes(),
		}, nil
	case Freebase:
		return &Dialect{
			graph:           Freebase,
			entityPattern:   regexp.MustCompile(`^<?http://rdf\.freebase\.com/ns/(m\.[^>]+)>?$`),
			propertyPattern: regexp.MustCompile(`^<?http://rdf\.freebase\.com/ns/([^>]+)>?$`),
			bareEntity:      regexp.MustCompile(`^m\.[^\s<>]+$`),
			bareProperty:    regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)+$`),
			entityPrefix:    Prefix{Short: "fb", Long: "http://rdf.freebase.com/ns/"},
			propertyPrefix:  Prefix{Short: "fb", Long: "http://rdf.freebase.com/ns/"},
		}, nil
	case DBpedia:
		return &Dialect{
			graph:           DBpedia,
			entityPattern:   regexp.MustCompile(`^<?http://dbpedia\.org/resource/([^>]+)>?$`),
			propertyPattern: regexp.MustCompile(`^<?http://dbpedia\.org/((?:property|ontology)/[^>]+)>?$`),
			bareProperty:    regexp.MustCompile(`^(?:property|ontology)/[^\s<>]+$`),
			entityPrefix:    Prefix{Short: "dbr", Long: "http://dbpedia.org/resource/"},
			propertyPrefix:  Prefix{Short: "dbp", Long: "http://dbpedia.org/property/"},
			extraPrefixes:   []Prefix{{Short: "dbo", Long: "http://dbpedia.org/ontology/"}},
		}, nil
	case Generic:
		return &Dialect{graph: Generic}, nil
	default:
		return nil, fmt.Errorf("unknown knowledge graph %q (available: %s)", name, strings.Join(AllGraphs(), ", "))
	}
}

// EntityID extracts the bare entity id from a dump field. It returns false
// when the field is not an entity of this graph.
func (d *Dialect) EntityID(field string) (string, bool) {
	return d.extract(field, d.entityPattern, d.bareEntity)
}

// PropertyID extracts the bare property id from a dump field.
func (d *Dialect) PropertyID(field string) (string, bool) {
	return d.extract(field, d.propertyPattern, d.bareProperty)
}

func (d *Dialect) extract(field string, full, bare *regexp.Regexp) (string, bool) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", false
	}
	if d.graph == Generic {
		id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(field, "<"), ">"))
		return id, id != ""
	}
	if match := full.FindStringSubmatch(field); match != nil {
		id := strings.TrimSpace(match[1])
		return id, id != ""
	}
	if bare != nil && bare.MatchString(field) {
		return field, true
	}
	return "", false
}

// Literal unwraps a `"text"@lang` literal. Literals in another language
// yield the empty string; unquoted text is returned trimmed.
func Literal(field string, language string) string {
	field = strings.TrimSpace(field)
	if match := literalPattern.FindStringSubmatch(field); match != nil {
		if language != "" && !strings.EqualFold(match[2], language) {
			return ""
		}
		return strings.TrimSpace(match[1])
	}
	return field
}

// SurfaceFromID turns an identifier into text usable as a surface form.
// DBpedia resource ids are page titles with underscores for spaces.
func (d *Dialect) SurfaceFromID(id string) string {
	if d.graph == DBpedia {
		return strings.TrimSpace(strings.ReplaceAll(id, "_", " "))
	}
	return id
}

// FormatEntity renders a bare entity id.
func (d *Dialect) FormatEntity(id string, format IDFormat) string {
	if d.graph == Generic {
		return id
	}
	switch format {
	case IDFormatPrefixed:
		return d.entityPrefix.Short + ":" + id
	case IDFormatURI:
		return d.entityPrefix.Long + id
	default:
		return id
	}
}

// FormatProperty renders a bare property id. A non-empty variant selects a
// qualifier namespace (see Qualifiers); variants keep their prefix even in
// bare format so they stay distinguishable from the direct property.
func (d *Dialect) FormatProperty(id string, variant string, format IDFormat) string {
	if d.graph == Generic {
		if variant != "" {
			return variant + ":" + id
		}
		return id
	}
	if variant != "" {
		prefix, ok := d.lookupPrefix(variant)
		if ok && format == IDFormatURI {
			return prefix.Long + id
		}
		return variant + ":" + id
	}

	prefix := d.propertyPrefix
	local := id
	if d.graph == DBpedia {
		if rest, ok := strings.CutPrefix(id, "ontology/"); ok {
			prefix, _ = d.lookupPrefix("dbo")
			local = rest
		} else if rest, ok := strings.CutPrefix(id, "property/"); ok {
			local = rest
		}
	}

	switch format {
	case IDFormatPrefixed:
		return prefix.Short + ":" + local
	case IDFormatURI:
		return prefix.Long + local
	default:
		return id
	}
}

// PropertyLabel decorates a property label the way each graph needs to keep
// labels from different namespaces apart. It returns false when the id is
// unusable for the graph.
func (d *Dialect) PropertyLabel(id string, label string) (string, bool) {
	switch d.graph {
	case DBpedia:
		if strings.HasPrefix(id, "ontology/") {
			return label + " (ontology)", true
		}
		return label, true
	case Freebase:
		segments := strings.Split(id, ".")
		if len(segments) < 2 {
			return "", false
		}
		domain := strings.ReplaceAll(segments[len(segments)-2], "_", " ")
		return fmt.Sprintf("%s (%s)", label, domain), true
	default:
		return label, true
	}
}

// Prefixes returns every namespace prefix used by FormatEntity and
// FormatProperty, sorted by short name.
func (d *Dialect) Prefixes() []Prefix {
	if d.graph == Generic {
		return nil
	}
	seen := make(map[string]bool)
	var prefixes []Prefix
	for _, prefix := range append([]Prefix{d.entityPrefix, d.propertyPrefix}, d.extraPrefixes...) {
		if seen[prefix.Short] {
			continue
		}
		seen[prefix.Short] = true
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return prefixes[i].Short < prefixes[j].Short
	})
	return prefixes
}

func (d *Dialect) lookupPrefix(short string) (Prefix, bool) {
	for _, prefix := range d.Prefixes() {
		if prefix.Short == short {
			return prefix, true
		}
	}
	return Prefix{}, false
}
