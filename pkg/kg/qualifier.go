package kg

// Qualifier is one synthetic surface-form variant of a property.
type Qualifier struct {
	// Suffix is appended to the label in parentheses.
	Suffix string
	// Variant is the namespace prefix the variant resolves into.
	Variant string
}

var wikidataQualifiers = []Qualifier{
	{Suffix: "statement", Variant: "p"},
	{Suffix: "qualifier", Variant: "pq"},
	{Suffix: "normalized qualifier", Variant: "pqn"},
	{Suffix: "value", Variant: "ps"},
	{Suffix: "normalized value", Variant: "psn"},
}

func wikidataQualifierPrefixes() []Prefix {
	return []Prefix{
		{Short: "p", Long: "http://www.wikidata.org/prop/"},
		{Short: "pq", Long: "http://www.wikidata.org/prop/qualifier/"},
		{Short: "pqn", Long: "http://www.wikidata.org/prop/qualifier/value-normalized/"},
		{Short: "ps", Long: "http://www.wikidata.org/prop/statement/"},
		{Short: "psn", Long: "http://www.wikidata.org/prop/statement/value-normalized/"},
	}
}

// Qualifiers returns the qualifier schema of the graph. Only Wikidata
// declares one.
func (d *Dialect) Qualifiers() []Qualifier {
	if d.graph != Wikidata {
		return nil
	}
	return wikidataQualifiers
}

// QualifiedLabel builds the surface form of a qualifier variant.
func QualifiedLabel(label string, qualifier Qualifier) string {
	return label + " (" + qualifier.Suffix + ")"
}
