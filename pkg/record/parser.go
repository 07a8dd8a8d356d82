package record

import (
	"strconv"
	"strings"

	"github.com/coolbeans/kgindex/pkg/kg"
)

// Column positions of an entity row.
const (
	entityColumnID = iota
	entityColumnLabel
	entityColumnDescription
	entityColumnPopularity
	entityColumnTypes
	entityColumnAliases
	entityColumnKeys
	entityColumnCount
)

// Column positions of a property row.
const (
	propertyColumnID = iota
	propertyColumnLabel
	propertyColumnPopularity
	propertyColumnAliases
	propertyColumnInverses
	propertyColumnCount
)

// minimumColumns is the id and the label.
const minimumColumns = 2

// RowResult reports what happened to one row.
type RowResult struct {
	Defect Defect
	// NumericDefault is set when the popularity column was present but did
	// not parse and zero was used instead.
	NumericDefault bool
}

// Parser projects rows of one dump kind into records.
type Parser struct {
	dialect  *kg.Dialect
	kind     Kind
	language string
}

// NewParser creates a parser for the given dump kind. Labels and
// descriptions given as language-tagged literals are only accepted in
// language.
func NewParser(dialect *kg.Dialect, kind Kind, language string) *Parser {
	return &Parser{
		dialect:  dialect,
		kind:     kind,
		language: language,
	}
}

// ParseRow parses one tab-separated row.
func (parser *Parser) ParseRow(line string) (ResourceRecord, RowResult) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")

	if parser.kind == KindProperty {
		return parser.parseProperty(fields)
	}
	return parser.parseEntity(fields)
}

func (parser *Parser) parseEntity(fields []string) (ResourceRecord, RowResult) {
	if len(fields) < minimumColumns || len(fields) > entityColumnCount {
		return ResourceRecord{}, RowResult{Defect: DefectColumnCount}
	}

	id, ok := parser.dialect.EntityID(fields[entityColumnID])
	if !ok {
		return ResourceRecord{}, RowResult{Defect: DefectMissingID}
	}
	label := kg.Literal(fields[entityColumnLabel], parser.language)
	if label == "" {
		return ResourceRecord{}, RowResult{Defect: DefectMissingLabel}
	}

	record := ResourceRecord{
		ID:          id,
		PrimaryName: label,
	}
	var result RowResult

	if value, present := column(fields, entityColumnDescription); present {
		record.Description = kg.Literal(value, parser.language)
	}
	if value, present := column(fields, entityColumnPopularity); present {
		record.Popularity, result.NumericDefault = parsePopularity(value)
	}
	if value, present := column(fields, entityColumnTypes); present {
		record.Types = splitValues(value, parser.dialect.EntityID)
	}
	if value, present := column(fields, entityColumnAliases); present {
		record.Aliases = parser.splitLiterals(value)
	}
	if value, present := column(fields, entityColumnKeys); present {
		record.ExtraKeys = splitValues(value, nil)
	}

	return record, result
}

func (parser *Parser) parseProperty(fields []string) (ResourceRecord, RowResult) {
	if len(fields) < minimumColumns || len(fields) > propertyColumnCount {
		return ResourceRecord{}, RowResult{Defect: DefectColumnCount}
	}

	id, ok := parser.dialect.PropertyID(fields[propertyColumnID])
	if !ok {
		return ResourceRecord{}, RowResult{Defect: DefectMissingID}
	}
	label := kg.Literal(fields[propertyColumnLabel], parser.language)
	if label == "" {
		return ResourceRecord{}, RowResult{Defect: DefectMissingLabel}
	}
	label, ok = parser.dialect.PropertyLabel(id, label)
	if !ok {
		return ResourceRecord{}, RowResult{Defect: DefectBadPropertyID}
	}

	record := ResourceRecord{
		ID:          id,
		PrimaryName: label,
	}
	var result RowResult

	if value, present := column(fields, propertyColumnPopularity); present {
		record.Popularity, result.NumericDefault = parsePopularity(value)
	}
	if value, present := column(fields, propertyColumnAliases); present {
		record.Aliases = parser.splitLiterals(value)
	}
	if value, present := column(fields, propertyColumnInverses); present {
		record.Inverses = splitValues(value, parser.dialect.PropertyID)
	}

	return record, result
}

func (parser *Parser) splitLiterals(field string) []string {
	return splitValues(field, func(value string) (string, bool) {
		literal := kg.Literal(value, parser.language)
		return literal, literal != ""
	})
}

// column returns the trimmed field at index and whether it is non-empty.
func column(fields []string, index int) (string, bool) {
	if index >= len(fields) {
		return "", false
	}
	value := strings.TrimSpace(fields[index])
	return value, value != ""
}

// parsePopularity parses a non-negative count. Anything else yields zero and
// reports the default.
func parsePopularity(value string) (int64, bool) {
	value = strings.Trim(value, `"`)
	if before, _, found := strings.Cut(value, "^^"); found {
		value = strings.Trim(before, `"`)
	}
	popularity, err := strconv.ParseInt(value, 10, 64)
	if err != nil || popularity < 0 {
		return 0, true
	}
	return popularity, false
}
