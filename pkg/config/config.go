// Package config holds the settings of one index build and loads them from
// defaults, a YAML file and KGINDEX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/kgindex/pkg/kg"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("kgindex: invalid configuration")

// Ambiguity policy names.
const (
	PolicyDrop       = "drop"
	PolicyMostCommon = "most-common"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "KGINDEX_"

// BuildConfig holds the settings of one index build.
type BuildConfig struct {
	// Input is the tab-separated dump to index.
	Input string `json:"input" yaml:"input" validate:"required"`

	// Output is the index directory for entity builds and the index file for
	// property builds.
	Output string `json:"output" yaml:"output" validate:"required"`

	KnowledgeGraph string `json:"knowledge_graph" yaml:"knowledge_graph" validate:"oneof=wikidata freebase dbpedia generic"`
	IDFormat       string `json:"id_format" yaml:"id_format" validate:"oneof=bare prefixed uri"`

	// AmbiguityPolicy is "drop" or "most-common".
	AmbiguityPolicy    string `json:"ambiguity_policy" yaml:"ambiguity_policy" validate:"oneof=drop most-common"`
	PopularAliasFilter bool   `json:"popular_alias_filter" yaml:"popular_alias_filter"`

	// Redirects is an optional redirect relation (entities only).
	Redirects string `json:"redirects,omitempty" yaml:"redirects,omitempty"`

	IncludeTypes        bool `json:"include_types" yaml:"include_types"`
	IncludeDescriptions bool `json:"include_descriptions" yaml:"include_descriptions"`
	IncludeAliases      bool `json:"include_aliases" yaml:"include_aliases"`
	QualifierExpansion  bool `json:"qualifier_expansion" yaml:"qualifier_expansion"`
	InfoDisambiguation  bool `json:"info_disambiguation" yaml:"info_disambiguation"`
	KeysAsAliases       bool `json:"keys_as_aliases" yaml:"keys_as_aliases"`

	Language  string `json:"language" yaml:"language"`
	HasHeader bool   `json:"has_header" yaml:"has_header"`

	// Workers is the parsing parallelism; 0 uses every CPU.
	Workers int `json:"workers" yaml:"workers" validate:"min=0"`

	InverseOutput string `json:"inverse_output,omitempty" yaml:"inverse_output,omitempty"`
	SummaryOutput string `json:"summary_output,omitempty" yaml:"summary_output,omitempty"`

	// Publish is an optional s3://bucket/prefix target.
	Publish string `json:"publish,omitempty" yaml:"publish,omitempty"`
}

// DefaultBuildConfig returns the defaults every other layer overrides.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		KnowledgeGraph:      string(kg.Wikidata),
		IDFormat:            string(kg.IDFormatBare),
		AmbiguityPolicy:     PolicyDrop,
		IncludeTypes:        true,
		IncludeDescriptions: true,
		IncludeAliases:      true,
		Language:            "en",
		HasHeader:           true,
	}
}

// LoadFile overlays the settings of a YAML file. Keys absent from the file
// keep their current value.
func (c *BuildConfig) LoadFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, filePath, err)
	}
	return nil
}

// ApplyEnv overlays KGINDEX_* environment variables.
func (c *BuildConfig) ApplyEnv() {
	c.Input = GetEnvString(EnvPrefix+"INPUT", c.Input)
	c.Output = GetEnvString(EnvPrefix+"OUTPUT", c.Output)
	c.KnowledgeGraph = GetEnvString(EnvPrefix+"KG", c.KnowledgeGraph)
	c.IDFormat = GetEnvString(EnvPrefix+"ID_FORMAT", c.IDFormat)
	c.AmbiguityPolicy = GetEnvString(EnvPrefix+"AMBIGUITY_POLICY", c.AmbiguityPolicy)
	c.PopularAliasFilter = GetEnvBool(EnvPrefix+"POPULAR_ALIAS_FILTER", c.PopularAliasFilter)
	c.Redirects = GetEnvString(EnvPrefix+"REDIRECTS", c.Redirects)
	c.IncludeTypes = GetEnvBool(EnvPrefix+"INCLUDE_TYPES", c.IncludeTypes)
	c.IncludeDescriptions = GetEnvBool(EnvPrefix+"INCLUDE_DESCRIPTIONS", c.IncludeDescriptions)
	c.IncludeAliases = GetEnvBool(EnvPrefix+"INCLUDE_ALIASES", c.IncludeAliases)
	c.QualifierExpansion = GetEnvBool(EnvPrefix+"QUALIFIER_EXPANSION", c.QualifierExpansion)
	c.InfoDisambiguation = GetEnvBool(EnvPrefix+"INFO_DISAMBIGUATION", c.InfoDisambiguation)
	c.KeysAsAliases = GetEnvBool(EnvPrefix+"KEYS_AS_ALIASES", c.KeysAsAliases)
	c.Language = GetEnvString(EnvPrefix+"LANGUAGE", c.Language)
	c.HasHeader = GetEnvBool(EnvPrefix+"HAS_HEADER", c.HasHeader)
	c.Workers = GetEnvInt(EnvPrefix+"WORKERS", c.Workers)
	c.InverseOutput = GetEnvString(EnvPrefix+"INVERSE_OUTPUT", c.InverseOutput)
	c.SummaryOutput = GetEnvString(EnvPrefix+"SUMMARY_OUTPUT", c.SummaryOutput)
	c.Publish = GetEnvString(EnvPrefix+"PUBLISH", c.Publish)
}

// Validate checks required paths and enumerated values.
func (c BuildConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		switch fieldError.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", fieldError.Field()))
		case "oneof":
			problems = append(problems, fmt.Sprintf("unknown %s %q (available: %s)",
				fieldError.Field(), fieldError.Value(), strings.ReplaceAll(fieldError.Param(), " ", ", ")))
		default:
			problems = append(problems, fmt.Sprintf("%s fails %s=%s", fieldError.Field(), fieldError.Tag(), fieldError.Param()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// YAML renders the configuration as a config file.
func (c BuildConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
