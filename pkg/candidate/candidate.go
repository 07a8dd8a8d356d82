// Package candidate expands resource records into the (surface form, id)
// pairs the resolver works on.
package candidate

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/record"
)

// Provenance records where a surface form came from.
type Provenance string

const (
	PrimaryName   Provenance = "primary_name"
	Alias         Provenance = "alias"
	RedirectAlias Provenance = "redirect_alias"
	// Qualifier marks synthetic property variants. Resolution treats them
	// like the surface form they were derived from.
	Qualifier Provenance = "qualifier"
)

// rank orders provenances when one target offers the same surface form more
// than once.
func (p Provenance) rank() int {
	switch p {
	case PrimaryName:
		return 0
	case Alias:
		return 1
	case RedirectAlias:
		return 2
	default:
		return 3
	}
}

// Candidate is one surface form pointing at one target.
type Candidate struct {
	SurfaceForm string
	ID          string
	// Variant is the qualifier namespace of a property variant, empty for
	// plain targets.
	Variant    string
	Popularity int64
	Provenance Provenance
	// Basis is the provenance used for disambiguation. It equals Provenance
	// except for qualifier variants, which inherit the provenance of the
	// label they were derived from.
	Basis Provenance
}

// Target identifies what the candidate resolves to. Variants of one property
// are distinct targets.
func (c Candidate) Target() string {
	if c.Variant == "" {
		return c.ID
	}
	return c.Variant + ":" + c.ID
}

// IsPrimary reports whether the candidate stands for a canonical name.
func (c Candidate) IsPrimary() bool {
	return c.Basis == PrimaryName
}

// Preferred reports whether c should represent its target over other when
// both offer the same surface form.
func (c Candidate) Preferred(other Candidate) bool {
	if c.Basis.rank() != other.Basis.rank() {
		return c.Basis.rank() < other.Basis.rank()
	}
	return c.Provenance.rank() < other.Provenance.rank()
}

// Options selects which surface forms are generated.
type Options struct {
	IncludeAliases bool
	// KeysAsAliases turns graph-specific lexical keys into alias candidates.
	KeysAsAliases bool
	// Qualifiers adds one variant per qualifier for the primary name and
	// every alias. Empty disables expansion.
	Qualifiers []kg.Qualifier
}

// Generate fans one record out into candidates. redirectAliases are the
// surface forms the redirect folder attached to the record. A surface form
// is emitted once per record, under its strongest provenance.
func Generate(resource record.ResourceRecord, redirectAliases []string, options Options) []Candidate {
	seen := make(map[string]bool)
	var candidates []Candidate

	emit := func(surface string, provenance Provenance) bool {
		if surface == "" || seen[surface] {
			return false
		}
		seen[surface] = true
		candidates = append(candidates, Candidate{
			SurfaceForm: surface,
			ID:          resource.ID,
			Popularity:  resource.Popularity,
			Provenance:  provenance,
			Basis:       provenance,
		})
		return true
	}

	var labels []Candidate
	if emit(resource.PrimaryName, PrimaryName) {
		labels = append(labels, candidates[0])
	}

	if options.IncludeAliases {
		for _, alias := range resource.Aliases {
			if emit(alias, Alias) {
				labels = append(labels, candidates[len(candidates)-1])
			}
		}
	}
	if options.KeysAsAliases {
		for _, key := range resource.ExtraKeys {
			emit(key, Alias)
		}
	}
	for _, alias := range redirectAliases {
		emit(alias, RedirectAlias)
	}

	for _, label := range labels {
		for _, qualifier := range options.Qualifiers {
			candidates = append(candidates, Candidate{
				SurfaceForm: kg.QualifiedLabel(label.SurfaceForm, qualifier),
				ID:          resource.ID,
				Variant:     qualifier.Variant,
				Popularity:  resource.Popularity,
				Provenance:  Qualifier,
				Basis:       label.Basis,
			})
		}
	}

	return candidates
}

// GenerateAll runs Generate over every record on a pool of workers and
// returns the candidates in record order.
func GenerateAll(ctx context.Context, records []record.ResourceRecord, redirectAliases map[string][]string, options Options, workers int) ([]Candidate, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers == 0 {
		return nil, nil
	}

	parts := make([][]Candidate, workers)
	chunk := (len(records) + workers - 1) / workers

	group, groupCtx := errgroup.WithContext(ctx)
	for worker := range workers {
		start := worker * chunk
		end := min(start+chunk, len(records))
		if start >= end {
			continue
		}
		group.Go(func() error {
			var part []Candidate
			for index := start; index < end; index++ {
				if index%1024 == 0 {
					if err := groupCtx.Err(); err != nil {
						return err
					}
				}
				resource := records[index]
				part = append(part, Generate(resource, redirectAliases[resource.ID], options)...)
			}
			parts[worker] = part
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	candidates := make([]Candidate, 0, total)
	for _, part := range parts {
		candidates = append(candidates, part...)
	}
	return candidates, nil
}
