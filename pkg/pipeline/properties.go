package pipeline

import (
	"context"
	"io"
	"path/filepath"

	"github.com/coolbeans/kgindex/pkg/candidate"
	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/index"
	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/record"
	"github.com/coolbeans/kgindex/pkg/report"
	"github.com/coolbeans/kgindex/pkg/resolve"
)

// BuildPropertyIndex builds the property index of cfg.Input into the file
// cfg.Output and, when cfg.InverseOutput is set, the inverse-property index.
func BuildPropertyIndex(ctx context.Context, cfg config.BuildConfig) (*report.RunSummary, error) {
	b, err := newBuild(cfg, record.KindProperty)
	if err != nil {
		return nil, err
	}

	records, err := b.readRecords(ctx, record.KindProperty)
	if err != nil {
		return nil, err
	}

	options := candidate.Options{IncludeAliases: cfg.IncludeAliases}
	if cfg.QualifierExpansion {
		options.Qualifiers = b.dialect.Qualifiers()
	}
	candidates, err := candidate.GenerateAll(ctx, records, nil, options, cfg.Workers)
	if err != nil {
		return nil, err
	}

	outcome := b.resolver.Resolve(candidates)
	b.resolved(outcome)

	entries := make([]index.Entry, 0, len(outcome.Entries))
	for _, resolved := range outcome.Entries {
		winner := resolved.Candidate
		entries = append(entries, index.Entry{
			SurfaceForm: resolved.SurfaceForm,
			ID:          b.dialect.FormatProperty(winner.ID, winner.Variant, b.format),
			Popularity:  winner.Popularity,
		})
	}

	err = b.stage(cfg.Output, func(writer io.Writer) error {
		return index.WriteIndex(writer, entries, index.Columns{})
	})
	if err != nil {
		return nil, err
	}

	if cfg.InverseOutput != "" {
		pairs, stats := resolve.ResolveInverses(records)
		b.summary.Inverses = &stats
		logger.Info("Inverse properties resolved",
			"run", b.runID(),
			"pairs", stats.Pairs,
			"synthesized", stats.Synthesized,
			"dangling", stats.Dangling)
		if stats.Conflicts > 0 {
			logger.Warn("Conflicting inverse declarations resolved by popularity", "run", b.runID(), "count", stats.Conflicts)
		}

		inverses := make([]index.Inverse, 0, len(pairs))
		for _, pair := range pairs {
			inverses = append(inverses, index.Inverse{
				PropertyID: b.dialect.FormatProperty(pair.PropertyID, "", b.format),
				InverseID:  b.dialect.FormatProperty(pair.InverseID, "", b.format),
				Popularity: pair.Popularity,
			})
		}
		err := b.stage(cfg.InverseOutput, func(writer io.Writer) error {
			return index.WriteInverses(writer, inverses)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := b.stagePrefixes(filepath.Dir(cfg.Output)); err != nil {
		return nil, err
	}

	return b.finish(ctx, len(entries))
}
