package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/coolbeans/kgindex/pkg/candidate"
	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/index"
	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/record"
	"github.com/coolbeans/kgindex/pkg/redirect"
	"github.com/coolbeans/kgindex/pkg/report"
	"github.com/coolbeans/kgindex/pkg/resolve"
)

// BuildEntityIndex builds the entity index of cfg.Input into the directory
// cfg.Output.
func BuildEntityIndex(ctx context.Context, cfg config.BuildConfig) (*report.RunSummary, error) {
	b, err := newBuild(cfg, record.KindEntity)
	if err != nil {
		return nil, err
	}

	records, err := b.readRecords(ctx, record.KindEntity)
	if err != nil {
		return nil, err
	}

	var redirectAliases map[string][]string
	var applied map[string][]string
	if cfg.Redirects != "" {
		edges, stats, err := record.ReadRedirectFile(ctx, cfg.Redirects, b.dialect)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", ErrInputUnreadable, err)
		}
		folded := redirect.Fold(records, edges, b.dialect)
		records = folded.Records
		redirectAliases = folded.Aliases
		applied = folded.Applied

		b.summary.Redirects = &report.RedirectSummary{Input: cfg.Redirects, Read: stats, Fold: folded.Stats}
		logger.Info("Redirects folded",
			"run", b.runID(),
			"applied", folded.Stats.Applied,
			"absorbed", folded.Stats.AbsorbedRecords,
			"dangling", folded.Stats.Dangling)
		if folded.Stats.Conflicts > 0 {
			logger.Warn("Conflicting redirects resolved by last declaration", "run", b.runID(), "count", folded.Stats.Conflicts)
		}
	}

	candidates, err := candidate.GenerateAll(ctx, records, redirectAliases, candidate.Options{
		IncludeAliases: cfg.IncludeAliases,
		KeysAsAliases:  cfg.KeysAsAliases,
	}, cfg.Workers)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*record.ResourceRecord, len(records))
	for position := range records {
		byID[records[position].ID] = &records[position]
	}
	var typeSummaries map[string]string
	if cfg.IncludeTypes || cfg.InfoDisambiguation {
		typeSummaries = resolve.TypeSummaries(records)
	}

	var info resolve.InfoFunc
	if cfg.InfoDisambiguation {
		info = func(id string) string {
			if summary := typeSummaries[id]; summary != "" {
				return summary
			}
			if resource, exists := byID[id]; exists {
				return resource.Description
			}
			return ""
		}
	}
	outcome := b.resolver.ResolveWithInfo(candidates, info)
	b.resolved(outcome)

	entries := make([]index.Entry, 0, len(outcome.Entries))
	for _, resolved := range outcome.Entries {
		winner := resolved.Candidate
		entry := index.Entry{
			SurfaceForm: resolved.SurfaceForm,
			ID:          b.dialect.FormatEntity(winner.ID, b.format),
			Popularity:  winner.Popularity,
			TypeSummary: typeSummaries[winner.ID],
		}
		if resource, exists := byID[winner.ID]; exists {
			entry.Description = resource.Description
		}
		entries = append(entries, entry)
	}

	columns := index.Columns{Descriptions: cfg.IncludeDescriptions, Types: cfg.IncludeTypes}
	err = b.stage(filepath.Join(cfg.Output, IndexFileName), func(writer io.Writer) error {
		return index.WriteIndex(writer, entries, columns)
	})
	if err != nil {
		return nil, err
	}
	if err := b.stagePrefixes(cfg.Output); err != nil {
		return nil, err
	}
	if applied != nil {
		formatted := make(map[string][]string, len(applied))
		for canonical, sources := range applied {
			key := b.dialect.FormatEntity(canonical, b.format)
			for _, source := range sources {
				formatted[key] = append(formatted[key], b.dialect.FormatEntity(source, b.format))
			}
		}
		err := b.stage(filepath.Join(cfg.Output, RedirectsFileName), func(writer io.Writer) error {
			return index.WriteRedirects(writer, formatted)
		})
		if err != nil {
			return nil, err
		}
	}

	return b.finish(ctx, len(entries))
}
