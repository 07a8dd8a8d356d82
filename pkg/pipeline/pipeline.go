// Package pipeline runs the stages of an index build in order: parse,
// fold redirects, generate candidates, resolve and emit. Every call is an
// independent run with its own counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/index"
	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/publish"
	"github.com/coolbeans/kgindex/pkg/record"
	"github.com/coolbeans/kgindex/pkg/report"
	"github.com/coolbeans/kgindex/pkg/resolve"
)

// File names inside an entity index directory.
const (
	IndexFileName     = "index.tsv"
	PrefixesFileName  = "prefixes.tsv"
	RedirectsFileName = "redirects.tsv"
)

const runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newObjectPutter creates the storage client used by --publish.
var newObjectPutter = func(ctx context.Context) (publish.ObjectPutter, error) {
	return publish.NewS3Client(ctx)
}

// NewRunID returns a short random id that tags the logs and the summary of
// one run.
func NewRunID() string {
	id, err := gonanoid.Generate(runIDAlphabet, 10)
	if err != nil {
		return "run"
	}
	return id
}

type build struct {
	cfg      config.BuildConfig
	dialect  *kg.Dialect
	format   kg.IDFormat
	resolver *resolve.Resolver
	target   *publish.Target
	summary  *report.RunSummary
	batch    *index.Batch
}

func newBuild(cfg config.BuildConfig, kind record.Kind) (*build, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := kg.NewDialect(cfg.KnowledgeGraph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	format, err := kg.ParseIDFormat(cfg.IDFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	policy, err := resolve.NewPolicy(cfg.AmbiguityPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var filters []resolve.CandidateFilter
	if cfg.PopularAliasFilter {
		filters = append(filters, resolve.PopularAliasFilter{})
	}

	b := &build{
		cfg:      cfg,
		dialect:  dialect,
		format:   format,
		resolver: resolve.New(policy, filters...),
		summary:  report.NewRunSummary(NewRunID(), kind),
		batch:    index.NewBatch(),
	}
	if cfg.Publish != "" {
		target, err := publish.ParseTarget(cfg.Publish)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		b.target = &target
	}

	b.summary.KnowledgeGraph = cfg.KnowledgeGraph
	b.summary.AmbiguityPolicy = policy.Name()
	b.summary.PopularAliasFilter = cfg.PopularAliasFilter
	b.summary.Input = cfg.Input
	return b, nil
}

func (b *build) runID() string {
	return b.summary.RunID
}

func (b *build) readRecords(ctx context.Context, kind record.Kind) ([]record.ResourceRecord, error) {
	started := time.Now()
	parser := record.NewParser(b.dialect, kind, b.cfg.Language)
	records, stats, err := record.ReadFile(ctx, b.cfg.Input, parser, record.ReadOptions{
		HasHeader: b.cfg.HasHeader,
		Workers:   b.cfg.Workers,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrInputUnreadable, err)
	}
	b.summary.Read = stats
	if info, err := os.Stat(b.cfg.Input); err == nil {
		b.summary.InputBytes = info.Size()
	}

	logger.Info("Records parsed",
		"run", b.runID(),
		"file", b.cfg.Input,
		"records", stats.RecordsParsed,
		"skipped", stats.RowsSkipped,
		"duration", time.Since(started).Round(time.Millisecond))
	if stats.RowsSkipped > 0 {
		logger.Warn("Skipped malformed rows", "run", b.runID(), "count", stats.RowsSkipped)
	}
	return records, nil
}

func (b *build) resolved(outcome resolve.Outcome) {
	b.summary.Resolution = outcome.Stats
	logger.Info("Surface forms resolved",
		"run", b.runID(),
		"surface_forms", outcome.Stats.SurfaceForms,
		"ambiguous", outcome.Stats.Ambiguous,
		"dropped", outcome.Stats.DroppedAmbiguous,
		"retained", len(outcome.Entries))
}

func (b *build) stage(path string, write func(io.Writer) error) error {
	if err := b.batch.Stage(path, write); err != nil {
		b.batch.Abort()
		return fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	return nil
}

func (b *build) stagePrefixes(directory string) error {
	if b.format != kg.IDFormatPrefixed {
		return nil
	}
	prefixes := b.dialect.Prefixes()
	if len(prefixes) == 0 {
		return nil
	}
	return b.stage(filepath.Join(directory, PrefixesFileName), func(writer io.Writer) error {
		return index.WritePrefixes(writer, prefixes)
	})
}

// finish stages the summary, moves every output into place and publishes
// the release when a target is configured.
func (b *build) finish(ctx context.Context, entriesWritten int) (*report.RunSummary, error) {
	b.summary.EntriesWritten = entriesWritten
	b.summary.Outputs = b.batch.Paths()
	if b.cfg.SummaryOutput != "" {
		b.summary.Outputs = append(b.summary.Outputs, b.cfg.SummaryOutput)
	}
	b.summary.Finish()

	if b.cfg.SummaryOutput != "" {
		err := b.stage(b.cfg.SummaryOutput, func(writer io.Writer) error {
			_, err := io.WriteString(writer, report.FormatRunSummaryJSON(b.summary)+"\n")
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if err := b.batch.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	logger.Info("Index written", "run", b.runID(), "entries", entriesWritten, "files", len(b.summary.Outputs))

	if b.target != nil {
		published, err := b.publish(ctx)
		if err != nil {
			return b.summary, err
		}
		b.summary.Published = published
	}
	return b.summary, nil
}

func (b *build) publish(ctx context.Context) ([]string, error) {
	client, err := newObjectPutter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}
	published, err := publish.NewPublisher(client, *b.target).Publish(ctx, b.summary.Outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}
	return published, nil
}

// IsUserError reports whether err was caused by the invocation rather than
// the environment.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
