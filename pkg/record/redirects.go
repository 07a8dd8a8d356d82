package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/logger"
)

// RedirectStats counts what happened while reading a redirect relation.
type RedirectStats struct {
	RowsRead       int `json:"rows_read"`
	RowsSkipped    int `json:"rows_skipped"`
	Edges          int `json:"edges"`
	InvalidSources int `json:"invalid_sources"`
}

// ReadRedirectFile opens path and reads the redirect relation from it.
func ReadRedirectFile(ctx context.Context, path string, dialect *kg.Dialect) ([]RedirectEdge, RedirectStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, RedirectStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	edges, stats, err := ReadRedirects(ctx, file, dialect)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return edges, stats, nil
}

// ReadRedirects parses rows of the form `canonical \t source[; source...]...`.
// Source columns may be tab-joined, "; "-joined, or both. Rows whose
// canonical id does not parse are skipped; unparseable sources are dropped
// from their row. Edges are returned in input order so later declarations can
// win over earlier ones.
func ReadRedirects(ctx context.Context, reader io.Reader, dialect *kg.Dialect) ([]RedirectEdge, RedirectStats, error) {
	return readRedirects(ctx, newLineReader(reader, DefaultMaxLineBytes), dialect)
}

func readRedirects(ctx context.Context, lines *lineReader, dialect *kg.Dialect) ([]RedirectEdge, RedirectStats, error) {
	var stats RedirectStats
	var edges []RedirectEdge
	lineNumber := 0

	for {
		line, overlong, err := lines.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, err
		}
		lineNumber++
		if lineNumber%defaultChunkSize == 0 && ctx.Err() != nil {
			return nil, stats, ctx.Err()
		}
		if overlong {
			stats.RowsRead++
			stats.RowsSkipped++
			logger.Debug("Skipping overlong redirect row", "line", lineNumber)
			continue
		}
		if line == "" {
			continue
		}
		stats.RowsRead++

		fields := strings.Split(line, "\t")
		canonical, ok := dialect.EntityID(fields[0])
		if !ok || len(fields) < 2 {
			stats.RowsSkipped++
			logger.Debug("Skipping malformed redirect row", "line", lineNumber)
			continue
		}

		edge := RedirectEdge{CanonicalID: canonical}
		seen := make(map[string]bool)
		for _, field := range fields[1:] {
			for _, token := range strings.Split(field, ValueSeparator) {
				token = strings.TrimSpace(token)
				if token == "" {
					continue
				}
				source, ok := dialect.EntityID(token)
				if !ok {
					stats.InvalidSources++
					continue
				}
				if seen[source] {
					continue
				}
				seen[source] = true
				edge.SourceIDs = append(edge.SourceIDs, source)
			}
		}
		if len(edge.SourceIDs) == 0 {
			stats.RowsSkipped++
			continue
		}

		stats.Edges++
		edges = append(edges, edge)
	}

	return edges, stats, nil
}
