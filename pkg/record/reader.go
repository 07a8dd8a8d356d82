package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/kgindex/pkg/logger"
)

const defaultChunkSize = 4096

// ReadOptions configures ReadRecords.
type ReadOptions struct {
	// HasHeader skips the first line.
	HasHeader bool

	// Workers is the number of parsing goroutines (default: GOMAXPROCS).
	Workers int

	// ChunkSize is the number of lines handed to a worker at once.
	ChunkSize int

	// MaxLineBytes bounds a single row (default: DefaultMaxLineBytes).
	MaxLineBytes int
}

// ReadStats counts what happened while reading one dump.
type ReadStats struct {
	RowsRead         int            `json:"rows_read"`
	RecordsParsed    int            `json:"records_parsed"`
	RowsSkipped      int            `json:"rows_skipped"`
	SkippedByReason  map[Defect]int `json:"skipped_by_reason,omitempty"`
	NumericDefaults  int            `json:"numeric_defaults"`
	DuplicateRecords int            `json:"duplicate_records"`
}

func (stats *ReadStats) add(result RowResult) {
	stats.RowsRead++
	if result.Defect != DefectNone {
		stats.RowsSkipped++
		if stats.SkippedByReason == nil {
			stats.SkippedByReason = make(map[Defect]int)
		}
		stats.SkippedByReason[result.Defect]++
		return
	}
	stats.RecordsParsed++
	if result.NumericDefault {
		stats.NumericDefaults++
	}
}

func (stats *ReadStats) merge(other ReadStats) {
	stats.RowsRead += other.RowsRead
	stats.RecordsParsed += other.RecordsParsed
	stats.RowsSkipped += other.RowsSkipped
	stats.NumericDefaults += other.NumericDefaults
	for defect, count := range other.SkippedByReason {
		if stats.SkippedByReason == nil {
			stats.SkippedByReason = make(map[Defect]int)
		}
		stats.SkippedByReason[defect] += count
	}
}

type chunkLine struct {
	text     string
	overlong bool
}

type lineChunk struct {
	sequence  int
	firstLine int
	lines     []chunkLine
}

type chunkResult struct {
	records []ResourceRecord
	stats   ReadStats
}

// ReadFile opens path and reads every record from it.
func ReadFile(ctx context.Context, path string, parser *Parser, options ReadOptions) ([]ResourceRecord, ReadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	records, stats, err := ReadRecords(ctx, file, parser, options)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, stats, nil
}

// ReadRecords parses every row of reader on a pool of workers. The returned
// records keep input order regardless of scheduling; when an id occurs more
// than once only its first record is kept.
func ReadRecords(ctx context.Context, reader io.Reader, parser *Parser, options ReadOptions) ([]ResourceRecord, ReadStats, error) {
	workers := options.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunkSize := options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	group, groupCtx := errgroup.WithContext(ctx)
	chunks := make(chan lineChunk, workers)

	var resultsMu sync.Mutex
	results := make(map[int]chunkResult)

	group.Go(func() error {
		defer close(chunks)
		return scanChunks(groupCtx, newLineReader(reader, options.MaxLineBytes), options.HasHeader, chunkSize, chunks)
	})

	for range workers {
		group.Go(func() error {
			for chunk := range chunks {
				result := parseChunk(parser, chunk)
				resultsMu.Lock()
				results[chunk.sequence] = result
				resultsMu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, ReadStats{}, err
	}

	sequences := make([]int, 0, len(results))
	for sequence := range results {
		sequences = append(sequences, sequence)
	}
	sort.Ints(sequences)

	var stats ReadStats
	var records []ResourceRecord
	seen := make(map[string]bool)
	for _, sequence := range sequences {
		result := results[sequence]
		stats.merge(result.stats)
		for _, record := range result.records {
			if seen[record.ID] {
				stats.DuplicateRecords++
				logger.Debug("Duplicate record id", "id", record.ID)
				continue
			}
			seen[record.ID] = true
			records = append(records, record)
		}
	}

	return records, stats, nil
}

func scanChunks(ctx context.Context, lines *lineReader, hasHeader bool, chunkSize int, chunks chan<- lineChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lineNumber := 0
	sequence := 0
	current := lineChunk{firstLine: 1}

	flush := func() error {
		if len(current.lines) == 0 {
			return nil
		}
		current.sequence = sequence
		select {
		case chunks <- current:
		case <-ctx.Done():
			return ctx.Err()
		}
		sequence++
		current = lineChunk{firstLine: lineNumber + 1}
		return nil
	}

	for {
		text, overlong, err := lines.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		lineNumber++
		if lineNumber == 1 && hasHeader {
			current.firstLine = 2
			continue
		}
		current.lines = append(current.lines, chunkLine{text: text, overlong: overlong})
		if len(current.lines) >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func parseChunk(parser *Parser, chunk lineChunk) chunkResult {
	var result chunkResult
	for offset, line := range chunk.lines {
		if line.overlong {
			result.stats.add(RowResult{Defect: DefectOverlong})
			logger.Debug("Skipping overlong row", "line", chunk.firstLine+offset)
			continue
		}
		if line.text == "" {
			continue
		}
		record, rowResult := parser.ParseRow(line.text)
		result.stats.add(rowResult)
		if rowResult.Defect != DefectNone {
			logger.Debug("Skipping malformed row", "line", chunk.firstLine+offset, "reason", string(rowResult.Defect))
			continue
		}
		result.records = append(result.records, record)
	}
	return result
}
