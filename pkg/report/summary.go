// Package report collects the counters of one index build and renders them
// for the terminal and as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/kgindex/pkg/record"
	"github.com/coolbeans/kgindex/pkg/redirect"
	"github.com/coolbeans/kgindex/pkg/resolve"
)

// RedirectSummary describes the redirect input of an entity build.
type RedirectSummary struct {
	Input string               `json:"input"`
	Read  record.RedirectStats `json:"read"`
	Fold  redirect.Stats       `json:"fold"`
}

// RunSummary summarizes one index build. A summary belongs to exactly one
// run and is never carried over to the next.
type RunSummary struct {
	RunID              string    `json:"run_id"`
	Kind               string    `json:"kind"`
	KnowledgeGraph     string    `json:"knowledge_graph"`
	AmbiguityPolicy    string    `json:"ambiguity_policy"`
	PopularAliasFilter bool      `json:"popular_alias_filter"`
	Input              string    `json:"input"`
	InputBytes         int64     `json:"input_bytes"`
	StartedAt          time.Time `json:"started_at"`
	DurationSeconds    float64   `json:"duration_seconds"`

	Read       record.ReadStats      `json:"read"`
	Redirects  *RedirectSummary      `json:"redirects,omitempty"`
	Resolution resolve.Stats         `json:"resolution"`
	Inverses   *resolve.InverseStats `json:"inverses,omitempty"`

	EntriesWritten int      `json:"entries_written"`
	Outputs        []string `json:"outputs"`
	Published      []string `json:"published,omitempty"`
}

// NewRunSummary starts a summary for a run.
func NewRunSummary(runID string, kind record.Kind) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		Kind:      string(kind),
		StartedAt: time.Now(),
	}
}

// Finish records the run duration.
func (summary *RunSummary) Finish() {
	summary.DurationSeconds = time.Since(summary.StartedAt).Seconds()
}

// FormatBytes converts byte count to human-readable format.
func FormatBytes(byteCount int64) string {
	switch {
	case byteCount >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(byteCount)/(1024*1024*1024))
	case byteCount >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(byteCount)/(1024*1024))
	case byteCount >= 1024:
		return fmt.Sprintf("%.1f KB", float64(byteCount)/1024)
	default:
		return fmt.Sprintf("%d B", byteCount)
	}
}

// FormatRunSummary formats a RunSummary for terminal output.
func FormatRunSummary(summary *RunSummary) string {
	var builder strings.Builder

	title := "Entity Index Report"
	if summary.Kind == string(record.KindProperty) {
		title = "Property Index Report"
	}
	filter := "off"
	if summary.PopularAliasFilter {
		filter = "on"
	}

	builder.WriteString("\n" + title + "\n")
	builder.WriteString(strings.Repeat("═", 60) + "\n")
	builder.WriteString(fmt.Sprintf("Run: %s | Graph: %s | Policy: %s | Popular-alias filter: %s\n",
		summary.RunID, summary.KnowledgeGraph, summary.AmbiguityPolicy, filter))
	if summary.Input != "" {
		builder.WriteString(fmt.Sprintf("Input: %s (%s)\n", summary.Input, FormatBytes(summary.InputBytes)))
	}
	builder.WriteString(strings.Repeat("─", 60) + "\n")

	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Rows read", summary.Read.RowsRead))
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Records parsed", summary.Read.RecordsParsed))
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Rows skipped", summary.Read.RowsSkipped))
	for _, defect := range sortedDefects(summary.Read.SkippedByReason) {
		builder.WriteString(fmt.Sprintf("    %-26s %d\n", defect, summary.Read.SkippedByReason[record.Defect(defect)]))
	}
	if summary.Read.NumericDefaults > 0 {
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Popularity defaulted to 0", summary.Read.NumericDefaults))
	}
	if summary.Read.DuplicateRecords > 0 {
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Duplicate records", summary.Read.DuplicateRecords))
	}

	if redirects := summary.Redirects; redirects != nil {
		builder.WriteString(strings.Repeat("─", 60) + "\n")
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Redirect rows read", redirects.Read.RowsRead))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Redirect rows skipped", redirects.Read.RowsSkipped))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Redirects applied", redirects.Fold.Applied))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Redirect conflicts", redirects.Fold.Conflicts))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Dangling redirects", redirects.Fold.Dangling))
		if redirects.Fold.RetargetedTypes > 0 {
			builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Types moved to canonical", redirects.Fold.RetargetedTypes))
		}
	}

	resolution := summary.Resolution
	builder.WriteString(strings.Repeat("─", 60) + "\n")
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Candidates", resolution.Candidates))
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Surface forms", resolution.SurfaceForms))
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Ambiguous surface forms", resolution.Ambiguous))
	builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Dropped for ambiguity", resolution.DroppedAmbiguous))
	if summary.PopularAliasFilter {
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Aliases filtered", resolution.FilteredAliases))
	}
	if resolution.InfoForms > 0 || resolution.InfoDropped > 0 {
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Info forms added", resolution.InfoForms))
	}

	if inverses := summary.Inverses; inverses != nil {
		builder.WriteString(strings.Repeat("─", 60) + "\n")
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Inverse pairs", inverses.Pairs))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Synthesized reciprocals", inverses.Synthesized))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Inverse conflicts", inverses.Conflicts))
		builder.WriteString(fmt.Sprintf("  %-28s %d\n", "Dangling inverses", inverses.Dangling))
	}

	builder.WriteString(strings.Repeat("─", 60) + "\n")
	builder.WriteString(fmt.Sprintf("Entries written: %d in %.1fs\n", summary.EntriesWritten, summary.DurationSeconds))
	for _, output := range summary.Outputs {
		builder.WriteString(fmt.Sprintf("  [OK]   %s\n", output))
	}
	for _, published := range summary.Published {
		builder.WriteString(fmt.Sprintf("  [PUB]  %s\n", published))
	}

	return builder.String()
}

// FormatRunSummaryJSON formats a RunSummary as JSON.
func FormatRunSummaryJSON(summary *RunSummary) string {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func sortedDefects(counts map[record.Defect]int) []string {
	defects := make([]string, 0, len(counts))
	for defect := range counts {
		defects = append(defects, string(defect))
	}
	sort.Strings(defects)
	return defects
}
