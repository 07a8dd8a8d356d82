package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/publish"
)

const entityDump = "id\tlabel\tdescription\tpopularity\ttypes\taliases\tkeys\n" +
	"<http://www.wikidata.org/entity/Q90>\t\"Paris\"@en\tcapital of France\t1000\tQ515\tCity of Light\t\n" +
	"Q167646\tParis\tTrojan prince\t30\tQ5\tAlexandros\n" +
	"Q515\tcity\thuman settlement\t900\n" +
	"Q5\thuman\t\t800\n" +
	"Q1\tBob\t\t50\n" +
	"Q9\tRobert\t\t900\t\tBobby\n" +
	"Q77\tLone\t\n" +
	"bad row without columns\n" +
	"Q78\t\n"

const propertyDump = "id\tlabel\tpopularity\taliases\tinverses\n" +
	"http://www.wikidata.org/prop/direct/P31\tinstance of\t100\tis a\t\n" +
	"P361\tpart of\t50\t\tP527\n" +
	"P527\thas part\t40\n" +
	"X99\tbroken\n"

func writeInput(t *testing.T, directory string, name string, content string) string {
	t.Helper()
	path := filepath.Join(directory, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func entityConfig(t *testing.T) config.BuildConfig {
	t.Helper()
	directory := t.TempDir()
	cfg := config.DefaultBuildConfig()
	cfg.Input = writeInput(t, directory, "entities.tsv", entityDump)
	cfg.Redirects = writeInput(t, directory, "redirects.tsv", "Q1\tQ9\n")
	cfg.Output = filepath.Join(directory, "out")
	cfg.Workers = 2
	return cfg
}

func TestBuildEntityIndex(t *testing.T) {
	cfg := entityConfig(t)

	summary, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	expected := "City of Light\tQ90\tcapital of France\tcity\n" +
		"city\tQ515\thuman settlement\t\n" +
		"human\tQ5\t\t\n" +
		"Bob\tQ1\t\t\n" +
		"Bobby\tQ1\t\t\n" +
		"Robert\tQ1\t\t\n" +
		"Alexandros\tQ167646\tTrojan prince\thuman\n" +
		"Lone\tQ77\t\t\n"
	assert.Equal(t, expected, readOutput(t, filepath.Join(cfg.Output, IndexFileName)))
	assert.Equal(t, "Q1\tQ9\n", readOutput(t, filepath.Join(cfg.Output, RedirectsFileName)))
	assert.NoFileExists(t, filepath.Join(cfg.Output, PrefixesFileName))

	assert.Equal(t, 9, summary.Read.RowsRead)
	assert.Equal(t, 7, summary.Read.RecordsParsed)
	assert.Equal(t, 2, summary.Read.RowsSkipped)
	assert.Equal(t, 1, summary.Resolution.DroppedAmbiguous)
	require.NotNil(t, summary.Redirects)
	assert.Equal(t, 1, summary.Redirects.Fold.Applied)
	assert.Equal(t, 8, summary.EntriesWritten)
	assert.Len(t, summary.RunID, 10)
}

func TestBuildEntityIndexMostCommonWithInfo(t *testing.T) {
	cfg := entityConfig(t)
	cfg.AmbiguityPolicy = config.PolicyMostCommon
	cfg.InfoDisambiguation = true
	cfg.IncludeDescriptions = false
	cfg.IncludeTypes = false
	cfg.Redirects = ""

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	output := readOutput(t, filepath.Join(cfg.Output, IndexFileName))
	assert.Contains(t, output, "Paris\tQ90\n")
	assert.Contains(t, output, "Paris (human)\tQ167646\n")
	assert.Contains(t, output, "Bobby\tQ9\n")
}

func TestBuildEntityIndexPrefixed(t *testing.T) {
	cfg := entityConfig(t)
	cfg.IDFormat = "prefixed"
	cfg.IncludeDescriptions = false
	cfg.IncludeTypes = false

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	assert.Contains(t, readOutput(t, filepath.Join(cfg.Output, IndexFileName)), "Bob\twd:Q1\n")
	assert.Equal(t, "wd:Q1\twd:Q9\n", readOutput(t, filepath.Join(cfg.Output, RedirectsFileName)))
	assert.Contains(t, readOutput(t, filepath.Join(cfg.Output, PrefixesFileName)), "wd\thttp://www.wikidata.org/entity/\n")
}

func TestBuildEntityIndexTypeThroughRedirect(t *testing.T) {
	directory := t.TempDir()
	cfg := config.DefaultBuildConfig()
	cfg.HasHeader = false
	cfg.IncludeDescriptions = false
	cfg.Input = writeInput(t, directory, "entities.tsv", "Q5\thuman\t\t800\nQ6\tperson\t\t10\nQ7\tAda\t\t5\tQ6\n")
	cfg.Redirects = writeInput(t, directory, "redirects.tsv", "Q5\tQ6\n")
	cfg.Output = filepath.Join(directory, "out")

	summary, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	assert.Contains(t, readOutput(t, filepath.Join(cfg.Output, IndexFileName)), "Ada\tQ7\thuman\n")
	require.NotNil(t, summary.Redirects)
	assert.Equal(t, 1, summary.Redirects.Fold.RetargetedTypes)
}

func TestBuildEntityIndexIsIdempotent(t *testing.T) {
	cfg := entityConfig(t)
	cfg.AmbiguityPolicy = config.PolicyMostCommon
	cfg.PopularAliasFilter = true

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)
	first := readOutput(t, filepath.Join(cfg.Output, IndexFileName))

	for _, workers := range []int{1, 3, 8} {
		cfg.Workers = workers
		_, err := BuildEntityIndex(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, first, readOutput(t, filepath.Join(cfg.Output, IndexFileName)))
	}
}

func TestBuildEntityIndexMissingInput(t *testing.T) {
	cfg := entityConfig(t)
	cfg.Input = filepath.Join(t.TempDir(), "missing.tsv")

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInputUnreadable)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, cfg.Output)
}

func TestBuildEntityIndexMissingRedirects(t *testing.T) {
	cfg := entityConfig(t)
	cfg.Redirects = filepath.Join(t.TempDir(), "missing.tsv")

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInputUnreadable)
	assert.NoDirExists(t, cfg.Output)
}

func TestBuildEntityIndexUnwritableOutput(t *testing.T) {
	cfg := entityConfig(t)
	directory := t.TempDir()
	cfg.Output = writeInput(t, directory, "blocker", "not a directory")

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrOutputUnwritable)

	entries, err := os.ReadDir(directory)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildFailedSummaryLeavesNoIndex(t *testing.T) {
	cfg := entityConfig(t)
	blocker := writeInput(t, t.TempDir(), "blocker", "file")
	cfg.SummaryOutput = filepath.Join(blocker, "summary.json")

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrOutputUnwritable)

	entries, err := os.ReadDir(cfg.Output)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildEntityIndexInvalidConfig(t *testing.T) {
	cfg := entityConfig(t)
	cfg.AmbiguityPolicy = "coin-flip"

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.True(t, IsUserError(err))

	cfg = entityConfig(t)
	cfg.Publish = "ftp://nowhere"
	_, err = BuildEntityIndex(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildEntityIndexCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildEntityIndex(ctx, entityConfig(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInputUnreadable)
}

func TestBuildEntityIndexSummaryFile(t *testing.T) {
	cfg := entityConfig(t)
	cfg.SummaryOutput = filepath.Join(cfg.Output, "summary.json")

	summary, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg.SummaryOutput)), &decoded))
	assert.Equal(t, summary.RunID, decoded["run_id"])
	assert.Contains(t, summary.Outputs, cfg.SummaryOutput)
}

func TestBuildPropertyIndex(t *testing.T) {
	directory := t.TempDir()
	cfg := config.DefaultBuildConfig()
	cfg.Input = writeInput(t, directory, "properties.tsv", propertyDump)
	cfg.Output = filepath.Join(directory, "out", "properties.tsv")
	cfg.InverseOutput = filepath.Join(directory, "out", "inverses.tsv")
	cfg.QualifierExpansion = true

	summary, err := BuildPropertyIndex(context.Background(), cfg)
	require.NoError(t, err)

	output := readOutput(t, cfg.Output)
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	assert.Equal(t, "instance of\tP31", lines[0])
	assert.Contains(t, output, "instance of (qualifier)\tpq:P31\n")
	assert.Contains(t, output, "is a (statement)\tp:P31\n")
	assert.Contains(t, output, "has part (normalized value)\tpsn:P527\n")
	assert.Len(t, lines, 4*6)

	assert.Equal(t, "P361\tP527\nP527\tP361\n", readOutput(t, cfg.InverseOutput))
	assert.Equal(t, 1, summary.Read.RowsSkipped)
	require.NotNil(t, summary.Inverses)
	assert.Equal(t, 1, summary.Inverses.Synthesized)
}

func TestBuildPropertyIndexWithoutQualifiers(t *testing.T) {
	directory := t.TempDir()
	cfg := config.DefaultBuildConfig()
	cfg.Input = writeInput(t, directory, "properties.tsv", propertyDump)
	cfg.Output = filepath.Join(directory, "properties.tsv")

	summary, err := BuildPropertyIndex(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "instance of\tP31\nis a\tP31\npart of\tP361\nhas part\tP527\n", readOutput(t, cfg.Output))
	assert.Nil(t, summary.Inverses)
}

func TestBuildPropertyIndexPrefixedWritesPrefixTable(t *testing.T) {
	directory := t.TempDir()
	cfg := config.DefaultBuildConfig()
	cfg.Input = writeInput(t, directory, "properties.tsv", propertyDump)
	cfg.Output = filepath.Join(directory, "out", "properties.tsv")
	cfg.IDFormat = "prefixed"

	summary, err := BuildPropertyIndex(context.Background(), cfg)
	require.NoError(t, err)

	prefixesPath := filepath.Join(directory, "out", PrefixesFileName)
	assert.Contains(t, readOutput(t, cfg.Output), "instance of\twdt:P31\n")
	assert.Contains(t, readOutput(t, prefixesPath), "wdt\thttp://www.wikidata.org/prop/direct/\n")
	assert.Contains(t, summary.Outputs, prefixesPath)
}

type recordingPutter struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if _, err := io.Copy(io.Discard, params.Body); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, aws.ToString(params.Key))
	return &s3.PutObjectOutput{}, nil
}

func withPutter(t *testing.T, putter publish.ObjectPutter, err error) {
	t.Helper()
	original := newObjectPutter
	newObjectPutter = func(context.Context) (publish.ObjectPutter, error) {
		return putter, err
	}
	t.Cleanup(func() {
		newObjectPutter = original
	})
}

func TestBuildEntityIndexPublish(t *testing.T) {
	putter := &recordingPutter{}
	withPutter(t, putter, nil)

	cfg := entityConfig(t)
	cfg.Publish = "s3://indices/wikidata"

	summary, err := BuildEntityIndex(context.Background(), cfg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"wikidata/index.tsv", "wikidata/redirects.tsv"}, putter.keys)
	assert.Equal(t, []string{"s3://indices/wikidata/index.tsv", "s3://indices/wikidata/redirects.tsv"}, summary.Published)
}

func TestBuildEntityIndexPublishFailureKeepsOutputs(t *testing.T) {
	withPutter(t, nil, errors.New("no credentials"))

	cfg := entityConfig(t)
	cfg.Publish = "s3://indices"

	_, err := BuildEntityIndex(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
	assert.FileExists(t, filepath.Join(cfg.Output, IndexFileName))
}

func TestNewRunID(t *testing.T) {
	first := NewRunID()
	assert.Len(t, first, 10)
	assert.NotEqual(t, first, NewRunID())
}
