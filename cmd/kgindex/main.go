package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coolbeans/kgindex/pkg/config"
	"github.com/coolbeans/kgindex/pkg/index"
	"github.com/coolbeans/kgindex/pkg/kg"
	"github.com/coolbeans/kgindex/pkg/logger"
	"github.com/coolbeans/kgindex/pkg/logger/console"
	"github.com/coolbeans/kgindex/pkg/pipeline"
	"github.com/coolbeans/kgindex/pkg/report"
	"github.com/coolbeans/kgindex/pkg/watch"
)

var version = "0.1.0"

type buildFunc func(ctx context.Context, cfg config.BuildConfig) (*report.RunSummary, error)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kgindex",
		Short: "Knowledge-graph surface-form index builder",
		Long: `kgindex turns bulk entity and property dumps of a knowledge graph
into lookup indices from surface-form text to resource identifiers.

It produces:
  - An entity index with optional description and type columns
  - A property index with optional qualifier variants
  - An inverse-property index
  - Prefix and redirect tables for the release`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			initEnvironment(cmd.Name(), debug, os.Stderr)
		},
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(entitiesCmd())
	rootCmd.AddCommand(propertiesCmd())
	rootCmd.AddCommand(prefixesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initEnvironment loads .env before the logger is built so KGINDEX_DEBUG may
// come from it, and reports the outcome once logging is up.
func initEnvironment(command string, debug bool, output io.Writer) {
	envErr := config.LoadEnv()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug || config.GetEnvBool(config.EnvPrefix+"DEBUG", false),
		Output: output,
	}))
	logger.With("command", command)
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables", "error", envErr)
	}
}

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Build an entity index",
		Long: `Build an entity index from a tab-separated entity dump.

Rows: id, label, [description], [popularity], [types], [aliases], [keys]
Multi-valued columns are "; "-separated. The output directory receives
index.tsv and, depending on the options, prefixes.tsv and redirects.tsv.

Example:
  kgindex entities --file wikidata-entities.tsv --output index/
  kgindex entities -f dbpedia.tsv -o index/ --kg dbpedia --redirects redirects.tsv --keep-most-common`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, pipeline.BuildEntityIndex)
		},
	}

	addBuildFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output directory")
	cmd.Flags().String("redirects", "", "Redirect relation (canonical id, source ids)")
	cmd.Flags().Bool("no-types", false, "Omit the type summary column")
	cmd.Flags().Bool("no-descriptions", false, "Omit the description column")
	cmd.Flags().Bool("info-disambiguation", false, "Retry ambiguous surface forms as \"surface (type or description)\"")
	cmd.Flags().Bool("keys-as-aliases", false, "Use graph-specific lexical keys as aliases")

	return cmd
}

func propertiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Build a property index",
		Long: `Build a property index from a tab-separated property dump.

Rows: id, label, [popularity], [aliases], [inverses]

With --id-format prefixed, prefixes.tsv is also written to the directory
of --output, replacing any file of that name.

Example:
  kgindex properties --file wikidata-properties.tsv --output properties.tsv
  kgindex properties -f props.tsv -o properties.tsv --inverse-output inverses.tsv --include-qualifiers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, pipeline.BuildPropertyIndex)
		},
	}

	addBuildFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output index file")
	cmd.Flags().String("inverse-output", "", "Inverse-property index file")
	cmd.Flags().Bool("include-qualifiers", false, "Add qualifier variants of every property (wikidata)")

	return cmd
}

func prefixesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefixes",
		Short: "Print the prefix table of a knowledge graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, _ := cmd.Flags().GetString("kg")

			dialect, err := kg.NewDialect(graph)
			if err != nil {
				return err
			}
			return index.WritePrefixes(os.Stdout, dialect.Prefixes())
		},
	}

	cmd.Flags().String("kg", string(kg.Wikidata), "Knowledge graph")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kgindex %s\n", version)
		},
	}
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Input dump (tab-separated)")
	cmd.Flags().StringP("config", "c", "", "YAML build configuration")
	cmd.Flags().String("kg", string(kg.Wikidata), "Knowledge graph ("+strings.Join(kg.AllGraphs(), ", ")+")")
	cmd.Flags().String("id-format", string(kg.IDFormatBare), "Identifier format (bare, prefixed, uri)")
	cmd.Flags().Bool("keep-most-common", false, "Resolve ambiguous surface forms to the most popular resource instead of dropping them")
	cmd.Flags().Bool("check-popular-aliases", false, "Drop aliases that shadow the name of a more popular resource")
	cmd.Flags().Bool("no-aliases", false, "Index primary names only")
	cmd.Flags().Bool("no-header", false, "The input has no header line")
	cmd.Flags().String("language", "en", "Language of tagged literals")
	cmd.Flags().Int("workers", 0, "Parsing workers (0 uses every CPU)")
	cmd.Flags().String("summary", "", "Also write the run summary as JSON")
	cmd.Flags().String("publish", "", "Upload the outputs to s3://bucket/prefix")
	cmd.Flags().Bool("watch", false, "Rebuild whenever an input file changes")
	cmd.Flags().Bool("print-config", false, "Print the effective configuration as YAML and exit")
}

// loadBuildConfig layers defaults, the config file, the environment and the
// flags given on the command line, in that order.
func loadBuildConfig(cmd *cobra.Command) (config.BuildConfig, error) {
	cfg := config.DefaultBuildConfig()

	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	setString := func(name string, target *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*target, _ = flags.GetString(name)
		}
	}
	setBool := func(name string, target *bool, invert bool) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			value, _ := flags.GetBool(name)
			*target = value != invert
		}
	}

	setString("file", &cfg.Input)
	setString("output", &cfg.Output)
	setString("kg", &cfg.KnowledgeGraph)
	setString("id-format", &cfg.IDFormat)
	setString("redirects", &cfg.Redirects)
	setString("language", &cfg.Language)
	setString("summary", &cfg.SummaryOutput)
	setString("publish", &cfg.Publish)
	setString("inverse-output", &cfg.InverseOutput)
	setBool("check-popular-aliases", &cfg.PopularAliasFilter, false)
	setBool("no-types", &cfg.IncludeTypes, true)
	setBool("no-descriptions", &cfg.IncludeDescriptions, true)
	setBool("no-aliases", &cfg.IncludeAliases, true)
	setBool("no-header", &cfg.HasHeader, true)
	setBool("info-disambiguation", &cfg.InfoDisambiguation, false)
	setBool("keys-as-aliases", &cfg.KeysAsAliases, false)
	setBool("include-qualifiers", &cfg.QualifierExpansion, false)

	if flags.Changed("keep-most-common") {
		if keep, _ := flags.GetBool("keep-most-common"); keep {
			cfg.AmbiguityPolicy = config.PolicyMostCommon
		} else {
			cfg.AmbiguityPolicy = config.PolicyDrop
		}
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	return cfg, nil
}

func runBuild(cmd *cobra.Command, build buildFunc) error {
	cfg, err := loadBuildConfig(cmd)
	if err != nil {
		return err
	}

	if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
		data, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func(ctx context.Context) error {
		summary, err := build(ctx, cfg)
		if summary != nil {
			fmt.Print(report.FormatRunSummary(summary))
		}
		return err
	}

	watchInputs, _ := cmd.Flags().GetBool("watch")
	if err := rebuild(ctx); err != nil {
		if !watchInputs || pipeline.IsUserError(err) {
			return err
		}
		logger.Error("Build failed, waiting for input changes", "error", err)
	}
	if !watchInputs {
		return nil
	}

	paths := []string{cfg.Input}
	if cfg.Redirects != "" {
		paths = append(paths, cfg.Redirects)
	}
	inputWatcher, err := watch.NewInputWatcher(paths, watch.DefaultDebounce, rebuild)
	if err != nil {
		return err
	}
	logger.Info("Watching inputs for changes", "files", len(paths))
	return inputWatcher.Run(ctx)
}
