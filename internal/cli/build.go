package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/pipeline"
	"github.com/roach88/bookmerge/internal/render"
	"github.com/roach88/bookmerge/internal/snapshot"
	"github.com/roach88/bookmerge/internal/store"
	"github.com/roach88/bookmerge/internal/taxonomy"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions

	Taxonomy         string
	Classifier       string
	ConfigPrecedence []string
	FillIcons        bool
	EnvFile          string

	SQL         string
	Mock        string
	JSON        string
	Database    string
	MetricsFile string
	Title       string
}

// BuildResult is the build command's JSON payload.
type BuildResult struct {
	RunID   string         `json:"run_id"`
	Stats   pipeline.Stats `json:"stats"`
	Outputs []string       `json:"outputs,omitempty"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <snapshot>...",
		Short: "Merge, classify and number snapshots into a catalog",
		Long: `Merge snapshots into one catalog and write it out.

Snapshots are given in precedence order, highest first: when two snapshots
carry the same URL the earlier one wins outright. Each argument is a path or
name=path; the name defaults to the file stem and is what
--config-precedence refers to.

Example:
  bookmerge build result.json backup.json --sql import.sql
  bookmerge build main=result.json old=backup.json --classifier oracle \
      --config-precedence old,main --db nav.db --mock mock.ts`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Taxonomy, "taxonomy", "", "taxonomy YAML file (default: embedded taxonomy)")
	cmd.Flags().StringVar(&opts.Classifier, "classifier", "rules", "base classifier (rules|oracle|source)")
	cmd.Flags().StringSliceVar(&opts.ConfigPrecedence, "config-precedence", nil, "snapshot names in config precedence order (default: snapshot order)")
	cmd.Flags().BoolVar(&opts.FillIcons, "fill-icons", false, "fill missing icons from the taxonomy's favicon service")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file with oracle API keys (default: .env if present)")
	cmd.Flags().StringVar(&opts.SQL, "sql", "", "write the SQL import script to this file")
	cmd.Flags().StringVar(&opts.Mock, "mock", "", "write the TypeScript mock to this file")
	cmd.Flags().StringVar(&opts.JSON, "json", "", "write the catalog JSON to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "load the catalog into this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title line of the SQL script header")

	return cmd
}

func runBuild(opts *BuildOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	strategy, err := pipeline.ParseStrategy(opts.Classifier)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	tx, err := loadTaxonomy(opts.Taxonomy)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeTaxonomy, err.Error(), nil)
	}
	if opts.FillIcons {
		tx.Icons.Fill = true
	}

	logger, err := opts.logger()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	defer func() { _ = logger.Sync() }()

	sources := make([]snapshot.Source, len(args))
	for i, arg := range args {
		sources[i] = snapshot.ParseSource(arg)
	}
	in := pipeline.Input{
		Sources:          sources,
		ConfigPrecedence: opts.ConfigPrecedence,
		Taxonomy:         tx,
		Strategy:         strategy,
	}

	if strategy == pipeline.StrategyOracle {
		if err := taxonomy.LoadEnv(opts.EnvFile); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeOracle, err.Error(), nil)
		}
		key := taxonomy.APIKey(tx.Oracle.Provider, os.Getenv)
		if key == "" && tx.Oracle.Provider != taxonomy.ProviderOllama {
			return formatter.Fail(ExitCommandError, ErrCodeOracle,
				fmt.Sprintf("no API key for provider %q: set %s", tx.Oracle.Provider, taxonomy.EnvAPIKey), nil)
		}
		client, err := tx.NewCompleter(ctx, key)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeOracle, err.Error(), nil)
		}
		in.Oracle = client
	}

	for _, src := range sources {
		formatter.VerboseLog("Loading snapshot %s from %s", src.Name, src.Path)
	}

	res, err := pipeline.Run(ctx, in, pipeline.WithLogger(logger))
	if err != nil {
		return failWith(formatter, ExitCommandError, err, ErrCodeMerge)
	}
	formatter.TraceID = res.RunID
	logger.Debug("build finished", zap.String("run_id", res.RunID))

	outputs, err := writeOutputs(opts, res.Catalog)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}

	if opts.Database != "" {
		if err := loadDatabase(cmd, opts.Database, res.Catalog); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		outputs = append(outputs, opts.Database)
	}

	if opts.MetricsFile != "" {
		if err := pipeline.WriteMetrics(opts.MetricsFile, res.Metrics); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
		outputs = append(outputs, opts.MetricsFile)
	}

	if formatter.JSON() {
		return formatter.Success(BuildResult{RunID: res.RunID, Stats: res.Stats, Outputs: outputs})
	}
	printBuildSummary(formatter, res, outputs)
	return nil
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		return taxonomy.Default(), nil
	}
	return taxonomy.Load(path)
}

// writeOutputs renders the catalog to every requested file and returns the
// paths written.
func writeOutputs(opts *BuildOptions, c *catalog.Catalog) ([]string, error) {
	var written []string
	if opts.SQL != "" {
		if err := writeFile(opts.SQL, func(w io.Writer) error {
			return render.SQL(w, c, render.SQLOptions{Title: opts.Title})
		}); err != nil {
			return written, err
		}
		written = append(written, opts.SQL)
	}
	if opts.Mock != "" {
		if err := writeFile(opts.Mock, func(w io.Writer) error {
			return render.Mock(w, c, render.MockOptions{})
		}); err != nil {
			return written, err
		}
		written = append(written, opts.Mock)
	}
	if opts.JSON != "" {
		if err := writeFile(opts.JSON, func(w io.Writer) error {
			return render.JSON(w, c)
		}); err != nil {
			return written, err
		}
		written = append(written, opts.JSON)
	}
	return written, nil
}

// writeFile creates path (and its directory) and streams fn's output to it.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return w.Flush()
}

func loadDatabase(cmd *cobra.Command, path string, c *catalog.Catalog) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.ReplaceCatalog(cmd.Context(), c)
}

func printBuildSummary(f *OutputFormatter, res *pipeline.Result, outputs []string) {
	s := res.Stats
	f.Printf("✓ Built catalog: %d group(s), %d site(s), %d config(s)\n", s.Groups, s.Sites, s.Configs)
	f.Printf("  run %s\n", res.RunID)
	for _, src := range s.Sources {
		f.Printf("  %s: %d record(s), %d contributed, %d duplicate(s)\n", src.Name, src.Records, src.Contributed, src.Duplicates)
	}

	vias := make([]string, 0, len(s.ByVia))
	for via := range s.ByVia {
		vias = append(vias, string(via))
	}
	sort.Strings(vias)
	for _, via := range vias {
		f.Printf("  via %-8s %d\n", via, s.ByVia[catalog.Via(via)])
	}
	if s.IconsFilled > 0 {
		f.Printf("  icons filled: %d\n", s.IconsFilled)
	}
	f.Printf("  hash %s\n", s.Hash)
	for _, out := range outputs {
		f.Printf("  wrote %s\n", out)
	}
}
