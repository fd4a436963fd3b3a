package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/store"
)

// ApplyResult is the apply command's JSON payload.
type ApplyResult struct {
	Database string `json:"database"`
	Source   string `json:"source"`
	Groups   int    `json:"groups"`
	Sites    int    `json:"sites"`
	Configs  int    `json:"configs"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <db> <script.sql|catalog.json>",
		Short: "Load a SQL script or catalog JSON into a SQLite navigation database",
		Long: `Load a catalog into a SQLite navigation database, creating it if needed.

A .sql file is executed as written by "build --sql". A .json file is read
as written by "build --json", checked, and loaded in one transaction.
Either way the previous groups, sites and configs are replaced.

Example:
  bookmerge apply nav.db import.sql`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runApply(opts *RootOptions, dbPath, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	var (
		script string
		cat    *catalog.Catalog
	)
	switch strings.ToLower(filepath.Ext(input)) {
	case ".sql":
		data, err := os.ReadFile(input)
		if os.IsNotExist(err) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("script not found: %s", input), nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("reading %s: %v", input, err), nil)
		}
		script = string(data)
	case ".json":
		c, err := readCatalogFile(input)
		if err != nil {
			return failWith(formatter, ExitCommandError, err, ErrCodeCatalog)
		}
		cat = c
	default:
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg,
			fmt.Sprintf("unsupported input %s: expected a .sql or .json file", input), nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	formatter.VerboseLog("Applying %s to %s", input, dbPath)
	if cat != nil {
		err = st.ReplaceCatalog(ctx, cat)
	} else {
		err = st.ApplyScript(ctx, script)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	groups, sites, configs, err := st.Count(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result := ApplyResult{Database: dbPath, Source: input, Groups: groups, Sites: sites, Configs: configs}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	formatter.Printf("✓ Applied %s to %s: %d group(s), %d site(s), %d config(s)\n", input, dbPath, groups, sites, configs)
	return nil
}
