package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/render"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	SQL      string
	Mock     string
	Title    string
	PerGroup int
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <catalog.json>",
		Short: "Render a catalog JSON file as SQL or a TypeScript mock",
		Long: `Render a catalog previously written by "build --json".

The catalog is checked for URL uniqueness, group references and order
contiguity before anything is rendered. Without --sql or --mock the SQL
script is written to stdout.

Example:
  bookmerge render catalog.json --sql import.sql --mock mock.ts`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "write the SQL import script to this file")
	cmd.Flags().StringVar(&opts.Mock, "mock", "", "write the TypeScript mock to this file")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title line of the SQL script header")
	cmd.Flags().IntVar(&opts.PerGroup, "per-group", 0, "sites per group in the mock (default 5)")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	c, err := readCatalogFile(path)
	if err != nil {
		return failWith(formatter, ExitCommandError, err, ErrCodeCatalog)
	}
	formatter.VerboseLog("Read catalog %s: %d group(s), %d site(s)", path, len(c.Groups), len(c.Sites))

	sqlOpts := render.SQLOptions{Title: opts.Title}
	if opts.SQL == "" && opts.Mock == "" {
		if formatter.JSON() {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "--format json needs --sql or --mock", nil)
		}
		if err := render.SQL(cmd.OutOrStdout(), c, sqlOpts); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
		return nil
	}

	var written []string
	if opts.SQL != "" {
		if err := writeFile(opts.SQL, func(w io.Writer) error { return render.SQL(w, c, sqlOpts) }); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
		written = append(written, opts.SQL)
	}
	if opts.Mock != "" {
		mockOpts := render.MockOptions{PerGroup: opts.PerGroup}
		if err := writeFile(opts.Mock, func(w io.Writer) error { return render.Mock(w, c, mockOpts) }); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
		written = append(written, opts.Mock)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]any{"outputs": written})
	}
	for _, out := range written {
		formatter.Printf("✓ Wrote %s\n", out)
	}
	return nil
}

// readCatalogFile reads and validates a catalog JSON file.
func readCatalogFile(path string) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	defer f.Close()

	c, err := render.ReadJSON(f)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCatalog, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return c, nil
}
