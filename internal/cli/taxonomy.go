package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bookmerge/internal/taxonomy"
)

// NewTaxonomyCommand creates the taxonomy command.
func NewTaxonomyCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the embedded default taxonomy",
		Long: `Print the embedded default taxonomy as YAML.

Use it as a starting point for a custom --taxonomy file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			data := taxonomy.DefaultYAML()
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := writeFile(output, func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
			}
			if formatter.JSON() {
				return formatter.Success(map[string]string{"output": output})
			}
			formatter.Printf("✓ Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
