package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bookmerge/internal/snapshot"
	"github.com/roach88/bookmerge/internal/taxonomy"
)

// ValidationError is one problem found by validate.
type ValidationError struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// SnapshotSummary describes a snapshot that passed validation.
type SnapshotSummary struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Records int    `json:"records"`
	Groups  int    `json:"groups"`
	Configs int    `json:"configs"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Snapshots []SnapshotSummary `json:"snapshots,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Taxonomy string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <snapshot>...",
		Short: "Check snapshots without building a catalog",
		Long: `Check that every snapshot parses and carries the required keys.

All snapshots are checked and every problem is reported, instead of stopping
at the first one like build does. With --taxonomy the taxonomy file is
checked too.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Taxonomy, "taxonomy", "", "also validate this taxonomy YAML file")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{}
	for _, arg := range args {
		src := snapshot.ParseSource(arg)
		formatter.VerboseLog("Validating snapshot %s (%s)", src.Name, src.Path)

		snap, err := snapshot.Load(src.Name, src.Path)
		if err != nil {
			le := asLoadError(err, ErrCodeGeneric)
			result.Errors = append(result.Errors, ValidationError{
				Source:  src.Name,
				Code:    le.Code,
				Message: le.Message,
				Line:    le.Line(),
			})
			continue
		}
		result.Snapshots = append(result.Snapshots, SnapshotSummary{
			Name:    snap.Name,
			Path:    snap.Path,
			Records: len(snap.Records),
			Groups:  len(snap.Groups),
			Configs: len(snap.Configs),
		})
	}

	if opts.Taxonomy != "" {
		formatter.VerboseLog("Validating taxonomy %s", opts.Taxonomy)
		if _, err := taxonomy.Load(opts.Taxonomy); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Source:  opts.Taxonomy,
				Code:    ErrCodeTaxonomy,
				Message: err.Error(),
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}
	records := 0
	for _, s := range result.Snapshots {
		records += s.Records
	}
	formatter.Printf("✓ %d snapshot(s) valid, %d site(s)\n", len(result.Snapshots), records)
	return nil
}

// outputValidationErrors reports every problem. Validation failures exit
// with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	formatter.Printf("✗ Validation failed\n\n")
	for _, e := range errs {
		if e.Line > 0 {
			formatter.Printf("%s line %d\n", e.Source, e.Line)
		} else {
			formatter.Printf("%s\n", e.Source)
		}
		formatter.Printf("  %s: %s\n\n", e.Code, e.Message)
	}
	return exitErr
}
