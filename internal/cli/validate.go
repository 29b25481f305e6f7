package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tickmerge/internal/batch"
)

// BatchProblem is one batch file that failed validation.
type BatchProblem struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Checked  int            `json:"checked"`
	Problems []BatchProblem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <batch.json>...",
		Short: "Validate batches without merging",
		Long: `Check client batches against the batch schema and decode their events
without building or merging the recordings. Every file is checked, and
each invalid one is reported with the JSON pointer of the offending value.

Exit codes:
  0 - All batches valid
  1 - At least one batch invalid
  2 - Command error (unreadable files)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	result := ValidationResult{Valid: true, Checked: len(paths)}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read batch", err)
		}
		if p := validateBatch(path, data); p != nil {
			result.Valid = false
			result.Problems = append(result.Problems, *p)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.JSON() {
		var failure *CLIError
		if !result.Valid {
			first := result.Problems[0]
			failure = &CLIError{Code: ErrCodeInvalidBatch, Message: fmt.Sprintf("%s: %s", first.File, first.Message)}
		}
		if err := f.Result(result, failure); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		if result.Valid {
			fmt.Fprintf(w, "✓ %s valid\n", plural(result.Checked, "batch", "batches"))
		} else {
			fmt.Fprintln(w, "✗ Validation failed")
			fmt.Fprintln(w)
			for _, p := range result.Problems {
				fmt.Fprintf(w, "%s\n", p.File)
				if p.Path != "" {
					fmt.Fprintf(w, "  at %s\n", p.Path)
				}
				fmt.Fprintf(w, "  %s: %s\n\n", p.Code, p.Message)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %s invalid",
			len(result.Problems), plural(result.Checked, "batch", "batches")))
	}
	return nil
}

// validateBatch returns the problem with a batch document, or nil if it
// decodes cleanly.
func validateBatch(file string, data []byte) *BatchProblem {
	b, err := batch.Parse(data)
	if err == nil {
		_, _, err = b.Decode()
	}
	if err == nil {
		return nil
	}

	p := &BatchProblem{File: file, Code: ErrCodeInvalidBatch, Message: err.Error()}
	var de *batch.DecodeError
	if errors.As(err, &de) {
		p.Code = string(de.Code)
		p.Path = de.Path
		p.Message = de.Message
	}
	return p
}
