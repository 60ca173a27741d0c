package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/moneymap/internal/graph"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// FileReport is the validation outcome of one graph file.
type FileReport struct {
	File       string               `json:"file"`
	Valid      bool                 `json:"valid"`
	Violations []Violation          `json:"violations"`
	Warnings   []graph.CycleWarning `json:"warnings"`
}

// Violation is one structural rule a graph breaks.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <graph.json>...",
		Short: "Check graph files without touching a database",
		Long: `Check graph snapshot files against the structural rules enforced on
publish: known node kinds, parents, flow endpoints, one rule per source and
allocation sums.

Money cycles are reported as warnings. With --strict they fail the file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat money cycles as errors")
	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, paths []string) error {
	f := opts.formatter(cmd)

	reports := make([]FileReport, 0, len(paths))
	for _, path := range paths {
		f.VerboseLog("Validating %s", path)
		snap, err := readSnapshot(cmd.InOrStdin(), path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read graph", err)
		}
		reports = append(reports, validateSnapshot(path, snap, opts.Strict))
	}

	failed := 0
	for _, r := range reports {
		if !r.Valid {
			failed++
		}
	}

	if f.Format == "json" {
		if err := f.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Valid {
				f.Pass("%s", r.File)
			} else {
				f.Fail("%s: %d violations", r.File, len(r.Violations))
			}
			for _, v := range r.Violations {
				fmt.Fprintf(f.Writer, "    %s: %s\n", v.Code, v.Message)
			}
			for _, w := range r.Warnings {
				f.Warn("    %s", w.Message)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d graphs invalid", failed, len(reports)))
	}
	return nil
}

// validateSnapshot runs the structural checks and cycle analysis on s.
func validateSnapshot(file string, s graph.Snapshot, strict bool) FileReport {
	r := FileReport{
		File:       file,
		Violations: violations(graph.ValidateStructure(s)),
		Warnings:   graph.AnalyzeCycles(s),
	}
	if strict {
		for _, w := range r.Warnings {
			r.Violations = append(r.Violations, Violation{Code: "CYCLE", Message: w.Message})
		}
	}
	r.Valid = len(r.Violations) == 0
	return r
}

// violations flattens a joined validation error.
func violations(err error) []Violation {
	out := []Violation{}
	if err == nil {
		return out
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var ve *graph.ValidationError
		if errors.As(e, &ve) {
			out = append(out, Violation{Code: string(ve.Code), Message: ve.Message, NodeID: ve.NodeID})
			continue
		}
		out = append(out, Violation{Code: "INVALID", Message: e.Error()})
	}
	return out
}
