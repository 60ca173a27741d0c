package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/moneymap/internal/config"
	"github.com/roach88/moneymap/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter    string
	GoldenDir string
	Update    bool
}

// ScenarioReport is the outcome of one scenario run.
type ScenarioReport struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "missing" or "updated"
}

// Golden comparison outcomes.
const (
	goldenMatch    = "match"
	goldenMismatch = "mismatch"
	goldenMissing  = "missing"
	goldenUpdated  = "updated"
)

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <dir|file.yaml>...",
		Short: "Run scripted editing scenarios",
		Long: `Run YAML editing scenarios and check their assertions.

A directory argument runs every *.yaml and *.yml file in it. With --golden
each scenario's final graph is compared against <golden>/<name>.golden;
--update rewrites those files instead.`,
		Example: `  moneymap scenario ./scenarios
  moneymap scenario ./scenarios --golden ./scenarios/golden
  moneymap scenario ./scenarios --filter paycheck --golden ./golden --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name contains this text")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden files to compare against")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files (requires --golden)")
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, args []string) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	scenarios, err := loadScenarios(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	if opts.Filter != "" {
		kept := scenarios[:0]
		for _, s := range scenarios {
			if strings.Contains(s.Name, opts.Filter) {
				kept = append(kept, s)
			}
		}
		scenarios = kept
	}
	if len(scenarios) == 0 {
		return NewExitError(ExitCommandError, "no scenarios match")
	}

	f := opts.formatter(cmd)
	reports := make([]ScenarioReport, 0, len(scenarios))
	failed := 0
	for _, s := range scenarios {
		f.VerboseLog("Running %s: %s", s.Name, s.Description)
		result, err := harness.Run(s, harness.WithEditorOptions(cfg.EditorOptions()))
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", s.Name), err)
		}

		report := ScenarioReport{Name: s.Name, Pass: result.Pass, Errors: result.Errors}
		if opts.GoldenDir != "" {
			if report.Golden, err = checkGolden(opts.GoldenDir, s.Name, result, opts.Update); err != nil {
				return WrapExitError(ExitCommandError, "golden file", err)
			}
			if report.Golden == goldenMismatch || report.Golden == goldenMissing {
				report.Pass = false
			}
		}
		if !report.Pass {
			failed++
		}
		reports = append(reports, report)
	}

	if f.Format == "json" {
		if err := f.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			suffix := ""
			if r.Golden != "" && r.Golden != goldenMatch {
				suffix = " (golden " + r.Golden + ")"
			}
			if r.Pass {
				f.Pass("%s%s", r.Name, suffix)
				continue
			}
			f.Fail("%s%s", r.Name, suffix)
			for _, e := range r.Errors {
				fmt.Fprintf(f.Writer, "    %s\n", strings.ReplaceAll(e, "\n", "\n    "))
			}
		}
		fmt.Fprintf(f.Writer, "\n%d passed, %d failed\n", len(reports)-failed, failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(reports)))
	}
	return nil
}

// loadScenarios loads directories as suites and other arguments as single
// scenario files, in argument order.
func loadScenarios(args []string) ([]*harness.Scenario, error) {
	var (
		out  []*harness.Scenario
		errs []error
	)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.IsDir() {
			suite, err := harness.LoadSuite(arg)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, suite...)
			continue
		}
		s, err := harness.LoadScenario(arg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", arg, err))
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// checkGolden compares the rendered result with dir/name.golden, or writes
// it when update is set.
func checkGolden(dir, name string, result *harness.Result, update bool) (string, error) {
	data, err := harness.MarshalGolden(name, result)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", err
		}
		return goldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return goldenMissing, nil
	}
	if err != nil {
		return "", err
	}
	if !bytes.Equal(want, data) {
		return goldenMismatch, nil
	}
	return goldenMatch, nil
}
