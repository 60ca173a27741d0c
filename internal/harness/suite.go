package harness

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario directory holds no
// scenario files.
type ScenarioNotFoundError struct {
	Dir string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenario files (*.yaml, *.yml) in %s", e.Dir)
}

// LoadSuite loads every scenario in dir, sorted by file name. Names must be
// unique across the suite since they key golden files. Load errors for all
// files are joined.
func LoadSuite(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("scenario dir: %w", err)
		}
		return nil, &ScenarioNotFoundError{Dir: dir}
	}
	sort.Strings(paths)

	var (
		scenarios []*Scenario
		errs      []error
	)
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(p), err))
			continue
		}
		if prev, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: scenario name %q already used by %s",
				filepath.Base(p), s.Name, filepath.Base(prev)))
			continue
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return scenarios, nil
}

// SuiteFailure is a scenario that failed, with its messages.
type SuiteFailure struct {
	Scenario string
	Errors   []string
}

// RunSuite runs scenarios in order and returns the failures. An execution
// error stops the run.
func RunSuite(scenarios []*Scenario, opts ...Option) ([]SuiteFailure, error) {
	failures := []SuiteFailure{}
	for _, s := range scenarios {
		result, err := Run(s, opts...)
		if err != nil {
			return failures, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		if !result.Pass {
			failures = append(failures, SuiteFailure{Scenario: s.Name, Errors: result.Errors})
		}
	}
	return failures, nil
}
