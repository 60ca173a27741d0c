package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/moneymap/internal/graph"
)

// GoldenSnapshot captures the observable outcome of a scenario execution.
// Ids come from sequential generators, so the JSON is byte-stable.
type GoldenSnapshot struct {
	Scenario string         `json:"scenario"`
	Steps    []StepRecord   `json:"steps"`
	Graph    graph.Snapshot `json:"graph"`
	CanUndo  bool           `json:"canUndo"`
	CanRedo  bool           `json:"canRedo"`
}

// MarshalGolden renders a result as indented JSON with a trailing newline.
func MarshalGolden(name string, result *Result) ([]byte, error) {
	snap := GoldenSnapshot{
		Scenario: name,
		Steps:    result.Steps,
		Graph:    result.Graph,
		CanUndo:  result.CanUndo,
		CanRedo:  result.CanRedo,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its outcome against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcome doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalGolden(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
