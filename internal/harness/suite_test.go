package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuite_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSuite(dir)

	var nf *ScenarioNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, dir, nf.Dir)
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestLoadSuite_MissingDir(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario dir")
}

func TestLoadSuite_DuplicateNamesAndBadFiles(t *testing.T) {
	dir := t.TempDir()
	body := "name: same\ndescription: d\nsteps: [{action: undo}]\nassertions: [{type: valid}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(body), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("name: broken\n"), 0644))

	_, err := LoadSuite(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `b.yml: scenario name "same" already used by a.yaml`)
	assert.Contains(t, err.Error(), "c.yaml: invalid scenario")
}

func TestRunSuite_ExampleScenariosPass(t *testing.T) {
	scenarios, err := LoadSuite("testdata/scenarios")
	require.NoError(t, err)

	failures, err := RunSuite(scenarios)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	scenarios := []*Scenario{
		{
			Name:        "ok",
			Description: "passes",
			Steps:       []Step{{Action: ActionUndo, ExpectError: ExpectAnyError}},
			Assertions:  []Assertion{{Type: AssertNodeCount, Count: ptr(0)}},
		},
		{
			Name:        "bad",
			Description: "fails",
			Steps:       []Step{{Action: ActionUndo, ExpectError: ExpectAnyError}},
			Assertions:  []Assertion{{Type: AssertNodeCount, Count: ptr(1)}},
		},
	}

	failures, err := RunSuite(scenarios)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Scenario)
	require.Len(t, failures[0].Errors, 1)
	assert.Contains(t, failures[0].Errors[0], "Expected: 1 nodes")
}
