package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/moneymap/internal/canvas"
	"github.com/roach88/moneymap/internal/graph"
)

func ptr[T any](v T) *T { return &v }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "One node",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "pay", Node: &NodeSpec{Kind: "income", Label: "  Paycheck "}},
		},
		Assertions: []Assertion{
			{Type: AssertNodeCount, Count: ptr(1)},
			{Type: AssertNode, Ref: "pay", Label: "Paycheck"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "node-1", result.Refs["pay"])
	assert.Equal(t, []StepRecord{{Action: ActionAddNode}}, result.Steps)
	assert.True(t, result.CanUndo)
	assert.False(t, result.CanRedo)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_flow",
		Description: "Flow to a missing node",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "a", Node: &NodeSpec{Kind: "account"}},
			{Action: ActionAddFlow, From: "a", To: "ghost"},
		},
		Assertions: []Assertion{{Type: AssertValid}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] add_flow: unexpected error")
	assert.Equal(t, string(graph.ErrCodeUnknownNode), result.Steps[1].Error)
}

func TestRun_ExpectErrorMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Wrong expected code",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "a", Node: &NodeSpec{Kind: "account"}},
			{Action: ActionAddFlow, From: "a", To: "a", ExpectError: "UNKNOWN_NODE"},
			{Action: ActionUndo, ExpectError: "ALLOCATION_SUM"},
			{Action: ActionUndo, ExpectError: ExpectAnyError},
		},
		Assertions: []Assertion{{Type: AssertNodeCount, Count: ptr(0)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected error UNKNOWN_NODE, got ILLEGAL_TARGET")
	assert.Contains(t, result.Errors[1], "expected error ALLOCATION_SUM, got none")
	assert.Equal(t, ExpectAnyError, result.Steps[3].Error, "nothing to undo is not a validation error")
}

func TestRun_UnboundRefIsLiteralID(t *testing.T) {
	scenario := &Scenario{
		Name:        "literal",
		Description: "Refs fall back to ids",
		Steps: []Step{
			{Action: ActionAddNode, Node: &NodeSpec{Kind: "account", Label: "A"}},
			{Action: ActionUpdateNode, Ref: "node-1", Node: &NodeSpec{Label: "Renamed", X: ptr(29.0)}},
		},
		Assertions: []Assertion{
			{Type: AssertNode, Ref: "node-1", Label: "Renamed", X: ptr(28.0)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EditorOptionsSetGrid(t *testing.T) {
	scenario := &Scenario{
		Name:        "grid",
		Description: "Custom grid size",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "a", Node: &NodeSpec{Kind: "account", X: ptr(29.0), Y: ptr(0.0)}},
		},
		Assertions: []Assertion{
			{Type: AssertNode, Ref: "a", X: ptr(30.0)},
		},
	}

	opts := canvas.DefaultOptions()
	opts.GridSize = 10
	result, err := Run(scenario, WithEditorOptions(opts))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "node-1", result.Refs["a"], "ids stay sequential")
}

func TestRun_MarqueeSelects(t *testing.T) {
	scenario := &Scenario{
		Name:        "marquee",
		Description: "Rubber band selection",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "a", Node: &NodeSpec{Kind: "account", X: ptr(0.0), Y: ptr(0.0)}},
			{Action: ActionAddNode, Ref: "b", Node: &NodeSpec{Kind: "account", X: ptr(560.0), Y: ptr(0.0)}},
			{Action: ActionAddNode, Ref: "c", Node: &NodeSpec{Kind: "goal", X: ptr(0.0), Y: ptr(560.0)}},
			{Action: ActionMarquee, Rect: []float64{-10, -10, 600, 50}},
		},
		Assertions: []Assertion{
			{Type: AssertSelection, Refs: []string{"a", "b"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RemoveRuleDropsOwnedFlows(t *testing.T) {
	scenario := &Scenario{
		Name:        "remove_rule",
		Description: "Rule removal",
		Steps: []Step{
			{Action: ActionAddNode, Ref: "acct", Node: &NodeSpec{Kind: "account"}},
			{Action: ActionAddNode, Ref: "goal", Node: &NodeSpec{Kind: "goal"}},
			{Action: ActionSaveRule, From: "acct", Allocations: []AllocationSpec{{To: "goal", Percentage: 25}}},
			{Action: ActionRemoveRule, From: "acct"},
			{Action: ActionRemoveRule, From: "acct", ExpectError: ExpectAnyError},
		},
		Assertions: []Assertion{
			{Type: AssertNoRule, From: "acct"},
			{Type: AssertFlowCount, Count: ptr(0)},
			{Type: AssertNoFlow, From: "acct", To: "goal"},
		},
	}

	result, err := Run(scenario, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/paycheck_split.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Graph, second.Graph)
	assert.Equal(t, first.Refs, second.Refs)
}

func TestRun_HouseholdScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/sandbox_apply.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	// Saving rewrote every ref to a persisted row id.
	for ref, id := range result.Refs {
		assert.Regexp(t, `^row-\d+$`, id, "ref %s", ref)
	}
}

func TestRun_FreshDatabasePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh",
		Description: "Each run starts empty",
		Household:   "h1",
		Steps: []Step{
			{Action: ActionLoad},
			{Action: ActionAddNode, Node: &NodeSpec{Kind: "account", Label: "Checking"}},
			{Action: ActionSave},
		},
		Assertions: []Assertion{
			{Type: AssertPersistedCount, Variant: "live", Count: ptr(1)},
			{Type: AssertPersistedCount, Variant: "sandbox", Count: ptr(0)},
		},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d errors: %v", i, result.Errors)
	}
}

func TestRun_ResetSandboxCopiesLive(t *testing.T) {
	scenario := &Scenario{
		Name:        "reset",
		Description: "Sandbox reset from live",
		Household:   "h1",
		Steps: []Step{
			{Action: ActionAddNode, Node: &NodeSpec{Kind: "account", Label: "Checking"}},
			{Action: ActionAddNode, Node: &NodeSpec{Kind: "goal", Label: "Trip"}},
			{Action: ActionSave},
			{Action: ActionResetSandbox},
		},
		Assertions: []Assertion{
			{Type: AssertPersistedCount, Variant: "sandbox", Count: ptr(2)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	assert.Empty(t, r.Errors)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
