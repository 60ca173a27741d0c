package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/testutil"
)

// createTestStore creates a new store in a temp directory with sequential
// ids and a stepping clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	return createTestStoreWithDriver(t, DriverCGo)
}

func createTestStoreWithDriver(t *testing.T, driver string) *Store {
	t.Helper()
	ids := testutil.NewSequentialIDs()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenDriver(driver, path,
		WithIDGenerator(func() string { return ids.Next("row") }),
		WithClock(testutil.NewStepClock().Now),
	)
	if err != nil {
		t.Fatalf("OpenDriver(%q) failed: %v", driver, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestWorkspace inserts a workspace and returns it.
func createTestWorkspace(t *testing.T, s *Store, householdID string, v Variant) Workspace {
	t.Helper()
	var w Workspace
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		w, err = tx.CreateWorkspace(context.Background(), householdID, v, householdID+"-"+string(v))
		return err
	})
	if err != nil {
		t.Fatalf("CreateWorkspace() failed: %v", err)
	}
	return w
}

func ptr[T any](v T) *T { return &v }

// sampleGraph is a small household graph using client ids: a paycheck
// allocating to checking and a goal, a pod under checking, and a manual
// transfer from checking to the loan.
func sampleGraph() graph.Snapshot {
	s := graph.Empty()
	s.Nodes = []graph.Node{
		{
			ID: "c-pay", Kind: graph.KindIncome, Label: "Paycheck",
			Inflow:   &graph.Inflow{Amount: 1000, Cadence: graph.CadenceMonthly},
			Position: graph.Position{X: 0, Y: 0},
		},
		{
			ID: "c-check", Kind: graph.KindAccount, Category: "checking", Label: "Checking",
			Balance: ptr(1234.56), Position: graph.Position{X: 280, Y: 0},
			Icon: "bank", Accent: "#2f80ed",
		},
		{
			ID: "c-pod", Kind: graph.KindPod, Label: "Groceries", ParentID: "c-check",
			PodType: graph.PodTypeEnvelope, Position: graph.Position{X: 280, Y: 140},
			Extra: map[string]any{"note": "weekly shop"},
		},
		{
			ID: "c-goal", Kind: graph.KindGoal, Label: "Trip",
			ReturnRate: ptr(0.04), Position: graph.Position{X: 560, Y: 0},
		},
		{ID: "c-loan", Kind: graph.KindLiability, Label: "Car loan", Position: graph.Position{X: 560, Y: 140}},
	}
	s.Rules = []graph.Rule{{
		ID: "c-rule", SourceNodeID: "c-pay", Trigger: graph.TriggerIncoming, TriggerNodeID: "c-pay",
		Allocations: []graph.Allocation{
			{ID: "c-a1", TargetNodeID: "c-check", Percentage: 80},
			{ID: "c-a2", TargetNodeID: "c-goal", Percentage: 20},
		},
	}}
	s.Flows = []graph.Flow{
		{ID: "c-f1", SourceID: "c-pay", TargetID: "c-check", RuleID: "c-rule", Tag: graph.TagAllocation},
		{ID: "c-f2", SourceID: "c-pay", TargetID: "c-goal", RuleID: "c-rule", Tag: graph.TagAllocation},
		{ID: "c-f3", SourceID: "c-check", TargetID: "c-loan", Tag: graph.TagTransfer, AmountCents: ptr(int64(25000))},
	}
	return s
}
