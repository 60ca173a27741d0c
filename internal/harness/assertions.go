package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Graph    graph.Snapshot // Final graph for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal graph:\n")
	for _, n := range e.Graph.Nodes {
		fmt.Fprintf(&buf, "  node %s %s %q at (%g, %g)\n", n.ID, n.Kind, n.Label, n.Position.X, n.Position.Y)
	}
	for _, f := range e.Graph.Flows {
		owner := "manual"
		if f.RuleOwned() {
			owner = "rule " + f.RuleID
		}
		fmt.Fprintf(&buf, "  flow %s %s -> %s (%s)\n", f.ID, f.SourceID, f.TargetID, owner)
	}

	return buf.String()
}

// AssertionContext carries what assertions need beyond the result.
type AssertionContext struct {
	Ctx       context.Context
	Manager   *workspace.Manager
	Household string

	// Refs maps scenario refs to final ids.
	Refs map[string]string
}

func (a *AssertionContext) resolve(ref string) string {
	if a != nil {
		if id, ok := a.Refs[ref]; ok {
			return id
		}
	}
	return ref
}

func fail(s graph.Snapshot, typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Graph: s}
}

func assertNodeCount(s graph.Snapshot, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("count is required")
	}
	if len(s.Nodes) != *a.Count {
		return fail(s, a.Type, fmt.Sprintf("%d nodes", *a.Count), fmt.Sprintf("%d nodes", len(s.Nodes)))
	}
	return nil
}

func assertFlowCount(s graph.Snapshot, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("count is required")
	}
	count := 0
	for _, f := range s.Flows {
		if a.RuleOwned == nil || f.RuleOwned() == *a.RuleOwned {
			count++
		}
	}
	if count != *a.Count {
		return fail(s, a.Type, fmt.Sprintf("%d flows", *a.Count), fmt.Sprintf("%d flows", count))
	}
	return nil
}

func assertNode(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	id := actx.resolve(a.Ref)
	var node *graph.Node
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			node = &s.Nodes[i]
			break
		}
	}
	if node == nil {
		return fail(s, a.Type, fmt.Sprintf("node %s exists", a.Ref), "not found")
	}

	var mismatches []string
	if a.Label != "" && node.Label != a.Label {
		mismatches = append(mismatches, fmt.Sprintf("label %q, want %q", node.Label, a.Label))
	}
	if a.Parent != "" && node.ParentID != actx.resolve(a.Parent) {
		mismatches = append(mismatches, fmt.Sprintf("parent %q, want %s", node.ParentID, a.Parent))
	}
	if a.X != nil && node.Position.X != *a.X {
		mismatches = append(mismatches, fmt.Sprintf("x %g, want %g", node.Position.X, *a.X))
	}
	if a.Y != nil && node.Position.Y != *a.Y {
		mismatches = append(mismatches, fmt.Sprintf("y %g, want %g", node.Position.Y, *a.Y))
	}
	if len(mismatches) > 0 {
		return fail(s, a.Type, fmt.Sprintf("node %s matches", a.Ref), strings.Join(mismatches, "; "))
	}
	return nil
}

func findFlow(s graph.Snapshot, source, target string) (graph.Flow, bool) {
	for _, f := range s.Flows {
		if f.SourceID == source && f.TargetID == target {
			return f, true
		}
	}
	return graph.Flow{}, false
}

func assertFlow(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	f, ok := findFlow(s, actx.resolve(a.From), actx.resolve(a.To))
	if !ok {
		return fail(s, a.Type, fmt.Sprintf("flow %s -> %s", a.From, a.To), "not found")
	}
	if a.RuleOwned != nil && f.RuleOwned() != *a.RuleOwned {
		return fail(s, a.Type,
			fmt.Sprintf("flow %s -> %s rule_owned=%t", a.From, a.To, *a.RuleOwned),
			fmt.Sprintf("rule_owned=%t", f.RuleOwned()))
	}
	return nil
}

func assertNoFlow(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	if f, ok := findFlow(s, actx.resolve(a.From), actx.resolve(a.To)); ok {
		return fail(s, a.Type, fmt.Sprintf("no flow %s -> %s", a.From, a.To), "found "+f.ID)
	}
	return nil
}

func findRule(s graph.Snapshot, source string) (graph.Rule, bool) {
	for _, r := range s.Rules {
		if r.SourceNodeID == source {
			return r, true
		}
	}
	return graph.Rule{}, false
}

func assertRule(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	r, ok := findRule(s, actx.resolve(a.From))
	if !ok {
		return fail(s, a.Type, fmt.Sprintf("rule for %s", a.From), "not found")
	}
	if a.Trigger != "" && string(r.Trigger) != a.Trigger {
		return fail(s, a.Type, "trigger "+a.Trigger, "trigger "+string(r.Trigger))
	}
	if a.Allocations == nil {
		return nil
	}

	want := make(map[string]float64, len(a.Allocations))
	for ref, pct := range a.Allocations {
		want[actx.resolve(ref)] = pct
	}
	got := make(map[string]float64, len(r.Allocations))
	for _, alloc := range r.Allocations {
		got[alloc.TargetNodeID] = alloc.Percentage
	}
	if !sameAllocations(want, got) {
		return fail(s, a.Type, formatAllocations(want), formatAllocations(got))
	}
	return nil
}

func sameAllocations(want, got map[string]float64) bool {
	if len(want) != len(got) {
		return false
	}
	for k, v := range want {
		g, ok := got[k]
		if !ok || g != v {
			return false
		}
	}
	return true
}

// formatAllocations renders allocations sorted by target for stable messages.
func formatAllocations(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g%%", k, m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func assertNoRule(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	if r, ok := findRule(s, actx.resolve(a.From)); ok {
		return fail(s, a.Type, fmt.Sprintf("no rule for %s", a.From), "found "+r.ID)
	}
	return nil
}

func assertSelection(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	want := make([]string, len(a.Refs))
	for i, ref := range a.Refs {
		want[i] = actx.resolve(ref)
	}
	if strings.Join(want, ",") != strings.Join(s.SelectedIDs, ",") {
		return fail(s, a.Type, fmt.Sprintf("%v", want), fmt.Sprintf("%v", s.SelectedIDs))
	}
	return nil
}

func assertValid(s graph.Snapshot, a Assertion) error {
	if err := graph.ValidateStructure(s); err != nil {
		return fail(s, a.Type, "structurally valid graph", err.Error())
	}
	return nil
}

func assertPersistedCount(s graph.Snapshot, a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Manager == nil {
		return fmt.Errorf("persisted_count requires a household store")
	}
	if a.Count == nil {
		return fmt.Errorf("count is required")
	}
	persisted, _, err := actx.Manager.Load(actx.Ctx, actx.Household, store.Variant(a.Variant))
	if err != nil {
		return fmt.Errorf("persisted_count: %w", err)
	}
	if len(persisted.Nodes) != *a.Count {
		return fail(s, a.Type,
			fmt.Sprintf("%d %s nodes", *a.Count, a.Variant),
			fmt.Sprintf("%d %s nodes", len(persisted.Nodes), a.Variant))
	}
	return nil
}

// EvaluateAssertions runs every assertion against the result's final graph
// and returns the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	s := result.Graph

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertNodeCount:
			err = assertNodeCount(s, a)
		case AssertFlowCount:
			err = assertFlowCount(s, a)
		case AssertNode:
			err = assertNode(s, a, actx)
		case AssertFlow:
			err = assertFlow(s, a, actx)
		case AssertNoFlow:
			err = assertNoFlow(s, a, actx)
		case AssertRule:
			err = assertRule(s, a, actx)
		case AssertNoRule:
			err = assertNoRule(s, a, actx)
		case AssertSelection:
			err = assertSelection(s, a, actx)
		case AssertValid:
			err = assertValid(s, a)
		case AssertPersistedCount:
			err = assertPersistedCount(s, a, actx)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errs
}
