package canvas

import (
	"errors"
	"fmt"

	"github.com/roach88/moneymap/internal/graph"
)

// ErrUnknownNode is returned when a mutation references a missing node.
var ErrUnknownNode = errors.New("unknown node")

// AddNode inserts n, assigning an id when n.ID is empty, normalizing the
// label and snapping the position. One history entry is pushed.
func (e *Editor) AddNode(n graph.Node) (graph.Node, error) {
	n = n.Clone()
	if n.ID == "" {
		n.ID = e.opts.NewID("node")
	}
	if e.indexOfNode(n.ID) >= 0 {
		return graph.Node{}, fmt.Errorf("add node: id %q already exists", n.ID)
	}
	if err := e.checkNode(n); err != nil {
		return graph.Node{}, fmt.Errorf("add node: %w", err)
	}
	n.Label = graph.NormalizeLabel(n.Label)
	n.Position = e.snap(n.Position)

	e.nodes = append(e.nodes, n)
	e.commit()
	return n.Clone(), nil
}

// UpdateNode applies fn to a copy of the node and stores the result. The id
// cannot change. Nothing is pushed when fn leaves the node unchanged.
func (e *Editor) UpdateNode(id string, fn func(*graph.Node)) error {
	i := e.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("update node %q: %w", id, ErrUnknownNode)
	}
	next := e.nodes[i].Clone()
	fn(&next)
	next.ID = id
	next.Label = graph.NormalizeLabel(next.Label)
	next.Position = e.snap(next.Position)
	if err := e.checkNode(next); err != nil {
		return fmt.Errorf("update node %q: %w", id, err)
	}
	if equalNodes(e.nodes[i], next) {
		return nil
	}
	e.nodes[i] = next
	e.commit()
	return nil
}

func (e *Editor) checkNode(n graph.Node) error {
	if !n.Kind.Valid() {
		return fmt.Errorf("invalid kind %q (want one of %v)", n.Kind, graph.Kinds)
	}
	if n.Inflow != nil && !n.Inflow.Cadence.Valid() {
		return fmt.Errorf("invalid cadence %q", n.Inflow.Cadence)
	}
	if n.Kind == graph.KindPod && n.ParentID != "" {
		if n.ParentID == n.ID {
			return errors.New("a pod cannot own itself")
		}
		if e.indexOfNode(n.ParentID) < 0 {
			return fmt.Errorf("parent %q: %w", n.ParentID, ErrUnknownNode)
		}
	}
	return nil
}

// RemoveNodes deletes nodes together with their flows, the rules they
// source, and allocations that target them. Pods owned by a removed node
// lose their parent link. A rule that no longer validates once its
// allocations are pruned, such as an income rule below 100%, is removed
// with the flows it owns. Returns the number of nodes removed; one history
// entry is pushed when that is non-zero.
func (e *Editor) RemoveNodes(ids ...string) int {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		if e.indexOfNode(id) >= 0 {
			gone[id] = true
		}
	}
	if len(gone) == 0 {
		return 0
	}

	nodes := make([]graph.Node, 0, len(e.nodes))
	for _, n := range e.nodes {
		if gone[n.ID] {
			continue
		}
		if gone[n.ParentID] {
			n.ParentID = ""
		}
		nodes = append(nodes, n)
	}
	remaining := graph.IndexNodes(nodes)

	flows := make([]graph.Flow, 0, len(e.flows))
	for _, f := range e.flows {
		if !gone[f.SourceID] && !gone[f.TargetID] {
			flows = append(flows, f)
		}
	}

	dropped := make(map[string]bool)
	rules := make([]graph.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if gone[r.SourceNodeID] {
			continue
		}
		r = r.Clone()
		if gone[r.TriggerNodeID] {
			r.TriggerNodeID = r.SourceNodeID
		}
		allocs := r.Allocations[:0]
		for _, a := range r.Allocations {
			if !gone[a.TargetNodeID] {
				allocs = append(allocs, a)
			}
		}
		r.Allocations = allocs
		if len(r.Allocations) == 0 || graph.ValidateRule(remaining, r) != nil {
			dropped[r.SourceNodeID] = true
			continue
		}
		rules = append(rules, r)
	}

	e.nodes, e.flows, e.rules = nodes, withoutRuleFlows(flows, dropped), rules
	e.selection.Remove(ids...)
	if gone[e.focusedID] {
		e.focusedID = ""
	}
	e.resetTransient()
	e.commit()
	return len(gone)
}

// RemoveSelected deletes the selected nodes.
func (e *Editor) RemoveSelected() int {
	return e.RemoveNodes(e.selection.IDs()...)
}

// AddFlow creates a manual flow from source to target. The target must be
// legal for the source: not itself, not its own parent, not its own pod.
func (e *Editor) AddFlow(sourceID, targetID, tag string) (graph.Flow, error) {
	nodes := e.nodeSet()
	source, ok := nodes[sourceID]
	if !ok {
		return graph.Flow{}, fmt.Errorf("add flow: source %q: %w", sourceID, ErrUnknownNode)
	}
	if err := graph.ValidateTarget(nodes, source, targetID); err != nil {
		return graph.Flow{}, fmt.Errorf("add flow: %w", err)
	}
	if tag == "" {
		tag = graph.TagTransfer
	}

	f := graph.Flow{
		ID:       e.opts.NewID("flow"),
		SourceID: sourceID,
		TargetID: targetID,
		Tag:      tag,
	}
	e.flows = append(e.flows, f)
	e.commit()
	return f, nil
}

// RemoveFlow deletes a flow. Removing a rule-owned flow also drops the
// owning rule's allocation to that target so the two stay consistent; the
// rule goes away with its last allocation. When the pruned rule would no
// longer validate (an income rule left below 100%) the removal is refused
// with its ValidationError and nothing changes.
func (e *Editor) RemoveFlow(id string) error {
	idx := -1
	for i, f := range e.flows {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("remove flow: unknown flow %q", id)
	}
	removed := e.flows[idx]

	rules := e.rules
	dropped := make(map[string]bool)
	if removed.RuleOwned() {
		rules = make([]graph.Rule, 0, len(e.rules))
		for _, r := range e.rules {
			if r.ID == removed.RuleID {
				r = r.Clone()
				kept := make([]graph.Allocation, 0, len(r.Allocations))
				for _, a := range r.Allocations {
					if a.TargetNodeID != removed.TargetID {
						kept = append(kept, a)
					}
				}
				r.Allocations = kept
				if len(kept) == 0 {
					dropped[r.SourceNodeID] = true
					continue
				}
				if err := graph.ValidateRule(e.nodeSet(), r); err != nil {
					return fmt.Errorf("remove flow %q: %w", id, err)
				}
			}
			rules = append(rules, r)
		}
	}

	flows := append(e.flows[:idx:idx], e.flows[idx+1:]...)
	e.flows = withoutRuleFlows(flows, dropped)
	e.rules = rules
	e.commit()
	return nil
}

// SaveRule validates rule and upserts it by source node, replacing any
// prior rule for that source, then reconciles the source's rule-owned
// flows with the allocation set:
//
//   - an existing rule-owned flow to an allocated target is kept and
//     re-owned by this rule
//   - a manual flow to an allocated target with no rule-owned flow is
//     converted into the rule-owned flow
//   - remaining manual flows to allocated targets are superseded
//   - rule-owned flows to targets no longer allocated are deleted
//   - allocated targets still lacking a flow get a new rule-owned flow
//
// A rule with no targeted allocations removes the source's rule. Invalid
// rules return a ValidationError and change nothing. One history entry is
// pushed on success.
func (e *Editor) SaveRule(rule graph.Rule) (graph.Rule, error) {
	rule = rule.Clone()
	nodes := e.nodeSet()
	source, ok := nodes[rule.SourceNodeID]
	if !ok {
		return graph.Rule{}, fmt.Errorf("save rule: source %q: %w", rule.SourceNodeID, ErrUnknownNode)
	}
	if rule.Trigger == "" {
		rule.Trigger = graph.TriggerIncoming
	}
	if !rule.Trigger.Valid() {
		return graph.Rule{}, fmt.Errorf("save rule: invalid trigger %q", rule.Trigger)
	}
	rule.TriggerNodeID = rule.EffectiveTriggerNode()

	allocs := make([]graph.Allocation, 0, len(rule.Allocations))
	for _, a := range rule.Allocations {
		if a.TargetNodeID == "" && a.Percentage == 0 {
			continue
		}
		if a.ID == "" {
			a.ID = e.opts.NewID("alloc")
		}
		allocs = append(allocs, a)
	}
	rule.Allocations = allocs

	if len(rule.Allocations) == 0 {
		e.RemoveRule(source.ID)
		return rule, nil
	}
	if err := graph.ValidateRule(nodes, rule); err != nil {
		return graph.Rule{}, err
	}

	if rule.ID == "" {
		if prior, ok := e.Rule(source.ID); ok {
			rule.ID = prior.ID
		} else {
			rule.ID = e.opts.NewID("rule")
		}
	}

	e.upsertRule(rule)
	e.reconcileRuleFlows(rule)
	e.commit()
	return rule.Clone(), nil
}

// RemoveRule deletes the rule sourced at sourceNodeID and the flows it owns.
func (e *Editor) RemoveRule(sourceNodeID string) bool {
	removed := false
	rules := make([]graph.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.SourceNodeID == sourceNodeID {
			removed = true
			continue
		}
		rules = append(rules, r)
	}
	if !removed {
		return false
	}
	e.rules = rules
	e.flows = withoutRuleFlows(e.flows, map[string]bool{sourceNodeID: true})
	e.commit()
	return true
}

// withoutRuleFlows drops the rule-owned flows leaving the given sources.
func withoutRuleFlows(flows []graph.Flow, sources map[string]bool) []graph.Flow {
	if len(sources) == 0 {
		return flows
	}
	out := make([]graph.Flow, 0, len(flows))
	for _, f := range flows {
		if sources[f.SourceID] && f.RuleOwned() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (e *Editor) upsertRule(rule graph.Rule) {
	rules := make([]graph.Rule, 0, len(e.rules)+1)
	inserted := false
	for _, r := range e.rules {
		if r.SourceNodeID != rule.SourceNodeID {
			rules = append(rules, r)
			continue
		}
		if !inserted {
			rules = append(rules, rule)
			inserted = true
		}
	}
	if !inserted {
		rules = append(rules, rule)
	}
	e.rules = rules
}

func (e *Editor) reconcileRuleFlows(rule graph.Rule) {
	source := rule.SourceNodeID
	targets := make(map[string]bool, len(rule.Allocations))
	for _, a := range rule.Allocations {
		targets[a.TargetNodeID] = true
	}

	covered := make(map[string]bool, len(targets))
	keep := make([]bool, len(e.flows))

	// Rule-owned flows first: keep one per allocated target.
	for i := range e.flows {
		f := &e.flows[i]
		if f.SourceID != source || !f.RuleOwned() {
			keep[i] = true
			continue
		}
		if targets[f.TargetID] && !covered[f.TargetID] {
			f.RuleID = rule.ID
			covered[f.TargetID] = true
			keep[i] = true
		}
	}

	// Manual flows to allocated targets merge into the rule.
	for i := range e.flows {
		f := &e.flows[i]
		if f.SourceID != source || f.RuleOwned() || !targets[f.TargetID] {
			continue
		}
		if covered[f.TargetID] {
			keep[i] = false
			continue
		}
		f.RuleID = rule.ID
		if f.Tag == "" {
			f.Tag = graph.TagAllocation
		}
		covered[f.TargetID] = true
	}

	flows := make([]graph.Flow, 0, len(e.flows)+len(rule.Allocations))
	for i, f := range e.flows {
		if keep[i] {
			flows = append(flows, f)
		}
	}
	for _, a := range rule.Allocations {
		if covered[a.TargetNodeID] {
			continue
		}
		covered[a.TargetNodeID] = true
		flows = append(flows, graph.Flow{
			ID:       e.opts.NewID("flow"),
			SourceID: source,
			TargetID: a.TargetNodeID,
			RuleID:   rule.ID,
			Tag:      graph.TagAllocation,
		})
	}
	e.flows = flows
}
