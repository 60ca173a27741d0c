package graph

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// AllocationTolerance is the slack allowed when comparing percentage sums.
const AllocationTolerance = 0.001

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.NewFromFloat(AllocationTolerance)
)

// NodeSet indexes nodes by id.
type NodeSet map[string]Node

// IndexNodes builds a NodeSet from a node slice. Later duplicates win.
func IndexNodes(nodes []Node) NodeSet {
	set := make(NodeSet, len(nodes))
	for _, n := range nodes {
		set[n.ID] = n
	}
	return set
}

// AllocationSum returns the exact sum of the allocation percentages.
func AllocationSum(allocs []Allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(decimal.NewFromFloat(a.Percentage))
	}
	return sum
}

// ValidateAllocations checks the percentage invariants for a rule whose
// source has the given kind:
//
//   - every percentage is within [0, 100]
//   - every non-zero allocation has a target
//   - income sources allocate exactly 100; all others at most 100
func ValidateAllocations(sourceKind Kind, allocs []Allocation) error {
	for _, a := range allocs {
		pct := decimal.NewFromFloat(a.Percentage)
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return newValidationError(ErrCodeAllocationRange, "",
				"percentage must be between 0 and 100 (got %s)", pct.String())
		}
		if strings.TrimSpace(a.TargetNodeID) == "" && !pct.IsZero() {
			return newValidationError(ErrCodeAllocationTarget, "",
				"choose a destination for the %s%% allocation", pct.String())
		}
	}

	sum := AllocationSum(allocs)
	if sum.GreaterThan(hundred.Add(tolerance)) {
		return newValidationError(ErrCodeAllocationSum, "",
			"allocations total %s%%, which is more than 100%%", sum.Round(3).String())
	}
	if sourceKind == KindIncome && sum.Sub(hundred).Abs().GreaterThan(tolerance) {
		return newValidationError(ErrCodeAllocationSum, "",
			"income allocations must total 100%% (currently %s%%)", sum.Round(3).String())
	}
	return nil
}

// ValidateTarget checks that source may allocate to targetID. A node may not
// target itself, a pod may not target its own parent, and a parent may not
// target one of its own pods.
func ValidateTarget(nodes NodeSet, source Node, targetID string) error {
	if targetID == source.ID {
		return newValidationError(ErrCodeIllegalTarget, source.ID,
			"%q cannot send money to itself", source.Label)
	}
	if source.Kind == KindPod && source.ParentID != "" && source.ParentID == targetID {
		return newValidationError(ErrCodeIllegalTarget, source.ID,
			"pod %q cannot send money to its own parent", source.Label)
	}
	target, ok := nodes[targetID]
	if !ok {
		return newValidationError(ErrCodeUnknownNode, source.ID,
			"destination %q does not exist", targetID)
	}
	if target.Kind == KindPod && target.ParentID == source.ID {
		return newValidationError(ErrCodeIllegalTarget, source.ID,
			"%q cannot send money to its own pod %q", source.Label, target.Label)
	}
	return nil
}

// LegalTargets returns the nodes source may allocate to, in input order.
func LegalTargets(nodes []Node, source Node) []Node {
	set := IndexNodes(nodes)
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if ValidateTarget(set, source, n.ID) == nil {
			out = append(out, n)
		}
	}
	return out
}

// ValidateRule checks a rule against the nodes it references.
func ValidateRule(nodes NodeSet, r Rule) error {
	source, ok := nodes[r.SourceNodeID]
	if !ok {
		return newValidationError(ErrCodeUnknownNode, r.SourceNodeID,
			"rule source %q does not exist", r.SourceNodeID)
	}
	if trig := r.EffectiveTriggerNode(); trig != source.ID {
		if _, ok := nodes[trig]; !ok {
			return newValidationError(ErrCodeUnknownNode, source.ID,
				"trigger node %q does not exist", trig)
		}
	}
	if err := ValidateAllocations(source.Kind, r.Allocations); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.NodeID = source.ID
		}
		return err
	}
	seen := make(map[string]bool, len(r.Allocations))
	for _, a := range r.Allocations {
		if a.TargetNodeID == "" {
			continue
		}
		if seen[a.TargetNodeID] {
			return newValidationError(ErrCodeAllocationTarget, source.ID,
				"destination %q is allocated more than once", a.TargetNodeID)
		}
		seen[a.TargetNodeID] = true
		if err := ValidateTarget(nodes, source, a.TargetNodeID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStructure checks a whole snapshot and returns every violation
// joined, or nil.
func ValidateStructure(s Snapshot) error {
	nodes := IndexNodes(s.Nodes)
	var errs []error

	for _, n := range s.Nodes {
		if !n.Kind.Valid() {
			errs = append(errs, newValidationError(ErrCodeUnknownNode, n.ID, "unknown kind %q", n.Kind))
			continue
		}
		if n.Kind != KindPod || n.ParentID == "" {
			continue
		}
		parent, ok := nodes[n.ParentID]
		switch {
		case !ok:
			errs = append(errs, newValidationError(ErrCodeInvalidParent, n.ID,
				"pod %q references missing parent %q", n.Label, n.ParentID))
		case parent.ID == n.ID:
			errs = append(errs, newValidationError(ErrCodeInvalidParent, n.ID,
				"pod %q cannot own itself", n.Label))
		case parent.Kind != KindAccount && parent.Kind != KindGoal:
			errs = append(errs, newValidationError(ErrCodeInvalidParent, n.ID,
				"pod %q must belong to an account or goal, not a %s", n.Label, parent.Kind))
		}
	}

	for _, f := range s.Flows {
		for _, id := range []string{f.SourceID, f.TargetID} {
			if _, ok := nodes[id]; !ok {
				errs = append(errs, newValidationError(ErrCodeUnknownNode, id,
					"flow %q references missing node", f.ID))
			}
		}
	}

	sources := make(map[string]bool, len(s.Rules))
	for _, r := range s.Rules {
		if sources[r.SourceNodeID] {
			errs = append(errs, newValidationError(ErrCodeDuplicateRule, r.SourceNodeID,
				"more than one rule for source %q", r.SourceNodeID))
		}
		sources[r.SourceNodeID] = true
		if err := ValidateRule(nodes, r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ParseNumber parses user-entered numeric text. Empty text means unset and
// returns nil. Surrounding spaces, a leading currency sign and thousands
// separators are ignored.
func ParseNumber(field, text string) (*float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, newValidationError(ErrCodeInvalidNumber, "", "%s must be a number", field)
	}
	v := d.InexactFloat64()
	return &v, nil
}

// BalanceToCents converts a major-unit amount to integer cents, rounding
// half away from zero.
func BalanceToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(hundred).Round(0).IntPart()
}

// CentsToBalance converts integer cents back to major units.
func CentsToBalance(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
