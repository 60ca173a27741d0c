package graph

import "strings"

// Default annual return rates applied when a node has no explicit ReturnRate.
const (
	BrokerageReturnRate = 0.10
	SavingsReturnRate   = 0.04
	GoalPodReturnRate   = 0.04
)

// DefaultReturnRate returns the fractional annual rate implied by a node's
// kind, category and pod type.
func DefaultReturnRate(n Node) float64 {
	category := strings.ToLower(strings.TrimSpace(n.Category))
	switch {
	case n.Kind == KindAccount && category == "brokerage":
		return BrokerageReturnRate
	case category == "savings":
		return SavingsReturnRate
	case n.Kind == KindPod && n.PodType == PodTypeGoal:
		return GoalPodReturnRate
	}
	return 0
}

// EffectiveReturnRate returns n.ReturnRate when set, otherwise the default.
func EffectiveReturnRate(n Node) float64 {
	if n.ReturnRate != nil {
		return *n.ReturnRate
	}
	return DefaultReturnRate(n)
}
