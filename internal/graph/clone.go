package graph

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Balance != nil {
		v := *n.Balance
		out.Balance = &v
	}
	if n.Inflow != nil {
		v := *n.Inflow
		out.Inflow = &v
	}
	if n.ReturnRate != nil {
		v := *n.ReturnRate
		out.ReturnRate = &v
	}
	if n.Extra != nil {
		out.Extra = cloneMap(n.Extra)
	}
	return out
}

// Clone returns a deep copy of f.
func (f Flow) Clone() Flow {
	out := f
	if f.AmountCents != nil {
		v := *f.AmountCents
		out.AmountCents = &v
	}
	return out
}

// Clone returns a deep copy of r, including its allocations.
func (r Rule) Clone() Rule {
	out := r
	out.Allocations = make([]Allocation, len(r.Allocations))
	copy(out.Allocations, r.Allocations)
	return out
}

// Clone returns a deep copy of s. No slice, pointer or map in the result is
// shared with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes:       make([]Node, len(s.Nodes)),
		Flows:       make([]Flow, len(s.Flows)),
		Rules:       make([]Rule, len(s.Rules)),
		SelectedIDs: make([]string, len(s.SelectedIDs)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, f := range s.Flows {
		out.Flows[i] = f.Clone()
	}
	for i, r := range s.Rules {
		out.Rules[i] = r.Clone()
	}
	copy(out.SelectedIDs, s.SelectedIDs)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		arr := make([]any, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	default:
		return val
	}
}
