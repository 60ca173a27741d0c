package graph

// Remap returns a copy of s with every id rewritten through m. Ids that are
// not in m are kept as they are.
func (s Snapshot) Remap(m IDMaps) Snapshot {
	node := func(id string) string { return lookup(m.Nodes, id) }

	out := s.Clone()
	for i := range out.Nodes {
		n := &out.Nodes[i]
		n.ID = node(n.ID)
		n.ParentID = node(n.ParentID)
	}
	for i := range out.Flows {
		f := &out.Flows[i]
		f.ID = lookup(m.Flows, f.ID)
		f.SourceID = node(f.SourceID)
		f.TargetID = node(f.TargetID)
		f.RuleID = lookup(m.Rules, f.RuleID)
	}
	for i := range out.Rules {
		out.Rules[i] = out.Rules[i].Remap(m)
	}
	for i, id := range out.SelectedIDs {
		out.SelectedIDs[i] = node(id)
	}
	return out
}

// Remap returns a copy of r with its ids rewritten through m.
func (r Rule) Remap(m IDMaps) Rule {
	out := r.Clone()
	out.ID = lookup(m.Rules, out.ID)
	out.SourceNodeID = m.Node(out.SourceNodeID)
	out.TriggerNodeID = m.Node(out.TriggerNodeID)
	for j := range out.Allocations {
		out.Allocations[j].TargetNodeID = m.Node(out.Allocations[j].TargetNodeID)
	}
	return out
}

// Node returns the persisted id for a client node id, or id itself when m
// has no entry for it.
func (m IDMaps) Node(id string) string {
	return lookup(m.Nodes, id)
}

func lookup(m map[string]string, id string) string {
	if id == "" {
		return id
	}
	if mapped, ok := m[id]; ok {
		return mapped
	}
	return id
}
