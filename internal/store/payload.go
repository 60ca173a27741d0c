package store

import "github.com/roach88/moneymap/internal/graph"

// Payload is a whole graph as submitted for Replace. Every entity carries a
// caller-chosen ClientID, and references between entities use client ids.
type Payload struct {
	Nodes []NodeInput `json:"nodes"`
	Edges []EdgeInput `json:"edges"`
	Rules []RuleInput `json:"rules"`
}

// NodeInput is one node of a Payload.
type NodeInput struct {
	ClientID       string     `json:"clientId"`
	Kind           graph.Kind `json:"kind"`
	Category       string     `json:"category,omitempty"`
	Label          string     `json:"label"`
	ParentClientID string     `json:"parentClientId,omitempty"`
	Meta           NodeMeta   `json:"metadata"`
}

// NodeMeta holds the node fields persisted in the metadata column rather
// than as columns of their own.
type NodeMeta struct {
	Position     graph.Position `json:"position"`
	Inflow       *graph.Inflow  `json:"inflow,omitempty"`
	ReturnRate   *float64       `json:"returnRate,omitempty"`
	PodType      graph.PodType  `json:"podType,omitempty"`
	Icon         string         `json:"icon,omitempty"`
	Accent       string         `json:"accent,omitempty"`
	BalanceCents *int64         `json:"balanceCents,omitempty"`

	// Extra holds unrecognized metadata keys, preserved verbatim.
	Extra map[string]any `json:"extra,omitempty"`
}

// EdgeInput is one flow of a Payload.
type EdgeInput struct {
	ClientID       string `json:"clientId"`
	SourceClientID string `json:"sourceClientId"`
	TargetClientID string `json:"targetClientId"`
	RuleClientID   string `json:"ruleClientId,omitempty"`
	Tag            string `json:"tag,omitempty"`
	AmountCents    *int64 `json:"amountCents,omitempty"`
}

// RuleInput is one rule of a Payload.
type RuleInput struct {
	ClientID            string            `json:"clientId"`
	SourceClientID      string            `json:"sourceClientId"`
	Trigger             graph.Trigger     `json:"trigger"`
	TriggerNodeClientID string            `json:"triggerNodeClientId,omitempty"`
	Allocations         []AllocationInput `json:"allocations"`
}

// AllocationInput is one allocation of a RuleInput.
type AllocationInput struct {
	ClientID       string  `json:"clientId,omitempty"`
	TargetClientID string  `json:"targetClientId"`
	Percentage     float64 `json:"percentage"`
}

// PayloadFromSnapshot converts a graph into a Payload whose client ids are
// the graph's ids. It is the inverse of Snapshot and is used both to save a
// client graph and to copy one workspace's graph into another.
func PayloadFromSnapshot(s graph.Snapshot) Payload {
	p := Payload{
		Nodes: make([]NodeInput, 0, len(s.Nodes)),
		Edges: make([]EdgeInput, 0, len(s.Flows)),
		Rules: make([]RuleInput, 0, len(s.Rules)),
	}
	for _, n := range s.Nodes {
		p.Nodes = append(p.Nodes, nodeInput(n))
	}
	for _, f := range s.Flows {
		e := EdgeInput{
			ClientID:       f.ID,
			SourceClientID: f.SourceID,
			TargetClientID: f.TargetID,
			RuleClientID:   f.RuleID,
			Tag:            f.Tag,
		}
		if f.AmountCents != nil {
			v := *f.AmountCents
			e.AmountCents = &v
		}
		p.Edges = append(p.Edges, e)
	}
	for _, r := range s.Rules {
		ri := RuleInput{
			ClientID:            r.ID,
			SourceClientID:      r.SourceNodeID,
			Trigger:             r.Trigger,
			TriggerNodeClientID: r.TriggerNodeID,
			Allocations:         make([]AllocationInput, 0, len(r.Allocations)),
		}
		for _, a := range r.Allocations {
			ri.Allocations = append(ri.Allocations, AllocationInput{
				ClientID:       a.ID,
				TargetClientID: a.TargetNodeID,
				Percentage:     a.Percentage,
			})
		}
		p.Rules = append(p.Rules, ri)
	}
	return p
}

func nodeInput(n graph.Node) NodeInput {
	n = n.Clone()
	meta := NodeMeta{
		Position:   n.Position,
		Inflow:     n.Inflow,
		ReturnRate: n.ReturnRate,
		PodType:    n.PodType,
		Icon:       n.Icon,
		Accent:     n.Accent,
		Extra:      n.Extra,
	}
	if n.Balance != nil {
		cents := graph.BalanceToCents(*n.Balance)
		meta.BalanceCents = &cents
	}
	return NodeInput{
		ClientID:       n.ID,
		Kind:           n.Kind,
		Category:       n.Category,
		Label:          n.Label,
		ParentClientID: n.ParentID,
		Meta:           meta,
	}
}
