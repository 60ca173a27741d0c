package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/moneymap/internal/graph"
)

// Snapshot reads the workspace's graph. Ids are persisted ids and
// SelectedIDs is empty. Collections are empty slices (not nil) when the
// graph is empty. Returns ErrNotFound if the workspace does not exist.
func (s *Store) Snapshot(ctx context.Context, workspaceID string) (graph.Snapshot, error) {
	var snap graph.Snapshot
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		snap, err = tx.Snapshot(ctx, workspaceID)
		return err
	})
	return snap, err
}

// Snapshot reads the workspace's graph inside the transaction.
func (t *Tx) Snapshot(ctx context.Context, workspaceID string) (graph.Snapshot, error) {
	if _, err := t.workspaceByID(ctx, workspaceID); err != nil {
		return graph.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	nodes, err := t.readNodes(ctx, workspaceID)
	if err != nil {
		return graph.Snapshot{}, err
	}
	flows, err := t.readEdges(ctx, workspaceID)
	if err != nil {
		return graph.Snapshot{}, err
	}
	rules, err := t.readRules(ctx, workspaceID)
	if err != nil {
		return graph.Snapshot{}, err
	}

	return graph.Snapshot{
		Nodes:       nodes,
		Flows:       flows,
		Rules:       rules,
		SelectedIDs: []string{},
	}, nil
}

func (t *Tx) readNodes(ctx context.Context, workspaceID string) ([]graph.Node, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, kind, category, label, parent_id, metadata
		FROM nodes
		WHERE workspace_id = ?
		ORDER BY sort_order ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []graph.Node{}
	for rows.Next() {
		var (
			n        graph.Node
			kind     string
			parentID sql.NullString
			metadata string
		)
		if err := rows.Scan(&n.ID, &kind, &n.Category, &n.Label, &parentID, &metadata); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		meta, err := unmarshalMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		n.Kind = graph.Kind(kind)
		n.ParentID = parentID.String
		applyMeta(&n, meta)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func applyMeta(n *graph.Node, m NodeMeta) {
	n.Position = m.Position
	n.Inflow = m.Inflow
	n.ReturnRate = m.ReturnRate
	n.PodType = m.PodType
	n.Icon = m.Icon
	n.Accent = m.Accent
	n.Extra = m.Extra
	if m.BalanceCents != nil {
		v := graph.CentsToBalance(*m.BalanceCents)
		n.Balance = &v
	}
}

func (t *Tx) readEdges(ctx context.Context, workspaceID string) ([]graph.Flow, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, rule_id, tag, amount_cents
		FROM edges
		WHERE workspace_id = ?
		ORDER BY sort_order ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	flows := []graph.Flow{}
	for rows.Next() {
		var (
			f      graph.Flow
			ruleID sql.NullString
			amount sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.SourceID, &f.TargetID, &ruleID, &f.Tag, &amount); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		f.RuleID = ruleID.String
		if amount.Valid {
			v := amount.Int64
			f.AmountCents = &v
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return flows, nil
}

func (t *Tx) readRules(ctx context.Context, workspaceID string) ([]graph.Rule, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, source_node_id, trigger_type, trigger_node_id
		FROM rules
		WHERE workspace_id = ?
		ORDER BY sort_order ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []graph.Rule{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			r       graph.Rule
			trigger string
		)
		if err := rows.Scan(&r.ID, &r.SourceNodeID, &trigger, &r.TriggerNodeID); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Trigger = graph.Trigger(trigger)
		r.Allocations = []graph.Allocation{}
		index[r.ID] = len(rules)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	rows.Close()

	arows, err := t.tx.QueryContext(ctx, `
		SELECT id, rule_id, target_node_id, percentage
		FROM rule_allocations
		WHERE workspace_id = ?
		ORDER BY sort_order ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var (
			a      graph.Allocation
			ruleID string
		)
		if err := arows.Scan(&a.ID, &ruleID, &a.TargetNodeID, &a.Percentage); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		i, ok := index[ruleID]
		if !ok {
			continue
		}
		rules[i].Allocations = append(rules[i].Allocations, a)
	}
	if err := arows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return rules, nil
}
