package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/moneymap/internal/graph"
)

// ReplaceResult reports how a Replace mapped client ids.
type ReplaceResult struct {
	IDMaps graph.IDMaps

	// Skipped counts rows dropped because a reference did not resolve:
	// parent links, rules without a source, allocations without a target
	// and edges without an endpoint.
	Skipped int
}

// Replace overwrites the workspace's graph with p in one transaction.
func (s *Store) Replace(ctx context.Context, workspaceID string, p Payload) (ReplaceResult, error) {
	var res ReplaceResult
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		res, err = tx.Replace(ctx, workspaceID, p)
		return err
	})
	return res, err
}

// Replace deletes every allocation, rule, edge and node of the workspace
// and inserts p in their place:
//
//  1. nodes, recording client id -> persisted id
//  2. parent links, patched once every node has an id
//  3. rules; the trigger node defaults to the rule's source
//  4. allocations, skipping unresolved targets
//  5. edges, skipping unresolved endpoints; an unresolved rule reference
//     leaves the edge manual
//
// References that do not resolve are dropped row by row rather than failing
// the whole replace.
func (t *Tx) Replace(ctx context.Context, workspaceID string, p Payload) (ReplaceResult, error) {
	if _, err := t.workspaceByID(ctx, workspaceID); err != nil {
		return ReplaceResult{}, fmt.Errorf("replace: %w", err)
	}

	for _, table := range []string{"rule_allocations", "rules", "edges", "nodes"} {
		if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", workspaceID); err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: clear %s: %w", table, err)
		}
	}

	res := ReplaceResult{IDMaps: graph.NewIDMaps()}
	nodes := res.IDMaps.Nodes

	for i, n := range p.Nodes {
		meta, err := marshalMetadata(n.Meta)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: node %q: %w", n.ClientID, err)
		}
		id := t.s.newID()
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO nodes (id, workspace_id, kind, category, label, metadata, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, workspaceID, string(n.Kind), n.Category, graph.NormalizeLabel(n.Label), meta, i)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: insert node %q: %w", n.ClientID, err)
		}
		if n.ClientID != "" {
			nodes[n.ClientID] = id
		}
	}

	for _, n := range p.Nodes {
		if n.ParentClientID == "" {
			continue
		}
		id, ok := nodes[n.ClientID]
		parent, pok := nodes[n.ParentClientID]
		if !ok || !pok {
			res.Skipped++
			continue
		}
		if _, err := t.tx.ExecContext(ctx, `UPDATE nodes SET parent_id = ? WHERE id = ?`, parent, id); err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: link parent of %q: %w", n.ClientID, err)
		}
	}

	order := 0
	for i, r := range p.Rules {
		source, ok := nodes[r.SourceClientID]
		if !ok {
			res.Skipped++
			continue
		}
		trigger := source
		if id, ok := nodes[r.TriggerNodeClientID]; ok {
			trigger = id
		}
		kind := r.Trigger
		if kind == "" {
			kind = graph.TriggerIncoming
		}

		ruleID := t.s.newID()
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO rules (id, workspace_id, source_node_id, trigger_type, trigger_node_id, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ruleID, workspaceID, source, string(kind), trigger, i)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: insert rule %q: %w", r.ClientID, err)
		}
		if r.ClientID != "" {
			res.IDMaps.Rules[r.ClientID] = ruleID
		}

		for _, a := range r.Allocations {
			target, ok := nodes[a.TargetClientID]
			if !ok {
				res.Skipped++
				continue
			}
			_, err := t.tx.ExecContext(ctx, `
				INSERT INTO rule_allocations (id, workspace_id, rule_id, target_node_id, percentage, sort_order)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.s.newID(), workspaceID, ruleID, target, a.Percentage, order)
			if err != nil {
				return ReplaceResult{}, fmt.Errorf("replace: insert allocation for rule %q: %w", r.ClientID, err)
			}
			order++
		}
	}

	for i, e := range p.Edges {
		source, sok := nodes[e.SourceClientID]
		target, tok := nodes[e.TargetClientID]
		if !sok || !tok {
			res.Skipped++
			continue
		}
		var ruleID sql.NullString
		if id, ok := res.IDMaps.Rules[e.RuleClientID]; ok {
			ruleID = nullString(id)
		}
		var amount sql.NullInt64
		if e.AmountCents != nil {
			amount = sql.NullInt64{Int64: *e.AmountCents, Valid: true}
		}

		id := t.s.newID()
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO edges (id, workspace_id, source_node_id, target_node_id, rule_id, tag, amount_cents, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, workspaceID, source, target, ruleID, e.Tag, amount, i)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("replace: insert edge %q: %w", e.ClientID, err)
		}
		if e.ClientID != "" {
			res.IDMaps.Flows[e.ClientID] = id
		}
	}

	if _, err := t.tx.ExecContext(ctx, `UPDATE workspaces SET updated_at = ? WHERE id = ?`,
		formatTime(t.now()), workspaceID); err != nil {
		return ReplaceResult{}, fmt.Errorf("replace: touch workspace: %w", err)
	}

	return res, nil
}
