package store

import (
	"context"
	"fmt"
	"time"
)

// AuditAction names a recorded workspace operation.
type AuditAction string

const (
	ActionReset   AuditAction = "reset"
	ActionApply   AuditAction = "apply"
	ActionPublish AuditAction = "publish"
	ActionRequest AuditAction = "request"
	ActionDelete  AuditAction = "delete"
)

// AuditEvent is one row of the audit log. Seq is assigned on insert and
// orders events.
type AuditEvent struct {
	Seq         int64          `json:"seq"`
	ID          string         `json:"id"`
	HouseholdID string         `json:"householdId"`
	WorkspaceID string         `json:"workspaceId"`
	ActorID     string         `json:"actorId"`
	Action      AuditAction    `json:"action"`
	Detail      map[string]any `json:"detail"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// AppendAudit inserts ev, filling ID, Seq and CreatedAt.
func (t *Tx) AppendAudit(ctx context.Context, ev AuditEvent) (AuditEvent, error) {
	detail, err := marshalDetail(ev.Detail)
	if err != nil {
		return AuditEvent{}, fmt.Errorf("append audit: %w", err)
	}
	ev.ID = t.s.newID()
	ev.CreatedAt = t.now()
	if ev.Detail == nil {
		ev.Detail = map[string]any{}
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_events (id, household_id, workspace_id, actor_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.HouseholdID, ev.WorkspaceID, ev.ActorID, string(ev.Action), detail, formatTime(ev.CreatedAt))
	if err != nil {
		return AuditEvent{}, fmt.Errorf("append audit: %w", err)
	}
	if ev.Seq, err = res.LastInsertId(); err != nil {
		return AuditEvent{}, fmt.Errorf("append audit: last insert id: %w", err)
	}
	return ev, nil
}

// AuditEvents returns the household's audit log ordered by seq.
// Returns an empty slice (not nil) if there are no events.
func (s *Store) AuditEvents(ctx context.Context, householdID string) ([]AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, household_id, workspace_id, actor_id, action, detail, created_at
		FROM audit_events
		WHERE household_id = ?
		ORDER BY seq ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	out := []AuditEvent{}
	for rows.Next() {
		var (
			ev             AuditEvent
			action, detail string
			createdAt      string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.HouseholdID, &ev.WorkspaceID, &ev.ActorID,
			&action, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = AuditAction(action)
		if ev.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, err
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
