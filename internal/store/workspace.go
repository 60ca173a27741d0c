package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Variant distinguishes a household's two workspaces.
type Variant string

const (
	VariantLive    Variant = "live"
	VariantSandbox Variant = "sandbox"
)

// Valid reports whether v is live or sandbox.
func (v Variant) Valid() bool {
	return v == VariantLive || v == VariantSandbox
}

// Workspace is one graph container of a household.
type Workspace struct {
	ID               string     `json:"id"`
	HouseholdID      string     `json:"householdId"`
	Variant          Variant    `json:"variant"`
	Slug             string     `json:"slug"`
	PendingRequestID string     `json:"pendingRequestId,omitempty"`
	LastSyncedAt     *time.Time `json:"lastSyncedAt,omitempty"`
	LastAppliedAt    *time.Time `json:"lastAppliedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Session is an editing session recorded against a workspace.
type Session struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	ActorID     string    `json:"actorId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Diff is a pending change recorded against a workspace.
type Diff struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	SessionID   string    `json:"sessionId,omitempty"`
	RequestID   string    `json:"requestId,omitempty"`
	Payload     Payload   `json:"payload"`
	CreatedAt   time.Time `json:"createdAt"`
}

const workspaceColumns = `id, household_id, variant, slug, pending_request_id,
	last_synced_at, last_applied_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (Workspace, error) {
	var (
		w                  Workspace
		variant            string
		pending            sql.NullString
		synced, applied    sql.NullString
		created, updatedAt string
	)
	if err := row.Scan(&w.ID, &w.HouseholdID, &variant, &w.Slug, &pending,
		&synced, &applied, &created, &updatedAt); err != nil {
		return Workspace{}, err
	}
	w.Variant = Variant(variant)
	w.PendingRequestID = pending.String

	var err error
	if w.LastSyncedAt, err = parseNullTime(synced); err != nil {
		return Workspace{}, err
	}
	if w.LastAppliedAt, err = parseNullTime(applied); err != nil {
		return Workspace{}, err
	}
	if w.CreatedAt, err = parseTime(created); err != nil {
		return Workspace{}, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Workspace{}, err
	}
	return w, nil
}

func (t *Tx) workspaceByID(ctx context.Context, id string) (Workspace, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id)
	w, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, fmt.Errorf("workspace %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("read workspace %q: %w", id, err)
	}
	return w, nil
}

// Workspace returns the household's workspace of the given variant, or
// ErrNotFound.
func (t *Tx) Workspace(ctx context.Context, householdID string, v Variant) (Workspace, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM workspaces
		WHERE household_id = ? AND variant = ?
	`, householdID, string(v))
	w, err := scanWorkspace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{}, fmt.Errorf("%s workspace of %q: %w", v, householdID, ErrNotFound)
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("read %s workspace of %q: %w", v, householdID, err)
	}
	return w, nil
}

// Workspaces returns the household's workspaces, live first.
// Returns an empty slice (not nil) if there are none.
func (t *Tx) Workspaces(ctx context.Context, householdID string) ([]Workspace, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM workspaces
		WHERE household_id = ?
		ORDER BY variant ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	out := []Workspace{}
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return out, nil
}

// CreateWorkspace inserts an empty workspace.
func (t *Tx) CreateWorkspace(ctx context.Context, householdID string, v Variant, slug string) (Workspace, error) {
	if !v.Valid() {
		return Workspace{}, fmt.Errorf("create workspace: invalid variant %q", v)
	}
	now := t.now()
	w := Workspace{
		ID:          t.s.newID(),
		HouseholdID: householdID,
		Variant:     v,
		Slug:        slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, household_id, variant, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.ID, w.HouseholdID, string(w.Variant), w.Slug, formatTime(now), formatTime(now))
	if err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return w, nil
}

// DeleteWorkspace removes a workspace and, by cascade, its graph, sessions
// and diffs. Audit events are kept.
func (t *Tx) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete workspace: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete workspace %q: %w", id, ErrNotFound)
	}
	return nil
}

// MarkSynced stamps last_synced_at.
func (t *Tx) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return t.stamp(ctx, id, "last_synced_at", at)
}

// MarkApplied stamps last_applied_at.
func (t *Tx) MarkApplied(ctx context.Context, id string, at time.Time) error {
	return t.stamp(ctx, id, "last_applied_at", at)
}

func (t *Tx) stamp(ctx context.Context, id, column string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE workspaces SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(t.now()), id)
	if err != nil {
		return fmt.Errorf("stamp %s: %w", column, err)
	}
	return nil
}

// SetPendingRequest records the change request awaiting review. An empty
// requestID clears it.
func (t *Tx) SetPendingRequest(ctx context.Context, id, requestID string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE workspaces SET pending_request_id = ?, updated_at = ? WHERE id = ?`,
		nullString(requestID), formatTime(t.now()), id)
	if err != nil {
		return fmt.Errorf("set pending request: %w", err)
	}
	return nil
}

// CreateSession records an editing session.
func (t *Tx) CreateSession(ctx context.Context, workspaceID, actorID, status string) (Session, error) {
	s := Session{
		ID:          t.s.newID(),
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Status:      status,
		CreatedAt:   t.now(),
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO workspace_sessions (id, workspace_id, actor_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.WorkspaceID, s.ActorID, s.Status, formatTime(s.CreatedAt))
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// ClearSessions deletes the workspace's sessions and returns how many.
func (t *Tx) ClearSessions(ctx context.Context, workspaceID string) (int64, error) {
	return t.clear(ctx, "workspace_sessions", workspaceID)
}

// ClearDiffs deletes the workspace's diffs and returns how many.
func (t *Tx) ClearDiffs(ctx context.Context, workspaceID string) (int64, error) {
	return t.clear(ctx, "workspace_diffs", workspaceID)
}

func (t *Tx) clear(ctx context.Context, table, workspaceID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", workspaceID)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear %s: rows affected: %w", table, err)
	}
	return n, nil
}

// InsertDiff records a pending change.
func (t *Tx) InsertDiff(ctx context.Context, workspaceID, sessionID, requestID string, p Payload) (Diff, error) {
	data, err := marshalPayload(p)
	if err != nil {
		return Diff{}, fmt.Errorf("insert diff: %w", err)
	}
	d := Diff{
		ID:          t.s.newID(),
		WorkspaceID: workspaceID,
		SessionID:   sessionID,
		RequestID:   requestID,
		Payload:     p,
		CreatedAt:   t.now(),
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO workspace_diffs (id, workspace_id, session_id, request_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.WorkspaceID, nullString(sessionID), nullString(requestID), data, formatTime(d.CreatedAt))
	if err != nil {
		return Diff{}, fmt.Errorf("insert diff: %w", err)
	}
	return d, nil
}

// Sessions returns the workspace's sessions in creation order.
func (s *Store) Sessions(ctx context.Context, workspaceID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, status, created_at
		FROM workspace_sessions
		WHERE workspace_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var (
			sess    Session
			created string
		)
		if err := rows.Scan(&sess.ID, &sess.WorkspaceID, &sess.ActorID, &sess.Status, &created); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Diffs returns the workspace's diffs in creation order.
func (s *Store) Diffs(ctx context.Context, workspaceID string) ([]Diff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, session_id, request_id, payload, created_at
		FROM workspace_diffs
		WHERE workspace_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	out := []Diff{}
	for rows.Next() {
		var (
			d                  Diff
			session, request   sql.NullString
			payload, createdAt string
		)
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &session, &request, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan diff: %w", err)
		}
		d.SessionID, d.RequestID = session.String, request.String
		if d.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}
	return out, nil
}

// Workspace returns the household's workspace of the given variant.
func (s *Store) Workspace(ctx context.Context, householdID string, v Variant) (Workspace, error) {
	var w Workspace
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		w, err = tx.Workspace(ctx, householdID, v)
		return err
	})
	return w, err
}

// Workspaces returns the household's workspaces, live first.
func (s *Store) Workspaces(ctx context.Context, householdID string) ([]Workspace, error) {
	var ws []Workspace
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		ws, err = tx.Workspaces(ctx, householdID)
		return err
	})
	return ws, err
}
