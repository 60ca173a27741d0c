package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/events"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/metrics"
	"github.com/roach88/moneymap/internal/store"
)

// Operation names, used for metrics and logs.
const (
	OpEnsure  = "ensure"
	OpLoad    = "load"
	OpReset   = "reset"
	OpApply   = "apply"
	OpPublish = "publish"
	OpRequest = "request"
	OpDelete  = "delete"
)

// Status values reported in Result.
const (
	StatusReset   = "reset"
	StatusApplied = "applied"
)

// Pair is a household's two workspaces.
type Pair struct {
	Live    store.Workspace `json:"live"`
	Sandbox store.Workspace `json:"sandbox"`
}

// Result reports a completed reset or apply.
type Result struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// PublishResult reports a completed publish.
type PublishResult struct {
	Workspace store.Workspace `json:"workspace"`
	IDMaps    graph.IDMaps    `json:"idMaps"`
	Skipped   int             `json:"skipped"`
	Snapshot  graph.Snapshot  `json:"snapshot"`
}

// ChangeRequest reports a submitted change request.
type ChangeRequest struct {
	RequestID string         `json:"requestId"`
	SessionID string         `json:"sessionId"`
	IDMaps    graph.IDMaps   `json:"idMaps"`
	Skipped   int            `json:"skipped"`
	Snapshot  graph.Snapshot `json:"snapshot"`
}

// Manager runs variant operations against a Store.
type Manager struct {
	store     *store.Store
	publisher events.Publisher
	gate      ApprovalGate
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets where audit events are published after commit.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithApprovalGate sets the gate consulted by ApplySandbox.
func WithApprovalGate(g ApprovalGate) Option {
	return func(m *Manager) { m.gate = g }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now for stamps.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) { m.now = fn }
}

// WithRequestIDs overrides how change request ids are generated.
func WithRequestIDs(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates a Manager. Defaults: no publishing, NoApproval, no
// metrics, a no-op logger.
func NewManager(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		publisher: events.Nop{},
		gate:      NoApproval{},
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// txn is one operation's transaction plus the audit events it produced.
type txn struct {
	*store.Tx
	m      *Manager
	events []store.AuditEvent
}

func (t *txn) audit(ctx context.Context, ws store.Workspace, actorID string, action store.AuditAction, detail map[string]any) error {
	ev, err := t.AppendAudit(ctx, store.AuditEvent{
		HouseholdID: ws.HouseholdID,
		WorkspaceID: ws.ID,
		ActorID:     actorID,
		Action:      action,
		Detail:      detail,
	})
	if err != nil {
		return err
	}
	t.events = append(t.events, ev)
	return nil
}

// run executes fn in one transaction, then publishes the audit events it
// appended and records the operation.
func (m *Manager) run(ctx context.Context, op, householdID string, fn func(t *txn) error) error {
	start := time.Now()
	t := &txn{m: m}
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		t.Tx = tx
		return fn(t)
	})
	m.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		m.logger.Warn("workspace operation failed",
			zap.String("operation", op),
			zap.String("household_id", householdID),
			zap.Error(err))
		return err
	}

	for _, ev := range t.events {
		if perr := m.publisher.Publish(ctx, events.TopicWorkspace, toEvent(ev)); perr != nil {
			m.logger.Error("publish audit event failed",
				zap.String("event_id", ev.ID),
				zap.String("action", string(ev.Action)),
				zap.Error(perr))
		}
	}
	m.logger.Info("workspace operation",
		zap.String("operation", op),
		zap.String("household_id", householdID),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func toEvent(ev store.AuditEvent) events.Event {
	return events.Event{
		ID:          ev.ID,
		Seq:         ev.Seq,
		Type:        string(ev.Action),
		HouseholdID: ev.HouseholdID,
		WorkspaceID: ev.WorkspaceID,
		ActorID:     ev.ActorID,
		Timestamp:   ev.CreatedAt,
		Data:        ev.Detail,
	}
}

func slugFor(householdID string, v store.Variant) string {
	base := graph.Slug(householdID)
	if base == "" {
		base = "household"
	}
	return base + "-" + string(v)
}

// pair returns the household's workspaces, or ErrNoPair if either is
// missing.
func (t *txn) pair(ctx context.Context, householdID string) (Pair, error) {
	ws, err := t.Workspaces(ctx, householdID)
	if err != nil {
		return Pair{}, err
	}
	var (
		p                Pair
		hasLive, hasSand bool
	)
	for _, w := range ws {
		switch w.Variant {
		case store.VariantLive:
			p.Live, hasLive = w, true
		case store.VariantSandbox:
			p.Sandbox, hasSand = w, true
		}
	}
	if !hasLive || !hasSand {
		return Pair{}, fmt.Errorf("household %q: %w", householdID, ErrNoPair)
	}
	return p, nil
}

// ensurePair creates whichever workspace of the pair is missing.
func (t *txn) ensurePair(ctx context.Context, householdID string) (Pair, error) {
	p, err := t.pair(ctx, householdID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNoPair) {
		return Pair{}, err
	}
	for _, v := range []store.Variant{store.VariantLive, store.VariantSandbox} {
		_, err := t.Workspace(ctx, householdID, v)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return Pair{}, err
		}
		if _, err := t.CreateWorkspace(ctx, householdID, v, slugFor(householdID, v)); err != nil {
			return Pair{}, err
		}
	}
	return t.pair(ctx, householdID)
}

// copyGraph overwrites dst's graph with src's.
func (t *txn) copyGraph(ctx context.Context, src, dst store.Workspace) (store.ReplaceResult, graph.Snapshot, error) {
	snap, err := t.Snapshot(ctx, src.ID)
	if err != nil {
		return store.ReplaceResult{}, graph.Snapshot{}, err
	}
	res, err := t.Replace(ctx, dst.ID, store.PayloadFromSnapshot(snap))
	if err != nil {
		return store.ReplaceResult{}, graph.Snapshot{}, err
	}
	t.m.metrics.RecordReplace(string(dst.Variant), len(snap.Nodes), res.Skipped)
	return res, snap, nil
}

func graphDetail(s graph.Snapshot, skipped int) map[string]any {
	return map[string]any{
		"nodes":   len(s.Nodes),
		"edges":   len(s.Flows),
		"rules":   len(s.Rules),
		"skipped": skipped,
	}
}

// EnsurePair returns the household's live and sandbox workspaces, creating
// them if needed.
func (m *Manager) EnsurePair(ctx context.Context, householdID string) (Pair, error) {
	var p Pair
	err := m.run(ctx, OpEnsure, householdID, func(t *txn) error {
		var err error
		p, err = t.ensurePair(ctx, householdID)
		return err
	})
	return p, err
}

// Pair returns the household's workspaces without creating them.
func (m *Manager) Pair(ctx context.Context, householdID string) (Pair, error) {
	var p Pair
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		p, err = (&txn{Tx: tx, m: m}).pair(ctx, householdID)
		return err
	})
	return p, err
}

// Load returns the graph of one variant, creating the pair on first use.
// A fresh household loads as an empty graph.
func (m *Manager) Load(ctx context.Context, householdID string, v store.Variant) (graph.Snapshot, store.Workspace, error) {
	if !v.Valid() {
		return graph.Snapshot{}, store.Workspace{}, fmt.Errorf("load %q: %w", v, ErrInvalidVariant)
	}
	var (
		snap graph.Snapshot
		ws   store.Workspace
	)
	err := m.run(ctx, OpLoad, householdID, func(t *txn) error {
		p, err := t.ensurePair(ctx, householdID)
		if err != nil {
			return err
		}
		ws = p.Live
		if v == store.VariantSandbox {
			ws = p.Sandbox
		}
		snap, err = t.Snapshot(ctx, ws.ID)
		return err
	})
	return snap, ws, err
}

// ResetSandbox overwrites the sandbox with live's graph, discards the
// sandbox's sessions and diffs, and stamps lastSyncedAt.
func (m *Manager) ResetSandbox(ctx context.Context, householdID, actorID string) (Result, error) {
	var res Result
	err := m.run(ctx, OpReset, householdID, func(t *txn) error {
		p, err := t.pair(ctx, householdID)
		if err != nil {
			return err
		}
		rep, snap, err := t.copyGraph(ctx, p.Live, p.Sandbox)
		if err != nil {
			return err
		}
		if _, err := t.ClearSessions(ctx, p.Sandbox.ID); err != nil {
			return err
		}
		if _, err := t.ClearDiffs(ctx, p.Sandbox.ID); err != nil {
			return err
		}

		now := m.now().UTC()
		if err := t.MarkSynced(ctx, p.Sandbox.ID, now); err != nil {
			return err
		}
		res = Result{Status: StatusReset, At: now}
		return t.audit(ctx, p.Sandbox, actorID, store.ActionReset, graphDetail(snap, rep.Skipped))
	})
	return res, err
}

// ApplySandbox promotes the sandbox graph to live. The approval gate is
// consulted first; if it requires approval nothing changes and
// ErrApprovalRequired is returned. Otherwise live's sessions and the
// sandbox's diffs and pending request are cleared and both workspaces are
// stamped lastAppliedAt.
func (m *Manager) ApplySandbox(ctx context.Context, householdID, actorID string) (Result, error) {
	var res Result
	err := m.run(ctx, OpApply, householdID, func(t *txn) error {
		p, err := t.pair(ctx, householdID)
		if err != nil {
			return err
		}

		live, err := t.Snapshot(ctx, p.Live.ID)
		if err != nil {
			return err
		}
		sandbox, err := t.Snapshot(ctx, p.Sandbox.ID)
		if err != nil {
			return err
		}
		hold, err := m.gate.RequiresApproval(ctx, ApprovalRequest{
			HouseholdID: householdID,
			ActorID:     actorID,
			Live:        live,
			Sandbox:     sandbox,
		})
		if err != nil {
			return fmt.Errorf("approval check: %w", err)
		}
		if hold {
			return ErrApprovalRequired
		}

		rep, err := t.Replace(ctx, p.Live.ID, store.PayloadFromSnapshot(sandbox))
		if err != nil {
			return err
		}
		m.metrics.RecordReplace(string(store.VariantLive), len(sandbox.Nodes), rep.Skipped)

		if _, err := t.ClearSessions(ctx, p.Live.ID); err != nil {
			return err
		}
		if _, err := t.ClearDiffs(ctx, p.Sandbox.ID); err != nil {
			return err
		}
		if err := t.SetPendingRequest(ctx, p.Sandbox.ID, ""); err != nil {
			return err
		}

		now := m.now().UTC()
		for _, id := range []string{p.Live.ID, p.Sandbox.ID} {
			if err := t.MarkApplied(ctx, id, now); err != nil {
				return err
			}
		}
		res = Result{Status: StatusApplied, At: now}
		return t.audit(ctx, p.Live, actorID, store.ActionApply, graphDetail(sandbox, rep.Skipped))
	})
	return res, err
}

// Publish replaces one variant's graph with p, creating the pair on first
// use. It returns the id maps and the graph as persisted.
func (m *Manager) Publish(ctx context.Context, householdID string, v store.Variant, actorID string, p store.Payload) (PublishResult, error) {
	if !v.Valid() {
		return PublishResult{}, fmt.Errorf("publish %q: %w", v, ErrInvalidVariant)
	}
	var out PublishResult
	err := m.run(ctx, OpPublish, householdID, func(t *txn) error {
		pair, err := t.ensurePair(ctx, householdID)
		if err != nil {
			return err
		}
		ws := pair.Live
		if v == store.VariantSandbox {
			ws = pair.Sandbox
		}

		rep, err := t.Replace(ctx, ws.ID, p)
		if err != nil {
			return err
		}
		snap, err := t.Snapshot(ctx, ws.ID)
		if err != nil {
			return err
		}
		m.metrics.RecordReplace(string(v), len(snap.Nodes), rep.Skipped)

		out = PublishResult{Workspace: ws, IDMaps: rep.IDMaps, Skipped: rep.Skipped, Snapshot: snap}
		return t.audit(ctx, ws, actorID, store.ActionPublish, graphDetail(snap, rep.Skipped))
	})
	return out, err
}

// SubmitChangeRequest writes p to the sandbox and records it as a change
// request awaiting review: a session, a diff carrying the payload, and the
// sandbox's pending request id.
func (m *Manager) SubmitChangeRequest(ctx context.Context, householdID, actorID string, p store.Payload) (ChangeRequest, error) {
	var out ChangeRequest
	err := m.run(ctx, OpRequest, householdID, func(t *txn) error {
		pair, err := t.ensurePair(ctx, householdID)
		if err != nil {
			return err
		}
		rep, err := t.Replace(ctx, pair.Sandbox.ID, p)
		if err != nil {
			return err
		}
		snap, err := t.Snapshot(ctx, pair.Sandbox.ID)
		if err != nil {
			return err
		}
		m.metrics.RecordReplace(string(store.VariantSandbox), len(snap.Nodes), rep.Skipped)

		sess, err := t.CreateSession(ctx, pair.Sandbox.ID, actorID, "submitted")
		if err != nil {
			return err
		}
		requestID := m.newID()
		if _, err := t.InsertDiff(ctx, pair.Sandbox.ID, sess.ID, requestID, p); err != nil {
			return err
		}
		if err := t.SetPendingRequest(ctx, pair.Sandbox.ID, requestID); err != nil {
			return err
		}

		out = ChangeRequest{
			RequestID: requestID,
			SessionID: sess.ID,
			IDMaps:    rep.IDMaps,
			Skipped:   rep.Skipped,
			Snapshot:  snap,
		}
		detail := graphDetail(snap, rep.Skipped)
		detail["requestId"] = requestID
		return t.audit(ctx, pair.Sandbox, actorID, store.ActionRequest, detail)
	})
	return out, err
}

// DeleteWorkspace deletes the household's sandbox. Live cannot be deleted
// and a sandbox with a pending change request is kept until the request is
// applied or reset. The next EnsurePair recreates the sandbox empty.
func (m *Manager) DeleteWorkspace(ctx context.Context, householdID string, v store.Variant, actorID string) error {
	if !v.Valid() {
		return fmt.Errorf("delete %q: %w", v, ErrInvalidVariant)
	}
	if v == store.VariantLive {
		return ErrLiveDelete
	}
	return m.run(ctx, OpDelete, householdID, func(t *txn) error {
		ws, err := t.Workspace(ctx, householdID, v)
		if err != nil {
			return err
		}
		if ws.PendingRequestID != "" {
			return fmt.Errorf("delete %s: %w", ws.Slug, ErrPendingRequest)
		}
		if err := t.DeleteWorkspace(ctx, ws.ID); err != nil {
			return err
		}
		return t.audit(ctx, ws, actorID, store.ActionDelete, map[string]any{"variant": string(v)})
	})
}

// DeleteHousehold deletes every workspace of the household, live included,
// and returns how many were removed. The audit log is kept.
func (m *Manager) DeleteHousehold(ctx context.Context, householdID, actorID string) (int, error) {
	var n int
	err := m.run(ctx, OpDelete, householdID, func(t *txn) error {
		ws, err := t.Workspaces(ctx, householdID)
		if err != nil {
			return err
		}
		for _, w := range ws {
			if err := t.DeleteWorkspace(ctx, w.ID); err != nil {
				return err
			}
			if err := t.audit(ctx, w, actorID, store.ActionDelete, map[string]any{"variant": string(w.Variant)}); err != nil {
				return err
			}
		}
		n = len(ws)
		return nil
	})
	return n, err
}

// AuditEvents returns the household's audit log in order.
func (m *Manager) AuditEvents(ctx context.Context, householdID string) ([]store.AuditEvent, error) {
	return m.store.AuditEvents(ctx, householdID)
}

// Diffs returns the pending change diffs of the household's sandbox.
func (m *Manager) Diffs(ctx context.Context, householdID string) ([]store.Diff, error) {
	ws, err := m.store.Workspace(ctx, householdID, store.VariantSandbox)
	if err != nil {
		return nil, err
	}
	return m.store.Diffs(ctx, ws.ID)
}
