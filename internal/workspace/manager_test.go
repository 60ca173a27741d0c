package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/moneymap/internal/events"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/metrics"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/testutil"
)

type fixture struct {
	store    *store.Store
	manager  *Manager
	recorder *events.Recorder
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ids := testutil.NewSequentialIDs()
	s, err := store.Open(filepath.Join(t.TempDir(), "moneymap.db"),
		store.WithIDGenerator(func() string { return ids.Next("row") }),
		store.WithClock(testutil.NewStepClock().Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.Subscribe(events.TopicWorkspace, rec.Handle)

	core, logs := observer.New(zap.DebugLevel)
	clock := testutil.NewStepClock()
	base := []Option{
		WithPublisher(bus),
		WithMetrics(metrics.NewCollector(prometheus.NewRegistry())),
		WithLogger(zap.New(core)),
		WithClock(clock.Now),
		WithRequestIDs(func() string { return ids.Next("req") }),
	}
	return &fixture{
		store:    s,
		manager:  NewManager(s, append(base, opts...)...),
		recorder: rec,
		logs:     logs,
	}
}

func sampleGraph() graph.Snapshot {
	s := graph.Empty()
	s.Nodes = []graph.Node{
		{ID: "pay", Kind: graph.KindIncome, Label: "Paycheck", Inflow: &graph.Inflow{Amount: 1000, Cadence: graph.CadenceMonthly}},
		{ID: "check", Kind: graph.KindAccount, Label: "Checking", Position: graph.Position{X: 280}},
	}
	s.Rules = []graph.Rule{{
		ID: "rule", SourceNodeID: "pay", Trigger: graph.TriggerIncoming, TriggerNodeID: "pay",
		Allocations: []graph.Allocation{{ID: "a1", TargetNodeID: "check", Percentage: 100}},
	}}
	s.Flows = []graph.Flow{{ID: "f1", SourceID: "pay", TargetID: "check", RuleID: "rule", Tag: graph.TagAllocation}}
	return s
}

func labels(s graph.Snapshot) []string {
	out := []string{}
	for _, n := range s.Nodes {
		out = append(out, n.Label)
	}
	return out
}

func actions(evs []events.Event) []string {
	out := []string{}
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestEnsurePair_CreatesBothOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p1, err := f.manager.EnsurePair(ctx, "Household 1")
	require.NoError(t, err)
	assert.Equal(t, store.VariantLive, p1.Live.Variant)
	assert.Equal(t, store.VariantSandbox, p1.Sandbox.Variant)
	assert.Equal(t, "household-1-live", p1.Live.Slug)
	assert.Equal(t, "household-1-sandbox", p1.Sandbox.Slug)

	p2, err := f.manager.EnsurePair(ctx, "Household 1")
	require.NoError(t, err)
	assert.Equal(t, p1.Live.ID, p2.Live.ID)
	assert.Equal(t, p1.Sandbox.ID, p2.Sandbox.ID)
}

func TestLoad_FreshHouseholdIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap, ws, err := f.manager.Load(ctx, "h1", store.VariantSandbox)
	require.NoError(t, err)
	assert.Equal(t, graph.Empty(), snap)
	assert.Equal(t, store.VariantSandbox, ws.Variant)

	_, err = f.manager.Pair(ctx, "h1")
	assert.NoError(t, err, "load creates the pair")

	_, _, err = f.manager.Load(ctx, "h1", "draft")
	assert.ErrorIs(t, err, ErrInvalidVariant)
}

func TestVariantOps_RequirePair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ResetSandbox(ctx, "nobody", "alice")
	assert.ErrorIs(t, err, ErrNoPair)
	_, err = f.manager.ApplySandbox(ctx, "nobody", "alice")
	assert.ErrorIs(t, err, ErrNoPair)

	ws, err := f.store.Workspaces(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ws, "failed operations create nothing")
	assert.NotEmpty(t, f.logs.FilterMessage("workspace operation failed").All())
}

func TestPublish_ReturnsPersistedGraph(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.manager.Publish(ctx, "h1", store.VariantLive, "alice", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, res.IDMaps.Nodes, 2)
	assert.Equal(t, []string{"Paycheck", "Checking"}, labels(res.Snapshot))
	assert.Equal(t, res.IDMaps.Nodes["pay"], res.Snapshot.Rules[0].SourceNodeID)
	assert.Equal(t, res.Snapshot.Rules[0].ID, res.Snapshot.Flows[0].RuleID)

	assert.Equal(t, []string{"publish"}, actions(f.recorder.Events()))

	_, err = f.manager.Publish(ctx, "h1", "draft", "alice", store.Payload{})
	assert.ErrorIs(t, err, ErrInvalidVariant)
}

func TestResetSandbox_CopiesLive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Publish(ctx, "h1", store.VariantLive, "alice", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)
	_, err = f.manager.SubmitChangeRequest(ctx, "h1", "bob", store.Payload{
		Nodes: []store.NodeInput{{ClientID: "x", Kind: graph.KindGoal, Label: "Scratch"}},
	})
	require.NoError(t, err)

	res, err := f.manager.ResetSandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusReset, res.Status)
	assert.False(t, res.At.IsZero())

	sandbox, _, err := f.manager.Load(ctx, "h1", store.VariantSandbox)
	require.NoError(t, err)
	live, _, err := f.manager.Load(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Equal(t, labels(live), labels(sandbox))
	assert.NotEqual(t, live.Nodes[0].ID, sandbox.Nodes[0].ID)
	require.Len(t, sandbox.Rules, 1)
	assert.Equal(t, sandbox.Nodes[0].ID, sandbox.Rules[0].SourceNodeID)

	p, err := f.manager.Pair(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, p.Sandbox.LastSyncedAt)
	assert.True(t, p.Sandbox.LastSyncedAt.Equal(res.At))
	// Reset discards sessions and diffs but not the pending marker.
	diffs, err := f.manager.Diffs(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, diffs)
	sessions, err := f.store.Sessions(ctx, p.Sandbox.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.Equal(t, []string{"publish", "request", "reset"}, actions(f.recorder.Events()))
}

func TestResetSandbox_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.Publish(ctx, "h1", store.VariantLive, "alice", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)

	_, err = f.manager.ResetSandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	first, _, err := f.manager.Load(ctx, "h1", store.VariantSandbox)
	require.NoError(t, err)

	_, err = f.manager.ResetSandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	second, _, err := f.manager.Load(ctx, "h1", store.VariantSandbox)
	require.NoError(t, err)

	assert.Equal(t, labels(first), labels(second))
	assert.Equal(t, len(first.Flows), len(second.Flows))

	audit, err := f.manager.AuditEvents(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, audit, 3, "every reset is logged")
}

func TestSubmitChangeRequest_ThenApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cr, err := f.manager.SubmitChangeRequest(ctx, "h1", "bob", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)
	assert.Equal(t, "req-1", cr.RequestID)
	assert.NotEmpty(t, cr.SessionID)

	p, err := f.manager.Pair(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", p.Sandbox.PendingRequestID)
	diffs, err := f.manager.Diffs(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "req-1", diffs[0].RequestID)

	live, _, err := f.manager.Load(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Empty(t, live.Nodes, "request does not touch live")

	res, err := f.manager.ApplySandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	live, _, err = f.manager.Load(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paycheck", "Checking"}, labels(live))

	p, err = f.manager.Pair(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "", p.Sandbox.PendingRequestID)
	require.NotNil(t, p.Live.LastAppliedAt)
	require.NotNil(t, p.Sandbox.LastAppliedAt)
	assert.True(t, p.Live.LastAppliedAt.Equal(res.At))
	assert.True(t, p.Sandbox.LastAppliedAt.Equal(res.At))

	diffs, err = f.manager.Diffs(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, diffs)

	evs := f.recorder.Events()
	assert.Equal(t, []string{"request", "apply"}, actions(evs))
	assert.Equal(t, p.Live.ID, evs[1].WorkspaceID)
	assert.Equal(t, "alice", evs[1].ActorID)
}

func TestApplySandbox_ApprovalGate(t *testing.T) {
	ctx := context.Background()
	var seen ApprovalRequest
	f := newFixture(t, WithApprovalGate(ApprovalFunc(func(_ context.Context, req ApprovalRequest) (bool, error) {
		seen = req
		return len(req.Sandbox.Nodes) > 0, nil
	})))

	_, err := f.manager.Publish(ctx, "h1", store.VariantSandbox, "bob", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)

	_, err = f.manager.ApplySandbox(ctx, "h1", "alice")
	assert.ErrorIs(t, err, ErrApprovalRequired)
	assert.Equal(t, "alice", seen.ActorID)
	assert.Len(t, seen.Sandbox.Nodes, 2)

	live, _, err := f.manager.Load(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Empty(t, live.Nodes)
	p, err := f.manager.Pair(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, p.Live.LastAppliedAt)
	assert.Equal(t, []string{"publish"}, actions(f.recorder.Events()))
}

func TestApplySandbox_GateError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("reviewer service down")
	f := newFixture(t, WithApprovalGate(ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) {
		return false, boom
	})))
	_, err := f.manager.EnsurePair(ctx, "h1")
	require.NoError(t, err)

	_, err = f.manager.ApplySandbox(ctx, "h1", "alice")
	assert.ErrorIs(t, err, boom)
}

func TestDeleteWorkspace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.SubmitChangeRequest(ctx, "h1", "bob", store.PayloadFromSnapshot(sampleGraph()))
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.DeleteWorkspace(ctx, "h1", store.VariantLive, "alice"), ErrLiveDelete)
	assert.ErrorIs(t, f.manager.DeleteWorkspace(ctx, "h1", store.VariantSandbox, "alice"), ErrPendingRequest)

	_, err = f.manager.ResetSandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	_, err = f.manager.ApplySandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	require.NoError(t, f.manager.DeleteWorkspace(ctx, "h1", store.VariantSandbox, "alice"))

	_, err = f.manager.Pair(ctx, "h1")
	assert.ErrorIs(t, err, ErrNoPair)
	assert.ErrorIs(t, f.manager.DeleteWorkspace(ctx, "h1", store.VariantSandbox, "alice"), store.ErrNotFound)

	p, err := f.manager.EnsurePair(ctx, "h1")
	require.NoError(t, err)
	sandbox, err := f.store.Snapshot(ctx, p.Sandbox.ID)
	require.NoError(t, err)
	assert.Empty(t, sandbox.Nodes)
}

func TestDeleteHousehold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.EnsurePair(ctx, "h1")
	require.NoError(t, err)

	n, err := f.manager.DeleteHousehold(ctx, "h1", "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ws, err := f.store.Workspaces(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, ws)

	audit, err := f.manager.AuditEvents(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, audit, 2, "audit log outlives the workspaces")
}

func TestPublish_EventFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	require.NoError(t, bus.Close())
	f := newFixture(t, WithPublisher(bus))

	_, err := f.manager.Publish(ctx, "h1", store.VariantLive, "alice", store.Payload{})
	require.NoError(t, err)
	assert.Len(t, f.logs.FilterMessage("publish audit event failed").All(), 1)
}

func TestResultTimestampsUseClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return fixed }))
	_, err := f.manager.EnsurePair(ctx, "h1")
	require.NoError(t, err)

	res, err := f.manager.ResetSandbox(ctx, "h1", "alice")
	require.NoError(t, err)
	assert.Equal(t, fixed, res.At)
}
