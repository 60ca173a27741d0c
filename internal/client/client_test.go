package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/canvas"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/testutil"
	"github.com/roach88/moneymap/internal/workspace"
)

var _ canvas.Backend = (*Client)(nil)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := api.NewServer(&api.Config{
		Manager:  workspace.NewManager(s),
		Gatherer: prometheus.NewRegistry(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := newServer(t)
	c := New(ts.URL, WithActor("alice"), WithVariant(store.VariantSandbox))

	opts := canvas.DefaultOptions()
	opts.NewID = testutil.NewSequentialIDs().Next
	editor := canvas.NewEditor(opts)
	session := canvas.NewSession(editor, c, nil)

	require.NoError(t, session.Load(ctx, "h1"))
	pay, err := editor.AddNode(graph.Node{Kind: graph.KindIncome, Label: "Paycheck"})
	require.NoError(t, err)
	check, err := editor.AddNode(graph.Node{Kind: graph.KindAccount, Label: "Checking"})
	require.NoError(t, err)
	_, err = editor.SaveRule(graph.Rule{
		SourceNodeID: pay.ID,
		Allocations:  []graph.Allocation{{TargetNodeID: check.ID, Percentage: 100}},
	})
	require.NoError(t, err)

	maps, err := session.Save(ctx)
	require.NoError(t, err)
	require.Len(t, maps.Nodes, 2)

	// A fresh session sees the persisted graph.
	other := canvas.NewSession(canvas.NewEditor(canvas.DefaultOptions()), c, nil)
	require.NoError(t, other.Load(ctx, "h1"))
	nodes := other.Editor().Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, maps.Nodes[pay.ID], nodes[0].ID)
	require.Len(t, other.Editor().Flows(), 1)
	assert.True(t, other.Editor().Flows()[0].RuleOwned())

	// Live is untouched until apply.
	live, err := c.Graph(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Empty(t, live.Graph.Nodes)

	res, err := c.ApplySandbox(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, workspace.StatusApplied, res.Status)

	live, err = c.Graph(ctx, "h1", store.VariantLive)
	require.NoError(t, err)
	assert.Len(t, live.Graph.Nodes, 2)

	evs, err := c.AuditEvents(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "alice", evs[0].ActorID)
}

func TestClient_ErrorsUnwrapToSentinels(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t).URL)

	_, err := c.ResetSandbox(ctx, "nobody")
	assert.ErrorIs(t, err, workspace.ErrNoPair)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, api.CodeNoPair, apiErr.Code)

	_, err = c.Graph(ctx, "h1", "draft")
	assert.ErrorIs(t, err, workspace.ErrInvalidVariant)
}

func TestClient_ValidationRejected(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t).URL)

	s := graph.Empty()
	s.Nodes = []graph.Node{{ID: "a", Kind: graph.KindAccount, Label: "A"}}
	s.Rules = []graph.Rule{{SourceNodeID: "a", Allocations: []graph.Allocation{{TargetNodeID: "a", Percentage: 10}}}}

	_, err := c.Save(ctx, "h1", s)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestClient_LoadFailureFallsBackToEmptyCanvas(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	opts := canvas.DefaultOptions()
	opts.NewID = testutil.NewSequentialIDs().Next
	editor := canvas.NewEditor(opts)
	_, err := editor.AddNode(graph.Node{Kind: graph.KindGoal, Label: "Stale"})
	require.NoError(t, err)

	session := canvas.NewSession(editor, New(ts.URL), nil)
	err = session.Load(context.Background(), "h1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Empty(t, editor.Nodes())
}

func TestClient_DeleteWorkspaces(t *testing.T) {
	ctx := context.Background()
	c := New(newServer(t).URL, WithActor("alice"))

	_, err := c.Graph(ctx, "h1", store.VariantLive)
	require.NoError(t, err)

	err = c.DeleteWorkspace(ctx, "h1", store.VariantLive)
	assert.ErrorIs(t, err, workspace.ErrLiveDelete)

	require.NoError(t, c.DeleteWorkspace(ctx, "h1", store.VariantSandbox))

	diffs, err := c.Diffs(ctx, "h1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, diffs)

	n, err := c.DeleteHousehold(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
