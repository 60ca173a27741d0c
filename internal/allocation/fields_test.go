package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moneymap/internal/graph"
)

func TestField_DirtyEditSurvivesSync(t *testing.T) {
	var f Field
	f.Reset("100")

	f.Edit("12")
	f.Sync("500")

	assert.Equal(t, "12", f.Value())
	assert.Equal(t, "500", f.Synced())
	assert.True(t, f.Dirty())

	f.Reset("500")
	assert.Equal(t, "500", f.Value())
	assert.False(t, f.Dirty())

	f.Sync("600")
	assert.Equal(t, "600", f.Value())
}

func balanceGraph() graph.Snapshot {
	s := graph.Empty()
	bal := 100.0
	s.Nodes = []graph.Node{
		{ID: "acct", Kind: graph.KindAccount, Label: "Checking", Balance: &bal},
		{ID: "pay", Kind: graph.KindIncome, Label: "Paycheck"},
	}
	return s
}

func TestFields_OutsideUpdateDoesNotClobberTyping(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("acct"))
	assert.Equal(t, "100", ed.Balance.Value())

	ed.Balance.Edit("12")
	require.NoError(t, c.UpdateNode("acct", func(n *graph.Node) {
		v := 500.0
		n.Balance = &v
	}))
	ed.Refresh()

	assert.Equal(t, "12", ed.Balance.Value())
	assert.Equal(t, "500", ed.Balance.Synced())

	require.NoError(t, ed.CommitBalance())
	n, _ := c.Node("acct")
	require.NotNil(t, n.Balance)
	assert.Equal(t, 12.0, *n.Balance)
	assert.False(t, ed.Balance.Dirty())
}

func TestFields_InvalidNumberBlocksCommit(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("acct"))
	entries := c.HistoryLen()

	ed.Balance.Edit("a lot")
	err := ed.CommitBalance()

	assert.True(t, graph.HasCode(err, graph.ErrCodeInvalidNumber))
	assert.Equal(t, "balance must be a number", ed.Balance.Error())
	assert.True(t, ed.Balance.Dirty())
	assert.Equal(t, entries, c.HistoryLen())
}

func TestFields_ReopenOnOtherNodeDiscardsEdits(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("acct"))
	ed.Balance.Edit("77")

	require.NoError(t, ed.Open("acct"))
	assert.Equal(t, "77", ed.Balance.Value(), "same node keeps the edit")

	require.NoError(t, ed.Open("pay"))
	assert.Equal(t, "", ed.Balance.Value())
	assert.False(t, ed.Balance.Dirty())
}

func TestFields_IncomeAmountCadenceAndRate(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("pay"))

	ed.Amount.Edit("$1,000")
	require.NoError(t, ed.CommitAmount())
	n, _ := c.Node("pay")
	require.NotNil(t, n.Inflow)
	assert.Equal(t, graph.Inflow{Amount: 1000, Cadence: graph.CadenceMonthly}, *n.Inflow)
	assert.Equal(t, "1000", ed.Amount.Value())
	assert.Equal(t, "monthly", ed.Cadence.Value())

	ed.Cadence.Edit("Weekly")
	require.NoError(t, ed.CommitCadence())
	n, _ = c.Node("pay")
	assert.Equal(t, graph.CadenceWeekly, n.Inflow.Cadence)

	ed.Cadence.Edit("yearly")
	assert.Error(t, ed.CommitCadence())
	assert.NotEmpty(t, ed.Cadence.Error())

	require.NoError(t, ed.Open("acct"))
	ed.ReturnRate.Edit("4%")
	require.NoError(t, ed.CommitReturnRate())
	n, _ = c.Node("acct")
	require.NotNil(t, n.ReturnRate)
	assert.Equal(t, 0.04, *n.ReturnRate)
	assert.Equal(t, "4", ed.ReturnRate.Value())

	ed.ReturnRate.Edit("")
	require.NoError(t, ed.CommitReturnRate())
	n, _ = c.Node("acct")
	assert.Nil(t, n.ReturnRate)
}

func TestCommitFields_JoinsErrors(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("acct"))

	ed.Balance.Edit("x")
	ed.ReturnRate.Edit("5")
	err := ed.CommitFields()

	require.Error(t, err)
	n, _ := c.Node("acct")
	require.NotNil(t, n.ReturnRate)
	assert.Equal(t, 0.05, *n.ReturnRate)
	assert.True(t, ed.Balance.Dirty())
}

func TestFields_ReturnRateShowsDefault(t *testing.T) {
	s := graph.Empty()
	s.Nodes = []graph.Node{
		{ID: "save", Kind: graph.KindAccount, Label: "Savings", Category: "savings"},
		{ID: "trip", Kind: graph.KindPod, Label: "Trip", PodType: graph.PodTypeGoal},
		{ID: "pay", Kind: graph.KindIncome, Label: "Paycheck"},
	}
	c := newCanvas(t, s)
	ed := NewEditor(c)

	require.NoError(t, ed.Open("save"))
	assert.Equal(t, "4", ed.ReturnRate.Value())

	ed.ReturnRate.Edit("2.5")
	require.NoError(t, ed.CommitReturnRate())
	assert.Equal(t, "2.5", ed.ReturnRate.Value())

	ed.ReturnRate.Edit("")
	require.NoError(t, ed.CommitReturnRate())
	n, _ := c.Node("save")
	assert.Nil(t, n.ReturnRate)
	assert.Equal(t, "4", ed.ReturnRate.Value(), "cleared rate falls back to the default")

	require.NoError(t, ed.Open("trip"))
	assert.Equal(t, "4", ed.ReturnRate.Value())

	require.NoError(t, ed.Open("pay"))
	assert.Equal(t, "", ed.ReturnRate.Value())
}

func TestFields_InflowOnlyOnIncome(t *testing.T) {
	c := newCanvas(t, balanceGraph())
	ed := NewEditor(c)
	require.NoError(t, ed.Open("acct"))
	entries := c.HistoryLen()

	ed.Amount.Edit("250")
	assert.ErrorIs(t, ed.CommitAmount(), ErrNotIncome)
	assert.NotEmpty(t, ed.Amount.Error())

	ed.Cadence.Edit("weekly")
	assert.ErrorIs(t, ed.CommitCadence(), ErrNotIncome)

	n, _ := c.Node("acct")
	assert.Nil(t, n.Inflow)
	assert.Equal(t, entries, c.HistoryLen())

	ed.Amount.Edit("")
	assert.NoError(t, ed.CommitAmount())
}
