package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sampleSnapshot() Snapshot {
	return Snapshot{
		Nodes: []Node{
			{ID: "pay", Kind: KindIncome, Label: "Paycheck", Inflow: &Inflow{Amount: 1000, Cadence: CadenceMonthly}, Position: Position{X: 0, Y: 0}},
			{ID: "chk", Kind: KindAccount, Category: "checking", Label: "Checking", Balance: ptr(250.0), Position: Position{X: 280, Y: 0}},
			{ID: "pod", Kind: KindPod, ParentID: "chk", PodType: PodTypeGoal, Label: "Vacation", Position: Position{X: 280, Y: 112}, Extra: map[string]any{"notes": []any{"a"}}},
		},
		Flows: []Flow{
			{ID: "f1", SourceID: "pay", TargetID: "chk", Tag: TagTransfer, AmountCents: ptr(int64(500))},
		},
		Rules: []Rule{
			{ID: "r1", SourceNodeID: "pay", Trigger: TriggerIncoming, TriggerNodeID: "pay", Allocations: []Allocation{{ID: "a1", TargetNodeID: "chk", Percentage: 100}}},
		},
		SelectedIDs: []string{"chk"},
	}
}

func TestSnapshotClone_SharesNoMutableState(t *testing.T) {
	orig := sampleSnapshot()
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Nodes[0].Position.X = 999
	*cp.Nodes[1].Balance = 1
	cp.Nodes[0].Inflow.Amount = 5
	cp.Nodes[2].Extra["notes"].([]any)[0] = "b"
	*cp.Flows[0].AmountCents = 1
	cp.Rules[0].Allocations[0].Percentage = 50
	cp.SelectedIDs[0] = "pay"

	assert.Equal(t, 0.0, orig.Nodes[0].Position.X)
	assert.Equal(t, 250.0, *orig.Nodes[1].Balance)
	assert.Equal(t, 1000.0, orig.Nodes[0].Inflow.Amount)
	assert.Equal(t, "a", orig.Nodes[2].Extra["notes"].([]any)[0])
	assert.Equal(t, int64(500), *orig.Flows[0].AmountCents)
	assert.Equal(t, 100.0, orig.Rules[0].Allocations[0].Percentage)
	assert.Equal(t, []string{"chk"}, orig.SelectedIDs)
}

func TestEmpty_NonNilCollections(t *testing.T) {
	s := Empty()
	assert.NotNil(t, s.Nodes)
	assert.NotNil(t, s.Flows)
	assert.NotNil(t, s.Rules)
	assert.NotNil(t, s.SelectedIDs)
}

func TestValidateAllocations(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		allocs []Allocation
		code   ValidationCode
	}{
		{"income exactly 100", KindIncome, []Allocation{{TargetNodeID: "a", Percentage: 60}, {TargetNodeID: "b", Percentage: 40}}, ""},
		{"income thirds", KindIncome, []Allocation{{TargetNodeID: "a", Percentage: 33.333}, {TargetNodeID: "b", Percentage: 33.333}, {TargetNodeID: "c", Percentage: 33.334}}, ""},
		{"income within tolerance", KindIncome, []Allocation{{TargetNodeID: "a", Percentage: 99.9995}}, ""},
		{"income short", KindIncome, []Allocation{{TargetNodeID: "a", Percentage: 99}}, ErrCodeAllocationSum},
		{"income empty", KindIncome, nil, ErrCodeAllocationSum},
		{"account partial", KindAccount, []Allocation{{TargetNodeID: "a", Percentage: 60}}, ""},
		{"account empty", KindAccount, nil, ""},
		{"pod over", KindPod, []Allocation{{TargetNodeID: "a", Percentage: 60}, {TargetNodeID: "b", Percentage: 40.5}}, ErrCodeAllocationSum},
		{"income over", KindIncome, []Allocation{{TargetNodeID: "a", Percentage: 100}, {TargetNodeID: "b", Percentage: 1}}, ErrCodeAllocationSum},
		{"missing target", KindAccount, []Allocation{{Percentage: 10}}, ErrCodeAllocationTarget},
		{"zero without target", KindAccount, []Allocation{{Percentage: 0}}, ""},
		{"negative", KindAccount, []Allocation{{TargetNodeID: "a", Percentage: -1}}, ErrCodeAllocationRange},
		{"above 100", KindAccount, []Allocation{{TargetNodeID: "a", Percentage: 101}}, ErrCodeAllocationRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAllocations(tt.kind, tt.allocs)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestValidateTarget(t *testing.T) {
	s := sampleSnapshot()
	nodes := IndexNodes(s.Nodes)

	assert.NoError(t, ValidateTarget(nodes, nodes["pay"], "chk"))
	assert.True(t, HasCode(ValidateTarget(nodes, nodes["pay"], "pay"), ErrCodeIllegalTarget))
	assert.True(t, HasCode(ValidateTarget(nodes, nodes["pod"], "chk"), ErrCodeIllegalTarget))
	assert.True(t, HasCode(ValidateTarget(nodes, nodes["chk"], "pod"), ErrCodeIllegalTarget))
	assert.True(t, HasCode(ValidateTarget(nodes, nodes["chk"], "nope"), ErrCodeUnknownNode))
	assert.NoError(t, ValidateTarget(nodes, nodes["pod"], "pay"))
}

func TestLegalTargets(t *testing.T) {
	s := sampleSnapshot()
	legal := LegalTargets(s.Nodes, IndexNodes(s.Nodes)["chk"])

	ids := make([]string, 0, len(legal))
	for _, n := range legal {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"pay"}, ids)
}

func TestValidateRule(t *testing.T) {
	s := sampleSnapshot()
	nodes := IndexNodes(s.Nodes)

	assert.NoError(t, ValidateRule(nodes, s.Rules[0]))

	dup := Rule{ID: "r", SourceNodeID: "chk", Allocations: []Allocation{
		{TargetNodeID: "pay", Percentage: 10},
		{TargetNodeID: "pay", Percentage: 10},
	}}
	assert.True(t, HasCode(ValidateRule(nodes, dup), ErrCodeAllocationTarget))

	missing := Rule{ID: "r", SourceNodeID: "ghost"}
	assert.True(t, HasCode(ValidateRule(nodes, missing), ErrCodeUnknownNode))

	over := Rule{ID: "r", SourceNodeID: "chk", Allocations: []Allocation{{TargetNodeID: "pay", Percentage: 150}}}
	err := ValidateRule(nodes, over)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "chk", ve.NodeID)
}

func TestValidateStructure(t *testing.T) {
	assert.NoError(t, ValidateStructure(sampleSnapshot()))

	s := sampleSnapshot()
	s.Nodes[2].ParentID = "missing"
	s.Flows = append(s.Flows, Flow{ID: "f2", SourceID: "pay", TargetID: "gone"})
	s.Rules = append(s.Rules, Rule{ID: "r2", SourceNodeID: "pay", Allocations: []Allocation{{TargetNodeID: "chk", Percentage: 100}}})

	err := ValidateStructure(s)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidParent))
	assert.Contains(t, err.Error(), string(ErrCodeUnknownNode))
	assert.Contains(t, err.Error(), string(ErrCodeDuplicateRule))
}

func TestValidateStructure_PodParentKind(t *testing.T) {
	s := Snapshot{Nodes: []Node{
		{ID: "inc", Kind: KindIncome, Label: "Salary"},
		{ID: "p", Kind: KindPod, ParentID: "inc", Label: "Pod"},
	}}
	assert.True(t, HasCode(ValidateStructure(s), ErrCodeInvalidParent))
}

func TestDefaultReturnRate(t *testing.T) {
	assert.Equal(t, 0.10, DefaultReturnRate(Node{Kind: KindAccount, Category: "brokerage"}))
	assert.Equal(t, 0.04, DefaultReturnRate(Node{Kind: KindAccount, Category: "Savings"}))
	assert.Equal(t, 0.04, DefaultReturnRate(Node{Kind: KindPod, PodType: PodTypeGoal}))
	assert.Equal(t, 0.0, DefaultReturnRate(Node{Kind: KindPod, PodType: PodTypeEnvelope}))
	assert.Equal(t, 0.0, DefaultReturnRate(Node{Kind: KindIncome}))
	assert.Equal(t, 0.07, EffectiveReturnRate(Node{Kind: KindAccount, Category: "brokerage", ReturnRate: ptr(0.07)}))
}

func TestSnap(t *testing.T) {
	assert.Equal(t, 28.0, Snap(20, 28))
	assert.Equal(t, 0.0, Snap(13, 28))
	assert.Equal(t, 56.0, Snap(42, 28))
	assert.Equal(t, -28.0, Snap(-20, 28))
	assert.Equal(t, 13.5, Snap(13.5, 0))
	assert.Equal(t, Position{X: 28, Y: 56}, SnapPosition(Position{X: 30, Y: 50}, 28))
}

func TestRectIntersects(t *testing.T) {
	card := CardRect(Position{X: 100, Y: 100}, 220, 84)

	assert.True(t, RectFromCorners(Position{X: 0, Y: 0}, Position{X: 150, Y: 150}).Intersects(card))
	assert.True(t, RectFromCorners(Position{X: 400, Y: 300}, Position{X: 320, Y: 184}).Intersects(card), "touching corner counts")
	assert.False(t, RectFromCorners(Position{X: 0, Y: 0}, Position{X: 99, Y: 99}).Intersects(card))
	assert.False(t, RectFromCorners(Position{X: 321, Y: 0}, Position{X: 500, Y: 500}).Intersects(card))
}

func TestSignature_OrderIndependent(t *testing.T) {
	a := []Allocation{{ID: "1", TargetNodeID: "x", Percentage: 60}, {ID: "2", TargetNodeID: "y", Percentage: 40}}
	b := []Allocation{{ID: "9", TargetNodeID: "y", Percentage: 40.0000001}, {ID: "8", TargetNodeID: "x", Percentage: 60}}

	assert.Equal(t, Signature(TriggerIncoming, "n", a), Signature(TriggerIncoming, "n", b))
	assert.NotEqual(t, Signature(TriggerIncoming, "n", a), Signature(TriggerScheduled, "n", a))
	assert.NotEqual(t, Signature(TriggerIncoming, "n", a), Signature(TriggerIncoming, "m", a))

	c := []Allocation{{TargetNodeID: "x", Percentage: 61}, {TargetNodeID: "y", Percentage: 39}}
	assert.NotEqual(t, Signature(TriggerIncoming, "n", a), Signature(TriggerIncoming, "n", c))

	withBlank := append([]Allocation{{ID: "blank"}}, a...)
	assert.Equal(t, Signature(TriggerIncoming, "n", a), Signature(TriggerIncoming, "n", withBlank))
}

func TestMarshalCanonical(t *testing.T) {
	out, err := marshalCanonical(map[string]any{"b": int64(1), "a": []any{"<x>", true}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["<x>",true],"b":1}`, string(out))

	_, err = marshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err)
}

func TestAnalyzeCycles(t *testing.T) {
	s := Snapshot{
		Nodes: []Node{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}, {ID: "d", Label: "D"}},
		Flows: []Flow{{SourceID: "a", TargetID: "b"}, {SourceID: "c", TargetID: "d"}},
		Rules: []Rule{{SourceNodeID: "b", Allocations: []Allocation{{TargetNodeID: "a", Percentage: 10}}}},
	}

	warnings := AnalyzeCycles(s)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "A → B → A")

	assert.Empty(t, AnalyzeCycles(Snapshot{Flows: []Flow{{SourceID: "a", TargetID: "b"}}}))
	assert.Empty(t, AnalyzeCycles(Empty()))

	self := AnalyzeCycles(Snapshot{Flows: []Flow{{SourceID: "a", TargetID: "a"}}})
	require.Len(t, self, 1)
	assert.Contains(t, self[0].Message, "itself")
}

func TestRemap(t *testing.T) {
	s := sampleSnapshot()
	m := IDMaps{
		Nodes: map[string]string{"pay": "N1", "chk": "N2", "pod": "N3"},
		Flows: map[string]string{"f1": "F1"},
		Rules: map[string]string{"r1": "R1"},
	}
	s.Flows[0].RuleID = "r1"

	out := s.Remap(m)
	assert.Equal(t, "N1", out.Nodes[0].ID)
	assert.Equal(t, "N2", out.Nodes[2].ParentID)
	assert.Equal(t, Flow{ID: "F1", SourceID: "N1", TargetID: "N2", RuleID: "R1", Tag: TagTransfer, AmountCents: ptr(int64(500))}, out.Flows[0])
	assert.Equal(t, "R1", out.Rules[0].ID)
	assert.Equal(t, "N1", out.Rules[0].SourceNodeID)
	assert.Equal(t, "N1", out.Rules[0].TriggerNodeID)
	assert.Equal(t, "N2", out.Rules[0].Allocations[0].TargetNodeID)
	assert.Equal(t, []string{"N2"}, out.SelectedIDs)

	assert.Equal(t, "pay", s.Nodes[0].ID, "input untouched")
}

func TestNormalizeLabelAndSlug(t *testing.T) {
	assert.Equal(t, "Café", NormalizeLabel("  Café "))
	assert.Equal(t, "cafe-fund-2024", Slug("  Café  Fund / 2024 "))
	assert.Equal(t, "hh-1-sandbox", Slug("hh_1 sandbox"))
	assert.Equal(t, "", Slug("---"))
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber("Balance", " $1,250.50 ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1250.5, *v)

	v, err = ParseNumber("Balance", "  ")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseNumber("Balance", "12abc")
	assert.True(t, HasCode(err, ErrCodeInvalidNumber))
}

func TestBalanceCents(t *testing.T) {
	assert.Equal(t, int64(1001), BalanceToCents(10.005))
	assert.Equal(t, int64(-1001), BalanceToCents(-10.005))
	assert.Equal(t, int64(12345), BalanceToCents(123.45))
	assert.Equal(t, 123.45, CentsToBalance(12345))
	assert.Equal(t, -0.01, CentsToBalance(-1))
}

func TestKinds_Valid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), k)
	}
	assert.Len(t, Kinds, 5)
	assert.False(t, Kind("bucket").Valid())
	assert.False(t, Kind("").Valid())
}
