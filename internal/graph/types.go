package graph

// Kind is the closed set of node kinds.
type Kind string

const (
	KindIncome    Kind = "income"
	KindAccount   Kind = "account"
	KindPod       Kind = "pod"
	KindGoal      Kind = "goal"
	KindLiability Kind = "liability"
)

// Kinds lists every node kind in display order.
var Kinds = []Kind{KindIncome, KindAccount, KindPod, KindGoal, KindLiability}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// PodType is the subtype of a pod node.
type PodType string

const (
	PodTypeGoal     PodType = "goal"
	PodTypeCategory PodType = "category"
	PodTypeEnvelope PodType = "envelope"
	PodTypeCustom   PodType = "custom"
)

// Cadence is how often an income node pays out.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly || c == CadenceMonthly
}

// Trigger is what fires a rule.
type Trigger string

const (
	TriggerIncoming  Trigger = "incoming"
	TriggerScheduled Trigger = "scheduled"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	return t == TriggerIncoming || t == TriggerScheduled
}

// Position is a canvas coordinate. Committed positions are grid-snapped.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Inflow is the recurring amount an income node produces.
type Inflow struct {
	Amount  float64 `json:"amount"`
	Cadence Cadence `json:"cadence"`
}

// Node is one vertex in the money graph.
//
// Balance, Inflow and ReturnRate are pointers because absence means "unset",
// which is distinct from zero.
type Node struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	Category   string   `json:"category,omitempty"`
	ParentID   string   `json:"parentId,omitempty"`
	PodType    PodType  `json:"podType,omitempty"`
	Label      string   `json:"label"`
	Icon       string   `json:"icon,omitempty"`
	Accent     string   `json:"accent,omitempty"`
	Balance    *float64 `json:"balance,omitempty"`
	Inflow     *Inflow  `json:"inflow,omitempty"`
	ReturnRate *float64 `json:"returnRate,omitempty"`
	Position   Position `json:"position"`

	// Extra carries metadata keys this package does not interpret so they
	// survive a load/save round trip.
	Extra map[string]any `json:"extra,omitempty"`
}

// Flow is a directed edge between two nodes. A flow with a RuleID is owned by
// that rule and is created and deleted as its allocations change.
type Flow struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	TargetID    string `json:"targetId"`
	RuleID      string `json:"ruleId,omitempty"`
	Tag         string `json:"tag,omitempty"`
	AmountCents *int64 `json:"amountCents,omitempty"`
}

// RuleOwned reports whether the flow exists because of a rule allocation.
func (f Flow) RuleOwned() bool {
	return f.RuleID != ""
}

// Default flow tags.
const (
	TagTransfer   = "transfer"
	TagAllocation = "allocation"
)

// Allocation sends a percentage of a rule's source funds to a target node.
type Allocation struct {
	ID           string  `json:"id"`
	TargetNodeID string  `json:"targetNodeId"`
	Percentage   float64 `json:"percentage"`
}

// Rule distributes its source node's funds across allocations when its
// trigger fires. At most one rule exists per source node.
type Rule struct {
	ID            string       `json:"id"`
	SourceNodeID  string       `json:"sourceNodeId"`
	Trigger       Trigger      `json:"trigger"`
	TriggerNodeID string       `json:"triggerNodeId"`
	Allocations   []Allocation `json:"allocations"`
}

// EffectiveTriggerNode returns TriggerNodeID, defaulting to the rule's source.
func (r Rule) EffectiveTriggerNode() string {
	if r.TriggerNodeID == "" {
		return r.SourceNodeID
	}
	return r.TriggerNodeID
}

// Snapshot is the complete state of one editing session: the unit of
// undo/redo and of save/load.
type Snapshot struct {
	Nodes       []Node   `json:"nodes"`
	Flows       []Flow   `json:"flows"`
	Rules       []Rule   `json:"rules"`
	SelectedIDs []string `json:"selectedIds"`
}

// Empty returns a snapshot with non-nil, empty collections.
func Empty() Snapshot {
	return Snapshot{
		Nodes:       []Node{},
		Flows:       []Flow{},
		Rules:       []Rule{},
		SelectedIDs: []string{},
	}
}

// IDMaps maps caller-supplied ids to persisted ids, per entity.
type IDMaps struct {
	Nodes map[string]string `json:"nodes"`
	Flows map[string]string `json:"flows"`
	Rules map[string]string `json:"rules"`
}

// NewIDMaps returns IDMaps with allocated maps.
func NewIDMaps() IDMaps {
	return IDMaps{
		Nodes: make(map[string]string),
		Flows: make(map[string]string),
		Rules: make(map[string]string),
	}
}
