package allocation

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/roach88/moneymap/internal/graph"
)

// ErrNoFocus is returned by operations that need an open node.
var ErrNoFocus = errors.New("no node open")

// Canvas is the part of the canvas editor the rule editor needs.
// *canvas.Editor satisfies it.
type Canvas interface {
	Node(id string) (graph.Node, bool)
	Nodes() []graph.Node
	OutboundTargets(nodeID string) []string
	Rule(sourceNodeID string) (graph.Rule, bool)
	SaveRule(rule graph.Rule) (graph.Rule, error)
	UpdateNode(id string, fn func(*graph.Node)) error
}

// Draft is one editable allocation row.
type Draft struct {
	ID           string
	TargetNodeID string
	Percentage   float64
}

// Editor edits the rule and numeric fields of one node.
type Editor struct {
	canvas Canvas

	nodeID        string
	trigger       graph.Trigger
	triggerNodeID string
	drafts        []Draft

	persisted    graph.Rule
	hasPersisted bool
	persistedSig string
	committed    graph.Rule // drafts as of the last seed or commit
	edgeTargets  map[string]bool

	validation error

	Balance    Field
	Amount     Field
	Cadence    Field
	ReturnRate Field
}

// NewEditor creates a closed Editor over c.
func NewEditor(c Canvas) *Editor {
	return &Editor{canvas: c}
}

// NodeID returns the open node, or "".
func (e *Editor) NodeID() string { return e.nodeID }

// Open focuses nodeID. Reopening the node that is already open keeps local
// field edits and only resynchronizes; opening a different node starts
// fresh.
func (e *Editor) Open(nodeID string) error {
	node, ok := e.canvas.Node(nodeID)
	if !ok {
		return fmt.Errorf("open %q: unknown node", nodeID)
	}
	if nodeID == e.nodeID {
		e.Refresh()
		return nil
	}
	e.nodeID = nodeID
	e.seed()
	e.resetFields(node)
	return nil
}

// Close drops the focused node and every local edit.
func (e *Editor) Close() {
	*e = Editor{canvas: e.canvas}
}

// Refresh resynchronizes with the canvas after an outside change such as
// undo, redo or a flow being drawn. If the node is gone the editor closes.
// A persisted rule that changed underneath reseeds the drafts; otherwise
// only the target set is synced.
func (e *Editor) Refresh() {
	if e.nodeID == "" {
		return
	}
	node, ok := e.canvas.Node(e.nodeID)
	if !ok {
		e.Close()
		return
	}
	rule, has := e.canvas.Rule(e.nodeID)
	if has != e.hasPersisted || ruleSignature(rule) != e.persistedSig {
		e.seed()
	} else {
		e.SyncTargets()
	}
	e.syncFields(node)
}

// Remap follows a save that replaced client ids with persisted ones. The
// open node, draft targets and the persisted rule are renamed; drafts and
// field text are kept. Wire it to canvas.Editor.OnIDsRemapped.
func (e *Editor) Remap(m graph.IDMaps) {
	if e.nodeID == "" {
		return
	}
	e.nodeID = m.Node(e.nodeID)
	e.triggerNodeID = m.Node(e.triggerNodeID)
	for i := range e.drafts {
		e.drafts[i].TargetNodeID = m.Node(e.drafts[i].TargetNodeID)
	}
	edgeTargets := make(map[string]bool, len(e.edgeTargets))
	for t := range e.edgeTargets {
		edgeTargets[m.Node(t)] = true
	}
	e.edgeTargets = edgeTargets

	if e.hasPersisted {
		e.persisted = e.persisted.Remap(m)
		e.persistedSig = ruleSignature(e.persisted)
	}
	e.committed = e.committed.Remap(m)
	e.revalidate()
}

func (e *Editor) seed() {
	rule, has := e.canvas.Rule(e.nodeID)
	e.persisted, e.hasPersisted = rule, has
	e.persistedSig = ruleSignature(rule)

	e.trigger = graph.TriggerIncoming
	e.triggerNodeID = e.nodeID
	if has {
		e.trigger = rule.Trigger
		e.triggerNodeID = rule.EffectiveTriggerNode()
	}

	existing := make(map[string]graph.Allocation, len(rule.Allocations))
	for _, a := range rule.Allocations {
		existing[a.TargetNodeID] = a
	}

	targets := e.canvas.OutboundTargets(e.nodeID)
	e.edgeTargets = make(map[string]bool, len(targets))
	e.drafts = make([]Draft, 0, len(targets)+len(rule.Allocations))
	for _, t := range targets {
		e.edgeTargets[t] = true
		d := Draft{TargetNodeID: t}
		if a, ok := existing[t]; ok {
			d.ID = a.ID
			d.Percentage = a.Percentage
		}
		e.drafts = append(e.drafts, d)
	}
	// Allocations whose flow is gone stay editable.
	for _, a := range rule.Allocations {
		if !e.edgeTargets[a.TargetNodeID] {
			e.drafts = append(e.drafts, Draft{ID: a.ID, TargetNodeID: a.TargetNodeID, Percentage: a.Percentage})
		}
	}

	e.committed = e.rule()
	e.revalidate()
}

// SyncTargets reconciles the drafts with the node's current outbound
// targets: new targets get a 0% draft, and drafts for targets whose flow
// disappeared are removed unless the persisted rule still allocates to
// them. Other drafts and their unsaved percentages are left alone.
func (e *Editor) SyncTargets() {
	if e.nodeID == "" {
		return
	}
	targets := e.canvas.OutboundTargets(e.nodeID)
	current := make(map[string]bool, len(targets))
	for _, t := range targets {
		current[t] = true
	}

	persisted := make(map[string]bool, len(e.persisted.Allocations))
	for _, a := range e.persisted.Allocations {
		persisted[a.TargetNodeID] = true
	}

	kept := make([]Draft, 0, len(e.drafts)+len(targets))
	have := make(map[string]bool, len(e.drafts))
	for _, d := range e.drafts {
		if d.TargetNodeID != "" && e.edgeTargets[d.TargetNodeID] && !current[d.TargetNodeID] && !persisted[d.TargetNodeID] {
			continue
		}
		kept = append(kept, d)
		if d.TargetNodeID != "" {
			have[d.TargetNodeID] = true
		}
	}
	for _, t := range targets {
		if !have[t] {
			kept = append(kept, Draft{TargetNodeID: t})
			have[t] = true
		}
	}

	e.drafts = kept
	e.edgeTargets = current
	e.revalidate()
}

// Drafts returns a copy of the allocation rows.
func (e *Editor) Drafts() []Draft {
	out := make([]Draft, len(e.drafts))
	copy(out, e.drafts)
	return out
}

// Trigger returns the draft trigger and its node.
func (e *Editor) Trigger() (graph.Trigger, string) {
	return e.trigger, e.triggerNodeID
}

// SetTrigger changes the draft trigger. An empty node means the source.
func (e *Editor) SetTrigger(t graph.Trigger, nodeID string) error {
	if !t.Valid() {
		return fmt.Errorf("invalid trigger %q", t)
	}
	if nodeID == "" {
		nodeID = e.nodeID
	}
	e.trigger = t
	e.triggerNodeID = nodeID
	e.revalidate()
	return nil
}

// AddDraft appends an empty row and returns its index.
func (e *Editor) AddDraft() int {
	e.drafts = append(e.drafts, Draft{})
	e.revalidate()
	return len(e.drafts) - 1
}

// RemoveDraft deletes row i.
func (e *Editor) RemoveDraft(i int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.drafts = append(e.drafts[:i:i], e.drafts[i+1:]...)
	e.revalidate()
	return nil
}

// SetTarget points row i at targetID.
func (e *Editor) SetTarget(i int, targetID string) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.drafts[i].TargetNodeID = targetID
	e.revalidate()
	return nil
}

// SetPercentage sets row i's percentage.
func (e *Editor) SetPercentage(i int, pct float64) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.drafts[i].Percentage = pct
	e.revalidate()
	return nil
}

// SetPercentageText parses user input into row i's percentage. Empty text
// means 0. A trailing percent sign is allowed.
func (e *Editor) SetPercentageText(i int, text string) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	v, err := graph.ParseNumber("percentage", trimPercent(text))
	if err != nil {
		return err
	}
	pct := 0.0
	if v != nil {
		pct = *v
	}
	return e.SetPercentage(i, pct)
}

// Validate returns the inline error message for the current drafts, or ""
// when they may be committed.
func (e *Editor) Validate() string {
	if e.validation == nil {
		return ""
	}
	var ve *graph.ValidationError
	if errors.As(e.validation, &ve) {
		return ve.Message
	}
	return e.validation.Error()
}

// Err returns the validation error for the current drafts.
func (e *Editor) Err() error {
	return e.validation
}

// Pending reports whether the drafts differ from what was last committed.
func (e *Editor) Pending() bool {
	return e.nodeID != "" && e.signature() != signatureOf(e.committed)
}

// Commit saves the drafts as the node's rule when they are valid and their
// signature differs from the last committed one. It reports whether a save
// happened. Invalid drafts return the validation error and save nothing.
func (e *Editor) Commit() (bool, error) {
	if e.nodeID == "" {
		return false, ErrNoFocus
	}
	e.revalidate()
	if e.validation != nil {
		return false, e.validation
	}
	draft := e.rule()
	if signatureOf(draft) == signatureOf(e.committed) {
		return false, nil
	}

	saved, err := e.canvas.SaveRule(draft)
	if err != nil {
		return false, err
	}

	ids := make(map[string]string, len(saved.Allocations))
	for _, a := range saved.Allocations {
		ids[a.TargetNodeID] = a.ID
	}
	for i := range e.drafts {
		if id, ok := ids[e.drafts[i].TargetNodeID]; ok {
			e.drafts[i].ID = id
		}
	}

	e.persisted, e.hasPersisted = e.canvas.Rule(e.nodeID)
	e.persistedSig = ruleSignature(e.persisted)
	e.committed = draft
	e.edgeTargets = make(map[string]bool)
	for _, t := range e.canvas.OutboundTargets(e.nodeID) {
		e.edgeTargets[t] = true
	}
	return true, nil
}

func (e *Editor) rule() graph.Rule {
	r := graph.Rule{
		ID:            e.persisted.ID,
		SourceNodeID:  e.nodeID,
		Trigger:       e.trigger,
		TriggerNodeID: e.triggerNodeID,
		Allocations:   make([]graph.Allocation, 0, len(e.drafts)),
	}
	for _, d := range e.drafts {
		if d.TargetNodeID == "" && d.Percentage == 0 {
			continue
		}
		r.Allocations = append(r.Allocations, graph.Allocation{
			ID:           d.ID,
			TargetNodeID: d.TargetNodeID,
			Percentage:   d.Percentage,
		})
	}
	return r
}

func (e *Editor) signature() string {
	return signatureOf(e.rule())
}

func signatureOf(r graph.Rule) string {
	return graph.Signature(r.Trigger, r.EffectiveTriggerNode(), r.Allocations)
}

func (e *Editor) revalidate() {
	if e.nodeID == "" {
		e.validation = nil
		return
	}
	e.validation = graph.ValidateRule(graph.IndexNodes(e.canvas.Nodes()), e.rule())
}

func (e *Editor) checkIndex(i int) error {
	if e.nodeID == "" {
		return ErrNoFocus
	}
	if i < 0 || i >= len(e.drafts) {
		return fmt.Errorf("draft %d out of range", i)
	}
	return nil
}

// ruleSignature is the signature of a persisted rule, or "" when there is
// none.
func ruleSignature(r graph.Rule) string {
	if r.SourceNodeID == "" {
		return ""
	}
	return signatureOf(r)
}

func trimPercent(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '%' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// percentOf renders a fractional rate as a percentage, e.g. 0.04 -> "4".
func percentOf(rate *float64) string {
	if rate == nil {
		return ""
	}
	return decimal.NewFromFloat(*rate).Shift(2).String()
}

// rateFromPercent converts percentage text to a fractional rate.
func rateFromPercent(pct float64) float64 {
	return decimal.NewFromFloat(pct).Shift(-2).InexactFloat64()
}
