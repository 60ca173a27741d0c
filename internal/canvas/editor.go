package canvas

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/history"
)

// Options configures an Editor.
type Options struct {
	HistoryLimit int
	GridSize     float64
	CardWidth    float64
	CardHeight   float64

	// NewID returns a fresh client id for an entity kind ("node", "flow",
	// "rule", "alloc").
	NewID func(prefix string) string
}

// DefaultOptions returns the standard canvas geometry and uuid-based ids.
func DefaultOptions() Options {
	return Options{
		HistoryLimit: history.DefaultLimit,
		GridSize:     graph.DefaultGridSize,
		CardWidth:    graph.DefaultCardWidth,
		CardHeight:   graph.DefaultCardHeight,
		NewID:        UUIDGenerator,
	}
}

// UUIDGenerator returns prefix-uuid ids.
func UUIDGenerator(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Editor is one in-memory graph editing session.
type Editor struct {
	opts Options

	nodes []graph.Node
	flows []graph.Flow
	rules []graph.Rule

	selection *Selection
	drag      *DragState
	marquee   *Marquee
	composer  Composer
	focusedID string
	revision  int

	history *history.Manager[graph.Snapshot]

	remapListeners map[int]func(graph.IDMaps)
	nextListener   int
}

// NewEditor creates an Editor holding an empty graph.
func NewEditor(opts Options) *Editor {
	defaults := DefaultOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.GridSize < 0 {
		opts.GridSize = 0
	}
	if opts.CardWidth <= 0 {
		opts.CardWidth = defaults.CardWidth
	}
	if opts.CardHeight <= 0 {
		opts.CardHeight = defaults.CardHeight
	}
	if opts.NewID == nil {
		opts.NewID = defaults.NewID
	}

	e := &Editor{
		opts:      opts,
		nodes:     []graph.Node{},
		flows:     []graph.Flow{},
		rules:     []graph.Rule{},
		selection: NewSelection(),
	}
	e.history = history.New(
		e.capture,
		e.restore,
		graph.Snapshot.Clone,
		history.WithLimit(opts.HistoryLimit),
	)
	e.history.OnApply(func(graph.Snapshot) {
		e.revision++
		e.resetTransient()
		if e.focusedID != "" && e.indexOfNode(e.focusedID) < 0 {
			e.focusedID = ""
		}
	})
	e.history.Replace(e.capture())
	return e
}

// Options returns the editor's configuration.
func (e *Editor) Options() Options {
	return e.opts
}

// Load hydrates the editor from s and resets history to that single entry.
func (e *Editor) Load(s graph.Snapshot) {
	e.restore(s.Clone())
	e.resetTransient()
	e.focusedID = ""
	e.revision++
	e.history.Replace(e.capture())
}

// Snapshot returns a deep copy of the current state.
func (e *Editor) Snapshot() graph.Snapshot {
	return e.capture().Clone()
}

func (e *Editor) capture() graph.Snapshot {
	return graph.Snapshot{
		Nodes:       e.nodes,
		Flows:       e.flows,
		Rules:       e.rules,
		SelectedIDs: e.selection.IDs(),
	}
}

func (e *Editor) restore(s graph.Snapshot) {
	e.nodes = nonNil(s.Nodes)
	e.flows = nonNil(s.Flows)
	e.rules = nonNil(s.Rules)
	e.selection.Replace(s.SelectedIDs...)
}

// commit records the current state as one history entry.
func (e *Editor) commit() {
	e.revision++
	e.history.Push()
}

// resetTransient drops every in-progress gesture.
func (e *Editor) resetTransient() {
	e.drag = nil
	e.marquee = nil
	e.composer.Reset()
}

// Undo reverts the last committed mutation. Returns false at the start of
// history.
func (e *Editor) Undo() bool {
	return e.history.Undo()
}

// Redo reapplies the next mutation. Returns false at the end of history.
func (e *Editor) Redo() bool {
	return e.history.Redo()
}

// CanUndo reports whether Undo would do anything.
func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// HistoryLen returns the number of history entries.
func (e *Editor) HistoryLen() int { return e.history.Len() }

// Dirty reports whether there are unsaved changes.
func (e *Editor) Dirty() bool { return e.history.Dirty() }

// MarkSaved clears the unsaved-changes flag.
func (e *Editor) MarkSaved() { e.history.MarkSaved() }

// Revision increases on every committed mutation, undo, redo and load.
func (e *Editor) Revision() int { return e.revision }

// OnSnapshotApplied registers fn to run after every undo or redo, once the
// editor has reset its own gestures. Dependent UI such as open drawers
// resynchronizes here.
func (e *Editor) OnSnapshotApplied(fn func()) (unsubscribe func()) {
	return e.history.OnApply(func(graph.Snapshot) { fn() })
}

// ApplyIDMaps rewrites ids in the current state and across the whole
// history stack, then passes m to every OnIDsRemapped listener.
func (e *Editor) ApplyIDMaps(m graph.IDMaps) {
	e.restore(e.capture().Remap(m))
	e.history.Rewrite(func(s graph.Snapshot) graph.Snapshot { return s.Remap(m) })
	if mapped, ok := m.Nodes[e.focusedID]; ok {
		e.focusedID = mapped
	}
	e.resetTransient()

	ids := make([]int, 0, len(e.remapListeners))
	for id := range e.remapListeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		e.remapListeners[id](m)
	}
}

// OnIDsRemapped registers fn to run after ApplyIDMaps. Anything holding
// client ids outside the editor, such as an open allocation drawer, follows
// the rename here.
func (e *Editor) OnIDsRemapped(fn func(graph.IDMaps)) (unsubscribe func()) {
	if e.remapListeners == nil {
		e.remapListeners = make(map[int]func(graph.IDMaps))
	}
	id := e.nextListener
	e.nextListener++
	e.remapListeners[id] = fn
	return func() { delete(e.remapListeners, id) }
}

// Nodes returns copies of all nodes in insertion order.
func (e *Editor) Nodes() []graph.Node {
	out := make([]graph.Node, len(e.nodes))
	for i, n := range e.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Node returns a copy of the node with the given id.
func (e *Editor) Node(id string) (graph.Node, bool) {
	i := e.indexOfNode(id)
	if i < 0 {
		return graph.Node{}, false
	}
	return e.nodes[i].Clone(), true
}

// Flows returns copies of all flows.
func (e *Editor) Flows() []graph.Flow {
	out := make([]graph.Flow, len(e.flows))
	for i, f := range e.flows {
		out[i] = f.Clone()
	}
	return out
}

// Rules returns copies of all rules.
func (e *Editor) Rules() []graph.Rule {
	out := make([]graph.Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Clone()
	}
	return out
}

// Rule returns the rule sourced at nodeID, if any.
func (e *Editor) Rule(sourceNodeID string) (graph.Rule, bool) {
	for _, r := range e.rules {
		if r.SourceNodeID == sourceNodeID {
			return r.Clone(), true
		}
	}
	return graph.Rule{}, false
}

// OutboundTargets returns the distinct targets of nodeID's outbound flows in
// flow order.
func (e *Editor) OutboundTargets(nodeID string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range e.flows {
		if f.SourceID == nodeID && !seen[f.TargetID] {
			seen[f.TargetID] = true
			out = append(out, f.TargetID)
		}
	}
	return out
}

// FocusedNodeID returns the node whose detail view is open, or "".
func (e *Editor) FocusedNodeID() string {
	return e.focusedID
}

// OpenDetail opens the detail view for id.
func (e *Editor) OpenDetail(id string) error {
	if e.indexOfNode(id) < 0 {
		return fmt.Errorf("open detail: unknown node %q", id)
	}
	e.focusedID = id
	return nil
}

// CloseDetail closes the detail view.
func (e *Editor) CloseDetail() {
	e.focusedID = ""
}

// Escape cancels every gesture and closes the detail view. An active drag is
// abandoned without moving anything.
func (e *Editor) Escape() {
	e.resetTransient()
	e.focusedID = ""
}

// BackgroundClick handles a click on empty canvas: gestures are cancelled
// and the selection is cleared.
func (e *Editor) BackgroundClick() {
	e.resetTransient()
	e.selection.Clear()
}

// HandleNodeClick routes a click on a node. While the composer is active the
// click drives it and may create a flow, which is returned. Otherwise the
// click updates the selection.
func (e *Editor) HandleNodeClick(id string, additive bool) (*graph.Flow, error) {
	if e.indexOfNode(id) < 0 {
		return nil, fmt.Errorf("click: unknown node %q", id)
	}
	if !e.composer.Active() {
		e.EnsureSelection(id, additive)
		return nil, nil
	}

	source, target, completed := e.composer.Click(id)
	if !completed {
		return nil, nil
	}
	flow, err := e.AddFlow(source, target, graph.TagTransfer)
	if err != nil {
		return nil, err
	}
	e.focusedID = source
	return &flow, nil
}

// EnterFlowMode starts the composer, cancelling any drag or marquee.
func (e *Editor) EnterFlowMode() bool {
	if e.composer.Active() {
		return false
	}
	e.drag = nil
	e.marquee = nil
	return e.composer.Enter()
}

// ExitFlowMode forces the composer back to idle.
func (e *Editor) ExitFlowMode() {
	e.composer.Reset()
}

// ComposerStage returns the composer's current stage.
func (e *Editor) ComposerStage() Stage {
	return e.composer.Stage()
}

// ComposerSource returns the source picked by the composer, if any.
func (e *Editor) ComposerSource() string {
	return e.composer.Source()
}

func (e *Editor) indexOfNode(id string) int {
	if id == "" {
		return -1
	}
	for i := range e.nodes {
		if e.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Editor) nodeSet() graph.NodeSet {
	return graph.IndexNodes(e.nodes)
}

func (e *Editor) snap(p graph.Position) graph.Position {
	return graph.SnapPosition(p, e.opts.GridSize)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func equalNodes(a, b graph.Node) bool {
	return reflect.DeepEqual(a, b)
}
