package canvas

import "github.com/roach88/moneymap/internal/graph"

// SelectedIDs returns the selected node ids in selection order.
func (e *Editor) SelectedIDs() []string {
	return e.selection.IDs()
}

// IsSelected reports whether id is selected.
func (e *Editor) IsSelected(id string) bool {
	return e.selection.Has(id)
}

// EnsureSelection applies a click to the selection. A plain click selects
// only id, and is a no-op when id is already the sole selection. An
// additive click (shift, ctrl, meta) toggles id.
func (e *Editor) EnsureSelection(id string, additive bool) {
	if additive {
		e.selection.Toggle(id)
		return
	}
	if e.selection.Only(id) {
		return
	}
	e.selection.Replace(id)
}

// SetSelection replaces the selection, ignoring unknown ids.
func (e *Editor) SetSelection(ids ...string) {
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if e.indexOfNode(id) >= 0 {
			known = append(known, id)
		}
	}
	e.selection.Replace(known...)
}

// ClearSelection empties the selection.
func (e *Editor) ClearSelection() {
	e.selection.Clear()
}

// BeginDrag starts dragging from the node the pointer went down on. If that
// node is not selected the selection collapses to it; otherwise the whole
// selection moves. Any composer flow or marquee is cancelled.
func (e *Editor) BeginDrag(nodeID string) bool {
	if e.indexOfNode(nodeID) < 0 {
		return false
	}
	e.composer.Reset()
	e.marquee = nil

	if !e.selection.Has(nodeID) {
		e.selection.Replace(nodeID)
	}

	ids := e.selection.IDs()
	state := &DragState{
		Anchor:         nodeID,
		NodeIDs:        make([]string, 0, len(ids)),
		StartPositions: make(map[string]graph.Position, len(ids)),
	}
	for _, id := range ids {
		i := e.indexOfNode(id)
		if i < 0 {
			continue
		}
		state.NodeIDs = append(state.NodeIDs, id)
		state.StartPositions[id] = e.nodes[i].Position
	}
	e.drag = state
	return true
}

// MoveDrag sets the aggregate drag offset. Nothing in the node store changes.
func (e *Editor) MoveDrag(delta graph.Position) {
	if e.drag == nil {
		return
	}
	e.drag.Delta = delta
}

// EndDrag commits the drag: each moved node gets its snapped position, and
// exactly one history entry is pushed if any position changed. Returns
// whether anything moved.
func (e *Editor) EndDrag() bool {
	d := e.drag
	e.drag = nil
	if d == nil {
		return false
	}

	moved := false
	for _, id := range d.NodeIDs {
		i := e.indexOfNode(id)
		if i < 0 {
			continue
		}
		next := e.snap(d.StartPositions[id].Add(d.Delta))
		if next == e.nodes[i].Position {
			continue
		}
		e.nodes[i].Position = next
		moved = true
	}
	if moved {
		e.commit()
	}
	return moved
}

// CancelDrag abandons a drag without moving anything.
func (e *Editor) CancelDrag() {
	e.drag = nil
}

// Dragging returns the active drag, if any. The returned value must not be
// modified.
func (e *Editor) Dragging() (*DragState, bool) {
	return e.drag, e.drag != nil
}

// LivePosition returns where id should be drawn: its drag position during an
// active drag, otherwise its stored position.
func (e *Editor) LivePosition(id string) (graph.Position, bool) {
	if e.drag != nil {
		if p, ok := e.drag.Position(id); ok {
			return p, true
		}
	}
	i := e.indexOfNode(id)
	if i < 0 {
		return graph.Position{}, false
	}
	return e.nodes[i].Position, true
}

// LivePositions returns the drag override map: live positions of the nodes
// being dragged. It is empty when no drag is active.
func (e *Editor) LivePositions() map[string]graph.Position {
	out := make(map[string]graph.Position)
	if e.drag == nil {
		return out
	}
	for _, id := range e.drag.NodeIDs {
		if p, ok := e.drag.Position(id); ok {
			out[id] = p
		}
	}
	return out
}

// BeginMarquee starts a rectangular selection at a point given in both
// canvas-local and world coordinates. The prior selection is cleared
// immediately and any drag or composer flow is cancelled.
func (e *Editor) BeginMarquee(local, world graph.Position) {
	e.drag = nil
	e.composer.Reset()
	e.marquee = &Marquee{
		OriginWorld:  world,
		CurrentWorld: world,
		OriginLocal:  local,
		CurrentLocal: local,
	}
	e.selection.Clear()
}

// UpdateMarquee moves the marquee's free corner and redetermines the
// selection from scratch: every node whose card intersects the world
// rectangle, in node order.
func (e *Editor) UpdateMarquee(local, world graph.Position) {
	if e.marquee == nil {
		return
	}
	e.marquee.CurrentLocal = local
	e.marquee.CurrentWorld = world
	e.selection.Replace(e.nodesInRect(e.marquee.WorldRect())...)
}

// EndMarquee finishes the marquee, keeping the selection it produced.
func (e *Editor) EndMarquee() []string {
	e.marquee = nil
	return e.selection.IDs()
}

// MarqueeState returns the active marquee, if any.
func (e *Editor) MarqueeState() (Marquee, bool) {
	if e.marquee == nil {
		return Marquee{}, false
	}
	return *e.marquee, true
}

func (e *Editor) nodesInRect(r graph.Rect) []string {
	ids := []string{}
	for _, n := range e.nodes {
		if graph.CardRect(n.Position, e.opts.CardWidth, e.opts.CardHeight).Intersects(r) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
