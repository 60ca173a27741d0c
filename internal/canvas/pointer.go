package canvas

import "github.com/roach88/moneymap/internal/graph"

// DragState is an in-progress multi-node drag. Positions in the node store
// do not change until the drag ends; renderers read LivePosition instead.
type DragState struct {
	// Anchor is the node the pointer went down on.
	Anchor         string
	NodeIDs        []string
	StartPositions map[string]graph.Position
	Delta          graph.Position
}

// Position returns the live position of id during the drag.
func (d *DragState) Position(id string) (graph.Position, bool) {
	start, ok := d.StartPositions[id]
	if !ok {
		return graph.Position{}, false
	}
	return start.Add(d.Delta), true
}

// Marquee is an in-progress rectangular selection, tracked both in
// canvas-local coordinates for the overlay and in world coordinates for hit
// testing.
type Marquee struct {
	OriginWorld  graph.Position
	CurrentWorld graph.Position
	OriginLocal  graph.Position
	CurrentLocal graph.Position
}

// WorldRect returns the normalized selection rectangle in world space.
func (m Marquee) WorldRect() graph.Rect {
	return graph.RectFromCorners(m.OriginWorld, m.CurrentWorld)
}

// LocalRect returns the normalized overlay rectangle in canvas space.
func (m Marquee) LocalRect() graph.Rect {
	return graph.RectFromCorners(m.OriginLocal, m.CurrentLocal)
}
