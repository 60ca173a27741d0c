package graph

import "math"

// Canvas geometry defaults. Node positions are the top-left corner of a
// fixed-size card.
const (
	DefaultGridSize   = 28.0
	DefaultCardWidth  = 220.0
	DefaultCardHeight = 84.0
)

// Snap rounds v to the nearest multiple of grid. A non-positive grid
// disables snapping.
func Snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

// SnapPosition snaps both coordinates of p.
func SnapPosition(p Position, grid float64) Position {
	return Position{X: Snap(p.X, grid), Y: Snap(p.Y, grid)}
}

// Rect is an axis-aligned rectangle normalized so Min <= Max.
type Rect struct {
	Min Position
	Max Position
}

// RectFromCorners builds a normalized Rect from two opposite corners.
func RectFromCorners(a, b Position) Rect {
	return Rect{
		Min: Position{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: Position{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// CardRect returns the bounding box of a card at p.
func CardRect(p Position, width, height float64) Rect {
	return Rect{Min: p, Max: Position{X: p.X + width, Y: p.Y + height}}
}

// Intersects reports whether r and o overlap. Touching edges count.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && r.Max.X >= o.Min.X &&
		r.Min.Y <= o.Max.Y && r.Max.Y >= o.Min.Y
}
