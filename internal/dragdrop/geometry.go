// Package dragdrop resolves where a dragged component would land: it
// keeps the registry of rendered components and regions, measures them
// through a Surface and turns a pointer position into a DropTarget.
package dragdrop

import "math"

// Point is a pointer position in page coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is a bounding box. Width and Height are never negative.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }
func (r Rect) MidX() float64   { return r.X + r.Width/2 }
func (r Rect) MidY() float64   { return r.Y + r.Height/2 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Distance is the euclidean distance from p to the closest point of r,
// zero when p is inside.
func (r Rect) Distance(p Point) float64 {
	dx := math.Max(math.Max(r.X-p.X, 0), p.X-r.Right())
	dy := math.Max(math.Max(r.Y-p.Y, 0), p.Y-r.Bottom())
	return math.Hypot(dx, dy)
}

// Direction is the layout axis of a region.
type Direction string

const (
	DirectionRow    Direction = "row"
	DirectionColumn Direction = "column"
)
