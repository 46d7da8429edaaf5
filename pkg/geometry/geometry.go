// Package geometry is the pure geometry kernel of the canvas: rectangles,
// centers, overlap tests, handle anchors, edge paths, hit shapes and
// alignment transforms. Every other package derives node rectangles and
// centers from here.
package geometry

import (
	"math"

	"github.com/recera/cardboard/pkg/model"
)

// DeleteButtonRadius is the hit radius of the delete affordance drawn at a
// node's top-right corner.
const DeleteButtonRadius = 11.0

// Rect is an axis-aligned rectangle
type Rect struct {
	X, Y, Width, Height float64
}

// MaxX is the right edge
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY is the bottom edge
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Center is the midpoint of r
func (r Rect) Center() model.Point {
	return model.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Union returns the smallest rectangle containing r and o
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.MaxX(), o.MaxX())
	maxY := math.Max(r.MaxY(), o.MaxY())
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// RectOf returns the rectangle covered by n
func RectOf(n model.Node) Rect {
	return Rect{X: n.Position.X, Y: n.Position.Y, Width: n.Size.Width, Height: n.Size.Height}
}

// CenterOf returns the center of n
func CenterOf(n model.Node) model.Point {
	return RectOf(n).Center()
}

// Overlaps reports whether the open interiors of a and b intersect.
// Rectangles that only share an edge or a corner do not overlap.
func Overlaps(a, b Rect) bool {
	return a.X < b.MaxX() && b.X < a.MaxX() && a.Y < b.MaxY() && b.Y < a.MaxY()
}

// Contains reports whether p lies inside r or on its border
func Contains(r Rect, p model.Point) bool {
	return p.X >= r.X && p.X <= r.MaxX() && p.Y >= r.Y && p.Y <= r.MaxY()
}

// Bounds returns the union of the rectangles of nodes. ok is false when
// nodes is empty.
func Bounds(nodes []model.Node) (r Rect, ok bool) {
	for i, n := range nodes {
		if i == 0 {
			r = RectOf(n)
			continue
		}
		r = r.Union(RectOf(n))
	}
	return r, len(nodes) > 0
}

// Distance is the Euclidean distance between a and b
func Distance(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// HandlePosition returns the midpoint of the edge of n named by h. An unknown
// handle yields the node's raw position.
func HandlePosition(n model.Node, h model.Handle) model.Point {
	r := RectOf(n)
	switch h {
	case model.HandleTop:
		return model.Point{X: r.X + r.Width/2, Y: r.Y}
	case model.HandleBottom:
		return model.Point{X: r.X + r.Width/2, Y: r.MaxY()}
	case model.HandleLeft:
		return model.Point{X: r.X, Y: r.Y + r.Height/2}
	case model.HandleRight:
		return model.Point{X: r.MaxX(), Y: r.Y + r.Height/2}
	}
	return n.Position
}

// HandleByName is HandlePosition for an unparsed handle name such as
// "handleRight".
func HandleByName(n model.Node, name string) model.Point {
	h, _ := model.ParseHandle(name)
	return HandlePosition(n, h)
}

// HandlePositionRaw resolves a handle on a loose record. A record missing its
// position or size yields the zero point.
func HandlePositionRaw(r model.RawNode, name string) model.Point {
	if !r.Complete() {
		return model.Point{}
	}
	return HandleByName(r.Node(), name)
}

// ClosestHandle picks the anchor on source nearest to target's center. Only
// the vertical pair is considered when the centers are further apart
// vertically than horizontally, otherwise only the horizontal pair.
func ClosestHandle(source, target model.Node) model.Handle {
	sc, tc := CenterOf(source), CenterOf(target)
	candidates := [2]model.Handle{model.HandleLeft, model.HandleRight}
	if math.Abs(tc.Y-sc.Y) > math.Abs(tc.X-sc.X) {
		candidates = [2]model.Handle{model.HandleTop, model.HandleBottom}
	}
	best := candidates[0]
	bestDist := Distance(HandlePosition(source, best), tc)
	if d := Distance(HandlePosition(source, candidates[1]), tc); d < bestDist {
		best = candidates[1]
	}
	return best
}

// DeleteButtonCenter is the center of the delete affordance of n
func DeleteButtonCenter(n model.Node) model.Point {
	return model.Point{X: n.Position.X + n.Size.Width, Y: n.Position.Y}
}

// HitDeleteButton reports whether p is within DeleteButtonRadius of the
// delete affordance of n
func HitDeleteButton(n model.Node, p model.Point) bool {
	return Distance(DeleteButtonCenter(n), p) <= DeleteButtonRadius
}
