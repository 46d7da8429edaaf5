package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/recera/cardboard/pkg/model"
)

const (
	arrowLength = 10.0
	arrowSpread = math.Pi / 6
	// controlFactor scales the handle-axis span into the control point offset
	controlFactor = 0.5
)

// Op is a path drawing operation
type Op uint8

const (
	OpMoveTo Op = iota
	OpLineTo
	OpCubicTo
)

// Segment is one drawing operation. LineTo and MoveTo use only To; CubicTo
// uses C1, C2 and To.
type Segment struct {
	Op     Op
	C1, C2 model.Point
	To     model.Point
}

// Path is a sequence of drawing operations in world coordinates
type Path []Segment

// SVG renders p as an SVG path "d" attribute
func (p Path) SVG() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch s.Op {
		case OpMoveTo:
			fmt.Fprintf(&b, "M %g %g", s.To.X, s.To.Y)
		case OpLineTo:
			fmt.Fprintf(&b, "L %g %g", s.To.X, s.To.Y)
		case OpCubicTo:
			fmt.Fprintf(&b, "C %g %g, %g %g, %g %g", s.C1.X, s.C1.Y, s.C2.X, s.C2.Y, s.To.X, s.To.Y)
		}
	}
	return b.String()
}

// controlPoint pushes from away from its node along the axis of h by half of
// the span between from and to on that axis.
func controlPoint(from, to model.Point, h model.Handle) model.Point {
	dx := math.Abs(to.X-from.X) * controlFactor
	dy := math.Abs(to.Y-from.Y) * controlFactor
	switch h {
	case model.HandleTop:
		return model.Point{X: from.X, Y: from.Y - dy}
	case model.HandleBottom:
		return model.Point{X: from.X, Y: from.Y + dy}
	case model.HandleLeft:
		return model.Point{X: from.X - dx, Y: from.Y}
	case model.HandleRight:
		return model.Point{X: from.X + dx, Y: from.Y}
	}
	return from
}

// arrowhead draws two strokes ending at tip, spread ±30° around the direction
// of travel from "from" to tip.
func arrowhead(tip, from model.Point) Path {
	angle := math.Atan2(tip.Y-from.Y, tip.X-from.X)
	var p Path
	for _, a := range [2]float64{angle - arrowSpread, angle + arrowSpread} {
		p = append(p,
			Segment{Op: OpMoveTo, To: tip},
			Segment{Op: OpLineTo, To: model.Point{
				X: tip.X - arrowLength*math.Cos(a),
				Y: tip.Y - arrowLength*math.Sin(a),
			}},
		)
	}
	return p
}

// StrokePath builds the visual path of e: a cubic Bezier from the source
// handle to the target handle, an arrowhead at the target, and for
// bidirectional edges a second one at the source.
func StrokePath(e model.Edge, source, target model.Node) Path {
	start := HandlePosition(source, e.SourceHandle)
	end := HandlePosition(target, e.TargetHandle)
	c1 := controlPoint(start, end, e.SourceHandle)
	c2 := controlPoint(end, start, e.TargetHandle)

	p := Path{
		{Op: OpMoveTo, To: start},
		{Op: OpCubicTo, C1: c1, C2: c2, To: end},
	}
	p = append(p, arrowhead(end, c2)...)
	if e.Type == model.EdgeBidirectional {
		p = append(p, arrowhead(start, c1)...)
	}
	return p
}

// Line is a straight segment
type Line struct {
	A, B model.Point
}

// HitSegment is the simplified interactive shape of e: a straight line
// between its handle positions. It deliberately ignores the curve.
func HitSegment(e model.Edge, source, target model.Node) Line {
	return Line{A: HandlePosition(source, e.SourceHandle), B: HandlePosition(target, e.TargetHandle)}
}

// DistanceToSegment is the distance from p to the closest point of l
func DistanceToSegment(p model.Point, l Line) float64 {
	dx, dy := l.B.X-l.A.X, l.B.Y-l.A.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Distance(p, l.A)
	}
	t := ((p.X-l.A.X)*dx + (p.Y-l.A.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return Distance(p, model.Point{X: l.A.X + t*dx, Y: l.A.Y + t*dy})
}

// Flatten approximates p with points, steps per cubic segment. Each MoveTo
// starts a new polyline.
func (p Path) Flatten(steps int) [][]model.Point {
	if steps < 1 {
		steps = 1
	}
	var out [][]model.Point
	var cur []model.Point
	var at model.Point
	for _, s := range p {
		switch s.Op {
		case OpMoveTo:
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = []model.Point{s.To}
		case OpLineTo:
			cur = append(cur, s.To)
		case OpCubicTo:
			for i := 1; i <= steps; i++ {
				cur = append(cur, cubic(at, s.C1, s.C2, s.To, float64(i)/float64(steps)))
			}
		}
		at = s.To
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func cubic(p0, p1, p2, p3 model.Point, t float64) model.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return model.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
