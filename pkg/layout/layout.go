// Package layout turns the raw node tree into the list of nodes displayed at
// the current navigation level. In see-through mode it also nests one level
// of children inside their parents and pushes overlapping parents apart.
//
// Compute is pure: inputs are never modified and every call builds a fresh
// result.
package layout

import (
	"math"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/model"
)

const (
	// Padding is the inset of revealed children and the trailing margin
	// added when a parent grows to fit them
	Padding = 20.0
	// TitleHeight is the space kept above revealed children for the
	// parent's title
	TitleHeight = 40.0
	// CardSpacing is the extra clearance added when separating two
	// overlapping cards
	CardSpacing = 20.0
	// MaxIterations caps the overlap resolution loop
	MaxIterations = 100

	zFlat   = 1
	zParent = 1
	zChild  = 10
)

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Result is the output of one layout pass
type Result struct {
	Nodes []model.Displayed
	// Iterations is the number of resolution passes that moved something
	Iterations int
	// Converged is false when the iteration cap was hit with overlaps left
	Converged bool
}

// Compute lays out the children of cursor. With seeThrough set, each child
// that has children of its own is drawn see-through with those children
// nested inside it.
func Compute(nodes []model.Node, cursor string, seeThrough bool) Result {
	if !seeThrough {
		return flat(nodes, cursor)
	}

	a := newArena(nodes, cursor)
	a.nest()
	iterations, converged := a.resolve()
	a.glue()

	if !converged && debugLog != nil {
		debugLog("[Layout] overlap resolution hit the cap of", MaxIterations, "passes at", cursor)
	}
	return Result{Nodes: a.output(), Iterations: iterations, Converged: converged}
}

func flat(nodes []model.Node, cursor string) Result {
	var out []model.Displayed
	for _, n := range nodes {
		if n.ParentID != cursor {
			continue
		}
		n.ZIndex = zFlat
		out = append(out, model.Displayed{Node: n})
	}
	return Result{Nodes: out, Converged: true}
}

// arena holds working copies of the top-level nodes and their children,
// addressed by index
type arena struct {
	top      []model.Node
	children [][]model.Node
	// start is each top-level position before overlap resolution
	start []model.Point
	// centers are the pre-resolution centers that fix push directions
	centers []model.Point
	// raw are the input positions by id
	raw map[string]model.Point
}

func newArena(nodes []model.Node, cursor string) *arena {
	a := &arena{raw: make(map[string]model.Point)}
	index := make(map[string]int)
	for _, n := range nodes {
		a.raw[n.ID] = n.Position
		if n.ParentID == cursor {
			index[n.ID] = len(a.top)
			a.top = append(a.top, n)
		}
	}
	a.children = make([][]model.Node, len(a.top))
	for _, n := range nodes {
		if i, ok := index[n.ParentID]; ok {
			a.children[i] = append(a.children[i], n)
		}
	}
	return a
}

// nest moves each child set to the parent's content origin and grows the
// parent around it
func (a *arena) nest() {
	for i := range a.top {
		kids := a.children[i]
		if len(kids) == 0 {
			continue
		}
		box, _ := geometry.Bounds(kids)
		parent := &a.top[i]
		dx := parent.Position.X + Padding - box.X
		dy := parent.Position.Y + TitleHeight - box.Y
		for k := range kids {
			kids[k].Position.X += dx
			kids[k].Position.Y += dy
		}
		parent.Size.Width = math.Max(parent.Size.Width, Padding+box.Width+Padding)
		parent.Size.Height = math.Max(parent.Size.Height, TitleHeight+box.Height+Padding)
	}

	a.start = make([]model.Point, len(a.top))
	a.centers = make([]model.Point, len(a.top))
	for i, n := range a.top {
		a.start[i] = n.Position
		a.centers[i] = geometry.CenterOf(n)
	}
}

// resolve separates overlapping top-level nodes. Each overlapping pair is
// pushed apart along the axis of smaller overlap, in the direction given by
// the pre-resolution centers.
func (a *arena) resolve() (iterations int, converged bool) {
	for iterations < MaxIterations {
		if !a.pass() {
			return iterations, true
		}
		iterations++
	}
	return iterations, !a.anyOverlap()
}

func (a *arena) pass() bool {
	moved := false
	for i := 0; i < len(a.top); i++ {
		for j := i + 1; j < len(a.top); j++ {
			ri, rj := geometry.RectOf(a.top[i]), geometry.RectOf(a.top[j])
			if !geometry.Overlaps(ri, rj) {
				continue
			}
			ox := math.Min(ri.MaxX(), rj.MaxX()) - math.Max(ri.X, rj.X)
			oy := math.Min(ri.MaxY(), rj.MaxY()) - math.Max(ri.Y, rj.Y)
			if ox <= oy {
				push := (ox + CardSpacing) / 2
				dir := direction(a.centers[j].X - a.centers[i].X)
				a.top[i].Position.X -= push * dir
				a.top[j].Position.X += push * dir
			} else {
				push := (oy + CardSpacing) / 2
				dir := direction(a.centers[j].Y - a.centers[i].Y)
				a.top[i].Position.Y -= push * dir
				a.top[j].Position.Y += push * dir
			}
			moved = true
		}
	}
	return moved
}

// direction is the sign of d, with coincident centers pushing the later node
// forward
func direction(d float64) float64 {
	if d < 0 {
		return -1
	}
	return 1
}

func (a *arena) anyOverlap() bool {
	for i := 0; i < len(a.top); i++ {
		for j := i + 1; j < len(a.top); j++ {
			if geometry.Overlaps(geometry.RectOf(a.top[i]), geometry.RectOf(a.top[j])) {
				return true
			}
		}
	}
	return false
}

// glue moves children by the distance their parent travelled during
// resolution
func (a *arena) glue() {
	for i, kids := range a.children {
		dx := a.top[i].Position.X - a.start[i].X
		dy := a.top[i].Position.Y - a.start[i].Y
		for k := range kids {
			kids[k].Position.X += dx
			kids[k].Position.Y += dy
		}
	}
}

func (a *arena) output() []model.Displayed {
	out := make([]model.Displayed, 0, len(a.top))
	for i, n := range a.top {
		kids := a.children[i]
		n.ZIndex = zParent
		out = append(out, model.Displayed{Node: n, SeeThrough: len(kids) > 0, Offset: a.offset(n)})
		for _, k := range kids {
			k.ZIndex = zChild
			out = append(out, model.Displayed{Node: k, Depth: 1, Offset: a.offset(k)})
		}
	}
	return out
}

func (a *arena) offset(n model.Node) model.Point {
	raw := a.raw[n.ID]
	return model.Point{X: n.Position.X - raw.X, Y: n.Position.Y - raw.Y}
}

// VisibleEdges returns the edges whose endpoints are both displayed
func VisibleEdges(edges []model.Edge, displayed []model.Displayed) []model.Edge {
	shown := make(map[string]bool, len(displayed))
	for _, d := range displayed {
		shown[d.ID] = true
	}
	var out []model.Edge
	for _, e := range edges {
		if shown[e.Source] && shown[e.Target] {
			out = append(out, e)
		}
	}
	return out
}

// Lookup indexes displayed nodes by id
func Lookup(displayed []model.Displayed) map[string]model.Node {
	m := make(map[string]model.Node, len(displayed))
	for _, d := range displayed {
		m[d.ID] = d.Node
	}
	return m
}
