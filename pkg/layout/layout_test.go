package layout

import (
	"math"
	"testing"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/model"
)

func card(id, parent string, x, y, w, h float64) model.Node {
	return model.Node{
		ID:       id,
		ParentID: parent,
		Position: model.Point{X: x, Y: y},
		Size:     model.Size{Width: w, Height: h},
	}
}

func byID(res Result) map[string]model.Displayed {
	m := make(map[string]model.Displayed)
	for _, d := range res.Nodes {
		m[d.ID] = d
	}
	return m
}

func assertNoOverlap(t *testing.T, nodes []model.Displayed) {
	t.Helper()
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if nodes[i].Depth != 0 || nodes[j].Depth != 0 {
				continue
			}
			if geometry.Overlaps(geometry.RectOf(nodes[i].Node), geometry.RectOf(nodes[j].Node)) {
				t.Errorf("Nodes %s and %s still overlap", nodes[i].ID, nodes[j].ID)
			}
		}
	}
}

func TestComputeFlat(t *testing.T) {
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 100, 100),
		card("b", model.RootID, 50, 0, 100, 100),
		card("a1", "a", 0, 0, 10, 10),
		card("x", "other", 0, 0, 10, 10),
	}

	res := Compute(nodes, model.RootID, false)
	if len(res.Nodes) != 2 {
		t.Fatalf("Expected 2 displayed nodes, got %d", len(res.Nodes))
	}
	if res.Nodes[0].ID != "a" || res.Nodes[1].ID != "b" {
		t.Errorf("Expected input order a, b; got %s, %s", res.Nodes[0].ID, res.Nodes[1].ID)
	}
	// flat mode never moves anything, even overlapping cards
	if res.Nodes[1].Position.X != 50 {
		t.Errorf("Flat layout moved b to %f", res.Nodes[1].Position.X)
	}
	for _, d := range res.Nodes {
		if d.SeeThrough || d.Depth != 0 || d.ZIndex != 1 {
			t.Errorf("Unexpected flat node %+v", d)
		}
	}

	res = Compute(nodes, "a", false)
	if len(res.Nodes) != 1 || res.Nodes[0].ID != "a1" {
		t.Errorf("Expected only a1 under a, got %+v", res.Nodes)
	}
}

func TestComputeNestsChildren(t *testing.T) {
	nodes := []model.Node{
		card("p", model.RootID, 100, 100, 150, 80),
		card("c1", "p", 500, 500, 60, 30),
		card("c2", "p", 600, 520, 60, 30),
		card("g", "c1", 0, 0, 10, 10),
	}

	res := Compute(nodes, model.RootID, true)
	got := byID(res)

	if len(res.Nodes) != 3 {
		t.Fatalf("Expected parent and two children, got %d nodes", len(res.Nodes))
	}
	if _, ok := got["g"]; ok {
		t.Error("Grandchildren must not be revealed")
	}

	c1, c2, p := got["c1"], got["c2"], got["p"]
	if c1.Position != (model.Point{X: 120, Y: 140}) {
		t.Errorf("Expected c1 at {120 140}, got %v", c1.Position)
	}
	// offset inside the child box is preserved
	if c2.Position != (model.Point{X: 220, Y: 160}) {
		t.Errorf("Expected c2 at {220 160}, got %v", c2.Position)
	}

	// children box is 160x50: width 20+160+20, height 40+50+20
	if p.Size.Width != 200 || p.Size.Height != 110 {
		t.Errorf("Expected parent 200x110, got %vx%v", p.Size.Width, p.Size.Height)
	}
	if !p.SeeThrough || p.ZIndex != 1 {
		t.Errorf("Expected see-through parent with z 1, got %+v", p)
	}
	if c1.ZIndex != 10 || c1.Depth != 1 {
		t.Errorf("Expected child at z 10 depth 1, got %+v", c1)
	}
	if nodes[1].Position.X != 500 {
		t.Error("Compute must not modify its input")
	}
}

func TestComputeNeverShrinksParent(t *testing.T) {
	nodes := []model.Node{
		card("p", model.RootID, 0, 0, 400, 300),
		card("c", "p", 0, 0, 20, 20),
	}

	p := byID(Compute(nodes, model.RootID, true))["p"]
	if p.Size.Width != 400 || p.Size.Height != 300 {
		t.Errorf("Parent shrank to %vx%v", p.Size.Width, p.Size.Height)
	}
}

func TestResolveTwoOverlapping(t *testing.T) {
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 100, 100),
		card("b", model.RootID, 50, 0, 100, 100),
	}

	res := Compute(nodes, model.RootID, true)
	if !res.Converged {
		t.Fatal("Expected convergence")
	}
	if res.Iterations > MaxIterations {
		t.Errorf("Iterations %d exceed the cap", res.Iterations)
	}
	assertNoOverlap(t, res.Nodes)

	got := byID(res)
	a, b := got["a"].Position.X, got["b"].Position.X
	// overlap 50 on x, each pushed by (50+20)/2
	if a != -35 || b != 85 {
		t.Errorf("Expected a at -35 and b at 85, got %f and %f", a, b)
	}
	// symmetric about the original midpoint (75)
	if (a+50+b+50)/2 != 75 {
		t.Errorf("Displacement is not symmetric: a=%f b=%f", a, b)
	}
	if got["a"].Position.Y != 0 || got["b"].Position.Y != 0 {
		t.Error("Resolution moved along the wrong axis")
	}
}

func TestResolveSmallerAxis(t *testing.T) {
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 100, 100),
		card("b", model.RootID, 20, 90, 100, 100),
	}

	got := byID(Compute(nodes, model.RootID, true))
	// overlap is 80 on x and 10 on y: push vertically by 15 each
	if got["a"].Position.Y != -15 || got["b"].Position.Y != 105 {
		t.Errorf("Expected vertical push to -15/105, got %f/%f", got["a"].Position.Y, got["b"].Position.Y)
	}
	if got["a"].Position.X != 0 || got["b"].Position.X != 20 {
		t.Error("Horizontal positions should not change")
	}
}

func TestResolveDirectionFromOriginalCenters(t *testing.T) {
	// b starts left of a, so b must end up further left
	nodes := []model.Node{
		card("a", model.RootID, 60, 0, 100, 100),
		card("b", model.RootID, 0, 10, 100, 100),
	}

	got := byID(Compute(nodes, model.RootID, true))
	if got["b"].Position.X >= got["a"].Position.X {
		t.Errorf("Expected b left of a, got b=%f a=%f", got["b"].Position.X, got["a"].Position.X)
	}
}

func TestResolveManyTerminates(t *testing.T) {
	var nodes []model.Node
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		nodes = append(nodes, card(id, model.RootID, float64(i*7), float64(i*13), 80, 60))
	}

	res := Compute(nodes, model.RootID, true)
	if res.Iterations > MaxIterations {
		t.Fatalf("Iterations %d exceed the cap", res.Iterations)
	}
	if res.Converged {
		assertNoOverlap(t, res.Nodes)
	}
}

func TestResolveIdenticalStacksTerminate(t *testing.T) {
	// degenerate input: identical centers; only termination is promised
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 50, 50),
		card("b", model.RootID, 0, 0, 50, 50),
		card("c", model.RootID, 0, 0, 50, 50),
	}

	res := Compute(nodes, model.RootID, true)
	if res.Iterations > MaxIterations {
		t.Fatalf("Iterations %d exceed the cap", res.Iterations)
	}
	if len(res.Nodes) != 3 {
		t.Errorf("Expected 3 nodes, got %d", len(res.Nodes))
	}
}

func TestChildrenFollowParent(t *testing.T) {
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 100, 100),
		card("b", model.RootID, 50, 0, 100, 100),
		card("b1", "b", 0, 0, 20, 20),
	}

	got := byID(Compute(nodes, model.RootID, true))
	b, b1 := got["b"], got["b1"]
	if b1.Position.X-b.Position.X != Padding || b1.Position.Y-b.Position.Y != TitleHeight {
		t.Errorf("Child lost its place in the parent: parent %v child %v", b.Position, b1.Position)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	nodes := []model.Node{
		card("a", model.RootID, 0, 0, 100, 100),
		card("b", model.RootID, 30, 40, 120, 90),
		card("c", model.RootID, 70, 10, 60, 60),
		card("b1", "b", 5, 5, 30, 30),
	}

	first := Compute(nodes, model.RootID, true)
	second := Compute(nodes, model.RootID, true)
	if len(first.Nodes) != len(second.Nodes) {
		t.Fatal("Different node counts across runs")
	}
	for i := range first.Nodes {
		if first.Nodes[i] != second.Nodes[i] {
			t.Errorf("Run mismatch at %d: %+v vs %+v", i, first.Nodes[i], second.Nodes[i])
		}
	}
}

func TestOffsetsMapBackToStoredPositions(t *testing.T) {
	nodes := []model.Node{
		card("p", model.RootID, 0, 0, 300, 200),
		card("q", model.RootID, 250, 0, 300, 200),
		card("c1", "p", 1000, 1000, 50, 50),
		card("c2", "p", 1100, 1000, 50, 50),
	}

	got := byID(Compute(nodes, model.RootID, true))
	tests := []struct {
		id     string
		shown  model.Point
		offset model.Point
	}{
		{"p", model.Point{X: -35, Y: 0}, model.Point{X: -35, Y: 0}},
		{"q", model.Point{X: 285, Y: 0}, model.Point{X: 35, Y: 0}},
		{"c1", model.Point{X: -15, Y: 40}, model.Point{X: -1015, Y: -960}},
		{"c2", model.Point{X: 85, Y: 40}, model.Point{X: -1015, Y: -960}},
	}
	for i, tt := range tests {
		d := got[tt.id]
		if d.Position != tt.shown {
			t.Errorf("%s: expected displayed at %v, got %v", tt.id, tt.shown, d.Position)
		}
		if d.Offset != tt.offset {
			t.Errorf("%s: expected offset %v, got %v", tt.id, tt.offset, d.Offset)
		}
		if stored := d.Stored(d.Position); stored != nodes[i].Position {
			t.Errorf("%s: expected stored %v, got %v", tt.id, nodes[i].Position, stored)
		}
	}

	for _, d := range Compute(nodes, model.RootID, false).Nodes {
		if d.Offset != (model.Point{}) {
			t.Errorf("Flat layout gave %s an offset %v", d.ID, d.Offset)
		}
	}
}

func TestVisibleEdges(t *testing.T) {
	displayed := []model.Displayed{
		{Node: card("a", model.RootID, 0, 0, 1, 1)},
		{Node: card("b", model.RootID, 0, 0, 1, 1)},
	}
	edges := []model.Edge{
		{ID: "ab", Source: "a", Target: "b"},
		{ID: "ah", Source: "a", Target: "hidden"},
	}

	got := VisibleEdges(edges, displayed)
	if len(got) != 1 || got[0].ID != "ab" {
		t.Errorf("Expected only ab, got %+v", got)
	}
}

func TestDirection(t *testing.T) {
	if direction(-3) != -1 || direction(2) != 1 || direction(0) != 1 {
		t.Error("Unexpected direction signs")
	}
	if math.Signbit(direction(0)) {
		t.Error("Coincident centers should push forward")
	}
}
