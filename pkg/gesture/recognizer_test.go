package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/model"
	"github.com/recera/cardboard/pkg/viewport"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

type testScene struct {
	nodes      []model.Displayed
	edges      []model.Edge
	seeThrough bool
}

func (s *testScene) Displayed() []model.Displayed { return s.nodes }
func (s *testScene) Edges() []model.Edge          { return s.edges }
func (s *testScene) SeeThrough() bool             { return s.seeThrough }

func card(id string, x, y, w, h float64) model.Displayed {
	return model.Displayed{Node: model.Node{
		ID: id, ParentID: model.RootID,
		Position: model.Point{X: x, Y: y},
		Size:     model.Size{Width: w, Height: h},
		ZIndex:   1,
	}}
}

type harness struct {
	t     *testing.T
	scene *testScene
	view  *viewport.Controller
	rec   *intent.Recorder
	r     *Recognizer
}

func newHarness(t *testing.T, nodes ...model.Displayed) *harness {
	h := &harness{
		t:     t,
		scene: &testScene{nodes: nodes},
		view:  viewport.New(nil),
		rec:   &intent.Recorder{},
	}
	h.view.SetViewport(800, 600)
	h.r = New(h.scene, h.view, h.rec, nil)
	return h
}

func (h *harness) send(ptr int, phase Phase, x, y float64, at int) {
	h.r.Handle(Sample{Pointer: ptr, Phase: phase, X: x, Y: y, Time: ms(at)})
}

func (h *harness) tap(x, y float64, at int) {
	h.send(0, PhaseDown, x, y, at)
	h.send(0, PhaseUp, x, y, at+60)
}

func (h *harness) intents() []intent.Intent {
	return h.rec.Intents()
}

func (h *harness) expectKinds(kinds ...intent.Kind) {
	h.t.Helper()
	got := h.intents()
	if len(got) != len(kinds) {
		h.t.Fatalf("Expected %d intents %v, got %d: %+v", len(kinds), kinds, len(got), got)
	}
	for i, k := range kinds {
		if got[i].Kind() != k {
			h.t.Errorf("Intent %d: expected %s, got %s", i, k, got[i].Kind())
		}
	}
}

func position(displayed []model.Displayed, id string) model.Point {
	for _, d := range displayed {
		if d.ID == id {
			return d.Position
		}
	}
	return model.Point{X: math.NaN(), Y: math.NaN()}
}

func TestSingleTapTogglesSelection(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.tap(120, 130, 0)
	if len(h.intents()) != 0 {
		t.Fatal("Single tap should wait for the double-tap window")
	}
	if h.r.State() != AwaitingDoubleTap {
		t.Errorf("Expected %s, got %s", AwaitingDoubleTap, h.r.State())
	}

	h.r.Advance(ms(450))
	h.expectKinds(intent.KindNodeTapped)
	if tapped := h.intents()[0].(intent.NodeTapped); tapped.NodeID != "a" || !tapped.Selected {
		t.Errorf("Expected a selected, got %+v", tapped)
	}

	h.tap(120, 130, 500)
	h.r.Advance(ms(1000))
	if tapped := h.intents()[1].(intent.NodeTapped); tapped.Selected {
		t.Error("Second tap should deselect")
	}
	if len(h.r.Link().Selected) != 0 {
		t.Errorf("Expected empty selection, got %v", h.r.Link().SelectedIDs())
	}
}

func TestTapOnEmptyCanvasDoesNothing(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))
	h.tap(500, 500, 0)
	h.r.Advance(ms(1000))
	h.expectKinds()
}

func TestDoubleTap(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.tap(120, 130, 0)
	h.tap(122, 131, 200)
	h.r.Advance(ms(2000))

	h.expectKinds(intent.KindNodeDoubleTapped)
	if got := h.intents()[0].(intent.NodeDoubleTapped).NodeID; got != "a" {
		t.Errorf("Expected double tap on a, got %s", got)
	}
}

func TestDoubleTapSecondMiss(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.tap(120, 130, 0)
	h.tap(400, 400, 150)
	h.expectKinds(intent.KindNodeTapped)

	// the second tap became a new first tap on empty canvas
	h.r.Advance(ms(2000))
	h.expectKinds(intent.KindNodeTapped)
}

func TestDoubleTapWindowExpired(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.tap(120, 130, 0)
	h.tap(120, 130, 460)
	h.r.Advance(ms(2000))

	h.expectKinds(intent.KindNodeTapped, intent.KindNodeTapped)
}

func TestDeleteAffordance(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	// outside the body but within radius of the top-right corner
	h.tap(155, 95, 0)
	h.r.Advance(ms(1000))

	h.expectKinds(intent.KindNodeDeleted)
	if got := h.intents()[0].(intent.NodeDeleted).NodeID; got != "a" {
		t.Errorf("Expected a deleted, got %s", got)
	}
	if len(h.r.Link().Selected) != 0 {
		t.Error("Delete tap must not toggle selection")
	}
}

func TestLongPress(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.send(0, PhaseDown, 120, 130, 0)
	h.r.Advance(ms(799))
	if h.r.State() != Pressing {
		t.Errorf("Expected %s, got %s", Pressing, h.r.State())
	}
	h.r.Advance(ms(800))
	press := h.r.PressState()
	if press.State != Confirmed || press.NodeID != "a" {
		t.Errorf("Expected confirmed press on a, got %+v", press)
	}

	h.send(0, PhaseUp, 120, 130, 900)
	h.r.Advance(ms(3000))
	h.expectKinds(intent.KindNodeOpened)
	if h.r.State() != Idle {
		t.Errorf("Expected idle after release, got %s", h.r.State())
	}
}

func TestEarlyReleaseIsNeitherTapNorLongPress(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.send(0, PhaseDown, 120, 130, 0)
	h.send(0, PhaseUp, 120, 130, 600)
	h.r.Advance(ms(3000))

	h.expectKinds()
}

func TestMovementCancelsLongPress(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.send(0, PhaseDown, 120, 130, 0)
	h.send(0, PhaseMove, 131, 130, 100)
	h.r.Advance(ms(900))
	if h.r.State() != Panning {
		t.Errorf("Expected %s, got %s", Panning, h.r.State())
	}
	h.send(0, PhaseUp, 131, 130, 950)

	h.expectKinds(intent.KindPositionChanged)
	moved := h.intents()[0].(intent.PositionChanged)
	if moved.NodeID != "a" || moved.Position != (model.Point{X: 111, Y: 100}) {
		t.Errorf("Expected a at {111 100}, got %+v", moved)
	}
}

func TestNodeDrag(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50), card("b", 300, 100, 50, 50))

	h.send(0, PhaseDown, 120, 130, 0)
	h.send(0, PhaseMove, 140, 130, 20)
	if id, ok := h.r.Dragging(); !ok || id != "a" {
		t.Fatalf("Expected drag on a, got %q", id)
	}
	if got := position(h.r.Apply(h.scene.nodes), "a"); got != (model.Point{X: 120, Y: 100}) {
		t.Errorf("Expected optimistic position {120 100}, got %v", got)
	}

	h.send(0, PhaseMove, 170, 150, 40)
	if len(h.intents()) != 0 {
		t.Error("Drag updates must not be published before release")
	}
	if h.scene.nodes[0].Position != (model.Point{X: 100, Y: 100}) {
		t.Error("Apply modified its input")
	}
	if h.view.Transform() != viewport.Identity {
		t.Error("Node drag must not pan the canvas")
	}

	h.send(0, PhaseUp, 170, 150, 60)
	h.expectKinds(intent.KindPositionChanged)
	if got := h.intents()[0].(intent.PositionChanged).Position; got != (model.Point{X: 150, Y: 120}) {
		t.Errorf("Expected final position {150 120}, got %v", got)
	}

	// optimistic value stays visible until fresh data is loaded
	if got := position(h.r.Apply(h.scene.nodes), "a"); got != (model.Point{X: 150, Y: 120}) {
		t.Errorf("Expected {150 120} before reload, got %v", got)
	}
	h.r.ResetOverrides()
	if got := position(h.r.Apply(h.scene.nodes), "a"); got != (model.Point{X: 100, Y: 100}) {
		t.Errorf("Expected persisted position after reset, got %v", got)
	}
}

func TestNodeDragRespectsScale(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))
	h.view.ZoomAt(model.Point{}, 2)

	// a is drawn at (200,200)-(300,300) on screen
	h.send(0, PhaseDown, 220, 260, 0)
	h.send(0, PhaseMove, 260, 260, 20)
	h.send(0, PhaseUp, 260, 260, 40)

	h.expectKinds(intent.KindPositionChanged)
	if got := h.intents()[0].(intent.PositionChanged).Position; got != (model.Point{X: 120, Y: 100}) {
		t.Errorf("Expected {120 100}, got %v", got)
	}
}

func TestCanvasPan(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.send(0, PhaseDown, 500, 500, 0)
	h.send(0, PhaseMove, 505, 500, 10)
	if h.view.Transform() != viewport.Identity {
		t.Error("Movement within slop must not pan")
	}
	h.send(0, PhaseMove, 530, 540, 20)
	if tr := h.view.Transform(); tr.TranslateX != 30 || tr.TranslateY != 40 {
		t.Errorf("Expected translate {30 40}, got %+v", tr)
	}
	if h.view.Baseline() != viewport.Identity {
		t.Error("Baseline must not change during the pan")
	}

	h.send(0, PhaseUp, 530, 540, 30)
	if b := h.view.Baseline(); b.TranslateX != 30 || b.TranslateY != 40 {
		t.Errorf("Expected committed baseline {30 40}, got %+v", b)
	}
	h.r.Advance(ms(2000))
	h.expectKinds()
}

func TestPanDisabledWhileLinking(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))
	h.r.SetLinking(true)

	h.send(0, PhaseDown, 120, 130, 0)
	h.send(0, PhaseMove, 200, 200, 20)
	h.send(0, PhaseUp, 200, 200, 40)

	if h.view.Transform() != viewport.Identity {
		t.Error("Canvas moved while linking")
	}
	h.expectKinds()
	if h.r.Link().StartNode != "" {
		t.Error("A moved touch is not a tap")
	}
}

func TestTwoFingerSequenceNeverTaps(t *testing.T) {
	tests := []struct {
		name    string
		linking bool
		steps   func(h *harness)
	}{
		{
			name: "quick two-finger tap on a node",
			steps: func(h *harness) {
				h.send(0, PhaseDown, 120, 130, 0)
				h.send(1, PhaseDown, 130, 135, 10)
				h.send(1, PhaseUp, 130, 135, 60)
				h.send(0, PhaseUp, 120, 130, 80)
			},
		},
		{
			name: "pinch then one finger lifts and the other taps out",
			steps: func(h *harness) {
				h.send(0, PhaseDown, 120, 130, 0)
				h.send(1, PhaseDown, 140, 130, 10)
				h.send(1, PhaseMove, 160, 130, 30)
				h.send(1, PhaseUp, 160, 130, 50)
				h.send(0, PhaseUp, 120, 130, 70)
			},
		},
		{
			name: "held past long-press duration",
			steps: func(h *harness) {
				h.send(0, PhaseDown, 120, 130, 0)
				h.send(1, PhaseDown, 130, 135, 50)
				h.r.Advance(ms(1200))
				h.send(1, PhaseUp, 130, 135, 1300)
				h.send(0, PhaseUp, 120, 130, 1400)
			},
		},
		{
			name: "two quick two-finger taps",
			steps: func(h *harness) {
				for _, at := range []int{0, 150} {
					h.send(0, PhaseDown, 120, 130, at)
					h.send(1, PhaseDown, 125, 130, at+5)
					h.send(0, PhaseUp, 120, 130, at+40)
					h.send(1, PhaseUp, 125, 130, at+50)
				}
			},
		},
		{
			name:    "two fingers while linking",
			linking: true,
			steps: func(h *harness) {
				h.send(0, PhaseDown, 120, 130, 0)
				h.send(1, PhaseDown, 130, 135, 10)
				h.send(0, PhaseUp, 120, 130, 40)
				h.send(1, PhaseUp, 130, 135, 60)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, card("a", 100, 100, 50, 50))
			h.r.SetLinking(tt.linking)
			tt.steps(h)
			h.r.Advance(ms(5000))

			for _, i := range h.intents() {
				switch i.Kind() {
				case intent.KindNodeTapped, intent.KindNodeDoubleTapped, intent.KindNodeOpened,
					intent.KindNodeDeleted, intent.KindEdgeDeleted, intent.KindEdgeCreated:
					t.Errorf("Two-finger sequence produced %s", i.Kind())
				}
			}
			if h.r.Link().StartNode != "" || len(h.r.Link().Selected) != 0 {
				t.Error("Two-finger sequence changed the link state")
			}
			if h.r.State() != Idle {
				t.Errorf("Expected idle, got %s", h.r.State())
			}
		})
	}
}

func TestPinchZoom(t *testing.T) {
	h := newHarness(t)

	h.send(0, PhaseDown, 100, 100, 0)
	h.send(1, PhaseDown, 200, 100, 10)
	if h.r.State() != Pinching {
		t.Fatalf("Expected %s, got %s", Pinching, h.r.State())
	}
	// world point under the initial focal point
	world := model.Point{X: 150, Y: 100}

	h.send(1, PhaseMove, 300, 100, 20)
	tr := h.view.Transform()
	if math.Abs(tr.Scale-2) > 1e-9 {
		t.Errorf("Expected scale 2, got %f", tr.Scale)
	}
	if got := tr.WorldToScreen(world); math.Abs(got.X-200) > 1e-9 || math.Abs(got.Y-100) > 1e-9 {
		t.Errorf("Focal world point should sit under the new focal point, got %v", got)
	}

	h.send(1, PhaseMove, 100, 100, 30)
	if got := h.view.Transform().Scale; got != viewport.MinScale {
		t.Errorf("Collapsed pinch should clamp to %f, got %f", viewport.MinScale, got)
	}

	h.send(1, PhaseMove, 300, 100, 40)
	h.send(1, PhaseUp, 300, 100, 50)
	h.send(0, PhaseUp, 100, 100, 60)
	if got := h.view.Baseline().Scale; math.Abs(got-2) > 1e-9 {
		t.Errorf("Expected committed scale 2, got %f", got)
	}
}

func TestPanRebasesAfterPinch(t *testing.T) {
	h := newHarness(t)

	h.send(0, PhaseDown, 100, 100, 0)
	h.send(1, PhaseDown, 200, 100, 10)
	h.send(1, PhaseMove, 300, 100, 20)
	h.send(1, PhaseUp, 300, 100, 30)

	before := h.view.Transform()
	h.send(0, PhaseMove, 100, 100, 40)
	if h.view.Transform() != before {
		t.Errorf("View jumped after the second finger lifted: %+v -> %+v", before, h.view.Transform())
	}
	h.send(0, PhaseMove, 110, 95, 50)
	after := h.view.Transform()
	if math.Abs(after.TranslateX-before.TranslateX-10) > 1e-9 || math.Abs(after.TranslateY-before.TranslateY+5) > 1e-9 {
		t.Errorf("Expected a (10,-5) pan, got %+v -> %+v", before, after)
	}
	if after.Scale != before.Scale {
		t.Error("Pan changed the scale")
	}

	h.send(0, PhaseUp, 110, 95, 60)
	if h.view.Baseline() != after {
		t.Error("Pan should commit on release")
	}
	h.expectKinds()
}

func TestLinkingCreatesEdge(t *testing.T) {
	h := newHarness(t, card("a", 0, 0, 50, 50), card("b", 200, 0, 50, 50))
	h.r.SetLinking(true)

	h.tap(25, 25, 0)
	if h.r.Link().StartNode != "a" {
		t.Fatalf("Expected pending source a, got %q", h.r.Link().StartNode)
	}
	h.tap(25, 25, 100)
	if h.r.Link().StartNode != "a" {
		t.Errorf("Tapping the source again should keep it, got %q", h.r.Link().StartNode)
	}
	h.tap(225, 25, 200)

	h.expectKinds(intent.KindEdgeCreated)
	e := h.intents()[0].(intent.EdgeCreated)
	if e.Source != "a" || e.Target != "b" {
		t.Errorf("Expected a -> b, got %s -> %s", e.Source, e.Target)
	}
	if e.SourceHandle != model.HandleRight || e.TargetHandle != model.HandleLeft {
		t.Errorf("Expected right -> left handles, got %s -> %s", e.SourceHandle, e.TargetHandle)
	}
	if h.r.Link().StartNode != "" {
		t.Error("Pending source should clear after creating an edge")
	}
	if len(h.r.Link().Selected) != 0 {
		t.Error("Linking taps must not touch the selection")
	}
}

func TestLinkingDeletesEdge(t *testing.T) {
	h := newHarness(t, card("a", 0, 0, 50, 50), card("b", 200, 0, 50, 50))
	h.scene.edges = []model.Edge{
		{ID: "e1", Source: "a", Target: "b", SourceHandle: model.HandleRight, TargetHandle: model.HandleLeft},
		{ID: "ghost", Source: "a", Target: "hidden", SourceHandle: model.HandleBottom, TargetHandle: model.HandleTop},
	}
	h.r.SetLinking(true)

	h.tap(125, 60, 0)
	h.expectKinds()

	h.tap(125, 35, 100)
	h.expectKinds(intent.KindEdgeDeleted)
	if got := h.intents()[0].(intent.EdgeDeleted).EdgeID; got != "e1" {
		t.Errorf("Expected e1 deleted, got %s", got)
	}

	// without linking an edge tap does nothing
	h.r.SetLinking(false)
	h.tap(125, 30, 200)
	h.r.Advance(ms(2000))
	h.expectKinds(intent.KindEdgeDeleted)
}

func TestSeeThroughDisablesTaps(t *testing.T) {
	parent := card("p", 0, 0, 200, 200)
	parent.SeeThrough = true
	child := card("c", 20, 40, 50, 50)
	child.ParentID, child.Depth, child.ZIndex = "p", 1, 10
	// stored at (500, 500), moved into the parent by layout
	child.Offset = model.Point{X: -480, Y: -460}

	h := newHarness(t, parent, child)
	h.scene.seeThrough = true

	h.tap(150, 150, 0)
	h.tap(150, 150, 100)
	h.send(0, PhaseDown, 150, 150, 1000)
	h.r.Advance(ms(2000))
	if h.r.State() == Pressing || h.r.State() == Confirmed {
		t.Error("Long-press must be disabled in see-through mode")
	}
	h.send(0, PhaseUp, 150, 150, 2100)
	h.r.Advance(ms(5000))
	h.expectKinds()

	// revealed children are drag targets, above their parent
	h.send(0, PhaseDown, 30, 50, 6000)
	h.send(0, PhaseMove, 60, 50, 6020)
	if id, _ := h.r.Dragging(); id != "c" {
		t.Errorf("Expected to drag the child, got %q", id)
	}
	h.send(0, PhaseUp, 60, 50, 6040)
	h.expectKinds(intent.KindPositionChanged)
	if got := h.intents()[0].(intent.PositionChanged).Position; got != (model.Point{X: 530, Y: 500}) {
		t.Errorf("Expected the stored position {530 500}, got %v", got)
	}
}

func TestDraggingParentMovesRevealedChildren(t *testing.T) {
	parent := card("p", 0, 0, 200, 200)
	child := card("c", 20, 40, 50, 50)
	child.ParentID, child.Depth, child.ZIndex = "p", 1, 10

	h := newHarness(t, parent, child)
	h.scene.seeThrough = true

	h.send(0, PhaseDown, 150, 150, 0)
	h.send(0, PhaseMove, 180, 170, 20)

	shown := h.r.Apply(h.scene.nodes)
	if got := position(shown, "p"); got != (model.Point{X: 30, Y: 20}) {
		t.Errorf("Expected parent at {30 20}, got %v", got)
	}
	if got := position(shown, "c"); got != (model.Point{X: 50, Y: 60}) {
		t.Errorf("Expected child to follow to {50 60}, got %v", got)
	}
}

func TestCancelAbortsWithoutEmitting(t *testing.T) {
	h := newHarness(t, card("a", 100, 100, 50, 50))

	h.send(0, PhaseDown, 120, 130, 0)
	h.send(0, PhaseMove, 160, 130, 20)
	h.send(0, PhaseCancel, 160, 130, 30)

	if got := position(h.r.Apply(h.scene.nodes), "a"); got != (model.Point{X: 100, Y: 100}) {
		t.Errorf("Cancel should revert the optimistic position, got %v", got)
	}

	h.send(0, PhaseDown, 500, 500, 100)
	h.send(0, PhaseMove, 560, 500, 120)
	h.send(0, PhaseCancel, 560, 500, 130)
	if h.view.Transform() != viewport.Identity {
		t.Errorf("Cancel should revert the pan, got %+v", h.view.Transform())
	}

	h.r.Advance(ms(5000))
	h.expectKinds()
	if h.r.State() != Idle {
		t.Errorf("Expected idle, got %s", h.r.State())
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := (&Options{LongPress: time.Second}).withDefaults()
	if o.LongPress != time.Second {
		t.Errorf("Expected override kept, got %v", o.LongPress)
	}
	if o.Slop != 10 || o.DoubleTapWindow != 300*time.Millisecond || o.EdgeThreshold != 15 {
		t.Errorf("Unexpected defaults: %+v", o)
	}
}

func TestParsePhase(t *testing.T) {
	for i, name := range phaseNames {
		p, err := ParsePhase(name)
		if err != nil || p != Phase(i) {
			t.Errorf("ParsePhase(%q) = %v, %v", name, p, err)
		}
	}
	if _, err := ParsePhase("hover"); err == nil {
		t.Error("Expected error for unknown phase")
	}
}
