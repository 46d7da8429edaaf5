package gesture

import (
	"math"
	"time"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/layout"
	"github.com/recera/cardboard/pkg/model"
)

type pointer struct {
	start, last model.Point
}

// sequence is one touch sequence: first pointer down to last pointer up
type sequence struct {
	start   time.Time
	at      model.Point
	claimed bool // pan or pinch owns it
	moved   bool // went past slop
}

type panState struct {
	active  bool
	pointer int
	anchor  model.Point // screen point canvas pan is measured from
	node    string
	offset  model.Point // world pointer minus node position
	shown   model.Displayed
}

type pinchState struct {
	active  bool
	a, b    int
	initial float64
}

type pressState struct {
	node      string
	since     time.Time
	confirmed bool
}

type tap struct {
	at   model.Point
	time time.Time
}

// Recognizer is the gesture state machine of one canvas session. It is not
// safe for concurrent use; the animation context owns it.
type Recognizer struct {
	opts  Options
	scene Scene
	view  Viewport
	pub   intent.Publisher
	link  model.LinkState

	pointers map[int]*pointer
	order    []int

	seq     sequence
	pan     panState
	pinch   pinchState
	press   pressState
	pending *tap

	// optimistic positions of dragged nodes until the next snapshot
	overrides map[string]model.Point
}

// New creates a recognizer. pub may be nil, in which case intents are
// discarded.
func New(scene Scene, view Viewport, pub intent.Publisher, opts *Options) *Recognizer {
	return &Recognizer{
		opts:      opts.withDefaults(),
		scene:     scene,
		view:      view,
		pub:       pub,
		link:      model.NewLinkState(),
		pointers:  make(map[int]*pointer),
		overrides: make(map[string]model.Point),
	}
}

// State reports the current tagged state. While pan and pinch run together
// the state is Pinching.
func (r *Recognizer) State() State {
	switch {
	case r.pinch.active:
		return Pinching
	case r.pan.active:
		return Panning
	case r.press.confirmed:
		return Confirmed
	case r.press.node != "":
		return Pressing
	case r.pending != nil:
		return AwaitingDoubleTap
	}
	return Idle
}

// PressState is the visual press state for renderers
func (r *Recognizer) PressState() Press {
	p := Press{State: r.State()}
	switch p.State {
	case Pressing, Confirmed:
		p.NodeID, p.Since = r.press.node, r.press.since
	case Panning, Pinching:
		p.NodeID, p.Since = r.pan.node, r.seq.start
	case AwaitingDoubleTap:
		p.Since = r.pending.time
	}
	return p
}

// Link returns a copy of the linking and selection state
func (r *Recognizer) Link() model.LinkState {
	return r.link.Clone()
}

// SetLinking turns edge-drawing mode on or off
func (r *Recognizer) SetLinking(active bool) {
	r.link.SetLinking(active)
}

// ClearSelection empties the multi-select set
func (r *Recognizer) ClearSelection() {
	r.link.ClearSelection()
}

// Dragging returns the node being dragged, if any
func (r *Recognizer) Dragging() (string, bool) {
	return r.pan.node, r.pan.node != ""
}

// ResetOverrides forgets optimistic drag positions once fresh data has been
// loaded. A drag in progress keeps its position.
func (r *Recognizer) ResetOverrides() {
	for id := range r.overrides {
		if id != r.pan.node {
			delete(r.overrides, id)
		}
	}
}

// Apply returns displayed with optimistic drag positions applied. Children
// revealed inside a dragged parent move with it. The input is not modified.
func (r *Recognizer) Apply(displayed []model.Displayed) []model.Displayed {
	if len(r.overrides) == 0 {
		return displayed
	}
	out := make([]model.Displayed, len(displayed))
	copy(out, displayed)
	for id, pos := range r.overrides {
		for i := range out {
			if out[i].ID != id {
				continue
			}
			dx, dy := pos.X-out[i].Position.X, pos.Y-out[i].Position.Y
			out[i].Position = pos
			for j := range out {
				if out[j].Depth == 1 && out[j].ParentID == id {
					out[j].Position.X += dx
					out[j].Position.Y += dy
				}
			}
			break
		}
	}
	return out
}

// Handle feeds one pointer sample through the state machine
func (r *Recognizer) Handle(s Sample) {
	r.Advance(s.Time)
	p := s.Point()
	switch s.Phase {
	case PhaseDown:
		r.down(s.Pointer, p, s.Time)
	case PhaseMove:
		r.move(s.Pointer, p)
	case PhaseUp:
		r.up(s.Pointer, p, s.Time)
	case PhaseCancel:
		r.Cancel()
	}
}

// Advance runs the timers: long-press confirmation and the double-tap
// window. It is called by Handle and should also be called every frame.
func (r *Recognizer) Advance(now time.Time) {
	if now.IsZero() {
		return
	}
	if r.press.node != "" && !r.press.confirmed && len(r.pointers) == 1 &&
		now.Sub(r.press.since) >= r.opts.LongPress {
		r.press.confirmed = true
		if debugLog != nil {
			debugLog("[Gesture] long-press confirmed on", r.press.node)
		}
	}
	if r.pending != nil && len(r.pointers) == 0 && now.Sub(r.pending.time) > r.opts.DoubleTapWindow {
		r.flush()
	}
}

// Cancel aborts every gesture in flight without emitting anything. A node
// drag loses its optimistic position; a pan or pinch reverts to the baseline.
func (r *Recognizer) Cancel() {
	if r.pan.active {
		if r.pan.node != "" {
			delete(r.overrides, r.pan.node)
		} else {
			r.view.Revert()
		}
	}
	if r.pinch.active {
		r.view.Revert()
	}
	r.pending = nil
	r.pointers = make(map[int]*pointer)
	r.order = nil
	r.endSequence()
}

func (r *Recognizer) down(id int, p model.Point, now time.Time) {
	if _, ok := r.pointers[id]; ok {
		r.move(id, p)
		return
	}
	r.pointers[id] = &pointer{start: p, last: p}
	r.order = append(r.order, id)

	switch len(r.pointers) {
	case 1:
		r.seq = sequence{start: now, at: p}
		if r.holdEnabled() {
			if n, ok := r.nodeAt(p); ok {
				r.press = pressState{node: n.ID, since: now}
			}
		}
	case 2:
		// a second finger disqualifies taps for the rest of the sequence
		r.claim()
		if !r.link.Active {
			r.beginPinch()
		}
	}
}

func (r *Recognizer) move(id int, p model.Point) {
	ptr, ok := r.pointers[id]
	if !ok {
		return
	}
	ptr.last = p

	if r.pinch.active {
		if id == r.pinch.a || id == r.pinch.b {
			r.updatePinch()
		}
		return
	}
	if len(r.pointers) != 1 {
		return
	}
	if r.pan.active {
		if id == r.pan.pointer {
			r.updatePan(p)
		}
		return
	}
	if geometry.Distance(ptr.start, p) <= r.opts.Slop {
		return
	}

	r.press = pressState{}
	r.seq.moved = true
	if r.link.Active || r.seq.claimed {
		return
	}
	r.claim()
	r.beginPan(id, ptr.start)
	r.updatePan(p)
}

func (r *Recognizer) up(id int, p model.Point, now time.Time) {
	ptr, ok := r.pointers[id]
	if !ok {
		return
	}
	ptr.last = p
	delete(r.pointers, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.pinch.active && (id == r.pinch.a || id == r.pinch.b) {
		r.view.CommitPinch()
		r.pinch = pinchState{}
	}

	switch {
	case len(r.pointers) == 0:
		r.finish(now)
	case r.link.Active || r.pinch.active:
	case len(r.pointers) >= 2:
		r.beginPinch()
	default:
		r.rebasePan()
	}
}

// finish ends the sequence after the last pointer lifts
func (r *Recognizer) finish(now time.Time) {
	defer r.endSequence()

	if r.pan.active {
		if r.pan.node != "" {
			pos := r.pan.shown.Stored(r.overrides[r.pan.node])
			r.publish(intent.PositionChanged{NodeID: r.pan.node, Position: pos})
		} else {
			r.view.CommitPan()
		}
		return
	}
	if r.seq.claimed || r.seq.moved {
		r.flush()
		return
	}
	if r.press.confirmed {
		r.flush()
		r.publish(intent.NodeOpened{NodeID: r.press.node})
		return
	}
	if now.Sub(r.seq.start) > r.opts.TapMax {
		r.flush()
		return
	}
	r.tap(r.seq.at, now)
}

func (r *Recognizer) endSequence() {
	r.seq = sequence{}
	r.pan = panState{}
	r.pinch = pinchState{}
	r.press = pressState{}
}

// claim gives the sequence to pan/pinch. A tap still waiting for its double
// belongs to an earlier sequence and fires now.
func (r *Recognizer) claim() {
	r.seq.claimed = true
	r.press = pressState{}
	r.flush()
}

func (r *Recognizer) beginPan(id int, anchor model.Point) {
	r.pan = panState{active: true, pointer: id, anchor: anchor}
	if n, ok := r.nodeAt(anchor); ok {
		w := r.view.Transform().ScreenToWorld(anchor)
		r.pan.node, r.pan.shown = n.ID, n
		r.pan.offset = model.Point{X: w.X - n.Position.X, Y: w.Y - n.Position.Y}
		r.overrides[n.ID] = n.Position
		if debugLog != nil {
			debugLog("[Gesture] drag started on", n.ID)
		}
		return
	}
	r.view.BeginPan()
}

func (r *Recognizer) updatePan(p model.Point) {
	if r.pan.node != "" {
		w := r.view.Transform().ScreenToWorld(p)
		r.overrides[r.pan.node] = model.Point{X: w.X - r.pan.offset.X, Y: w.Y - r.pan.offset.Y}
		return
	}
	r.view.Pan(p.X-r.pan.anchor.X, p.Y-r.pan.anchor.Y)
}

// rebasePan continues with the one pointer left after a pinch so the view
// or the dragged node does not jump
func (r *Recognizer) rebasePan() {
	id := r.order[0]
	last := r.pointers[id].last
	if r.pan.active && r.pan.node != "" {
		w := r.view.Transform().ScreenToWorld(last)
		pos := r.overrides[r.pan.node]
		r.pan.pointer = id
		r.pan.offset = model.Point{X: w.X - pos.X, Y: w.Y - pos.Y}
		return
	}
	r.pan = panState{active: true, pointer: id, anchor: last}
	r.view.BeginPan()
}

func (r *Recognizer) beginPinch() {
	a, b := r.pointers[r.order[0]], r.pointers[r.order[1]]
	r.pinch = pinchState{
		active:  true,
		a:       r.order[0],
		b:       r.order[1],
		initial: geometry.Distance(a.last, b.last),
	}
	r.view.BeginPinch(midpoint(a.last, b.last))
}

func (r *Recognizer) updatePinch() {
	if r.pinch.initial <= 0 {
		return
	}
	a, b := r.pointers[r.pinch.a], r.pointers[r.pinch.b]
	ratio := geometry.Distance(a.last, b.last) / r.pinch.initial
	r.view.Pinch(ratio, midpoint(a.last, b.last))
}

// tap handles a completed single-finger tap, pairing it into a double tap
// when possible
func (r *Recognizer) tap(at model.Point, now time.Time) {
	if r.scene.SeeThrough() {
		return
	}
	if r.link.Active {
		r.singleTap(at)
		return
	}
	if r.pending != nil {
		first := *r.pending
		r.pending = nil
		if geometry.Distance(first.at, at) <= r.opts.DoubleTapDistance {
			if n, ok := r.nodeAt(at); ok {
				r.publish(intent.NodeDoubleTapped{NodeID: n.ID})
				return
			}
		}
		r.singleTap(first.at)
	}
	r.pending = &tap{at: at, time: now}
}

func (r *Recognizer) flush() {
	if r.pending == nil {
		return
	}
	t := r.pending
	r.pending = nil
	r.singleTap(t.at)
}

func (r *Recognizer) singleTap(at model.Point) {
	if r.scene.SeeThrough() {
		return
	}
	world := r.view.Transform().ScreenToWorld(at)
	displayed := r.Apply(r.scene.Displayed())

	if n, ok := topmost(displayed, func(d model.Displayed) bool {
		return geometry.Distance(geometry.DeleteButtonCenter(d.Node), world) <= r.opts.DeleteRadius
	}); ok {
		r.publish(intent.NodeDeleted{NodeID: n.ID})
		return
	}

	if n, ok := topmost(displayed, func(d model.Displayed) bool {
		return geometry.Contains(geometry.RectOf(d.Node), world)
	}); ok {
		if !r.link.Active {
			selected := r.link.Toggle(n.ID)
			r.publish(intent.NodeTapped{NodeID: n.ID, Selected: selected})
			return
		}
		r.linkTo(n.Node, displayed)
		return
	}

	if r.link.Active {
		if id, ok := r.edgeAt(world, displayed); ok {
			r.publish(intent.EdgeDeleted{EdgeID: id})
		}
	}
}

func (r *Recognizer) linkTo(n model.Node, displayed []model.Displayed) {
	start := r.link.StartNode
	if start == "" || start == n.ID {
		r.link.StartNode = n.ID
		return
	}
	src, ok := layout.Lookup(displayed)[start]
	if !ok {
		r.link.StartNode = n.ID
		return
	}
	r.publish(intent.EdgeCreated{
		Source:       src.ID,
		Target:       n.ID,
		SourceHandle: geometry.ClosestHandle(src, n),
		TargetHandle: geometry.ClosestHandle(n, src),
	})
	r.link.StartNode = ""
}

func (r *Recognizer) edgeAt(world model.Point, displayed []model.Displayed) (string, bool) {
	nodes := layout.Lookup(displayed)
	best, bestDist := "", math.Inf(1)
	for _, e := range layout.VisibleEdges(r.scene.Edges(), displayed) {
		d := geometry.DistanceToSegment(world, geometry.HitSegment(e, nodes[e.Source], nodes[e.Target]))
		if d <= r.opts.EdgeThreshold && d < bestDist {
			best, bestDist = e.ID, d
		}
	}
	return best, best != ""
}

// nodeAt returns the topmost displayed node whose body contains the screen
// point p
func (r *Recognizer) nodeAt(p model.Point) (model.Displayed, bool) {
	world := r.view.Transform().ScreenToWorld(p)
	return topmost(r.Apply(r.scene.Displayed()), func(d model.Displayed) bool {
		return geometry.Contains(geometry.RectOf(d.Node), world)
	})
}

func (r *Recognizer) holdEnabled() bool {
	return !r.scene.SeeThrough() && !r.link.Active
}

func (r *Recognizer) publish(i intent.Intent) {
	if debugLog != nil {
		debugLog("[Gesture] intent", i.Kind())
	}
	if r.pub != nil {
		r.pub.Publish(i)
	}
}

// topmost picks the match drawn last: highest ZIndex, later entries winning
// ties
func topmost(displayed []model.Displayed, match func(model.Displayed) bool) (model.Displayed, bool) {
	best := -1
	for i := range displayed {
		if !match(displayed[i]) {
			continue
		}
		if best < 0 || displayed[i].ZIndex >= displayed[best].ZIndex {
			best = i
		}
	}
	if best < 0 {
		return model.Displayed{}, false
	}
	return displayed[best], true
}

func midpoint(a, b model.Point) model.Point {
	return model.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
