// Package canvas runs one interactive canvas: the animation context that owns
// the view transform and the gesture recognizer, recomputes the displayed
// nodes when its inputs change, and hands intents to the application
// context without waiting on it.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/layout"
	"github.com/recera/cardboard/pkg/model"
	"github.com/recera/cardboard/pkg/reactive"
	"github.com/recera/cardboard/pkg/viewport"
)

// ErrRunning is returned by Run when the session loop is already active
var ErrRunning = errors.New("canvas session already running")

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Options configures a Session
type Options struct {
	FrameRate    int     // frames per second of Run, default 60
	SampleBuffer int     // queued pointer samples, default 256
	FitPadding   float64 // screen padding used by FitAll, default 40
	Gesture      *gesture.Options
	Viewport     *viewport.Options
	// OnFrame receives a frame from Run whenever something visible changed.
	// It runs on the animation goroutine and must not block.
	OnFrame func(Frame)
}

func (o *Options) withDefaults() Options {
	d := Options{FrameRate: 60, SampleBuffer: 256, FitPadding: 40}
	if o == nil {
		return d
	}
	d.Gesture, d.Viewport, d.OnFrame = o.Gesture, o.Viewport, o.OnFrame
	if o.FrameRate > 0 {
		d.FrameRate = o.FrameRate
	}
	if o.SampleBuffer > 0 {
		d.SampleBuffer = o.SampleBuffer
	}
	if o.FitPadding > 0 {
		d.FitPadding = o.FitPadding
	}
	return d
}

// Session is one canvas. Its methods are not safe for concurrent use: call
// them from the goroutine running Run (through Do), or drive the session
// synchronously without Run.
type Session struct {
	opts Options
	pub  intent.Publisher
	view *viewport.Controller
	rec  *gesture.Recognizer

	nodes      *reactive.State[[]model.Node]
	edges      *reactive.State[[]model.Edge]
	cursor     *reactive.State[string]
	seeThrough *reactive.State[bool]
	layout     *reactive.Computed[layout.Result]
	watch      *reactive.Watcher

	samples  chan gesture.Sample
	commands chan func(*Session)
	running  atomic.Bool

	dirty bool
	seq   uint64
	clock func() time.Time
}

// New creates a session publishing intents to pub
func New(pub intent.Publisher, opts *Options) *Session {
	o := opts.withDefaults()
	s := &Session{
		opts:       o,
		pub:        pub,
		view:       viewport.New(o.Viewport),
		nodes:      reactive.NewState[[]model.Node]("nodes", nil),
		edges:      reactive.NewState[[]model.Edge]("edges", nil),
		cursor:     reactive.NewState("cursor", model.RootID),
		seeThrough: reactive.NewState("seeThrough", false),
		samples:    make(chan gesture.Sample, o.SampleBuffer),
		commands:   make(chan func(*Session), 16),
		dirty:      true,
		clock:      time.Now,
	}
	s.layout = reactive.NewComputed(s.computeLayout, s.nodes, s.cursor, s.seeThrough)
	s.watch = reactive.Watch(s.markDirty, s.layout, s.edges)
	s.rec = gesture.New(s, s.view, pub, o.Gesture)
	return s
}

func (s *Session) computeLayout() layout.Result {
	res := layout.Compute(s.nodes.Get(), s.cursor.Get(), s.seeThrough.Get())
	if !res.Converged && debugLog != nil {
		debugLog("[Canvas] overlap resolution stopped after", res.Iterations, "iterations")
	}
	return res
}

func (s *Session) markDirty() {
	s.dirty = true
}

// Displayed returns the laid-out nodes in render order, without optimistic
// drag positions
func (s *Session) Displayed() []model.Displayed {
	return s.layout.Get().Nodes
}

// Edges returns every edge of the loaded snapshot
func (s *Session) Edges() []model.Edge {
	return s.edges.Get()
}

// SeeThrough reports whether children are revealed inside their parents
func (s *Session) SeeThrough() bool {
	return s.seeThrough.Get()
}

// Cursor is the id of the level being viewed
func (s *Session) Cursor() string {
	return s.cursor.Get()
}

// Viewport exposes the view transform controller
func (s *Session) Viewport() *viewport.Controller {
	return s.view
}

// Link returns a copy of the linking and selection state
func (s *Session) Link() model.LinkState {
	return s.rec.Link()
}

// Load replaces the nodes and edges. Optimistic drag positions not belonging
// to a drag in progress are dropped.
func (s *Session) Load(snap model.Snapshot) {
	s.nodes.Set(snap.Nodes)
	s.edges.Set(snap.Edges)
	s.rec.ResetOverrides()
	s.dirty = true
}

// SetCursor changes the level being viewed. Selection and any pending edge
// source are cleared.
func (s *Session) SetCursor(id string) {
	if id == "" {
		id = model.RootID
	}
	if id == s.cursor.Get() {
		return
	}
	s.cursor.Set(id)
	s.rec.ClearSelection()
	// forget the pending edge source
	s.rec.SetLinking(s.rec.Link().Active)
}

// ToggleSeeThrough flips see-through mode and returns the new value
func (s *Session) ToggleSeeThrough() bool {
	v := !s.seeThrough.Get()
	s.seeThrough.Set(v)
	return v
}

// SetLinking turns edge-drawing mode on or off
func (s *Session) SetLinking(active bool) {
	s.rec.SetLinking(active)
	s.dirty = true
}

// ClearSelection empties the multi-select set
func (s *Session) ClearSelection() {
	s.rec.ClearSelection()
	s.dirty = true
}

// Back asks the application context to return to the previous level. It
// reports false at the root.
func (s *Session) Back() bool {
	if s.cursor.Get() == model.RootID {
		return false
	}
	s.publish(intent.NavigateBack{})
	return true
}

// Align computes new positions for the selected displayed nodes and
// publishes them in each node's stored coordinates. It reports false when the selection is too small.
func (s *Session) Align(kind geometry.Alignment) bool {
	link := s.rec.Link()
	var members []model.Node
	shown := make(map[string]model.Displayed)
	for _, d := range s.rec.Apply(s.Displayed()) {
		if link.Selected[d.ID] {
			members = append(members, d.Node)
			shown[d.ID] = d
		}
	}
	changes := geometry.Align(members, kind)
	if len(changes) == 0 {
		return false
	}
	for i, c := range changes {
		changes[i].Position = shown[c.NodeID].Stored(c.Position)
	}
	s.publish(intent.AlignmentApplied{Alignment: kind, Changes: changes})
	return true
}

// Reset animates the view back to the identity transform
func (s *Session) Reset() {
	s.view.Reset()
	s.dirty = true
}

// Center animates the node nearest the viewport center into the center
func (s *Session) Center() (string, bool) {
	id, ok := s.view.CenterOnNearest(s.rec.Apply(s.Displayed()))
	s.dirty = s.dirty || ok
	return id, ok
}

// FitAll animates the view to show every displayed node
func (s *Session) FitAll() bool {
	ok := s.view.FitAll(s.rec.Apply(s.Displayed()), s.opts.FitPadding)
	s.dirty = s.dirty || ok
	return ok
}

// Focus animates the view onto one displayed node
func (s *Session) Focus(id string, scale float64) bool {
	n, ok := layout.Lookup(s.rec.Apply(s.Displayed()))[id]
	if !ok {
		return false
	}
	s.view.Focus(n, scale)
	s.dirty = true
	return true
}

// ZoomAt zooms by factor around a screen point
func (s *Session) ZoomAt(p model.Point, factor float64) {
	s.view.ZoomAt(p, factor)
	s.dirty = true
}

// SetViewport records the screen size
func (s *Session) SetViewport(width, height float64) {
	s.view.SetViewport(width, height)
	s.dirty = true
}

// HandleSample feeds one pointer sample to the recognizer
func (s *Session) HandleSample(sample gesture.Sample) {
	s.rec.Handle(sample)
	s.dirty = true
}

// Tick advances timers and animations to now. dt is the time since the
// previous tick.
func (s *Session) Tick(now time.Time, dt time.Duration) {
	before := s.rec.PressState().State
	s.rec.Advance(now)
	if s.view.Step(dt) || s.rec.PressState().State != before {
		s.dirty = true
	}
}

// Dirty reports whether anything visible changed since the last frame was
// taken
func (s *Session) Dirty() bool {
	return s.dirty
}

func (s *Session) publish(i intent.Intent) {
	if s.pub != nil {
		s.pub.Publish(i)
	}
}

// Send queues a pointer sample for Run. It blocks only while the queue is
// full.
func (s *Session) Send(ctx context.Context, sample gesture.Sample) error {
	select {
	case s.samples <- sample:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the session goroutine
func (s *Session) Do(ctx context.Context, fn func(*Session)) error {
	select {
	case s.commands <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the animation context: it applies queued samples and commands and
// ticks at the frame rate until ctx is done. Frames go to Options.OnFrame.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FrameRate))
	defer ticker.Stop()

	last := s.clock()
	for {
		select {
		case <-ctx.Done():
			s.rec.Cancel()
			return nil
		case sample := <-s.samples:
			s.safely("sample", func() { s.HandleSample(sample) })
		case fn := <-s.commands:
			s.safely("command", func() { fn(s) })
		case <-ticker.C:
			now := s.clock()
			s.safely("tick", func() { s.Tick(now, now.Sub(last)) })
			last = now
			if s.dirty && s.opts.OnFrame != nil {
				s.opts.OnFrame(s.Frame())
			}
		}
	}
}

// safely keeps one bad sample or command from stopping the loop
func (s *Session) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil && debugLog != nil {
			debugLog("[Canvas]", fmt.Sprintf("panic in %s: %v\n%s", what, r, debug.Stack()))
		}
	}()
	fn()
}

// Close detaches the session's derived values
func (s *Session) Close() {
	s.watch.Stop()
	s.layout.Dispose()
}
