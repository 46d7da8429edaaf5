// Package viewport owns the pan/zoom transform of a canvas session and its
// animated transitions.
//
// A Controller is driven from the animation context only: gesture updates and
// Step calls must come from the same goroutine.
package viewport

import (
	"math"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/model"
)

// MinScale is the smallest zoom factor ever applied
const MinScale = 0.1

// DefaultDuration is the length of Reset and CenterOnNearest animations
const DefaultDuration = 300 * time.Millisecond

// Transform maps world to screen coordinates: screen = world*Scale + Translate
type Transform struct {
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Scale      float64 `json:"scale"`
}

// Identity is the untransformed view
var Identity = Transform{Scale: 1}

// ScreenToWorld converts a screen point to world coordinates
func (t Transform) ScreenToWorld(p model.Point) model.Point {
	return model.Point{X: (p.X - t.TranslateX) / t.Scale, Y: (p.Y - t.TranslateY) / t.Scale}
}

// WorldToScreen converts a world point to screen coordinates
func (t Transform) WorldToScreen(p model.Point) model.Point {
	return model.Point{X: p.X*t.Scale + t.TranslateX, Y: p.Y*t.Scale + t.TranslateY}
}

// ClampScale applies the lower zoom bound
func ClampScale(s float64) float64 {
	if s < MinScale || math.IsNaN(s) {
		return MinScale
	}
	return s
}

// Options configures a Controller
type Options struct {
	Duration time.Duration // default 300ms
	MaxScale float64       // 0 means unbounded
}

func (o *Options) withDefaults() Options {
	d := Options{Duration: DefaultDuration}
	if o == nil {
		return d
	}
	if o.Duration > 0 {
		d.Duration = o.Duration
	}
	if o.MaxScale > 0 {
		d.MaxScale = o.MaxScale
	}
	return d
}

// Controller holds the live transform, its committed baseline and any
// running animation
type Controller struct {
	opts Options

	live Transform
	base Transform

	width, height float64

	anim *animation

	// pinch origin in world coordinates and the scale it started from
	pinchOrigin model.Point
	pinchScale  float64
}

type animation struct {
	target   Transform
	elapsed  time.Duration
	velocity [3]float64
	spring   harmonica.Spring
	stepDT   time.Duration
}

// New creates a controller at the identity transform
func New(opts *Options) *Controller {
	return &Controller{
		opts: opts.withDefaults(),
		live: Identity,
		base: Identity,
	}
}

// SetViewport records the viewport size in screen units
func (c *Controller) SetViewport(width, height float64) {
	c.width, c.height = width, height
}

// Viewport returns the viewport size
func (c *Controller) Viewport() (width, height float64) {
	return c.width, c.height
}

// Transform returns the live transform
func (c *Controller) Transform() Transform {
	return c.live
}

// Baseline returns the committed transform
func (c *Controller) Baseline() Transform {
	return c.base
}

// Animating reports whether an animation is in flight
func (c *Controller) Animating() bool {
	return c.anim != nil
}

func (c *Controller) clamp(s float64) float64 {
	s = ClampScale(s)
	if c.opts.MaxScale > 0 && s > c.opts.MaxScale {
		s = c.opts.MaxScale
	}
	return s
}

// animateTo starts (or retargets) an animation toward t
func (c *Controller) animateTo(t Transform) {
	t.Scale = c.clamp(t.Scale)
	if c.anim != nil {
		c.anim.target = t
		c.anim.elapsed = 0
		return
	}
	c.anim = &animation{target: t}
}

// Step advances the running animation by dt and reports whether one is still
// in flight. When the animation's duration has elapsed the live values snap
// to the target and become the new baseline.
func (c *Controller) Step(dt time.Duration) bool {
	a := c.anim
	if a == nil {
		return false
	}
	if dt <= 0 {
		return true
	}
	a.elapsed += dt
	if a.elapsed >= c.opts.Duration {
		c.live = a.target
		c.base = a.target
		c.anim = nil
		return false
	}

	if a.stepDT != dt {
		// settle in roughly the animation duration
		freq := 6.0 / c.opts.Duration.Seconds()
		a.spring = harmonica.NewSpring(dt.Seconds(), freq, 1.0)
		a.stepDT = dt
	}
	c.live.TranslateX, a.velocity[0] = a.spring.Update(c.live.TranslateX, a.velocity[0], a.target.TranslateX)
	c.live.TranslateY, a.velocity[1] = a.spring.Update(c.live.TranslateY, a.velocity[1], a.target.TranslateY)
	s, v := a.spring.Update(c.live.Scale, a.velocity[2], a.target.Scale)
	c.live.Scale, a.velocity[2] = c.clamp(s), v
	return true
}

// Finish jumps any running animation to its end
func (c *Controller) Finish() {
	if c.anim != nil {
		c.Step(c.opts.Duration)
	}
}

// Reset animates back to scale 1 and zero translation
func (c *Controller) Reset() {
	c.animateTo(Identity)
}

// ScreenCenterWorld is the world point currently at the viewport center
func (c *Controller) ScreenCenterWorld() model.Point {
	return c.live.ScreenToWorld(model.Point{X: c.width / 2, Y: c.height / 2})
}

// CenterOnNearest animates the view so the displayed node nearest to the
// viewport center sits exactly at the center, keeping the current scale. It
// returns the chosen node id, or false when nothing is displayed.
func (c *Controller) CenterOnNearest(displayed []model.Displayed) (string, bool) {
	if len(displayed) == 0 {
		return "", false
	}
	center := c.ScreenCenterWorld()
	best := 0
	bestDist := math.Inf(1)
	for i, d := range displayed {
		if dist := geometry.Distance(geometry.CenterOf(d.Node), center); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	c.centerOn(geometry.CenterOf(displayed[best].Node), c.live.Scale)
	return displayed[best].ID, true
}

// Focus animates the view to put n at the center at the given scale. A
// non-positive scale keeps the current one.
func (c *Controller) Focus(n model.Node, scale float64) {
	if scale <= 0 {
		scale = c.live.Scale
	}
	c.centerOn(geometry.CenterOf(n), scale)
}

func (c *Controller) centerOn(p model.Point, scale float64) {
	scale = c.clamp(scale)
	c.animateTo(Transform{
		TranslateX: c.width/2 - p.X*scale,
		TranslateY: c.height/2 - p.Y*scale,
		Scale:      scale,
	})
}

// FitAll animates the view so every node is visible with padding screen
// units around the group.
func (c *Controller) FitAll(displayed []model.Displayed, padding float64) bool {
	nodes := make([]model.Node, len(displayed))
	for i, d := range displayed {
		nodes[i] = d.Node
	}
	bounds, ok := geometry.Bounds(nodes)
	if !ok || c.width <= 0 || c.height <= 0 {
		return false
	}
	gw, gh := math.Max(bounds.Width, 1), math.Max(bounds.Height, 1)
	s := math.Min((c.width-2*padding)/gw, (c.height-2*padding)/gh)
	if s <= 0 {
		s = 1
	}
	c.centerOn(bounds.Center(), s)
	return true
}

// ZoomAt multiplies the scale by factor keeping the world point under the
// screen point p fixed. It applies immediately and commits.
func (c *Controller) ZoomAt(p model.Point, factor float64) {
	c.interrupt()
	world := c.live.ScreenToWorld(p)
	s := c.clamp(c.live.Scale * factor)
	c.live = Transform{TranslateX: p.X - world.X*s, TranslateY: p.Y - world.Y*s, Scale: s}
	c.base = c.live
}

// interrupt stops an animation where it is so a gesture can take over
func (c *Controller) interrupt() {
	if c.anim != nil {
		c.anim = nil
		c.base = c.live
	}
}

// BeginPan prepares for canvas-pan updates relative to the baseline
func (c *Controller) BeginPan() {
	c.interrupt()
}

// Pan sets the translation to baseline plus (dx, dy)
func (c *Controller) Pan(dx, dy float64) {
	c.interrupt()
	c.live.TranslateX = c.base.TranslateX + dx
	c.live.TranslateY = c.base.TranslateY + dy
}

// CommitPan makes the live translation the new baseline
func (c *Controller) CommitPan() {
	c.base.TranslateX = c.live.TranslateX
	c.base.TranslateY = c.live.TranslateY
}

// BeginPinch captures the world point under focal and the current scale
func (c *Controller) BeginPinch(focal model.Point) {
	c.interrupt()
	c.base = c.live
	c.pinchOrigin = c.live.ScreenToWorld(focal)
	c.pinchScale = c.live.Scale
}

// Pinch scales the pinch baseline by ratio and keeps the captured world
// point under focal
func (c *Controller) Pinch(ratio float64, focal model.Point) {
	c.interrupt()
	s := c.clamp(c.pinchScale * ratio)
	c.live = Transform{
		TranslateX: focal.X - c.pinchOrigin.X*s,
		TranslateY: focal.Y - c.pinchOrigin.Y*s,
		Scale:      s,
	}
}

// CommitPinch makes the live scale and translation the new baseline
func (c *Controller) CommitPinch() {
	c.base = c.live
}

// Revert drops uncommitted gesture changes
func (c *Controller) Revert() {
	c.interrupt()
	c.live = c.base
}
