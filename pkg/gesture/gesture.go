// Package gesture turns raw pointer samples into semantic intents.
//
// A Recognizer arbitrates pan, pinch, double-tap, long-press and single-tap
// with the fixed priority (pan ∥ pinch) > double-tap > long-press > single-tap.
// Pan and pinch may run together; once either claims a touch sequence no tap,
// double-tap or long-press fires for it. A sequence ends when every pointer
// is up.
package gesture

import (
	"fmt"
	"strings"
	"time"

	"github.com/recera/cardboard/pkg/model"
	"github.com/recera/cardboard/pkg/viewport"
)

// State is the recognizer's tagged state
type State int

const (
	Idle State = iota
	Panning
	Pinching
	AwaitingDoubleTap
	Pressing
	Confirmed
)

var stateNames = [...]string{"idle", "panning", "pinching", "awaiting-double-tap", "pressing", "confirmed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for i, n := range stateNames {
		if n == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown gesture state %q", text)
}

// Phase is the lifecycle stage of one pointer sample
type Phase uint8

const (
	PhaseDown Phase = iota
	PhaseMove
	PhaseUp
	PhaseCancel
)

var phaseNames = [...]string{"down", "move", "up", "cancel"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase accepts the names printed by Phase.String
func ParsePhase(s string) (Phase, error) {
	for i, n := range phaseNames {
		if strings.EqualFold(s, n) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pointer phase %q", s)
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	v, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Sample is one raw pointer event in screen coordinates
type Sample struct {
	Pointer int
	Phase   Phase
	X, Y    float64
	Time    time.Time
}

// Point returns the sample position
func (s Sample) Point() model.Point {
	return model.Point{X: s.X, Y: s.Y}
}

// Scene is what the recognizer hit-tests against. Displayed returns nodes in
// render order.
type Scene interface {
	Displayed() []model.Displayed
	Edges() []model.Edge
	SeeThrough() bool
}

// Viewport is the part of the view transform controller gestures drive
type Viewport interface {
	Transform() viewport.Transform
	BeginPan()
	Pan(dx, dy float64)
	CommitPan()
	BeginPinch(focal model.Point)
	Pinch(ratio float64, focal model.Point)
	CommitPinch()
	Revert()
}

// Options are the recognizer thresholds
type Options struct {
	Slop              float64       // movement that turns a press into a pan, default 10
	LongPress         time.Duration // default 800ms
	TapMax            time.Duration // longest press still counted as a tap, default 500ms
	DoubleTapWindow   time.Duration // default 300ms
	DoubleTapDistance float64       // default 20
	DeleteRadius      float64       // default 11
	EdgeThreshold     float64       // default 15
}

func (o *Options) withDefaults() Options {
	d := Options{
		Slop:              10,
		LongPress:         800 * time.Millisecond,
		TapMax:            500 * time.Millisecond,
		DoubleTapWindow:   300 * time.Millisecond,
		DoubleTapDistance: 20,
		DeleteRadius:      11,
		EdgeThreshold:     15,
	}
	if o == nil {
		return d
	}
	if o.Slop > 0 {
		d.Slop = o.Slop
	}
	if o.LongPress > 0 {
		d.LongPress = o.LongPress
	}
	if o.TapMax > 0 {
		d.TapMax = o.TapMax
	}
	if o.DoubleTapWindow > 0 {
		d.DoubleTapWindow = o.DoubleTapWindow
	}
	if o.DoubleTapDistance > 0 {
		d.DoubleTapDistance = o.DoubleTapDistance
	}
	if o.DeleteRadius > 0 {
		d.DeleteRadius = o.DeleteRadius
	}
	if o.EdgeThreshold > 0 {
		d.EdgeThreshold = o.EdgeThreshold
	}
	return d
}

// Press is the visual press state handed to renderers
type Press struct {
	State  State     `json:"state"`
	NodeID string    `json:"nodeId,omitempty"`
	Since  time.Time `json:"since"`
}

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}
