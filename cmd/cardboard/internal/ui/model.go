// Package ui is the terminal canvas of the view command. Mouse input becomes
// pointer samples for a canvas session driven from the bubbletea loop, and
// intents are applied to the workspace on the intent bus goroutine.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/model"
)

// Store is the workspace the viewer edits
type Store interface {
	intent.Handler
	Snapshot(ctx context.Context) (model.Snapshot, model.Cursor, error)
	SetLabel(ctx context.Context, id, label string) error
}

// Options configures the viewer
type Options struct {
	Canvas     *canvas.Options
	CellWidth  float64 // world units per terminal column at scale 1
	CellHeight float64 // world units per terminal row at scale 1
	FrameRate  int
}

// Messages
type tickMsg time.Time

// appliedMsg reports an intent the application context has handled
type appliedMsg struct {
	intent intent.Intent
	err    error
}

// ReloadMsg asks the viewer to re-read the workspace
type ReloadMsg struct{ Err error }

// footerRows is the status line plus the help line
const footerRows = 2

// Model represents the viewer state
type Model struct {
	ctx   context.Context
	store Store
	opts  Options

	canvas  *canvas.Session
	bus     *intent.Bus
	applied chan appliedMsg

	frame    canvas.Frame
	lastTick time.Time
	pressed  bool

	// Window dimensions
	width  int
	height int

	// Label editor opened by a long press
	editing string
	editor  textinput.Model

	keys     KeyMap
	help     help.Model
	status   string
	quitting bool
}

// NewModel creates the viewer and starts its application context, which
// runs until ctx is done
func NewModel(ctx context.Context, store Store, opts Options) Model {
	if opts.CellWidth <= 0 {
		opts.CellWidth = 8
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 16
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}

	editor := textinput.New()
	editor.Placeholder = "label"
	editor.CharLimit = 80
	editor.Width = 40
	editor.Prompt = "✎ "

	m := Model{
		ctx:     ctx,
		store:   store,
		opts:    opts,
		applied: make(chan appliedMsg, 64),
		editor:  editor,
		keys:    DefaultKeyMap,
		help:    help.New(),
	}

	m.bus = intent.NewBus(intent.HandlerFunc(func(ctx context.Context, i intent.Intent) error {
		err := store.Apply(ctx, i)
		select {
		case m.applied <- appliedMsg{intent: i, err: err}:
		case <-ctx.Done():
		}
		return err
	}), 0)
	m.bus.Start(ctx)

	m.canvas = canvas.New(m.bus, opts.Canvas)
	m.reload()
	return m
}

// Wait blocks until the application context has stopped
func (m Model) Wait() {
	m.bus.Wait()
	m.canvas.Close()
}

// Init starts the frame ticker and the intent listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForApplied())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FrameRate), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForApplied() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.applied:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		m.refresh()
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		dt := time.Duration(0)
		if !m.lastTick.IsZero() {
			dt = now.Sub(m.lastTick)
		}
		m.lastTick = now
		m.canvas.Tick(now, dt)
		m.refresh()
		return m, m.tick()

	case appliedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.intent.Kind(), msg.err)
		} else {
			m.status = string(msg.intent.Kind())
		}
		m.reload()
		if open, ok := msg.intent.(intent.NodeOpened); ok && msg.err == nil {
			cmd := m.openEditor(open.NodeID)
			return m, tea.Batch(cmd, m.waitForApplied())
		}
		return m, m.waitForApplied()

	case ReloadMsg:
		if msg.Err != nil {
			m.status = "reload failed: " + msg.Err.Error()
		} else {
			m.status = "workspace changed on disk"
		}
		m.reload()
		return m, nil

	case tea.MouseMsg:
		if m.editing == "" {
			m.handleMouse(msg)
		}
		return m, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		if m.editing != "" {
			cmd = m.handleEditorKeys(msg)
		} else {
			cmd = m.handleKeys(msg)
		}
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) tea.Cmd {
	c := m.canvas
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	case key.Matches(msg, m.keys.Reset):
		c.Reset()
	case key.Matches(msg, m.keys.Center):
		if id, ok := c.Center(); ok {
			m.status = "centered on " + id
		}
	case key.Matches(msg, m.keys.Fit):
		c.FitAll()
	case key.Matches(msg, m.keys.SeeThrough):
		if c.ToggleSeeThrough() {
			m.status = "see-through on"
		} else {
			m.status = "see-through off"
		}
	case key.Matches(msg, m.keys.Link):
		on := !c.Link().Active
		c.SetLinking(on)
		if on {
			m.status = "link mode: tap a source, then a target"
		} else {
			m.status = "link mode off"
		}
	case key.Matches(msg, m.keys.Back):
		c.Back()
	case key.Matches(msg, m.keys.Clear):
		c.ClearSelection()
	case key.Matches(msg, m.keys.ZoomIn):
		c.ZoomAt(m.screenCenter(), 1.25)
	case key.Matches(msg, m.keys.ZoomOut):
		c.ZoomAt(m.screenCenter(), 0.8)
	case key.Matches(msg, m.keys.Align):
		n := int(msg.String()[0] - '1')
		kind := geometry.Alignments[n]
		if !c.Align(kind) {
			m.status = fmt.Sprintf("%s needs a larger selection", kind)
		}
	}
	m.refresh()
	return nil
}

func (m *Model) openEditor(id string) tea.Cmd {
	snap, _, err := m.store.Snapshot(m.ctx)
	if err != nil {
		m.status = err.Error()
		return nil
	}
	n, ok := snap.Find(id)
	if !ok {
		return nil
	}
	m.editing = id
	m.editor.SetValue(n.Data.Label)
	m.editor.CursorEnd()
	return m.editor.Focus()
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		if err := m.store.SetLabel(m.ctx, m.editing, m.editor.Value()); err != nil {
			m.status = err.Error()
		} else {
			m.status = "renamed " + m.editing
		}
		m.closeEditor()
		m.reload()
		return nil
	case key.Matches(msg, m.keys.Cancel):
		m.closeEditor()
		return nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return cmd
}

func (m *Model) closeEditor() {
	m.editing = ""
	m.editor.Blur()
	m.editor.SetValue("")
}

// handleMouse turns the left button into pointer 0 and the wheel into zoom
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if msg.Y >= m.canvasRows() && !m.pressed {
		return
	}
	p := m.cellToScreen(msg.X, msg.Y)
	now := time.Now()

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.canvas.ZoomAt(p, 1.1)
	case tea.MouseButtonWheelDown:
		m.canvas.ZoomAt(p, 1/1.1)
	default:
		var phase gesture.Phase
		switch {
		case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
			phase = gesture.PhaseDown
			m.pressed = true
		case msg.Action == tea.MouseActionMotion && m.pressed:
			phase = gesture.PhaseMove
		case msg.Action == tea.MouseActionRelease && m.pressed:
			phase = gesture.PhaseUp
			m.pressed = false
		default:
			return
		}
		m.canvas.HandleSample(gesture.Sample{Pointer: 0, Phase: phase, X: p.X, Y: p.Y, Time: now})
	}
	m.refresh()
}

// cellToScreen maps a terminal cell to the screen point at its center
func (m Model) cellToScreen(col, row int) model.Point {
	return model.Point{
		X: (float64(col) + 0.5) * m.opts.CellWidth,
		Y: (float64(row) + 0.5) * m.opts.CellHeight,
	}
}

func (m Model) screenCenter() model.Point {
	return model.Point{
		X: float64(m.width) * m.opts.CellWidth / 2,
		Y: float64(m.canvasRows()) * m.opts.CellHeight / 2,
	}
}

func (m *Model) resize() {
	m.canvas.SetViewport(float64(m.width)*m.opts.CellWidth, float64(m.canvasRows())*m.opts.CellHeight)
}

func (m Model) canvasRows() int {
	rows := m.height - footerRows
	if m.help.ShowAll {
		rows -= 3
	}
	if rows < 1 {
		return 1
	}
	return rows
}

func (m *Model) reload() {
	snap, cur, err := m.store.Snapshot(m.ctx)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.canvas.Load(snap)
	m.canvas.SetCursor(cur.Current)
	m.refresh()
}

func (m *Model) refresh() {
	if m.canvas.Dirty() {
		m.frame = m.canvas.Frame()
	}
}
