package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/model"
	"github.com/recera/cardboard/pkg/viewport"
)

// Style definitions
var (
	// Colors
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	modeStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)
)

type ink uint8

const (
	inkNone ink = iota
	inkEdge
	inkNode
	inkLabel
	inkSelected
	inkPressed
	inkLinkSource
	inkDelete
	inkSeeThrough
)

var inks = map[ink]lipgloss.Style{
	inkEdge:       lipgloss.NewStyle().Foreground(mutedColor),
	inkNode:       lipgloss.NewStyle().Foreground(lipgloss.Color("#e2e8f0")),
	inkLabel:      lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true),
	inkSelected:   lipgloss.NewStyle().Foreground(primaryColor).Bold(true),
	inkPressed:    lipgloss.NewStyle().Foreground(warningColor).Bold(true),
	inkLinkSource: lipgloss.NewStyle().Foreground(successColor).Bold(true),
	inkDelete:     lipgloss.NewStyle().Foreground(errorColor),
	inkSeeThrough: lipgloss.NewStyle().Foreground(mutedColor).Faint(true),
}

type cell struct {
	r   rune
	ink ink
}

// grid is a character canvas of terminal cells
type grid struct {
	w, h  int
	cells []cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([]cell, w*h)}
	for i := range g.cells {
		g.cells[i].r = ' '
	}
	return g
}

func (g *grid) set(x, y int, r rune, k ink) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y*g.w+x] = cell{r: r, ink: k}
}

func (g *grid) text(x, y int, s string, max int, k ink) {
	i := 0
	for _, r := range s {
		if i >= max {
			break
		}
		g.set(x+i, y, r, k)
		i++
	}
}

// line plots a straight run of dots between two cells
func (g *grid) line(x0, y0, x1, y1 int, r rune, k ink) {
	steps := max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		g.set(x0, y0, r, k)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(float64(x0) + t*float64(x1-x0)))
		y := int(math.Round(float64(y0) + t*float64(y1-y0)))
		g.set(x, y, r, k)
	}
}

// box draws a bordered rectangle, filling it unless hollow
func (g *grid) box(x0, y0, x1, y1 int, hollow bool, k ink) {
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	if !hollow {
		for y := y0 + 1; y < y1; y++ {
			for x := x0 + 1; x < x1; x++ {
				g.set(x, y, ' ', inkNone)
			}
		}
	}
	for x := x0 + 1; x < x1; x++ {
		g.set(x, y0, '─', k)
		g.set(x, y1, '─', k)
	}
	for y := y0 + 1; y < y1; y++ {
		g.set(x0, y, '│', k)
		g.set(x1, y, '│', k)
	}
	g.set(x0, y0, '╭', k)
	g.set(x1, y0, '╮', k)
	g.set(x0, y1, '╰', k)
	g.set(x1, y1, '╯', k)
}

func (g *grid) String() string {
	var b strings.Builder
	for y := 0; y < g.h; y++ {
		row := g.cells[y*g.w : (y+1)*g.w]
		for start := 0; start < len(row); {
			end := start
			var run strings.Builder
			for end < len(row) && row[end].ink == row[start].ink {
				run.WriteRune(row[end].r)
				end++
			}
			if style, ok := inks[row[start].ink]; ok {
				b.WriteString(style.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			start = end
		}
		if y < g.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// painter projects world coordinates onto terminal cells
type painter struct {
	t          viewport.Transform
	cellWidth  float64
	cellHeight float64
}

func (p painter) cell(w model.Point) (int, int) {
	s := p.t.WorldToScreen(w)
	return int(math.Floor(s.X / p.cellWidth)), int(math.Floor(s.Y / p.cellHeight))
}

// drawFrame renders one frame onto a grid of the given size
func drawFrame(f canvas.Frame, width, height int, cellWidth, cellHeight float64) *grid {
	g := newGrid(width, height)
	p := painter{t: f.Transform, cellWidth: cellWidth, cellHeight: cellHeight}

	for _, e := range f.Edges {
		for _, pts := range e.Path.Flatten(12) {
			for i := 1; i < len(pts); i++ {
				x0, y0 := p.cell(pts[i-1])
				x1, y1 := p.cell(pts[i])
				g.line(x0, y0, x1, y1, '·', inkEdge)
			}
		}
	}

	selected := make(map[string]bool, len(f.Link.Selected))
	for _, id := range f.Link.Selected {
		selected[id] = true
	}
	pressed := ""
	if f.Press.State == gesture.Pressing || f.Press.State == gesture.Confirmed || f.Press.State == gesture.Panning {
		pressed = f.Press.NodeID
	}

	for _, d := range f.Nodes {
		x0, y0 := p.cell(d.Position)
		x1, y1 := p.cell(model.Point{X: d.Position.X + d.Size.Width, Y: d.Position.Y + d.Size.Height})

		k := inkNode
		switch {
		case d.ID == pressed:
			k = inkPressed
		case d.ID == f.Link.StartNode:
			k = inkLinkSource
		case selected[d.ID]:
			k = inkSelected
		case d.SeeThrough:
			k = inkSeeThrough
		}
		g.box(x0, y0, x1, y1, d.SeeThrough, k)

		label := d.Data.Label
		if label == "" {
			label = d.ID
		}
		g.text(x0+1, y0+1, label, x1-x0-1, inkLabel)
		if !f.SeeThrough {
			g.set(x1, y0, '×', inkDelete)
		}
	}
	return g
}

// View renders the viewer
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading…"
	}

	body := drawFrame(m.frame, m.width, m.canvasRows(), m.opts.CellWidth, m.opts.CellHeight).String()

	var footer string
	if m.editing != "" {
		footer = m.editor.View() + "\n" + m.help.View(editorKeys{m.keys})
	} else {
		footer = m.statusLine() + "\n" + m.help.View(m.keys)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m Model) statusLine() string {
	f := m.frame
	var modes []string
	if f.Link.Active {
		modes = append(modes, "LINK")
	}
	if f.SeeThrough {
		modes = append(modes, "SEE-THROUGH")
	}
	if n := len(f.Link.Selected); n > 0 {
		modes = append(modes, fmt.Sprintf("%d selected", n))
	}

	left := fmt.Sprintf("level %s  %3.0f%%  %s", f.Cursor, f.Transform.Scale*100, f.Press.State)
	line := statusStyle.Render(left)
	if len(modes) > 0 {
		line += "  " + modeStyle.Render(strings.Join(modes, " "))
	}
	if m.status != "" {
		line += "  " + statusStyle.Render(m.status)
	}
	return line
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
