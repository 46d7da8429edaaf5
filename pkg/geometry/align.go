package geometry

import (
	"fmt"
	"sort"

	"github.com/recera/cardboard/pkg/model"
)

// Alignment names an align or distribute operation on a selection
type Alignment string

const (
	AlignTop              Alignment = "top"
	AlignMiddle           Alignment = "middle"
	AlignBottom           Alignment = "bottom"
	AlignLeft             Alignment = "left"
	AlignCenter           Alignment = "center"
	AlignRight            Alignment = "right"
	AlignSpreadHorizontal Alignment = "spread-horizontal"
	AlignSpreadVertical   Alignment = "spread-vertical"
)

// Alignments lists every supported operation
var Alignments = []Alignment{
	AlignTop, AlignMiddle, AlignBottom,
	AlignLeft, AlignCenter, AlignRight,
	AlignSpreadHorizontal, AlignSpreadVertical,
}

// ParseAlignment validates an alignment name
func ParseAlignment(s string) (Alignment, error) {
	for _, a := range Alignments {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown alignment %q", s)
}

// Placement is the new position of one node
type Placement struct {
	NodeID   string      `json:"nodeId"`
	Position model.Point `json:"position"`
}

// Align computes new positions for nodes. The input slice is not modified.
// The six align operations need at least two nodes, the spread operations at
// least three; below that the result is empty.
func Align(nodes []model.Node, kind Alignment) []Placement {
	need := 2
	if kind == AlignSpreadHorizontal || kind == AlignSpreadVertical {
		need = 3
	}
	if len(nodes) < need {
		return nil
	}

	switch kind {
	case AlignSpreadHorizontal:
		return spread(nodes, true)
	case AlignSpreadVertical:
		return spread(nodes, false)
	}

	bounds, _ := Bounds(nodes)
	var sumX, sumY float64
	for _, n := range nodes {
		c := CenterOf(n)
		sumX += c.X
		sumY += c.Y
	}
	meanX := sumX / float64(len(nodes))
	meanY := sumY / float64(len(nodes))

	out := make([]Placement, 0, len(nodes))
	for _, n := range nodes {
		p := n.Position
		switch kind {
		case AlignTop:
			p.Y = bounds.Y
		case AlignMiddle:
			p.Y = meanY - n.Size.Height/2
		case AlignBottom:
			p.Y = bounds.MaxY() - n.Size.Height
		case AlignLeft:
			p.X = bounds.X
		case AlignCenter:
			p.X = meanX - n.Size.Width/2
		case AlignRight:
			p.X = bounds.MaxX() - n.Size.Width
		default:
			return nil
		}
		out = append(out, Placement{NodeID: n.ID, Position: p})
	}
	return out
}

// spread keeps the first and last node along the axis in place and spaces
// the rest with equal gaps
func spread(nodes []model.Node, horizontal bool) []Placement {
	sorted := make([]model.Node, len(nodes))
	copy(sorted, nodes)

	start := func(n model.Node) float64 {
		if horizontal {
			return n.Position.X
		}
		return n.Position.Y
	}
	extent := func(n model.Node) float64 {
		if horizontal {
			return n.Size.Width
		}
		return n.Size.Height
	}
	sort.SliceStable(sorted, func(i, j int) bool { return start(sorted[i]) < start(sorted[j]) })

	first, last := sorted[0], sorted[len(sorted)-1]
	span := start(last) + extent(last) - start(first)
	var total float64
	for _, n := range sorted {
		total += extent(n)
	}
	gap := (span - total) / float64(len(sorted)-1)

	out := make([]Placement, 0, len(sorted))
	cursor := start(first)
	for _, n := range sorted {
		p := n.Position
		if horizontal {
			p.X = cursor
		} else {
			p.Y = cursor
		}
		out = append(out, Placement{NodeID: n.ID, Position: p})
		cursor += extent(n) + gap
	}
	// pin the trailing member against float drift
	if horizontal {
		out[len(out)-1].Position.X = last.Position.X
	} else {
		out[len(out)-1].Position.Y = last.Position.Y
	}
	return out
}
