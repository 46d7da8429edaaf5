package canvas

import (
	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/layout"
	"github.com/recera/cardboard/pkg/model"
	"github.com/recera/cardboard/pkg/viewport"
)

// EdgePath is an edge ready to stroke
type EdgePath struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   model.EdgeType `json:"type,omitempty"`
	D      string         `json:"d"`
	Path   geometry.Path  `json:"-"`
}

// LinkView is the linking and selection state as renderers see it
type LinkView struct {
	Active    bool     `json:"active"`
	StartNode string   `json:"startNode,omitempty"`
	Selected  []string `json:"selected"`
}

// Frame is everything a renderer needs to draw the canvas once. Renderers
// only read it; their only way back is pointer samples.
type Frame struct {
	Seq        uint64             `json:"seq"`
	Cursor     string             `json:"cursor"`
	SeeThrough bool               `json:"seeThrough"`
	Nodes      []model.Displayed  `json:"nodes"`
	Edges      []EdgePath         `json:"edges"`
	Transform  viewport.Transform `json:"transform"`
	Press      gesture.Press      `json:"press"`
	Link       LinkView           `json:"link"`
}

// Frame builds the current frame and clears the dirty flag. Dragged nodes
// are shown at their optimistic positions.
func (s *Session) Frame() Frame {
	s.seq++
	s.dirty = false

	nodes := s.rec.Apply(s.Displayed())
	lookup := layout.Lookup(nodes)
	visible := layout.VisibleEdges(s.Edges(), nodes)

	edges := make([]EdgePath, 0, len(visible))
	for _, e := range visible {
		p := geometry.StrokePath(e, lookup[e.Source], lookup[e.Target])
		edges = append(edges, EdgePath{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type,
			D:      p.SVG(),
			Path:   p,
		})
	}

	link := s.rec.Link()
	return Frame{
		Seq:        s.seq,
		Cursor:     s.Cursor(),
		SeeThrough: s.SeeThrough(),
		Nodes:      nodes,
		Edges:      edges,
		Transform:  s.view.Transform(),
		Press:      s.rec.PressState(),
		Link: LinkView{
			Active:    link.Active,
			StartNode: link.StartNode,
			Selected:  link.SelectedIDs(),
		},
	}
}
