// Package model holds the records shared by every part of the canvas engine:
// nodes, edges, the navigation cursor, the linking/selection state and the
// displayed-node projection produced by layout.
package model

import (
	"sort"
	"strings"
)

// RootID is the parent id of top-level nodes. It has no parent itself.
const RootID = "root"

// Point is a position in world coordinates
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width/height pair
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NodeData is the textual content of a card
type NodeData struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Node is a card on the canvas. Position is the top-left corner in the
// coordinate space of the parent context.
type Node struct {
	ID         string   `json:"id" yaml:"id"`
	ParentID   string   `json:"parentId" yaml:"parentId"`
	Position   Point    `json:"position" yaml:"position"`
	Size       Size     `json:"size" yaml:"size"`
	Data       NodeData `json:"data" yaml:"data"`
	Color      string   `json:"color,omitempty" yaml:"color,omitempty"`
	Attachment string   `json:"attachment,omitempty" yaml:"attachment,omitempty"`
	ZIndex     int      `json:"zIndex,omitempty" yaml:"zIndex,omitempty"`
}

// Handle is one of the four compass anchors on a node's rectangle
type Handle string

const (
	HandleTop    Handle = "top"
	HandleBottom Handle = "bottom"
	HandleLeft   Handle = "left"
	HandleRight  Handle = "right"
)

// ParseHandle normalizes a handle name. Both the short form ("right") and
// the prefixed form ("handleRight") are accepted. Unknown names are returned
// as-is with ok=false.
func ParseHandle(name string) (Handle, bool) {
	n := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(name, "handle"), "Handle"))
	switch Handle(n) {
	case HandleTop, HandleBottom, HandleLeft, HandleRight:
		return Handle(n), true
	}
	return Handle(name), false
}

// EdgeType selects how many arrowheads an edge carries
type EdgeType string

const (
	EdgeDefault       EdgeType = "default"
	EdgeBidirectional EdgeType = "bidirectional"
)

// Edge connects two nodes by id
type Edge struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	SourceHandle Handle   `json:"sourceHandle" yaml:"sourceHandle"`
	TargetHandle Handle   `json:"targetHandle" yaml:"targetHandle"`
	Type         EdgeType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Snapshot is everything the application context hands to the engine
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Children returns the nodes whose parent is parentID, in input order.
func (s Snapshot) Children(parentID string) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.ParentID == parentID {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the node with the given id.
func (s Snapshot) Find(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Displayed is a node as it is drawn and hit-tested this frame. It is derived
// from a Node by layout and is never persisted.
type Displayed struct {
	Node
	// Depth is 0 for nodes of the current level and 1 for children revealed
	// in see-through mode.
	Depth int `json:"depth"`
	// SeeThrough marks a parent that is drawn with its children inside it.
	SeeThrough bool `json:"seeThrough,omitempty"`
	// Offset is how far layout moved the node from its stored position
	Offset Point `json:"offset"`
}

// Stored maps a displayed position of d back to the node's own coordinate
// space
func (d Displayed) Stored(p Point) Point {
	return Point{X: p.X - d.Offset.X, Y: p.Y - d.Offset.Y}
}

// LinkState is the edge-drawing and multi-select state of one canvas session.
// StartNode (pending edge source) and Selected (multi-select set) are
// unrelated.
type LinkState struct {
	Active    bool
	StartNode string
	Selected  map[string]bool
}

// NewLinkState returns an inactive link state with an empty selection
func NewLinkState() LinkState {
	return LinkState{Selected: make(map[string]bool)}
}

// SetLinking turns edge-drawing mode on or off and forgets any pending source
func (l *LinkState) SetLinking(active bool) {
	l.Active = active
	l.StartNode = ""
}

// Toggle flips membership of id in the selection and reports the new state
func (l *LinkState) Toggle(id string) bool {
	if l.Selected == nil {
		l.Selected = make(map[string]bool)
	}
	if l.Selected[id] {
		delete(l.Selected, id)
		return false
	}
	l.Selected[id] = true
	return true
}

// ClearSelection empties the multi-select set
func (l *LinkState) ClearSelection() {
	l.Selected = make(map[string]bool)
}

// SelectedIDs returns the selection sorted by id
func (l LinkState) SelectedIDs() []string {
	ids := make([]string, 0, len(l.Selected))
	for id := range l.Selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy that shares nothing with l
func (l LinkState) Clone() LinkState {
	c := LinkState{Active: l.Active, StartNode: l.StartNode, Selected: make(map[string]bool, len(l.Selected))}
	for id := range l.Selected {
		c.Selected[id] = true
	}
	return c
}
