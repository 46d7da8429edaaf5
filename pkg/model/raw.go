package model

// RawNode is a node as it arrives from loose external data, where position
// and size may be missing. It is only used at the ingestion boundary.
type RawNode struct {
	ID         string   `json:"id" yaml:"id"`
	ParentID   string   `json:"parentId" yaml:"parentId"`
	Position   *Point   `json:"position,omitempty" yaml:"position,omitempty"`
	Size       *Size    `json:"size,omitempty" yaml:"size,omitempty"`
	Data       NodeData `json:"data" yaml:"data"`
	Color      string   `json:"color,omitempty" yaml:"color,omitempty"`
	Attachment string   `json:"attachment,omitempty" yaml:"attachment,omitempty"`
	ZIndex     int      `json:"zIndex,omitempty" yaml:"zIndex,omitempty"`
}

// Complete reports whether both position and size are present
func (r RawNode) Complete() bool {
	return r.Position != nil && r.Size != nil
}

// Node converts r to a Node, defaulting missing geometry to zero and an empty
// parent to the root.
func (r RawNode) Node() Node {
	n := Node{
		ID:         r.ID,
		ParentID:   r.ParentID,
		Data:       r.Data,
		Color:      r.Color,
		Attachment: r.Attachment,
		ZIndex:     r.ZIndex,
	}
	if n.ParentID == "" {
		n.ParentID = RootID
	}
	if r.Position != nil {
		n.Position = *r.Position
	}
	if r.Size != nil {
		n.Size = *r.Size
	}
	return n
}

// RawEdge is an edge as it arrives from loose external data. Handle names may
// use the legacy "handleRight" spelling.
type RawEdge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle" yaml:"sourceHandle"`
	TargetHandle string `json:"targetHandle" yaml:"targetHandle"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Edge converts r to an Edge. Unknown edge types become EdgeDefault.
func (r RawEdge) Edge() Edge {
	sh, _ := ParseHandle(r.SourceHandle)
	th, _ := ParseHandle(r.TargetHandle)
	t := EdgeType(r.Type)
	if t != EdgeBidirectional {
		t = EdgeDefault
	}
	return Edge{ID: r.ID, Source: r.Source, Target: r.Target, SourceHandle: sh, TargetHandle: th, Type: t}
}

// RawSnapshot is the loose form of Snapshot
type RawSnapshot struct {
	Nodes []RawNode `json:"nodes" yaml:"nodes"`
	Edges []RawEdge `json:"edges" yaml:"edges"`
}

// Ingest converts loose records to a Snapshot
func Ingest(raw RawSnapshot) Snapshot {
	s := Snapshot{
		Nodes: make([]Node, 0, len(raw.Nodes)),
		Edges: make([]Edge, 0, len(raw.Edges)),
	}
	for _, n := range raw.Nodes {
		s.Nodes = append(s.Nodes, n.Node())
	}
	for _, e := range raw.Edges {
		s.Edges = append(s.Edges, e.Edge())
	}
	return s
}

// Raw converts a Snapshot back to its loose form for writing
func (s Snapshot) Raw() RawSnapshot {
	raw := RawSnapshot{
		Nodes: make([]RawNode, 0, len(s.Nodes)),
		Edges: make([]RawEdge, 0, len(s.Edges)),
	}
	for _, n := range s.Nodes {
		pos, size := n.Position, n.Size
		raw.Nodes = append(raw.Nodes, RawNode{
			ID: n.ID, ParentID: n.ParentID, Position: &pos, Size: &size,
			Data: n.Data, Color: n.Color, Attachment: n.Attachment, ZIndex: n.ZIndex,
		})
	}
	for _, e := range s.Edges {
		raw.Edges = append(raw.Edges, RawEdge{
			ID: e.ID, Source: e.Source, Target: e.Target,
			SourceHandle: string(e.SourceHandle), TargetHandle: string(e.TargetHandle),
			Type: string(e.Type),
		})
	}
	return raw
}
