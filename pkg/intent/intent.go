// Package intent defines the semantic events the canvas engine emits toward
// the application context, and the bus that carries them across from the
// animation context without blocking it.
package intent

import (
	"encoding/json"
	"fmt"

	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/model"
)

// Kind names an intent
type Kind string

const (
	KindPositionChanged  Kind = "position_changed"
	KindNodeDeleted      Kind = "node_deleted"
	KindNodeOpened       Kind = "node_opened"
	KindNodeTapped       Kind = "node_tapped"
	KindNodeDoubleTapped Kind = "node_double_tapped"
	KindEdgeCreated      Kind = "edge_created"
	KindEdgeDeleted      Kind = "edge_deleted"
	KindNavigateBack     Kind = "navigate_back"
	KindAlignmentApplied Kind = "alignment_applied"
)

// Intent is an immutable record of something the user asked for
type Intent interface {
	Kind() Kind
}

// PositionChanged asks to persist a node's position after a drag
type PositionChanged struct {
	NodeID   string      `json:"nodeId"`
	Position model.Point `json:"position"`
}

// NodeDeleted asks to delete a node
type NodeDeleted struct {
	NodeID string `json:"nodeId"`
}

// NodeOpened asks to open the editor for a node (confirmed long-press)
type NodeOpened struct {
	NodeID string `json:"nodeId"`
}

// NodeTapped reports a tap on a node body outside linking mode
type NodeTapped struct {
	NodeID   string `json:"nodeId"`
	Selected bool   `json:"selected"`
}

// NodeDoubleTapped asks to navigate into a node
type NodeDoubleTapped struct {
	NodeID string `json:"nodeId"`
}

// EdgeCreated asks to connect two nodes
type EdgeCreated struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	SourceHandle model.Handle `json:"sourceHandle"`
	TargetHandle model.Handle `json:"targetHandle"`
}

// EdgeDeleted asks to remove an edge
type EdgeDeleted struct {
	EdgeID string `json:"edgeId"`
}

// NavigateBack asks to return to the previous level
type NavigateBack struct{}

// AlignmentApplied carries the new positions produced by an alignment
type AlignmentApplied struct {
	Alignment geometry.Alignment   `json:"alignment"`
	Changes   []geometry.Placement `json:"changes"`
}

func (PositionChanged) Kind() Kind  { return KindPositionChanged }
func (NodeDeleted) Kind() Kind      { return KindNodeDeleted }
func (NodeOpened) Kind() Kind       { return KindNodeOpened }
func (NodeTapped) Kind() Kind       { return KindNodeTapped }
func (NodeDoubleTapped) Kind() Kind { return KindNodeDoubleTapped }
func (EdgeCreated) Kind() Kind      { return KindEdgeCreated }
func (EdgeDeleted) Kind() Kind      { return KindEdgeDeleted }
func (NavigateBack) Kind() Kind     { return KindNavigateBack }
func (AlignmentApplied) Kind() Kind { return KindAlignmentApplied }

// Envelope is the wire form of an intent: its kind plus its fields
type Envelope struct {
	Type   Kind            `json:"type"`
	Intent json.RawMessage `json:"intent"`
}

// Marshal encodes i with its kind
func Marshal(i Intent) ([]byte, error) {
	body, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", i.Kind(), err)
	}
	return json.Marshal(Envelope{Type: i.Kind(), Intent: body})
}

// Unmarshal decodes an Envelope back into a concrete intent
func Unmarshal(data []byte) (Intent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var target Intent
	switch env.Type {
	case KindPositionChanged:
		target = &PositionChanged{}
	case KindNodeDeleted:
		target = &NodeDeleted{}
	case KindNodeOpened:
		target = &NodeOpened{}
	case KindNodeTapped:
		target = &NodeTapped{}
	case KindNodeDoubleTapped:
		target = &NodeDoubleTapped{}
	case KindEdgeCreated:
		target = &EdgeCreated{}
	case KindEdgeDeleted:
		target = &EdgeDeleted{}
	case KindNavigateBack:
		return NavigateBack{}, nil
	case KindAlignmentApplied:
		target = &AlignmentApplied{}
	default:
		return nil, fmt.Errorf("unknown intent type %q", env.Type)
	}
	if err := json.Unmarshal(env.Intent, target); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	return deref(target), nil
}

func deref(i Intent) Intent {
	switch v := i.(type) {
	case *PositionChanged:
		return *v
	case *NodeDeleted:
		return *v
	case *NodeOpened:
		return *v
	case *NodeTapped:
		return *v
	case *NodeDoubleTapped:
		return *v
	case *EdgeCreated:
		return *v
	case *EdgeDeleted:
		return *v
	case *AlignmentApplied:
		return *v
	}
	return i
}
