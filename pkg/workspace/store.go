// Package workspace is a reference application context for the canvas
// engine. A Store applies intents to a snapshot, persists the result through
// a Backend and owns the navigation cursor.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/model"
)

var (
	// ErrNodeNotFound is returned when an intent names an unknown node
	ErrNodeNotFound = errors.New("workspace: node not found")
	// ErrEdgeNotFound is returned when an intent names an unknown edge
	ErrEdgeNotFound = errors.New("workspace: edge not found")
	// ErrCycle is returned when descending into a node that is not a child
	// of the current level, which would break the cursor path
	ErrCycle = errors.New("workspace: node is not a child of the current level")
)

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Backend loads and saves whole snapshots
type Backend interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Save(ctx context.Context, snap model.Snapshot) error
	Close() error
}

// Store holds the current snapshot and cursor. It is safe for concurrent use.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	snap   model.Snapshot
	cursor model.Cursor
	opened string
}

// Open loads the backend's snapshot into a new store
func Open(ctx context.Context, b Backend) (*Store, error) {
	snap, err := b.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}
	return &Store{backend: b, snap: snap, cursor: model.NewCursor()}, nil
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// Snapshot returns a copy of the current snapshot and cursor
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, model.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.snap), s.cursor, nil
}

// Opened returns the node whose editor was last asked for, if any
func (s *Store) Opened() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opened, s.opened != ""
}

// Reload re-reads the backend, keeping the cursor when its levels still
// exist
func (s *Store) Reload(ctx context.Context) error {
	snap, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload workspace: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	for _, id := range append([]string{s.cursor.Current}, s.cursor.History...) {
		if _, ok := snap.Find(id); !ok && id != model.RootID {
			s.cursor = model.NewCursor()
			break
		}
	}
	return nil
}

// Apply performs one intent and persists the result
func (s *Store) Apply(ctx context.Context, i intent.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if debugLog != nil {
		debugLog("[Workspace] apply", i.Kind())
	}

	next := clone(s.snap)
	var err error
	switch v := i.(type) {
	case intent.PositionChanged:
		err = move(&next, v.NodeID, v.Position)

	case intent.AlignmentApplied:
		for _, c := range v.Changes {
			if err = move(&next, c.NodeID, c.Position); err != nil {
				break
			}
		}

	case intent.NodeDeleted:
		err = deleteNode(&next, v.NodeID)

	case intent.EdgeCreated:
		err = createEdge(&next, v)

	case intent.EdgeDeleted:
		err = deleteEdge(&next, v.EdgeID)

	case intent.NodeDoubleTapped:
		return s.descend(next, v.NodeID)

	case intent.NavigateBack:
		s.cursor, _ = s.cursor.Back()
		return nil

	case intent.NodeOpened:
		if _, ok := next.Find(v.NodeID); !ok {
			return fmt.Errorf("open %s: %w", v.NodeID, ErrNodeNotFound)
		}
		s.opened = v.NodeID
		return nil

	case intent.NodeTapped:
		// selection lives in the canvas session
		return nil

	default:
		return fmt.Errorf("workspace: unsupported intent %s", i.Kind())
	}
	if err != nil {
		return err
	}
	return s.commit(ctx, next)
}

// SetLabel renames a node
func (s *Store) SetLabel(ctx context.Context, id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.snap)
	n := index(next, id)
	if n < 0 {
		return fmt.Errorf("rename %s: %w", id, ErrNodeNotFound)
	}
	next.Nodes[n].Data.Label = label
	if s.opened == id {
		s.opened = ""
	}
	return s.commit(ctx, next)
}

func (s *Store) commit(ctx context.Context, next model.Snapshot) error {
	if err := s.backend.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	s.snap = next
	return nil
}

func (s *Store) descend(snap model.Snapshot, id string) error {
	n, ok := snap.Find(id)
	if !ok {
		return fmt.Errorf("descend %s: %w", id, ErrNodeNotFound)
	}
	if n.ParentID != s.cursor.Current {
		return fmt.Errorf("descend %s from %s: %w", id, s.cursor.Current, ErrCycle)
	}
	s.cursor = s.cursor.Descend(id)
	return nil
}

func move(snap *model.Snapshot, id string, p model.Point) error {
	n := index(*snap, id)
	if n < 0 {
		return fmt.Errorf("move %s: %w", id, ErrNodeNotFound)
	}
	snap.Nodes[n].Position = p
	return nil
}

// deleteNode removes a node, its whole subtree and every edge touching them
func deleteNode(snap *model.Snapshot, id string) error {
	if index(*snap, id) < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNodeNotFound)
	}

	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, n := range snap.Nodes {
			if doomed[n.ParentID] && !doomed[n.ID] {
				doomed[n.ID] = true
				grew = true
			}
		}
	}

	nodes := snap.Nodes[:0]
	for _, n := range snap.Nodes {
		if !doomed[n.ID] {
			nodes = append(nodes, n)
		}
	}
	edges := snap.Edges[:0]
	for _, e := range snap.Edges {
		if !doomed[e.Source] && !doomed[e.Target] {
			edges = append(edges, e)
		}
	}
	snap.Nodes, snap.Edges = nodes, edges
	return nil
}

func createEdge(snap *model.Snapshot, c intent.EdgeCreated) error {
	for _, id := range []string{c.Source, c.Target} {
		if index(*snap, id) < 0 {
			return fmt.Errorf("connect %s: %w", id, ErrNodeNotFound)
		}
	}
	for _, e := range snap.Edges {
		if e.Source == c.Source && e.Target == c.Target && e.SourceHandle == c.SourceHandle && e.TargetHandle == c.TargetHandle {
			return nil
		}
	}

	id := fmt.Sprintf("e-%s-%s", c.Source, c.Target)
	for n := 2; hasEdge(*snap, id); n++ {
		id = fmt.Sprintf("e-%s-%s-%d", c.Source, c.Target, n)
	}
	snap.Edges = append(snap.Edges, model.Edge{
		ID:           id,
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
		Type:         model.EdgeDefault,
	})
	return nil
}

func deleteEdge(snap *model.Snapshot, id string) error {
	for i, e := range snap.Edges {
		if e.ID == id {
			snap.Edges = append(snap.Edges[:i], snap.Edges[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete edge %s: %w", id, ErrEdgeNotFound)
}

func hasEdge(snap model.Snapshot, id string) bool {
	for _, e := range snap.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

func index(snap model.Snapshot, id string) int {
	for i, n := range snap.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func clone(s model.Snapshot) model.Snapshot {
	return model.Snapshot{
		Nodes: append([]model.Node(nil), s.Nodes...),
		Edges: append([]model.Edge(nil), s.Edges...),
	}
}
