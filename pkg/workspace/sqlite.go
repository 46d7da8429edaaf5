package workspace

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/recera/cardboard/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT PRIMARY KEY,
	parent_id   TEXT NOT NULL,
	x           REAL NOT NULL DEFAULT 0,
	y           REAL NOT NULL DEFAULT 0,
	width       REAL NOT NULL DEFAULT 0,
	height      REAL NOT NULL DEFAULT 0,
	label       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	attachment  TEXT NOT NULL DEFAULT '',
	z_index     INTEGER NOT NULL DEFAULT 0,
	ord         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS edges (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	target        TEXT NOT NULL,
	source_handle TEXT NOT NULL,
	target_handle TEXT NOT NULL,
	type          TEXT NOT NULL DEFAULT 'default',
	ord           INTEGER NOT NULL
);
`

// SQLBackend keeps the snapshot in a SQLite database
type SQLBackend struct {
	conn *sql.DB
}

// NewSQLBackend opens or creates the database at path
func NewSQLBackend(ctx context.Context, path string) (*SQLBackend, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLBackend{conn: conn}, nil
}

// OpenSQL opens a store on a SQLite database
func OpenSQL(ctx context.Context, path string) (*Store, error) {
	b, err := NewSQLBackend(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := Open(ctx, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

// Load reads every node and edge in insertion order
func (b *SQLBackend) Load(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot

	rows, err := b.conn.QueryContext(ctx, `
		SELECT id, parent_id, x, y, width, height, label, description, color, attachment, z_index
		FROM nodes ORDER BY ord
	`)
	if err != nil {
		return snap, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Position.X, &n.Position.Y, &n.Size.Width, &n.Size.Height,
			&n.Data.Label, &n.Data.Description, &n.Color, &n.Attachment, &n.ZIndex); err != nil {
			return snap, fmt.Errorf("scanning node: %w", err)
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	edgeRows, err := b.conn.QueryContext(ctx, `
		SELECT id, source, target, source_handle, target_handle, type
		FROM edges ORDER BY ord
	`)
	if err != nil {
		return snap, fmt.Errorf("querying edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var raw model.RawEdge
		if err := edgeRows.Scan(&raw.ID, &raw.Source, &raw.Target, &raw.SourceHandle, &raw.TargetHandle, &raw.Type); err != nil {
			return snap, fmt.Errorf("scanning edge: %w", err)
		}
		snap.Edges = append(snap.Edges, raw.Edge())
	}
	return snap, edgeRows.Err()
}

// Save replaces the stored snapshot in one transaction
func (b *SQLBackend) Save(ctx context.Context, snap model.Snapshot) error {
	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return fmt.Errorf("clearing nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM edges"); err != nil {
		return fmt.Errorf("clearing edges: %w", err)
	}

	for i, n := range snap.Nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, parent_id, x, y, width, height, label, description, color, attachment, z_index, ord)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.ParentID, n.Position.X, n.Position.Y, n.Size.Width, n.Size.Height,
			n.Data.Label, n.Data.Description, n.Color, n.Attachment, n.ZIndex, i)
		if err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}
	for i, e := range snap.Edges {
		t := e.Type
		if t == "" {
			t = model.EdgeDefault
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (id, source, target, source_handle, target_handle, type, ord)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.Source, e.Target, string(e.SourceHandle), string(e.TargetHandle), string(t), i)
		if err != nil {
			return fmt.Errorf("inserting edge %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection
func (b *SQLBackend) Close() error {
	return b.conn.Close()
}
