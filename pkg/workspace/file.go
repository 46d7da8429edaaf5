package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/recera/cardboard/pkg/model"
)

// FileBackend keeps the snapshot in one YAML document. Records may omit
// position and size; they default to zero on load.
type FileBackend struct {
	path string

	mu       sync.Mutex
	lastSave []byte
}

// NewFileBackend uses the YAML file at path. A missing file is an empty
// workspace.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// OpenFile opens a store on a YAML file
func OpenFile(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, NewFileBackend(path))
}

// Path is the file being used
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads and ingests the file
func (b *FileBackend) Load(ctx context.Context) (model.Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Snapshot{}, nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	var raw model.RawSnapshot
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to parse %s: %w", b.path, err)
	}
	return model.Ingest(raw), nil
}

// Save writes the snapshot through a temporary file and a rename
func (b *FileBackend) Save(ctx context.Context, snap model.Snapshot) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap.Raw()); err != nil {
		return fmt.Errorf("failed to encode workspace: %w", err)
	}
	enc.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cardboard-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	b.lastSave = buf.Bytes()
	return nil
}

// Changed reports whether the file differs from what this backend last
// wrote, so watchers can skip their own saves
func (b *FileBackend) Changed() bool {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !bytes.Equal(data, b.lastSave)
}

// Close does nothing
func (b *FileBackend) Close() error {
	return nil
}
