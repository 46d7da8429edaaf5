package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gesture.LongPressMS != 800 {
		t.Errorf("Expected long press 800ms, got %d", cfg.Gesture.LongPressMS)
	}
	if cfg.View.FrameRate != 60 {
		t.Errorf("Expected 60 fps, got %d", cfg.View.FrameRate)
	}
	if cfg.Workspace.Backend != "yaml" || cfg.Workspace.Path != "cardboard.yaml" || !cfg.Workspace.Watch {
		t.Errorf("Unexpected workspace defaults %+v", cfg.Workspace)
	}
	if cfg.Addr() != "localhost:7420" {
		t.Errorf("Expected localhost:7420, got %s", cfg.Addr())
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	data := `
log_level = "debug"

[gesture]
long_press_ms = 600
slop = 4

[workspace]
backend = "sqlite"

[serve]
port = 9000
allowed_origins = ["http://localhost:3000"]
`
	if err := os.WriteFile(filepath.Join(dir, TOMLFile), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gesture.LongPressMS != 600 || cfg.Gesture.Slop != 4 {
		t.Errorf("Expected gesture overrides, got %+v", cfg.Gesture)
	}
	if cfg.Gesture.DoubleTapMS != 300 {
		t.Errorf("Missing values should take defaults, got %d", cfg.Gesture.DoubleTapMS)
	}
	if cfg.Workspace.Path != "cardboard.db" {
		t.Errorf("Expected the sqlite default path, got %s", cfg.Workspace.Path)
	}
	if cfg.Serve.Port != 9000 || len(cfg.Serve.AllowedOrigins) != 1 {
		t.Errorf("Unexpected serve config %+v", cfg.Serve)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected debug, got %s", cfg.LogLevel)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	data := `{"view": {"frameRate": 30}, "workspace": {"path": "board.yaml", "watch": false}}`
	os.WriteFile(filepath.Join(dir, JSONFile), []byte(data), 0o644)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.View.FrameRate != 30 {
		t.Errorf("Expected 30 fps, got %d", cfg.View.FrameRate)
	}
	if cfg.Workspace.Path != "board.yaml" || cfg.Workspace.Watch {
		t.Errorf("Unexpected workspace config %+v", cfg.Workspace)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, TOMLFile), []byte("gesture = ["), 0o644)

	if _, err := Load(dir); err == nil {
		t.Error("Expected an error for malformed TOML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Serve.Port = 8123

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Serve.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", loaded.Serve.Port)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
	cfg.Workspace.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}
