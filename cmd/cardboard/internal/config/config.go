package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// File names searched in the project directory, in order
const (
	TOMLFile = "cardboard.toml"
	JSONFile = "cardboard.json"
)

// Config represents cardboard.toml or cardboard.json
type Config struct {
	Gesture   GestureConfig   `toml:"gesture" json:"gesture"`
	View      ViewConfig      `toml:"view" json:"view"`
	Serve     ServeConfig     `toml:"serve" json:"serve"`
	Workspace WorkspaceConfig `toml:"workspace" json:"workspace"`
	LogLevel  string          `toml:"log_level" json:"logLevel,omitempty"`
}

// GestureConfig tunes the gesture recognizer. Durations are milliseconds.
type GestureConfig struct {
	Slop              float64 `toml:"slop" json:"slop,omitempty"`
	LongPressMS       int     `toml:"long_press_ms" json:"longPressMs,omitempty"`
	TapMaxMS          int     `toml:"tap_max_ms" json:"tapMaxMs,omitempty"`
	DoubleTapMS       int     `toml:"double_tap_ms" json:"doubleTapMs,omitempty"`
	DoubleTapDistance float64 `toml:"double_tap_distance" json:"doubleTapDistance,omitempty"`
	DeleteRadius      float64 `toml:"delete_radius" json:"deleteRadius,omitempty"`
	EdgeThreshold     float64 `toml:"edge_threshold" json:"edgeThreshold,omitempty"`
}

// ViewConfig controls the canvas frame loop and view animation
type ViewConfig struct {
	FrameRate   int     `toml:"frame_rate" json:"frameRate,omitempty"`
	AnimationMS int     `toml:"animation_ms" json:"animationMs,omitempty"`
	MaxScale    float64 `toml:"max_scale" json:"maxScale,omitempty"`
	FitPadding  float64 `toml:"fit_padding" json:"fitPadding,omitempty"`
	// CellWidth and CellHeight are the world size of one terminal cell
	CellWidth  float64 `toml:"cell_width" json:"cellWidth,omitempty"`
	CellHeight float64 `toml:"cell_height" json:"cellHeight,omitempty"`
}

// ServeConfig configures the websocket server
type ServeConfig struct {
	Host           string   `toml:"host" json:"host,omitempty"`
	Port           int      `toml:"port" json:"port,omitempty"`
	PingSeconds    int      `toml:"ping_seconds" json:"pingSeconds,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowedOrigins,omitempty"`
}

// WorkspaceConfig selects where the workspace is stored
type WorkspaceConfig struct {
	Backend string `toml:"backend" json:"backend,omitempty"` // "yaml" | "sqlite"
	Path    string `toml:"path" json:"path,omitempty"`
	Watch   bool   `toml:"watch" json:"watch"`
	// DebounceMS delays reloads after external edits
	DebounceMS int `toml:"debounce_ms" json:"debounceMs,omitempty"`
}

// Load reads cardboard.toml, or cardboard.json when there is no TOML file,
// from projectPath. With neither present the defaults are returned.
func Load(projectPath string) (*Config, error) {
	tomlPath := filepath.Join(projectPath, TOMLFile)
	if _, err := os.Stat(tomlPath); err == nil {
		var config Config
		if _, err := toml.DecodeFile(tomlPath, &config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
		applyDefaults(&config)
		return &config, nil
	}

	jsonPath := filepath.Join(projectPath, JSONFile)
	data, err := os.ReadFile(jsonPath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
	}

	// Apply defaults for missing values
	applyDefaults(&config)

	return &config, nil
}

// Save writes the configuration to cardboard.toml
func Save(config *Config, projectPath string) error {
	f, err := os.Create(filepath.Join(projectPath, TOMLFile))
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(config)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	config := &Config{
		Workspace: WorkspaceConfig{Watch: true},
	}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing values
func applyDefaults(config *Config) {
	g := &config.Gesture
	if g.Slop <= 0 {
		g.Slop = 10
	}
	if g.LongPressMS <= 0 {
		g.LongPressMS = 800
	}
	if g.TapMaxMS <= 0 {
		g.TapMaxMS = 500
	}
	if g.DoubleTapMS <= 0 {
		g.DoubleTapMS = 300
	}
	if g.DoubleTapDistance <= 0 {
		g.DoubleTapDistance = 20
	}
	if g.DeleteRadius <= 0 {
		g.DeleteRadius = 11
	}
	if g.EdgeThreshold <= 0 {
		g.EdgeThreshold = 15
	}

	v := &config.View
	if v.FrameRate <= 0 {
		v.FrameRate = 60
	}
	if v.AnimationMS <= 0 {
		v.AnimationMS = 300
	}
	if v.FitPadding <= 0 {
		v.FitPadding = 40
	}
	if v.CellWidth <= 0 {
		v.CellWidth = 8
	}
	if v.CellHeight <= 0 {
		v.CellHeight = 16
	}

	s := &config.Serve
	if s.Host == "" {
		s.Host = "localhost"
	}
	if s.Port == 0 {
		s.Port = 7420
	}
	if s.PingSeconds <= 0 {
		s.PingSeconds = 54
	}

	w := &config.Workspace
	if w.Backend == "" {
		w.Backend = "yaml"
	}
	if w.Path == "" {
		if w.Backend == "sqlite" {
			w.Path = "cardboard.db"
		} else {
			w.Path = "cardboard.yaml"
		}
	}
	if w.DebounceMS <= 0 {
		w.DebounceMS = 100
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	switch c.Workspace.Backend {
	case "yaml", "sqlite":
	default:
		return fmt.Errorf("unknown workspace backend %q", c.Workspace.Backend)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Serve.Port)
	}
	return nil
}

// Addr is the listen address of the server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Serve.Host, c.Serve.Port)
}

// Ms converts a millisecond setting to a duration
func Ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
