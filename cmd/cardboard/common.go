package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/recera/cardboard/cmd/cardboard/internal/config"
	"github.com/recera/cardboard/internal/logging"
	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/debug"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/viewport"
	"github.com/recera/cardboard/pkg/workspace"
)

var (
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

type globalFlags struct {
	dir       string
	workspace string
	backend   string
	logLevel  string
	debug     bool
}

var flags globalFlags

func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.dir, "dir", "C", ".", "Project directory holding cardboard.toml")
	pf.StringVarP(&flags.workspace, "workspace", "w", "", "Workspace file (overrides config)")
	pf.StringVar(&flags.backend, "backend", "", "Workspace backend: yaml or sqlite (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.debug, "debug", false, "Log engine debug output")
}

// setup loads the config, applies flag overrides and builds the logger
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.workspace != "" {
		cfg.Workspace.Path = flags.workspace
	}
	if flags.backend != "" {
		cfg.Workspace.Backend = flags.backend
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(level)
	if flags.debug {
		debug.EnableLogging(logger)
	}
	return cfg, logger, nil
}

func workspacePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Workspace.Path) {
		return cfg.Workspace.Path
	}
	return filepath.Join(flags.dir, cfg.Workspace.Path)
}

func openStore(ctx context.Context, cfg *config.Config) (*workspace.Store, error) {
	path := workspacePath(cfg)
	if cfg.Workspace.Backend == "sqlite" {
		return workspace.OpenSQL(ctx, path)
	}
	return workspace.OpenFile(ctx, path)
}

func gestureOptions(cfg *config.Config) *gesture.Options {
	g := cfg.Gesture
	return &gesture.Options{
		Slop:              g.Slop,
		LongPress:         config.Ms(g.LongPressMS),
		TapMax:            config.Ms(g.TapMaxMS),
		DoubleTapWindow:   config.Ms(g.DoubleTapMS),
		DoubleTapDistance: g.DoubleTapDistance,
		DeleteRadius:      g.DeleteRadius,
		EdgeThreshold:     g.EdgeThreshold,
	}
}

func canvasOptions(cfg *config.Config) *canvas.Options {
	return &canvas.Options{
		FrameRate:  cfg.View.FrameRate,
		FitPadding: cfg.View.FitPadding,
		Gesture:    gestureOptions(cfg),
		Viewport: &viewport.Options{
			Duration: config.Ms(cfg.View.AnimationMS),
			MaxScale: cfg.View.MaxScale,
		},
	}
}
