package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/cardboard/cmd/cardboard/internal/config"
	"github.com/recera/cardboard/cmd/cardboard/internal/ui"
)

func newViewCommand() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the workspace on a terminal canvas",
		Long: `View draws the workspace in the terminal. Drag cards and the canvas with
the mouse, zoom with the wheel, double-click a card to enter it and hold the
button on a card to rename it. Press ? for every key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			m := ui.NewModel(ctx, store, ui.Options{
				Canvas:     canvasOptions(cfg),
				CellWidth:  cfg.View.CellWidth,
				CellHeight: cfg.View.CellHeight,
				FrameRate:  min(cfg.View.FrameRate, 30),
			})
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

			if cfg.Workspace.Watch && !noWatch && cfg.Workspace.Backend == "yaml" {
				go func() {
					err := store.Watch(ctx, config.Ms(cfg.Workspace.DebounceMS), func(err error) {
						p.Send(ui.ReloadMsg{Err: err})
					})
					if err != nil {
						logger.Warn("not watching workspace", "error", err)
					}
				}()
			}

			_, err = p.Run()
			cancel()
			m.Wait()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("viewer failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload when the workspace file changes")
	return cmd
}
