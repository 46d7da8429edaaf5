package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/model"
)

func newLayoutCommand() *cobra.Command {
	var (
		cursor     string
		seeThrough bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the displayed nodes and edge paths of one level",
		Long: `Layout computes what the canvas would draw for one level of the workspace:
the displayed nodes in render order and the stroke path of every visible edge.
With --see-through, children are nested inside their parents and overlaps are
resolved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			frame, err := layoutFrame(cmd.Context(), store, canvasOptions(cfg), cursor, seeThrough)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(frame)
			}
			printFrame(frame)
			return nil
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", model.RootID, "Level to lay out")
	cmd.Flags().BoolVar(&seeThrough, "see-through", false, "Reveal children inside their parents")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the frame as JSON")

	return cmd
}

type snapshotter interface {
	Snapshot(ctx context.Context) (model.Snapshot, model.Cursor, error)
}

func layoutFrame(ctx context.Context, ws snapshotter, opts *canvas.Options, cursor string, seeThrough bool) (canvas.Frame, error) {
	snap, _, err := ws.Snapshot(ctx)
	if err != nil {
		return canvas.Frame{}, err
	}
	if cursor != model.RootID {
		if _, ok := snap.Find(cursor); !ok {
			return canvas.Frame{}, fmt.Errorf("unknown level %q", cursor)
		}
	}

	s := canvas.New(nil, opts)
	defer s.Close()
	s.Load(snap)
	s.SetCursor(cursor)
	if seeThrough {
		s.ToggleSeeThrough()
	}
	return s.Frame(), nil
}

func printFrame(f canvas.Frame) {
	mode := ""
	if f.SeeThrough {
		mode = " (see-through)"
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Level %s%s", f.Cursor, mode)))

	if len(f.Nodes) == 0 {
		fmt.Println(mutedStyle.Render("  no nodes"))
	}
	for _, d := range f.Nodes {
		indent := strings.Repeat("  ", d.Depth+1)
		label := d.Data.Label
		if label == "" {
			label = mutedStyle.Render("(untitled)")
		}
		fmt.Printf("%s%s %s %s\n", indent, d.ID, label,
			mutedStyle.Render(fmt.Sprintf("at (%g, %g) size %gx%g", d.Position.X, d.Position.Y, d.Size.Width, d.Size.Height)))
	}

	if len(f.Edges) > 0 {
		fmt.Println(titleStyle.Render("Edges"))
	}
	for _, e := range f.Edges {
		fmt.Printf("  %s %s → %s\n  %s\n", e.ID, e.Source, e.Target, mutedStyle.Render(e.D))
	}
}
