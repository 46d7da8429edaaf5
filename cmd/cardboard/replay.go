package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recera/cardboard/pkg/canvas"
	"github.com/recera/cardboard/pkg/geometry"
	"github.com/recera/cardboard/pkg/gesture"
	"github.com/recera/cardboard/pkg/intent"
	"github.com/recera/cardboard/pkg/live"
	"github.com/recera/cardboard/pkg/model"
)

// Trace is a recorded pointer session
type Trace struct {
	Cursor     string     `yaml:"cursor"`
	SeeThrough bool       `yaml:"seeThrough"`
	Linking    bool       `yaml:"linking"`
	Viewport   model.Size `yaml:"viewport"`
	Steps      []Step     `yaml:"steps"`
}

// Step is one pointer sample or control command. At is milliseconds from
// the start of the trace.
type Step struct {
	At      int64         `yaml:"at"`
	Pointer int           `yaml:"pointer"`
	Phase   gesture.Phase `yaml:"phase"`
	X       float64       `yaml:"x"`
	Y       float64       `yaml:"y"`
	Command string        `yaml:"command,omitempty"`
}

// LoadTrace reads a YAML trace
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}
	return &t, nil
}

// settle is how long after the last step timers are advanced, so pending
// taps and long presses resolve
const settle = 2 * time.Second

var traceEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Replay feeds a trace through a canvas session and returns what it
// published
func Replay(snap model.Snapshot, t *Trace, opts *canvas.Options) ([]intent.Intent, error) {
	rec := &intent.Recorder{}
	s := canvas.New(rec, opts)
	defer s.Close()

	s.Load(snap)
	s.SetCursor(t.Cursor)
	if t.SeeThrough {
		s.ToggleSeeThrough()
	}
	s.SetLinking(t.Linking)
	if t.Viewport.Width > 0 && t.Viewport.Height > 0 {
		s.SetViewport(t.Viewport.Width, t.Viewport.Height)
	}

	last := traceEpoch
	for i, step := range t.Steps {
		at := traceEpoch.Add(time.Duration(step.At) * time.Millisecond)
		if at.Before(last) {
			return nil, fmt.Errorf("step %d goes back in time", i)
		}
		s.Tick(at, at.Sub(last))
		last = at

		if step.Command != "" {
			if err := runCommand(s, live.ParseCommand(step.Command)); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			continue
		}
		s.HandleSample(gesture.Sample{Pointer: step.Pointer, Phase: step.Phase, X: step.X, Y: step.Y, Time: at})
	}
	s.Tick(last.Add(settle), settle)

	return rec.Intents(), nil
}

func runCommand(s *canvas.Session, cmd live.Command) error {
	switch cmd.Name {
	case live.CmdReset:
		s.Reset()
	case live.CmdCenter:
		s.Center()
	case live.CmdFit:
		s.FitAll()
	case live.CmdSeeThrough:
		s.ToggleSeeThrough()
	case live.CmdLink:
		s.SetLinking(!s.Link().Active)
	case live.CmdBack:
		s.Back()
	case live.CmdAlign:
		kind, err := geometry.ParseAlignment(cmd.Arg)
		if err != nil {
			return err
		}
		s.Align(kind)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
	return nil
}

func newReplayCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Run a recorded pointer trace through the gesture recognizer",
		Long: `Replay loads the workspace, feeds every step of the trace to a canvas
session and prints the intents it publishes, one JSON object per line.
With --apply the intents are also applied to the workspace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			trace, err := LoadTrace(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, _, err := store.Snapshot(ctx)
			if err != nil {
				return err
			}
			intents, err := Replay(snap, trace, canvasOptions(cfg))
			if err != nil {
				return err
			}

			for _, i := range intents {
				data, err := intent.Marshal(i)
				if err != nil {
					return err
				}
				fmt.Println(string(data))

				if apply {
					if err := store.Apply(ctx, i); err != nil {
						logger.Warn("intent not applied", "intent", i.Kind(), "error", err)
					}
				}
			}
			fmt.Fprintln(os.Stderr, successStyle.Render(fmt.Sprintf("✓ %d intents from %d steps", len(intents), len(trace.Steps))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the intents to the workspace")
	return cmd
}
