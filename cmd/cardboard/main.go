package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "cardboard",
		Short: "Cardboard - a touch canvas for nested cards",
		Long: `Cardboard arranges, nests and connects cards on a pannable, zoomable
canvas. It lays out workspaces, replays recorded pointer traces through the
gesture recognizer, shows a workspace in the terminal and serves it to remote
renderers over websockets.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(newLayoutCommand())
	rootCmd.AddCommand(newReplayCommand())
	rootCmd.AddCommand(newViewCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
