package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "egress",
		Short: "Egress - concurrent evacuation simulator",
		Long: `egress moves a population of agents across a grid with obstacles
until every agent has left through one of the exits.

Each run uses either a sequential strategy (one agent at a time) or a
concurrent one (one goroutine per agent), and is recorded in .egress/
so runs can be compared later.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. The stop
// function releases the signal handler.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
