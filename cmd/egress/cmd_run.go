package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/render"
	"github.com/nvandessel/egress/internal/session"
	"github.com/nvandessel/egress/internal/store"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an evacuation simulation",
		Long: `Place agents on the grid and move them until all have exited.

Settings come from ~/.egress/config.yaml and EGRESS_* environment
variables; flags given here override both.

Examples:
  egress run                           # 8 agents on the 10x5 sample grid
  egress run -p 10 -x 100 -y 50        # 1024 agents on a 100x50 grid
  egress run --strategy both --measure --runs 5
  egress run --show --watch 100ms      # redraw the grid while it runs`,
		RunE: runSimulation,
	}

	cmd.Flags().IntP("agents-pow", "p", 0, "Place 2^N agents")
	cmd.Flags().Int("agents", 0, "Place exactly N agents (overrides --agents-pow)")
	cmd.Flags().IntP("x-size", "x", 0, "Grid width")
	cmd.Flags().IntP("y-size", "y", 0, "Grid height")
	cmd.Flags().Uint64("seed", 0, "Placement seed")
	cmd.Flags().StringP("strategy", "s", "", "Strategy: sequential, concurrent, or both")
	cmd.Flags().String("layout", "", "Obstacle layout: sample or empty")
	cmd.Flags().Int("target-x", 0, "X coordinate agents head for")
	cmd.Flags().Int("target-y", 0, "Y coordinate agents head for")
	cmd.Flags().BoolP("measure", "m", false, "Report wall time, CPU time, and peak memory")
	cmd.Flags().Int("runs", 0, "Repeat each strategy N times when measuring")
	cmd.Flags().Bool("show", false, "Print the final grid")
	cmd.Flags().Duration("watch", 0, "Print the grid at this interval while running (implies --show)")
	cmd.Flags().Bool("no-store", false, "Do not record the run in .egress/egress.db")
	cmd.Flags().String("log-level", "", "Log level: info, debug, or trace")

	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")
	show, _ := cmd.Flags().GetBool("show")
	watch, _ := cmd.Flags().GetDuration("watch")
	noStore, _ := cmd.Flags().GetBool("no-store")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	params, err := session.ParamsFromConfig(cfg.Simulation)
	if err != nil {
		return err
	}
	strategies, err := session.Strategies(cfg.Simulation.Strategy)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	events := logging.NewEventLogger(store.LocalEgressPath(root), cfg.Logging.Level)
	defer events.Close()

	opts := session.Options{
		Logger: logger,
		Events: events,
		Runs:   1,
	}
	if cfg.Measure.Enabled {
		opts.Runs = cfg.Measure.Runs
	}
	if cfg.Store.Enabled && !noStore {
		runStore, err := store.NewSQLiteRunStore(root)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer runStore.Close()
		opts.Store = runStore
	}

	out := cmd.OutOrStdout()
	if watch > 0 && !jsonOut {
		show = true
		opts.SnapshotEvery = watch
		opts.OnSnapshot = func(s grid.Snapshot) {
			fmt.Fprint(out, render.Text(s))
			fmt.Fprintln(out)
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	outcomes, runErr := session.Execute(ctx, params, strategies, opts)

	if jsonOut {
		if err := writeRunJSON(out, params, outcomes, show, runErr); err != nil {
			return err
		}
	} else if err := writeRunText(out, params, outcomes, cfg.Measure.Enabled, show); err != nil {
		return err
	}

	return runErr
}

// applyRunFlags overlays explicitly set flags onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.EgressConfig) {
	flags := cmd.Flags()
	sim := &cfg.Simulation

	if flags.Changed("agents-pow") {
		sim.AgentsPow, _ = flags.GetInt("agents-pow")
		sim.Agents = 0
	}
	if flags.Changed("agents") {
		sim.Agents, _ = flags.GetInt("agents")
	}
	if flags.Changed("x-size") {
		sim.XSize, _ = flags.GetInt("x-size")
	}
	if flags.Changed("y-size") {
		sim.YSize, _ = flags.GetInt("y-size")
	}
	if flags.Changed("seed") {
		sim.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("strategy") {
		v, _ := flags.GetString("strategy")
		sim.Strategy = strings.ToLower(v)
	}
	if flags.Changed("layout") {
		v, _ := flags.GetString("layout")
		sim.Layout = strings.ToLower(v)
	}
	if flags.Changed("target-x") {
		sim.TargetX, _ = flags.GetInt("target-x")
	}
	if flags.Changed("target-y") {
		sim.TargetY, _ = flags.GetInt("target-y")
	}
	if flags.Changed("measure") {
		cfg.Measure.Enabled, _ = flags.GetBool("measure")
	}
	if flags.Changed("runs") {
		cfg.Measure.Runs, _ = flags.GetInt("runs")
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		cfg.Logging.Level = strings.ToLower(v)
	}
}

func writeRunText(w io.Writer, p session.Params, outcomes []session.Outcome, measured, show bool) error {
	fmt.Fprintf(w, "Grid %dx%d (%s layout), %d agents, seed %d\n", p.XSize, p.YSize, p.Layout, p.Agents, p.Seed)
	for _, o := range outcomes {
		r := o.Result
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s: %d/%d agents exited\n", o.Strategy, r.Exited, r.Agents)
		fmt.Fprintf(w, "  ticks: %d  moves: %d  stays: %d  blocked: %d\n", r.Ticks, r.Moves, r.Stays, r.Blocked)
		fmt.Fprintf(w, "  elapsed: %v\n", r.Elapsed.Round(time.Microsecond))
		if measured {
			fmt.Fprintf(w, "  perf (%d runs): %s\n", len(o.Runs), o.Perf)
		}
		if o.RunID != "" {
			fmt.Fprintf(w, "  run: %s\n", o.RunID)
		}
	}
	if show && len(outcomes) > 0 {
		drawn, err := render.Render(outcomes[len(outcomes)-1].Final, render.FormatText)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, drawn)
	}
	return nil
}

type runJSON struct {
	Params   runParamsJSON     `json:"params"`
	Outcomes []session.Outcome `json:"outcomes"`
	Grid     json.RawMessage   `json:"grid,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type runParamsJSON struct {
	Agents  int    `json:"agents"`
	XSize   int    `json:"x_size"`
	YSize   int    `json:"y_size"`
	Seed    uint64 `json:"seed"`
	Layout  string `json:"layout"`
	TargetX int    `json:"target_x"`
	TargetY int    `json:"target_y"`
}

func writeRunJSON(w io.Writer, p session.Params, outcomes []session.Outcome, show bool, runErr error) error {
	result := runJSON{
		Params: runParamsJSON{
			Agents:  p.Agents,
			XSize:   p.XSize,
			YSize:   p.YSize,
			Seed:    p.Seed,
			Layout:  string(p.Layout),
			TargetX: p.Target.X,
			TargetY: p.Target.Y,
		},
		Outcomes: outcomes,
	}
	if result.Outcomes == nil {
		result.Outcomes = []session.Outcome{}
	}
	if show && len(outcomes) > 0 {
		drawn, err := render.Render(outcomes[len(outcomes)-1].Final, render.FormatJSON)
		if err != nil {
			return err
		}
		result.Grid = json.RawMessage(drawn)
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to encode result: %v\n", err)
		return err
	}
	return nil
}
