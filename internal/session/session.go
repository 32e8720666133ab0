// Package session executes configured evacuation runs: it builds a fresh
// grid for every repetition, drives the requested strategies, measures them,
// and records the outcome in a RunStore.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/config"
	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/perf"
	"github.com/nvandessel/egress/internal/simulation"
	"github.com/nvandessel/egress/internal/store"
)

// StrategyBoth runs the sequential strategy and then the concurrent one.
const StrategyBoth = "both"

// Params fully describes the starting state of a run.
type Params struct {
	Agents int
	XSize  int
	YSize  int
	Seed   uint64
	Layout simulation.Layout
	Target geom.Point
}

// ParamsFromConfig converts a simulation config into Params.
func ParamsFromConfig(cfg config.SimulationConfig) (Params, error) {
	layout := simulation.Layout(cfg.Layout)
	if !layout.Valid() {
		return Params{}, fmt.Errorf("unknown layout %q", cfg.Layout)
	}
	return Params{
		Agents: cfg.Population(),
		XSize:  cfg.XSize,
		YSize:  cfg.YSize,
		Seed:   cfg.Seed,
		Layout: layout,
		Target: geom.Pt(cfg.TargetX, cfg.TargetY),
	}, nil
}

// Strategies expands a strategy name, accepting "both".
func Strategies(name string) ([]simulation.Strategy, error) {
	if name == StrategyBoth {
		return []simulation.Strategy{simulation.Sequential, simulation.Concurrent}, nil
	}
	s, err := simulation.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return []simulation.Strategy{s}, nil
}

// Options controls what Execute does around each run.
type Options struct {
	Logger *slog.Logger
	Events *logging.EventLogger

	// Store receives one record per strategy. Nil skips recording.
	Store store.RunStore

	// Runs repeats each strategy from the same starting state. Values
	// below one mean one.
	Runs int

	// SnapshotEvery and OnSnapshot stream grid snapshots of the last
	// repetition while it runs.
	SnapshotEvery time.Duration
	OnSnapshot    simulation.SnapshotFunc
}

// Outcome is what Execute reports for one strategy.
type Outcome struct {
	Strategy simulation.Strategy `json:"strategy"`
	RunID    string              `json:"run_id,omitempty"`

	// Result is from the last repetition.
	Result simulation.Result `json:"result"`

	// Perf aggregates every repetition: the mean of the middle three by
	// wall time from five runs on, the plain mean below that.
	Perf perf.Result   `json:"perf"`
	Runs []perf.Result `json:"runs"`

	// Final is the grid after the last repetition.
	Final grid.Snapshot `json:"-"`
}

// Setup builds the grid, with its exits on the cells nearest p.Target, and
// places the agents described by p.
func Setup(p Params) (*grid.Grid, []*agent.Agent, error) {
	g, err := simulation.NewGridToward(p.Layout, p.XSize, p.YSize, p.Target)
	if err != nil {
		return nil, nil, err
	}
	agents, err := simulation.Populate(g, p.Agents, p.Seed)
	if err != nil {
		return nil, nil, err
	}
	return g, agents, nil
}

// Execute runs every strategy in order. It stops at the first failure or
// cancellation; the interrupted run is still recorded and returned.
func Execute(ctx context.Context, p Params, strategies []simulation.Strategy, opts Options) ([]Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	runs := max(opts.Runs, 1)

	outcomes := make([]Outcome, 0, len(strategies))
	for _, strategy := range strategies {
		out, err := executeOne(ctx, p, strategy, runs, logger, opts)
		if opts.Store != nil && out.Result.Strategy != "" {
			// Record interrupted runs even though ctx is done.
			id, recErr := opts.Store.RecordRun(context.WithoutCancel(ctx), toRecord(p, out, err))
			if recErr != nil {
				logger.Warn("failed to record run", "strategy", strategy, "error", recErr)
			}
			out.RunID = id
		}
		if err != nil {
			if out.Result.Strategy != "" {
				outcomes = append(outcomes, out)
			}
			return outcomes, fmt.Errorf("%s run: %w", strategy, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func executeOne(ctx context.Context, p Params, strategy simulation.Strategy, runs int, logger *slog.Logger, opts Options) (Outcome, error) {
	out := Outcome{Strategy: strategy, Runs: make([]perf.Result, 0, runs)}

	for i := 0; i < runs; i++ {
		g, agents, err := Setup(p)
		if err != nil {
			return out, err
		}
		logger.Debug("agents placed", "strategy", strategy, "repetition", i+1, "agents", len(agents), "seed", p.Seed)

		runOpts := []simulation.Option{
			simulation.WithTarget(p.Target),
			simulation.WithLogger(logger),
			simulation.WithEvents(opts.Events),
		}
		if opts.OnSnapshot != nil && i == runs-1 {
			runOpts = append(runOpts, simulation.WithSnapshots(opts.SnapshotEvery, opts.OnSnapshot))
		}

		var res simulation.Result
		cost, runErr := perf.Run(func() error {
			var err error
			res, err = simulation.Run(ctx, strategy, g, agents, runOpts...)
			return err
		})
		out.Result = res
		out.Runs = append(out.Runs, cost)
		out.Final = g.Snapshot()
		out.Perf = aggregate(out.Runs)
		if runErr != nil {
			return out, runErr
		}
	}
	return out, nil
}

// aggregate summarizes repetitions.
func aggregate(results []perf.Result) perf.Result {
	if len(results) >= 5 {
		if mid, err := perf.MedianThree(results); err == nil {
			return perf.Mean(mid)
		}
	}
	return perf.Mean(results)
}

func toRecord(p Params, out Outcome, runErr error) store.Run {
	status := store.StatusComplete
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = store.StatusCancelled
	case runErr != nil:
		status = store.StatusFailed
	}

	res := out.Result
	return store.Run{
		Strategy:   string(out.Strategy),
		Layout:     string(p.Layout),
		XSize:      p.XSize,
		YSize:      p.YSize,
		Agents:     p.Agents,
		Seed:       p.Seed,
		TargetX:    p.Target.X,
		TargetY:    p.Target.Y,
		Status:     status,
		Exited:     res.Exited,
		Ticks:      res.Ticks,
		Moves:      res.Moves,
		Stays:      res.Stays,
		Blocked:    res.Blocked,
		Elapsed:    out.Perf.Wall,
		ExitOrder:  res.ExitOrder,
		UserTime:   out.Perf.User,
		SystemTime: out.Perf.System,
		MaxRSSKB:   out.Perf.MaxRSSKB,
	}
}
