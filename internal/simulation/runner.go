package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/move"
)

// Strategy selects how agents are scheduled.
type Strategy string

const (
	Sequential Strategy = "sequential"
	Concurrent Strategy = "concurrent"
)

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Sequential, Concurrent:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q (valid: sequential, concurrent)", s)
	}
}

// Result summarizes a finished run.
type Result struct {
	Strategy Strategy `json:"strategy"`
	Agents   int      `json:"agents"`
	Exited   int      `json:"exited"`

	// Ticks is the number of rounds for the sequential strategy and the
	// busiest worker's loop count for the concurrent one.
	Ticks   int `json:"ticks"`
	Moves   int `json:"moves"`
	Stays   int `json:"stays"`
	Blocked int `json:"blocked"`

	// ExitOrder lists agent ids in the order they escaped.
	ExitOrder []int         `json:"exit_order"`
	Elapsed   time.Duration `json:"elapsed"`
}

// StepHook observes one agent tick. Under the concurrent strategy it runs
// with the grid lock held, so it may read g and any agent safely but must
// not block.
type StepHook func(g *grid.Grid, a *agent.Agent, out agent.Outcome)

// SnapshotFunc receives periodic grid snapshots while a run progresses.
type SnapshotFunc func(s grid.Snapshot)

// Option configures a run.
type Option func(*runOptions)

type runOptions struct {
	target        geom.Point
	logger        *slog.Logger
	events        *logging.EventLogger
	hook          StepHook
	snapshot      SnapshotFunc
	snapshotEvery time.Duration
}

// WithTarget overrides the point agents steer toward.
func WithTarget(p geom.Point) Option {
	return func(o *runOptions) { o.target = p }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithEvents records every move, block, and exit to el.
func WithEvents(el *logging.EventLogger) Option {
	return func(o *runOptions) { o.events = el }
}

// WithStepHook calls fn after every agent tick.
func WithStepHook(fn StepHook) Option {
	return func(o *runOptions) { o.hook = fn }
}

// WithSnapshots calls fn with a grid snapshot at most once per interval,
// and once more when the run ends.
func WithSnapshots(every time.Duration, fn SnapshotFunc) Option {
	return func(o *runOptions) {
		o.snapshotEvery = every
		o.snapshot = fn
	}
}

func buildOptions(opts []Option) *runOptions {
	o := &runOptions{
		target: move.DefaultTarget,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// observe runs after every tick of a placed agent.
func (o *runOptions) observe(strategy Strategy, g *grid.Grid, a *agent.Agent, from, to geom.Point, out agent.Outcome) {
	if o.events != nil && out != agent.Stayed {
		o.events.Log(logging.MoveEvent{
			Strategy: string(strategy),
			Agent:    a.ID(),
			Outcome:  out.String(),
			From:     from,
			To:       to,
			Exited:   g.ExitedCount(),
		})
	}
	if o.hook != nil {
		o.hook(g, a, out)
	}
}

// tally accumulates per-worker counters.
type tally struct {
	ticks   int
	moves   int
	stays   int
	blocked int
}

func (t *tally) record(out agent.Outcome) {
	t.ticks++
	switch out {
	case agent.Moved, agent.Exited:
		t.moves++
	case agent.Stayed:
		t.stays++
	case agent.Blocked:
		t.blocked++
	}
}

// Run dispatches to the strategy's entry point.
func Run(ctx context.Context, strategy Strategy, g *grid.Grid, agents []*agent.Agent, opts ...Option) (Result, error) {
	switch strategy {
	case Sequential:
		return RunSequential(ctx, g, agents, opts...)
	case Concurrent:
		return RunConcurrent(ctx, g, agents, opts...)
	default:
		return Result{}, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// Escaped returns the ids of escaped agents, in list order.
func Escaped(agents []*agent.Agent) []int {
	ids := make([]int, 0, len(agents))
	for _, a := range agents {
		if a.Escaped() {
			ids = append(ids, a.ID())
		}
	}
	return ids
}

// pending returns the agents that still have to escape.
func pending(agents []*agent.Agent) []*agent.Agent {
	out := make([]*agent.Agent, 0, len(agents))
	for _, a := range agents {
		if !a.Escaped() {
			out = append(out, a)
		}
	}
	return out
}
