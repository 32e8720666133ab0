package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
)

// RunSequential moves every pending agent once per round, in list order,
// until the grid has counted every agent as exited.
func RunSequential(ctx context.Context, g *grid.Grid, agents []*agent.Agent, opts ...Option) (Result, error) {
	o := buildOptions(opts)
	total := len(agents)
	res := Result{Strategy: Sequential, Agents: total, ExitOrder: make([]int, 0, total)}

	o.logger.Info("run starting", "strategy", Sequential, "agents", total, "target", o.target)
	start := time.Now()
	lastSnapshot := start
	var t tally

	for g.ExitedCount() < total {
		if err := ctx.Err(); err != nil {
			res.finish(g, t, start)
			return res, fmt.Errorf("sequential run stopped after %d rounds: %w", res.Ticks, err)
		}

		res.Ticks++
		acted := false
		for _, a := range agents {
			if a.Escaped() {
				continue
			}
			acted = true
			from := a.Position()
			out, to, err := a.LookAndMove(g, o.target)
			if err != nil {
				res.finish(g, t, start)
				return res, err
			}
			t.record(out)
			if out == agent.Exited {
				res.ExitOrder = append(res.ExitOrder, a.ID())
			}
			o.observe(Sequential, g, a, from, to, out)
		}
		if !acted {
			// The grid count can only lag the agents when it was handed
			// agents that escaped elsewhere.
			break
		}

		o.logger.Log(ctx, logging.LevelTrace, "round complete", "round", res.Ticks, "exited", g.ExitedCount())
		if o.snapshot != nil && time.Since(lastSnapshot) >= o.snapshotEvery {
			o.snapshot(g.Snapshot())
			lastSnapshot = time.Now()
		}
	}

	res.finish(g, t, start)
	if o.snapshot != nil {
		o.snapshot(g.Snapshot())
	}
	o.logger.Info("run finished", "strategy", Sequential, "exited", res.Exited, "rounds", res.Ticks, "elapsed", res.Elapsed)
	return res, nil
}

func (r *Result) finish(g *grid.Grid, t tally, start time.Time) {
	r.Exited = g.ExitedCount()
	r.Moves = t.moves
	r.Stays = t.stays
	r.Blocked = t.blocked
	r.Elapsed = time.Since(start)
}
