package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
)

// RunConcurrent gives every pending agent its own goroutine. All workers
// start together behind a barrier, then each loops until its agent escapes.
// Every tick runs under the grid lock, so neighbour inspection and the move
// attempt are atomic. g must not be touched by the caller until it returns.
//
// A worker whose agent can never reach an exit loops until ctx is done.
func RunConcurrent(ctx context.Context, g *grid.Grid, agents []*agent.Agent, opts ...Option) (Result, error) {
	o := buildOptions(opts)
	total := len(agents)
	res := Result{Strategy: Concurrent, Agents: total, ExitOrder: make([]int, 0, total)}

	workers := pending(agents)
	o.logger.Info("run starting", "strategy", Concurrent, "agents", total, "workers", len(workers), "target", o.target)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shared := grid.NewShared(g)
	start := NewBarrier(len(workers) + 1)
	tallies := make([]tally, len(workers))

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		runErrs []error
	)
	fail := func(err error) {
		errMu.Lock()
		runErrs = append(runErrs, err)
		errMu.Unlock()
		cancel()
	}

	for i, a := range workers {
		wg.Add(1)
		go func(t *tally) {
			defer wg.Done()
			start.Wait()
			for !a.Escaped() {
				if ctx.Err() != nil {
					return
				}
				var tickErr error
				shared.With(func(g *grid.Grid) {
					from := a.Position()
					out, to, err := a.LookAndMove(g, o.target)
					if err != nil {
						tickErr = err
						return
					}
					t.record(out)
					if out == agent.Exited {
						res.ExitOrder = append(res.ExitOrder, a.ID())
					}
					o.observe(Concurrent, g, a, from, to, out)
				})
				if tickErr != nil {
					fail(tickErr)
					return
				}
				runtime.Gosched()
			}
			o.logger.Log(ctx, logging.LevelTrace, "worker done", "agent", a.ID(), "ticks", t.ticks)
		}(&tallies[i])
	}

	snapDone := make(chan struct{})
	var snapWG sync.WaitGroup
	if o.snapshot != nil && o.snapshotEvery > 0 {
		snapWG.Add(1)
		go func() {
			defer snapWG.Done()
			ticker := time.NewTicker(o.snapshotEvery)
			defer ticker.Stop()
			for {
				select {
				case <-snapDone:
					return
				case <-ticker.C:
					o.snapshot(shared.Snapshot())
				}
			}
		}()
	}

	began := time.Now()
	start.Wait()
	wg.Wait()
	close(snapDone)
	snapWG.Wait()

	var sum tally
	for _, t := range tallies {
		sum.moves += t.moves
		sum.stays += t.stays
		sum.blocked += t.blocked
		res.Ticks = max(res.Ticks, t.ticks)
	}
	res.finish(g, sum, began)
	if o.snapshot != nil {
		o.snapshot(g.Snapshot())
	}

	if len(runErrs) > 0 {
		return res, errors.Join(runErrs...)
	}
	if err := ctx.Err(); err != nil && res.Exited < total {
		return res, fmt.Errorf("concurrent run stopped with %d of %d exited: %w", res.Exited, total, err)
	}

	o.logger.Info("run finished", "strategy", Concurrent, "exited", res.Exited, "ticks", res.Ticks, "elapsed", res.Elapsed)
	return res, nil
}
