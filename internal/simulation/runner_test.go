package simulation_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/logging"
	"github.com/nvandessel/egress/internal/simulation"
)

var strategies = []simulation.Strategy{simulation.Sequential, simulation.Concurrent}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"sequential", "concurrent"} {
		got, err := simulation.ParseStrategy(s)
		if err != nil || string(got) != s {
			t.Errorf("ParseStrategy(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := simulation.ParseStrategy("parallel"); err == nil {
		t.Error(`ParseStrategy("parallel") should fail`)
	}
}

func TestRun_SampleScenario(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, agents, err := simulation.Initialize(8, 10, 5, 1)
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			res, err := simulation.Run(testContext(t), strategy, g, agents)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			simulation.AssertAllEscaped(t, g, agents)
			if res.Strategy != strategy || res.Agents != 8 || res.Exited != 8 {
				t.Errorf("Result = %+v, want %s with 8 of 8 exited", res, strategy)
			}
			if len(res.ExitOrder) != 8 {
				t.Errorf("ExitOrder = %v, want 8 ids", res.ExitOrder)
			}
			simulation.AssertSameEscapedSet(t, res.ExitOrder, []int{1, 2, 3, 4, 5, 6, 7, 8})
			if res.Moves < 8 {
				t.Errorf("Moves = %d, want at least one per agent", res.Moves)
			}
			if res.Ticks == 0 {
				t.Error("Ticks = 0")
			}
		})
	}
}

func TestRun_LargerGrid(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, agents, err := simulation.Initialize(64, 40, 20, 7)
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
			if _, err := simulation.Run(testContext(t), strategy, g, agents); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			simulation.AssertAllEscaped(t, g, agents)
		})
	}
}

func TestRun_StrategiesEvacuateSameAgents(t *testing.T) {
	results := make(map[simulation.Strategy][]int)
	for _, strategy := range strategies {
		g, agents, err := simulation.Initialize(16, 20, 10, 3)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := simulation.Run(testContext(t), strategy, g, agents); err != nil {
			t.Fatalf("%s: Run() error = %v", strategy, err)
		}
		results[strategy] = simulation.Escaped(agents)
	}
	simulation.AssertSameEscapedSet(t, results[simulation.Sequential], results[simulation.Concurrent])
}

func TestRun_SequentialIsDeterministic(t *testing.T) {
	run := func() simulation.Result {
		g, agents, err := simulation.Initialize(16, 20, 10, 5)
		if err != nil {
			t.Fatal(err)
		}
		res, err := simulation.RunSequential(testContext(t), g, agents)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	a, b := run(), run()
	if !slices.Equal(a.ExitOrder, b.ExitOrder) || a.Ticks != b.Ticks || a.Moves != b.Moves {
		t.Errorf("runs differ: %+v vs %+v", a, b)
	}
}

func TestRun_InvariantsHoldEveryTick(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, agents, err := simulation.Initialize(32, 20, 10, 11)
			if err != nil {
				t.Fatal(err)
			}

			lastExited := 0
			ticks := 0
			hook := func(g *grid.Grid, a *agent.Agent, out agent.Outcome) {
				ticks++
				simulation.AssertOccupancyInvariant(t, g, agents)
				if g.ExitedCount() < lastExited {
					t.Errorf("exit count went from %d to %d", lastExited, g.ExitedCount())
				}
				lastExited = g.ExitedCount()
				if out == agent.Idle {
					t.Errorf("hook saw idle tick for agent %d", a.ID())
				}
			}

			if _, err := simulation.Run(testContext(t), strategy, g, agents, simulation.WithStepHook(hook)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if ticks == 0 {
				t.Error("hook never ran")
			}
			simulation.AssertAllEscaped(t, g, agents)
		})
	}
}

// trapped builds a 5x5 grid whose agent 1 at (4,0) is walled in and can
// never move, next to agent 2 that can leave.
func trapped(t *testing.T) (*grid.Grid, []*agent.Agent) {
	t.Helper()
	g, err := grid.New(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddObstacle(geom.Pt(3, 0), geom.Pt(3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := g.AddObstacle(geom.Pt(4, 1), geom.Pt(4, 1)); err != nil {
		t.Fatal(err)
	}
	agents := []*agent.Agent{agent.New(1, geom.Pt(4, 0)), agent.New(2, geom.Pt(2, 3))}
	for _, a := range agents {
		if err := a.Place(g); err != nil {
			t.Fatal(err)
		}
	}
	return g, agents
}

func TestRun_StopsOnContextDeadline(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, agents := trapped(t)
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			res, err := simulation.Run(ctx, strategy, g, agents)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Run() error = %v, want DeadlineExceeded", err)
			}
			if res.Exited != 1 {
				t.Errorf("Exited = %d, want 1", res.Exited)
			}
			if agents[0].State() != agent.Placed {
				t.Errorf("trapped agent state = %v, want placed", agents[0].State())
			}
			if res.Stays == 0 {
				t.Error("trapped agent never recorded a stay")
			}
			simulation.AssertOccupancyInvariant(t, g, agents)
		})
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	g, agents, err := simulation.Initialize(8, 10, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := simulation.RunSequential(ctx, g, agents)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSequential() error = %v, want Canceled", err)
	}
	if res.Ticks != 0 || g.CountOccupied() != 8 {
		t.Errorf("cancelled run moved agents: ticks=%d occupied=%d", res.Ticks, g.CountOccupied())
	}
}

func TestRun_NoAgents(t *testing.T) {
	for _, strategy := range strategies {
		g, err := grid.New(4, 4)
		if err != nil {
			t.Fatal(err)
		}
		res, err := simulation.Run(testContext(t), strategy, g, nil)
		if err != nil {
			t.Errorf("%s: Run() error = %v", strategy, err)
		}
		if res.Exited != 0 || res.Ticks != 0 {
			t.Errorf("%s: Result = %+v, want empty", strategy, res)
		}
	}
}

func TestRun_UnplacedAgentFails(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, err := grid.New(4, 4)
			if err != nil {
				t.Fatal(err)
			}
			agents := []*agent.Agent{agent.New(1, geom.Pt(3, 0))}
			if _, err := simulation.Run(testContext(t), strategy, g, agents); !errors.Is(err, agent.ErrNotPlaced) {
				t.Errorf("Run() error = %v, want ErrNotPlaced", err)
			}
		})
	}
}

func TestRun_UnknownStrategy(t *testing.T) {
	g, _ := grid.New(4, 4)
	if _, err := simulation.Run(context.Background(), "random", g, nil); err == nil {
		t.Error("unknown strategy should fail")
	}
}

func TestRun_Snapshots(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, agents, err := simulation.Initialize(8, 10, 5, 1)
			if err != nil {
				t.Fatal(err)
			}

			var mu sync.Mutex
			var snaps []grid.Snapshot
			collect := func(s grid.Snapshot) {
				mu.Lock()
				snaps = append(snaps, s)
				mu.Unlock()
			}

			if _, err := simulation.Run(testContext(t), strategy, g, agents, simulation.WithSnapshots(time.Millisecond, collect)); err != nil {
				t.Fatal(err)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(snaps) == 0 {
				t.Fatal("no snapshots delivered")
			}
			if last := snaps[len(snaps)-1]; last.Exited != 8 {
				t.Errorf("final snapshot Exited = %d, want 8", last.Exited)
			}
		})
	}
}

func TestRun_Events(t *testing.T) {
	dir := t.TempDir()
	el := logging.NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("NewEventLogger() = nil")
	}

	g, agents, err := simulation.Initialize(8, 10, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	res, err := simulation.RunSequential(testContext(t), g, agents, simulation.WithEvents(el))
	el.Close()
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "moves.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	exits := 0
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev logging.MoveEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %d: %v", lines+1, err)
		}
		lines++
		if ev.Strategy != "sequential" {
			t.Errorf("event strategy = %q", ev.Strategy)
		}
		if ev.Outcome == "exited" {
			exits++
		}
	}
	if exits != 8 {
		t.Errorf("exit events = %d, want 8", exits)
	}
	if lines != res.Moves+res.Blocked {
		t.Errorf("events = %d, want moves+blocked = %d", lines, res.Moves+res.Blocked)
	}
}

func TestRun_WithTarget(t *testing.T) {
	// Steering toward the bottom-right corner, the agent never reaches an exit
	// and ends up shuttling between the two cells nearest the target.
	g, err := grid.New(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	a := agent.New(1, geom.Pt(2, 2))
	if err := a.Place(g); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = simulation.RunSequential(ctx, g, []*agent.Agent{a}, simulation.WithTarget(geom.Pt(10, -10)))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunSequential() error = %v, want DeadlineExceeded", err)
	}
	if p := a.Position(); p != geom.Pt(4, 0) && p != geom.Pt(3, 0) {
		t.Errorf("Position() = %v, want (4,0) or (3,0)", p)
	}
	if g.ExitedCount() != 0 {
		t.Errorf("ExitedCount() = %d, want 0", g.ExitedCount())
	}
}

func TestRun_TargetWithExitsNearIt(t *testing.T) {
	target := geom.Pt(50, -10)
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			g, err := simulation.NewGridToward(simulation.LayoutSample, 10, 5, target)
			if err != nil {
				t.Fatalf("NewGridToward() error = %v", err)
			}
			agents, err := simulation.Populate(g, 8, 1)
			if err != nil {
				t.Fatalf("Populate() error = %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			res, err := simulation.Run(ctx, strategy, g, agents, simulation.WithTarget(target))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Exited != 8 {
				t.Errorf("Exited = %d, want 8", res.Exited)
			}
			simulation.AssertAllEscaped(t, g, agents)
		})
	}
}
