package simulation

import (
	"slices"
	"testing"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/grid"
)

// AssertOccupancyInvariant checks that the grid and the agents agree: every
// placed agent's id sits on its cell, no other cell holds an id, and the exit
// count equals the number of escaped agents. It only reports with Errorf so
// it can run from a step hook on a worker goroutine.
func AssertOccupancyInvariant(t testing.TB, g *grid.Grid, agents []*agent.Agent) {
	t.Helper()

	placed, escaped := 0, 0
	for _, a := range agents {
		switch a.State() {
		case agent.Placed:
			placed++
			v, err := g.At(a.Position())
			if err != nil {
				t.Errorf("agent %d off grid at %v: %v", a.ID(), a.Position(), err)
				continue
			}
			if v != a.ID() {
				t.Errorf("agent %d at %v but cell holds %d", a.ID(), a.Position(), v)
			}
		case agent.Escaped:
			escaped++
		}
	}

	if got := g.CountOccupied(); got != placed {
		t.Errorf("CountOccupied() = %d, want %d placed agents", got, placed)
	}
	if got := g.ExitedCount(); got != escaped {
		t.Errorf("ExitedCount() = %d, want %d escaped agents", got, escaped)
	}
	for _, e := range g.Exits() {
		if v, _ := g.At(e); v > 0 {
			t.Errorf("exit %v holds agent %d", e, v)
		}
	}
}

// AssertAllEscaped checks that a run evacuated everyone and left the grid empty.
func AssertAllEscaped(t testing.TB, g *grid.Grid, agents []*agent.Agent) {
	t.Helper()

	for _, a := range agents {
		if !a.Escaped() {
			t.Errorf("agent %d still %s at %v", a.ID(), a.State(), a.Position())
		}
	}
	if got := g.ExitedCount(); got != len(agents) {
		t.Errorf("ExitedCount() = %d, want %d", got, len(agents))
	}
	if got := g.CountOccupied(); got != 0 {
		t.Errorf("CountOccupied() = %d, want 0", got)
	}
}

// AssertSameEscapedSet checks that two runs evacuated the same agents,
// regardless of order.
func AssertSameEscapedSet(t testing.TB, a, b []int) {
	t.Helper()

	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	if !slices.Equal(x, y) {
		t.Errorf("escaped sets differ: %v vs %v", x, y)
	}
}
