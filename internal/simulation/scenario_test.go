package simulation_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/simulation"
)

func TestSampleObstacles(t *testing.T) {
	got := simulation.SampleObstacles(10, 5)
	want := []simulation.Rect{
		{LowerLeft: geom.Pt(1, 1), UpperRight: geom.Pt(2, 3)},
		{LowerLeft: geom.Pt(4, 1), UpperRight: geom.Pt(8, 2)},
	}
	if !slices.Equal(got, want) {
		t.Errorf("SampleObstacles(10, 5) = %v, want %v", got, want)
	}
}

func TestNewGrid(t *testing.T) {
	tests := []struct {
		name      string
		layout    simulation.Layout
		x, y      int
		obstacles int
		wantErr   error
	}{
		{"empty", simulation.LayoutEmpty, 4, 4, 0, nil},
		{"sample 10x5", simulation.LayoutSample, 10, 5, 6 + 10, nil},
		{"sample too small", simulation.LayoutSample, 9, 5, 0, grid.ErrGridTooSmall},
		{"empty too small", simulation.LayoutEmpty, 1, 5, 0, grid.ErrGridTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := simulation.NewGrid(tt.layout, tt.x, tt.y)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewGrid() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGrid() error = %v", err)
			}
			count := 0
			for _, v := range g.Snapshot().Cells {
				if v == grid.Obstacle {
					count++
				}
			}
			if count != tt.obstacles {
				t.Errorf("obstacle cells = %d, want %d", count, tt.obstacles)
			}
		})
	}

	if _, err := simulation.NewGrid("maze", 10, 10); err == nil {
		t.Error("unknown layout should fail")
	}
}

func TestNewGridToward(t *testing.T) {
	g, err := simulation.NewGridToward(simulation.LayoutSample, 10, 5, geom.Pt(50, -10))
	if err != nil {
		t.Fatalf("NewGridToward() error = %v", err)
	}
	want := []geom.Point{geom.Pt(9, 0), geom.Pt(9, 1), geom.Pt(8, 0), geom.Pt(8, 1)}
	if got := g.Exits(); !slices.Equal(got, want) {
		t.Errorf("Exits() = %v, want %v", got, want)
	}

	def, err := simulation.NewGridToward(simulation.LayoutSample, 10, 5, geom.Pt(-2, 130))
	if err != nil {
		t.Fatal(err)
	}
	top, _ := simulation.NewGrid(simulation.LayoutSample, 10, 5)
	if !slices.Equal(def.Exits(), top.Exits()) || !slices.Equal(def.Snapshot().Cells, top.Snapshot().Cells) {
		t.Error("default target should give the NewGrid layout")
	}

	// On 10x4 the long bar sits on rows 0-1 and swallows a bottom exit block.
	if _, err := simulation.NewGridToward(simulation.LayoutSample, 10, 4, geom.Pt(6, -10)); !errors.Is(err, simulation.ErrExitsBlocked) {
		t.Errorf("NewGridToward() error = %v, want ErrExitsBlocked", err)
	}
	if _, err := simulation.NewGridToward(simulation.LayoutEmpty, 10, 4, geom.Pt(6, -10)); err != nil {
		t.Errorf("empty layout never blocks exits, got %v", err)
	}
}

func TestLayoutValid(t *testing.T) {
	for _, l := range []simulation.Layout{simulation.LayoutSample, simulation.LayoutEmpty} {
		if !l.Valid() {
			t.Errorf("%q.Valid() = false", l)
		}
	}
	if simulation.Layout("maze").Valid() {
		t.Error(`"maze".Valid() = true`)
	}
}

func TestInitialize(t *testing.T) {
	g, agents, err := simulation.Initialize(8, 10, 5, 1)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(agents) != 8 {
		t.Fatalf("len(agents) = %d, want 8", len(agents))
	}
	for i, a := range agents {
		if a.ID() != i+1 {
			t.Errorf("agents[%d].ID() = %d, want %d", i, a.ID(), i+1)
		}
		if g.IsExit(a.Position()) {
			t.Errorf("agent %d placed on exit %v", a.ID(), a.Position())
		}
	}
	if free := len(g.FreeCells()); free != 31-8 {
		t.Errorf("FreeCells() = %d, want %d", free, 31-8)
	}
	if g.CountOccupied() != 8 {
		t.Errorf("CountOccupied() = %d, want 8", g.CountOccupied())
	}
	simulation.AssertOccupancyInvariant(t, g, agents)
}

func TestPopulate_Deterministic(t *testing.T) {
	positions := func(seed uint64) []geom.Point {
		_, agents, err := simulation.Initialize(16, 20, 10, seed)
		if err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		out := make([]geom.Point, len(agents))
		for i, a := range agents {
			out[i] = a.Position()
		}
		return out
	}

	if !slices.Equal(positions(42), positions(42)) {
		t.Error("same seed gave different placements")
	}
	if slices.Equal(positions(42), positions(43)) {
		t.Error("different seeds gave identical placements")
	}
}

func TestPopulate_InsufficientSpace(t *testing.T) {
	g, err := simulation.NewGrid(simulation.LayoutEmpty, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	// 9 cells minus 4 exits.
	if _, err := simulation.Populate(g, 6, 1); !errors.Is(err, simulation.ErrInsufficientSpace) {
		t.Fatalf("Populate() error = %v, want ErrInsufficientSpace", err)
	}
	if g.CountOccupied() != 0 {
		t.Errorf("failed Populate() left %d agents on the grid", g.CountOccupied())
	}

	agents, err := simulation.Populate(g, 5, 1)
	if err != nil {
		t.Fatalf("Populate() at capacity error = %v", err)
	}
	if len(agents) != 5 || len(g.FreeCells()) != 0 {
		t.Errorf("got %d agents and %d free cells, want 5 and 0", len(agents), len(g.FreeCells()))
	}
}

func TestPopulate_Negative(t *testing.T) {
	g, _ := simulation.NewGrid(simulation.LayoutEmpty, 4, 4)
	if _, err := simulation.Populate(g, -1, 1); err == nil {
		t.Error("negative count should fail")
	}
}
