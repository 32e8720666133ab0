package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/egress/internal/agent"
	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
)

// ErrInsufficientSpace is returned when a grid has fewer placement cells
// than requested agents.
var ErrInsufficientSpace = errors.New("insufficient space")

// ErrExitsBlocked is returned when a layout covers every exit cell.
var ErrExitsBlocked = errors.New("every exit is blocked")

// Layout names a predefined obstacle arrangement.
type Layout string

const (
	// LayoutSample places one tall and one long rectangle, scaled to the grid.
	LayoutSample Layout = "sample"
	// LayoutEmpty has no obstacles.
	LayoutEmpty Layout = "empty"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutSample || l == LayoutEmpty
}

// Rect is an inclusive obstacle rectangle.
type Rect struct {
	LowerLeft  geom.Point
	UpperRight geom.Point
}

// SampleObstacles returns the two rectangles of the sample layout for an
// xsize by ysize grid: a tall block near the exits and a long bar across
// the lower half.
func SampleObstacles(xsize, ysize int) []Rect {
	return []Rect{
		{
			LowerLeft:  geom.Pt(xsize/10, 1),
			UpperRight: geom.Pt(xsize/10*2, ysize-2),
		},
		{
			LowerLeft:  geom.Pt(xsize/10*2+2, ysize/5),
			UpperRight: geom.Pt(xsize/10*9-1, ysize/5+1),
		},
	}
}

// NewGrid builds an empty grid with the exits in the top-left corner and
// applies layout to it.
func NewGrid(layout Layout, xsize, ysize int) (*grid.Grid, error) {
	return buildGrid(layout, xsize, ysize, grid.New)
}

// NewGridToward is NewGrid with the exits on the cells nearest target, so
// agents steering toward target can reach them.
func NewGridToward(layout Layout, xsize, ysize int, target geom.Point) (*grid.Grid, error) {
	return buildGrid(layout, xsize, ysize, func(x, y int) (*grid.Grid, error) {
		return grid.NewToward(x, y, target)
	})
}

func buildGrid(layout Layout, xsize, ysize int, newGrid func(x, y int) (*grid.Grid, error)) (*grid.Grid, error) {
	switch layout {
	case LayoutEmpty:
		return newGrid(xsize, ysize)
	case LayoutSample:
		if xsize < 10 || ysize < 4 {
			return nil, fmt.Errorf("%w: sample layout needs at least 10x4, got %dx%d", grid.ErrGridTooSmall, xsize, ysize)
		}
		g, err := newGrid(xsize, ysize)
		if err != nil {
			return nil, err
		}
		for _, r := range SampleObstacles(xsize, ysize) {
			if err := g.AddObstacle(r.LowerLeft, r.UpperRight); err != nil {
				return nil, fmt.Errorf("sample layout: %w", err)
			}
		}
		if !anyExitOpen(g) {
			return nil, fmt.Errorf("sample layout on %dx%d: %w %v", xsize, ysize, ErrExitsBlocked, g.Exits())
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}
}

func anyExitOpen(g *grid.Grid) bool {
	for _, e := range g.Exits() {
		if v, _ := g.At(e); v == grid.Free {
			return true
		}
	}
	return false
}

// Initialize builds the sample-layout grid and places nbAgents on random
// free cells drawn from seed.
func Initialize(nbAgents, xsize, ysize int, seed uint64) (*grid.Grid, []*agent.Agent, error) {
	g, err := NewGrid(LayoutSample, xsize, ysize)
	if err != nil {
		return nil, nil, err
	}
	agents, err := Populate(g, nbAgents, seed)
	if err != nil {
		return nil, nil, err
	}
	return g, agents, nil
}

// Populate places nbAgents, with ids 1..nbAgents, on uniformly chosen free
// cells of g. The same grid and seed always give the same placement.
// When g cannot hold them all, no agent is placed.
func Populate(g *grid.Grid, nbAgents int, seed uint64) ([]*agent.Agent, error) {
	if nbAgents < 0 {
		return nil, fmt.Errorf("negative agent count %d", nbAgents)
	}
	if free := len(g.FreeCells()); free < nbAgents {
		return nil, fmt.Errorf("%w: %d agents requested, %d free cells", ErrInsufficientSpace, nbAgents, free)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	agents := make([]*agent.Agent, 0, nbAgents)
	for id := 1; id <= nbAgents; id++ {
		p, err := g.RandomFreeCell(rng)
		if err != nil {
			return nil, fmt.Errorf("placing agent %d: %w", id, err)
		}
		a := agent.New(id, p)
		if err := a.Place(g); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}
