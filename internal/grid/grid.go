// Package grid provides the shared rectangular terrain agents move across.
//
// Cells hold 0 when free, -1 for a permanent obstacle, and a positive agent
// id when occupied. Four exit cells are fixed at construction; an agent
// moving into one is counted and removed, the exit cell itself is never
// written and stays free.
//
// A Grid is not safe for concurrent use. Wrap it in a Shared to serialize
// access from several goroutines.
package grid

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/nvandessel/egress/internal/geom"
)

// NbExit is the number of exit cells on every grid.
const NbExit = 4

// Cell values with a special meaning.
const (
	Free     = 0
	Obstacle = -1
)

var (
	// ErrGridTooSmall is returned when a dimension cannot hold the exit block.
	ErrGridTooSmall = errors.New("grid too small")

	// ErrGridTooLarge is returned when xsize*ysize does not fit in an int.
	ErrGridTooLarge = errors.New("grid too large")

	// ErrOutOfBounds is returned when a coordinate falls outside the grid.
	ErrOutOfBounds = errors.New("point out of bounds")

	// ErrNoSpace is returned by RandomFreeCell when no free cell remains.
	ErrNoSpace = errors.New("no free cell left")

	// ErrCellNotFree is returned when placing onto a cell that is not free.
	ErrCellNotFree = errors.New("cell is not free")
)

// MoveResult is the outcome of TryMove.
type MoveResult int

const (
	// MoveOccupied means the destination was taken; nothing changed.
	MoveOccupied MoveResult = iota
	// MoveApplied means the occupant now sits on the destination.
	MoveApplied
	// MoveEscaped means the destination was an exit; the occupant left the grid.
	MoveEscaped
)

func (r MoveResult) String() string {
	switch r {
	case MoveOccupied:
		return "occupied"
	case MoveApplied:
		return "moved"
	case MoveEscaped:
		return "escaped"
	default:
		return fmt.Sprintf("MoveResult(%d)", int(r))
	}
}

// Grid is the terrain: a row-major cell array plus the exit cells and the
// running count of agents that left through them.
type Grid struct {
	xsize  int
	ysize  int
	cells  []int
	exits  [NbExit]geom.Point
	exited int
}

// New creates an xsize by ysize grid with every cell free. The exits are
// the 2x2 block in the top-left corner: x in {0, 1}, y in {ysize-1, ysize-2}.
func New(xsize, ysize int) (*Grid, error) {
	if err := checkSize(xsize, ysize); err != nil {
		return nil, err
	}
	return newGrid(xsize, ysize, geom.Pt(0, ysize-1)), nil
}

// NewToward creates an xsize by ysize grid whose exits sit on the cells
// nearest target: the cell closest to target plus its neighbours toward
// the inside of the grid. For a target beyond the top-left corner this is
// the same block New uses.
func NewToward(xsize, ysize int, target geom.Point) (*Grid, error) {
	if err := checkSize(xsize, ysize); err != nil {
		return nil, err
	}
	nearest := geom.Pt(min(max(target.X, 0), xsize-1), min(max(target.Y, 0), ysize-1))
	return newGrid(xsize, ysize, nearest), nil
}

func checkSize(xsize, ysize int) error {
	if xsize < 2 || ysize < 2 {
		return fmt.Errorf("%w: %dx%d, need at least 2x2", ErrGridTooSmall, xsize, ysize)
	}
	if xsize > math.MaxInt/ysize {
		return fmt.Errorf("%w: %dx%d cells overflow", ErrGridTooLarge, xsize, ysize)
	}
	return nil
}

// newGrid builds the grid with its exit block anchored at corner. The
// second column and row step inward, or back when corner is on the far edge.
func newGrid(xsize, ysize int, corner geom.Point) *Grid {
	nx := corner.X + 1
	if nx >= xsize {
		nx = corner.X - 1
	}
	ny := corner.Y - 1
	if ny < 0 {
		ny = corner.Y + 1
	}

	return &Grid{
		xsize: xsize,
		ysize: ysize,
		cells: make([]int, xsize*ysize),
		exits: [NbExit]geom.Point{
			corner,
			geom.Pt(corner.X, ny),
			geom.Pt(nx, corner.Y),
			geom.Pt(nx, ny),
		},
	}
}

// XSize returns the number of columns.
func (g *Grid) XSize() int { return g.xsize }

// YSize returns the number of rows.
func (g *Grid) YSize() int { return g.ysize }

// Exits returns a copy of the exit cells.
func (g *Grid) Exits() []geom.Point {
	return slices.Clone(g.exits[:])
}

// ExitedCount returns how many agents have left the grid so far.
func (g *Grid) ExitedCount() int {
	return g.exited
}

// InBounds reports whether p lies on the grid.
func (g *Grid) InBounds(p geom.Point) bool {
	return p.X >= 0 && p.X < g.xsize && p.Y >= 0 && p.Y < g.ysize
}

// IsExit reports whether p is one of the exit cells.
func (g *Grid) IsExit(p geom.Point) bool {
	return slices.Contains(g.exits[:], p)
}

// At returns the value stored at p.
func (g *Grid) At(p geom.Point) (int, error) {
	if !g.InBounds(p) {
		return 0, fmt.Errorf("%w: %v on %dx%d grid", ErrOutOfBounds, p, g.xsize, g.ysize)
	}
	return g.cells[g.offset(p)], nil
}

// AddObstacle marks every cell of the inclusive rectangle as an obstacle.
// The whole rectangle must lie on the grid; nothing is written otherwise.
func (g *Grid) AddObstacle(lowerLeft, upperRight geom.Point) error {
	if !g.InBounds(lowerLeft) || !g.InBounds(upperRight) {
		return fmt.Errorf("%w: obstacle %v-%v on %dx%d grid", ErrOutOfBounds, lowerLeft, upperRight, g.xsize, g.ysize)
	}
	for x := lowerLeft.X; x <= upperRight.X; x++ {
		for y := lowerLeft.Y; y <= upperRight.Y; y++ {
			g.cells[g.offset(geom.Pt(x, y))] = Obstacle
		}
	}
	return nil
}

// Place writes id into the free cell p.
func (g *Grid) Place(p geom.Point, id int) error {
	if id <= 0 {
		return fmt.Errorf("invalid agent id %d", id)
	}
	v, err := g.At(p)
	if err != nil {
		return err
	}
	if v != Free || g.IsExit(p) {
		return fmt.Errorf("%w: %v holds %d", ErrCellNotFree, p, v)
	}
	g.cells[g.offset(p)] = id
	return nil
}

// FreeCells returns the free cells available for placement, in row-major
// order. Exit cells are excluded.
func (g *Grid) FreeCells() []geom.Point {
	free := make([]geom.Point, 0, len(g.cells))
	for idx, v := range g.cells {
		if v != Free {
			continue
		}
		p := g.point(idx)
		if g.IsExit(p) {
			continue
		}
		free = append(free, p)
	}
	return free
}

// RandomFreeCell picks one placement cell uniformly with rng.
// It returns ErrNoSpace when none remain.
func (g *Grid) RandomFreeCell(rng *rand.Rand) (geom.Point, error) {
	free := g.FreeCells()
	if len(free) == 0 {
		return geom.Point{}, ErrNoSpace
	}
	return free[rng.IntN(len(free))], nil
}

// Neighbors lists the free in-bounds cells of the 3x3 block around center,
// center excluded. Enumeration runs x-major from the lower-left corner;
// move selection breaks ties on this order.
//
// The result is only valid until the next mutation. TryMove re-checks the
// destination, so a stale list costs a failed attempt, never corruption.
func (g *Grid) Neighbors(center geom.Point) []geom.Point {
	result := make([]geom.Point, 0, 8)
	for x := center.X - 1; x <= center.X+1; x++ {
		for y := center.Y - 1; y <= center.Y+1; y++ {
			p := geom.Pt(x, y)
			if p == center || !g.InBounds(p) {
				continue
			}
			if g.cells[g.offset(p)] == Free {
				result = append(result, p)
			}
		}
	}
	return result
}

// TryMove moves the occupant of src onto dst.
//
// A non-free, non-exit destination leaves the grid untouched and returns
// MoveOccupied. An exit destination bumps the exit count and clears src
// without writing dst. Anything else copies the occupant and clears src.
func (g *Grid) TryMove(src, dst geom.Point) (MoveResult, error) {
	if !g.InBounds(src) || !g.InBounds(dst) {
		return MoveOccupied, fmt.Errorf("%w: move %v -> %v on %dx%d grid", ErrOutOfBounds, src, dst, g.xsize, g.ysize)
	}

	srcOff, dstOff := g.offset(src), g.offset(dst)
	isExit := g.IsExit(dst)

	if g.cells[dstOff] != Free && !isExit {
		return MoveOccupied, nil
	}

	if isExit {
		g.exited++
		g.cells[srcOff] = Free
		return MoveEscaped, nil
	}

	g.cells[dstOff] = g.cells[srcOff]
	g.cells[srcOff] = Free
	return MoveApplied, nil
}

// CountOccupied counts cells holding an agent id.
func (g *Grid) CountOccupied() int {
	count := 0
	for _, v := range g.cells {
		if v > 0 {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of the grid state.
func (g *Grid) Snapshot() Snapshot {
	return Snapshot{
		XSize:  g.xsize,
		YSize:  g.ysize,
		Cells:  slices.Clone(g.cells),
		Exits:  g.Exits(),
		Exited: g.exited,
	}
}

func (g *Grid) offset(p geom.Point) int {
	return g.xsize*p.Y + p.X
}

func (g *Grid) point(offset int) geom.Point {
	return geom.Pt(offset%g.xsize, offset/g.xsize)
}
