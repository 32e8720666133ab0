package grid

import (
	"slices"
	"sync"

	"github.com/nvandessel/egress/internal/geom"
)

// Snapshot is a point-in-time copy of a grid, safe to hand to renderers.
type Snapshot struct {
	XSize  int          `json:"x_size"`
	YSize  int          `json:"y_size"`
	Cells  []int        `json:"cells"`
	Exits  []geom.Point `json:"exits"`
	Exited int          `json:"exited"`
}

// At returns the value of cell p, or Obstacle when p is off the grid.
func (s Snapshot) At(p geom.Point) int {
	if p.X < 0 || p.X >= s.XSize || p.Y < 0 || p.Y >= s.YSize {
		return Obstacle
	}
	return s.Cells[s.XSize*p.Y+p.X]
}

// IsExit reports whether p is an exit cell of the snapshotted grid.
func (s Snapshot) IsExit(p geom.Point) bool {
	return slices.Contains(s.Exits, p)
}

// Shared guards a Grid with a single exclusive lock. Neighbour inspection
// and the move attempt that follows must run inside one With call so that
// no two agents can both claim the same free cell.
type Shared struct {
	mu sync.Mutex
	g  *Grid
}

// NewShared wraps g. The caller must stop touching g directly.
func NewShared(g *Grid) *Shared {
	return &Shared{g: g}
}

// With runs fn while holding the grid lock.
func (s *Shared) With(fn func(g *Grid)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.g)
}

// Snapshot copies the grid under the lock.
func (s *Shared) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Snapshot()
}

// ExitedCount reads the exit counter under the lock.
func (s *Shared) ExitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.exited
}
