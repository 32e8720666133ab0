// Package agent models a single evacuee: an id, a position, and a
// lifecycle that ends, once and for all, when the agent reaches an exit.
package agent

import (
	"errors"
	"fmt"

	"github.com/nvandessel/egress/internal/geom"
	"github.com/nvandessel/egress/internal/grid"
	"github.com/nvandessel/egress/internal/move"
)

// ErrNotPlaced is returned when an unplaced agent is asked to move.
var ErrNotPlaced = errors.New("agent not placed")

// State is the lifecycle stage of an agent.
type State int

const (
	Unplaced State = iota
	Placed
	Escaped
)

func (s State) String() string {
	switch s {
	case Unplaced:
		return "unplaced"
	case Placed:
		return "placed"
	case Escaped:
		return "escaped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is what a single LookAndMove tick did.
type Outcome int

const (
	// Idle: the agent had already escaped; nothing was read or written.
	Idle Outcome = iota
	// Stayed: the best choice was the current cell.
	Stayed
	// Moved: the agent now occupies a new cell.
	Moved
	// Blocked: the chosen cell was taken by the time the move was tried.
	Blocked
	// Exited: the agent reached an exit during this tick.
	Exited
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Stayed:
		return "stayed"
	case Moved:
		return "moved"
	case Blocked:
		return "blocked"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Agent is one evacuee. An Agent belongs to exactly one goroutine at a time.
type Agent struct {
	id       int
	position geom.Point
	state    State
}

// New creates an unplaced agent that will occupy pos once placed.
func New(id int, pos geom.Point) *Agent {
	return &Agent{id: id, position: pos}
}

// ID returns the agent's identifier.
func (a *Agent) ID() int { return a.id }

// Position returns the current cell. Meaningless once escaped.
func (a *Agent) Position() geom.Point { return a.position }

// State returns the lifecycle stage.
func (a *Agent) State() State { return a.state }

// Escaped reports whether the agent has left the grid.
func (a *Agent) Escaped() bool { return a.state == Escaped }

// Place writes the agent's id into its cell.
func (a *Agent) Place(g *grid.Grid) error {
	if a.state != Unplaced {
		return fmt.Errorf("agent %d already %s", a.id, a.state)
	}
	if err := g.Place(a.position, a.id); err != nil {
		return fmt.Errorf("placing agent %d: %w", a.id, err)
	}
	a.state = Placed
	return nil
}

// LookAndMove runs one tick: list free neighbours, pick the one nearest
// target, and try to step onto it. A blocked attempt is simply retried on
// the next tick. Once escaped, every call returns Idle without touching g.
//
// The second return value is the cell the agent tried to reach.
func (a *Agent) LookAndMove(g *grid.Grid, target geom.Point) (Outcome, geom.Point, error) {
	switch a.state {
	case Escaped:
		return Idle, a.position, nil
	case Unplaced:
		return Idle, a.position, fmt.Errorf("agent %d: %w", a.id, ErrNotPlaced)
	}

	chosen := move.ChooseBestMove(g.Neighbors(a.position), a.position, target)
	if chosen == a.position {
		return Stayed, chosen, nil
	}

	res, err := g.TryMove(a.position, chosen)
	if err != nil {
		return Idle, chosen, fmt.Errorf("agent %d: %w", a.id, err)
	}

	switch res {
	case grid.MoveEscaped:
		a.state = Escaped
		a.position = geom.Point{}
		return Exited, chosen, nil
	case grid.MoveApplied:
		a.position = chosen
		return Moved, chosen, nil
	default:
		return Blocked, chosen, nil
	}
}
