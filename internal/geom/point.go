// Package geom provides the integer coordinates shared by the grid,
// the agents, and the move selector.
package geom

import "fmt"

// Point is a cell coordinate. The zero value is the origin.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// SquareDistance returns the squared Euclidean distance between p and q.
// Only the ordering of distances is ever consumed, so the square root is skipped.
func (p Point) SquareDistance(q Point) int {
	dx := q.X - p.X
	dy := q.Y - p.Y
	return dx*dx + dy*dy
}

// String implements fmt.Stringer.
func (p Point) String() string {
	return fmt.Sprintf("(x:%d, y:%d)", p.X, p.Y)
}
