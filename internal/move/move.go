// Package move implements the greedy one-step move rule agents use to
// head for the target point.
package move

import "github.com/nvandessel/egress/internal/geom"

// DefaultTarget is the azimuth every agent steers toward unless configured
// otherwise. It sits beyond the top-left corner, where the exits are.
var DefaultTarget = geom.Pt(-2, 130)

// ChooseBestMove returns the candidate closest to target by squared
// distance. Ties go to the earliest candidate. With no candidates the
// agent stays where it is, so current is returned.
func ChooseBestMove(candidates []geom.Point, current, target geom.Point) geom.Point {
	if len(candidates) == 0 {
		return current
	}

	best := candidates[0]
	bestDist := best.SquareDistance(target)
	for _, c := range candidates[1:] {
		if d := c.SquareDistance(target); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
