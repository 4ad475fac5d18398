// Package pathfind moves characters across the grid: a one-step chase/flee
// rule for visible targets, an incremental D*-lite planner for remembered
// ones, and a bounded random walk.
package pathfind

import (
	"math/rand"

	"github.com/talgya/tilesim/internal/world"
)

// Passable reports whether a character may stand on p.
type Passable func(p world.Point) bool

// MaxRandomAttempts bounds RandomStep.
const MaxRandomAttempts = 50

// Step returns the single orthogonal step from `from` that best chases
// (chase=true) or flees (chase=false) target. Steps along the axis with the
// larger delta are tried first. The step is returned only if it strictly
// improves the Manhattan distance.
func Step(from, target world.Point, chase bool, passable Passable) (world.Point, bool) {
	dx, dy := target.X-from.X, target.Y-from.Y
	current := world.Manhattan(from, target)

	best := world.Point{}
	bestDist := current
	found := false
	for _, d := range candidates(dx, dy) {
		next := from.Add(d)
		if !passable(next) {
			continue
		}
		dist := world.Manhattan(next, target)
		if (chase && dist < bestDist) || (!chase && dist > bestDist) {
			best, bestDist, found = d, dist, true
		}
	}
	return best, found
}

// candidates orders the four unit steps: the larger-delta axis first, and
// on each axis the step toward the target before the step away.
func candidates(dx, dy int) []world.Point {
	xs := axisSteps(dx)
	ys := axisSteps(dy)
	out := make([]world.Point, 0, 4)
	if abs(dx) > abs(dy) {
		for _, s := range xs {
			out = append(out, world.Point{X: s})
		}
		for _, s := range ys {
			out = append(out, world.Point{Y: s})
		}
		return out
	}
	for _, s := range ys {
		out = append(out, world.Point{Y: s})
	}
	for _, s := range xs {
		out = append(out, world.Point{X: s})
	}
	return out
}

func axisSteps(d int) [2]int {
	if d < 0 {
		return [2]int{-1, 1}
	}
	return [2]int{1, -1}
}

// RandomStep tries up to attempts random directions and returns the first
// passable one.
func RandomStep(rng *rand.Rand, from world.Point, passable Passable, attempts int) (world.Point, bool) {
	if attempts <= 0 {
		attempts = MaxRandomAttempts
	}
	for range attempts {
		d := world.Directions[rng.Intn(len(world.Directions))]
		if passable(from.Add(d)) {
			return d, true
		}
	}
	return world.Point{}, false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
