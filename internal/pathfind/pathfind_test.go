package pathfind

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilesim/internal/world"
)

func open(world.Point) bool { return true }

func bounds(w, h int) func(world.Point) bool {
	return func(p world.Point) bool { return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h }
}

func TestStepChaseDecreasesDistance(t *testing.T) {
	from := world.Point{X: 0, Y: 0}
	targets := []world.Point{{X: 5, Y: 1}, {X: 1, Y: 5}, {X: -3, Y: -3}, {X: 0, Y: 2}}
	for _, target := range targets {
		d, ok := Step(from, target, true, open)
		require.True(t, ok, "target %v", target)
		assert.Less(t, world.Manhattan(from.Add(d), target), world.Manhattan(from, target))
	}
}

func TestStepPrefersLargerAxis(t *testing.T) {
	d, ok := Step(world.Point{}, world.Point{X: 4, Y: 1}, true, open)
	require.True(t, ok)
	assert.Equal(t, world.Point{X: 1}, d)

	d, ok = Step(world.Point{}, world.Point{X: 1, Y: -4}, true, open)
	require.True(t, ok)
	assert.Equal(t, world.Point{Y: -1}, d)
}

func TestStepSlidesAroundObstacle(t *testing.T) {
	wall := world.Point{X: 1}
	passable := func(p world.Point) bool { return p != wall }
	d, ok := Step(world.Point{}, world.Point{X: 4, Y: 1}, true, passable)
	require.True(t, ok)
	assert.Equal(t, world.Point{Y: 1}, d)
}

func TestStepFleeIncreasesDistance(t *testing.T) {
	from := world.Point{X: 2, Y: 2}
	threat := world.Point{X: 3, Y: 2}
	d, ok := Step(from, threat, false, open)
	require.True(t, ok)
	assert.Equal(t, world.Point{X: -1}, d)
}

func TestStepFailsWhenNothingImproves(t *testing.T) {
	from := world.Point{}
	passable := func(p world.Point) bool { return p == from }
	_, ok := Step(from, world.Point{X: 3}, true, passable)
	assert.False(t, ok)

	_, ok = Step(from, from, true, open)
	assert.False(t, ok)
}

func TestRandomStepTerminates(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	_, ok := RandomStep(rng, world.Point{}, func(world.Point) bool { return false }, 0)
	assert.False(t, ok)

	d, ok := RandomStep(rng, world.Point{}, open, 0)
	require.True(t, ok)
	assert.Equal(t, 1, world.Manhattan(world.Point{}, d))
}

// walk follows the planner until it reaches the goal or gives up.
func walk(p *Planner, start world.Point, blocked map[world.Point]bool, maxSteps int) []world.Point {
	path := []world.Point{start}
	cur := start
	for range maxSteps {
		next, ok := p.Next(cur, blocked)
		if !ok {
			break
		}
		cur = next
		path = append(path, cur)
	}
	return path
}

func TestPlannerRoutesAroundWall(t *testing.T) {
	// 7x5 grid with a vertical wall at x=3 open only at y=4.
	blocked := map[world.Point]bool{}
	for y := 0; y < 4; y++ {
		blocked[world.Point{X: 3, Y: y}] = true
	}
	goal := world.Point{X: 6, Y: 0}
	p := NewPlanner(goal, bounds(7, 5))

	path := walk(p, world.Point{X: 0, Y: 0}, blocked, 50)
	require.Equal(t, goal, path[len(path)-1])
	for _, c := range path {
		assert.False(t, blocked[c], "path crosses wall at %v", c)
	}
	assert.Contains(t, path, world.Point{X: 3, Y: 4})
	assert.Len(t, path, 6+4+4+1)
}

func TestPlannerRepairsOnNewObstacle(t *testing.T) {
	goal := world.Point{X: 4, Y: 0}
	p := NewPlanner(goal, bounds(5, 3))
	blocked := map[world.Point]bool{}

	next, ok := p.Next(world.Point{}, blocked)
	require.True(t, ok)
	assert.Equal(t, world.Point{X: 1}, next)

	// The straight corridor closes after the first step.
	blocked[world.Point{X: 2, Y: 0}] = true
	path := walk(p, next, blocked, 20)
	require.Equal(t, goal, path[len(path)-1])
	assert.NotContains(t, path, world.Point{X: 2, Y: 0})
}

func TestPlannerNoPath(t *testing.T) {
	goal := world.Point{X: 2, Y: 0}
	blocked := map[world.Point]bool{{X: 1, Y: 0}: true}
	p := NewPlanner(goal, bounds(3, 1))
	_, ok := p.Next(world.Point{}, blocked)
	assert.False(t, ok)

	_, ok = NewPlanner(goal, bounds(3, 1)).Next(world.Point{}, map[world.Point]bool{goal: true})
	assert.False(t, ok)
}
