package agents

import (
	"github.com/talgya/tilesim/internal/pathfind"
	"github.com/talgya/tilesim/internal/world"
)

// MoveStrategy chooses where a character walks.
type MoveStrategy uint8

const (
	// MoveThinking heads for tiles a finding goal wants, then favourable
	// fights of its own faction, then weaker enemies.
	MoveThinking MoveStrategy = iota
	// MoveAggressiveMob joins any fight of its faction, then chases any
	// enemy.
	MoveAggressiveMob
	// MovePassiveMob flees from stronger non-allies.
	MovePassiveMob
)

func (m MoveStrategy) String() string {
	switch m {
	case MoveAggressiveMob:
		return "aggressive_mob"
	case MovePassiveMob:
		return "passive_mob"
	}
	return "thinking"
}

// next returns the unit step c takes, or false when c stays put.
func (m MoveStrategy) next(w *World, c *Character) (world.Point, bool) {
	switch m {
	case MoveAggressiveMob:
		for _, e := range c.memory.Events(c.Pos) {
			if e.Pos != c.Pos {
				return c.approach(w, e.Pos, true)
			}
		}
		for _, o := range c.memory.Characters(c.Pos) {
			if c.race.IsHostile(o.Faction) {
				return c.approach(w, o.Pos, true)
			}
		}
	case MovePassiveMob:
		for _, o := range c.memory.Characters(c.Pos) {
			if !c.race.IsFriendly(o.Faction) && o.Power.IsStronger() {
				return c.flee(w, o.Pos)
			}
		}
	default:
		if f, ok := findingGoal(c); ok {
			for _, t := range c.memory.Tiles(c.Pos) {
				if t.Pos != c.Pos && f.Matches(t.Collectibles) {
					return c.approach(w, t.Pos, false)
				}
			}
		}
		for _, e := range c.memory.Events(c.Pos) {
			if e.Pos != c.Pos && e.Power.IsWeaker() {
				return c.approach(w, e.Pos, true)
			}
		}
		for _, o := range c.memory.Characters(c.Pos) {
			if c.race.IsHostile(o.Faction) && o.Power.IsWeaker() {
				return c.approach(w, o.Pos, true)
			}
		}
	}
	return c.randomMove(w)
}

// approach steps toward target: directly when it is in sight, otherwise
// along the planner's route over what c knows of the grid.
func (c *Character) approach(w *World, target world.Point, visible bool) (world.Point, bool) {
	passable := c.canStand(w)
	if visible {
		if d, ok := pathfind.Step(c.Pos, target, true, passable); ok {
			return d, true
		}
	}
	next, ok := w.planner(c.ID, target).Next(c.Pos, c.knownBlocked())
	if ok && next != c.Pos && passable(next) {
		return next.Sub(c.Pos), true
	}
	return c.randomMove(w)
}

func (c *Character) flee(w *World, from world.Point) (world.Point, bool) {
	if d, ok := pathfind.Step(c.Pos, from, false, c.canStand(w)); ok {
		return d, true
	}
	return c.randomMove(w)
}

func (c *Character) randomMove(w *World) (world.Point, bool) {
	return pathfind.RandomStep(w.Rand, c.Pos, c.canStand(w), pathfind.MaxRandomAttempts)
}

// canStand reports whether c may step onto a point: on the grid, not an
// obstacle, and a tile type its race may enter.
func (c *Character) canStand(w *World) pathfind.Passable {
	return func(p world.Point) bool {
		t, ok := w.Grid.TileAt(p)
		return ok && !t.Obstacle() && c.race.CanEnter(t.Type)
	}
}

// knownBlocked is the set of remembered cells c cannot stand on.
func (c *Character) knownBlocked() map[world.Point]bool {
	blocked := make(map[world.Point]bool)
	for p, tt := range c.memory.KnownCells() {
		if tt.Spec().Obstacle || !c.race.CanEnter(tt) {
			blocked[p] = true
		}
	}
	return blocked
}
