// Package agents is the simulation core: characters with their goals,
// action states and memories, combat events, races, archetypes, and the
// World context that binds them to the grid and the entity store.
package agents

import (
	"cmp"
	"fmt"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/pathfind"
	"github.com/talgya/tilesim/internal/store"
	"github.com/talgya/tilesim/internal/world"
)

// Settings are the tunable simulation constants.
type Settings struct {
	VisionRadius       int     // base Manhattan vision radius
	PerceptionAccuracy float64 // base power-perception accuracy in percent
	EscapeChance       float64 // escape chance against comparable power
	EscapeChanceLow    float64 // facing more than twice our power
	EscapeChanceHigh   float64 // facing less than half our power
	KillExpPerLevel    int     // exp per victim level
	TrainExp           int     // exp per Train action
	TrainProficiency   int     // attribute proficiency per Train action
	FindItemAttempts   int     // searches before FindItem gives up
	BuffDuration       int     // turns granted by a tile entry status
	PlannerCacheSize   int     // planners kept across turns
}

// DefaultSettings returns the stock constants.
func DefaultSettings() Settings {
	return Settings{
		VisionRadius:       2,
		PerceptionAccuracy: 90,
		EscapeChance:       0.5,
		EscapeChanceLow:    0.2,
		EscapeChanceHigh:   0.8,
		KillExpPerLevel:    50,
		TrainExp:           100,
		TrainProficiency:   10,
		FindItemAttempts:   5,
		BuffDuration:       3,
		PlannerCacheSize:   256,
	}
}

// Notice is a notable occurrence surfaced to the scheduler's event log.
type Notice struct {
	Category    string
	Description string
}

// World is the context every operation runs against. It is not safe for
// concurrent use; the scheduler serializes access.
type World struct {
	Grid       *world.Grid
	Characters *store.Partition[world.CharacterID, *Character]
	Tiles      *store.Partition[world.TileID, *world.Tile]
	Events     *store.Partition[world.EventID, *CombatEvent]
	Rand       *rand.Rand
	Log        logrus.FieldLogger
	Settings   Settings
	Turn       uint64 // advanced once per scheduler pass

	planners      *lru.Cache[world.CharacterID, *pathfind.Planner]
	nextCharacter world.CharacterID
	nextEvent     world.EventID
	onNotice      func(Notice)
}

// NewWorld wires a world around grid. Every tile is registered in the tile
// partition.
func NewWorld(grid *world.Grid, rng *rand.Rand, log logrus.FieldLogger, settings Settings) (*World, error) {
	size := settings.PlannerCacheSize
	if size <= 0 {
		size = DefaultSettings().PlannerCacheSize
	}
	planners, err := lru.New[world.CharacterID, *pathfind.Planner](size)
	if err != nil {
		return nil, fmt.Errorf("planner cache: %w", err)
	}

	w := &World{
		Grid:          grid,
		Characters:    store.NewPartition[world.CharacterID, *Character](store.KindCharacter),
		Tiles:         store.NewPartition[world.TileID, *world.Tile](store.KindTile),
		Events:        store.NewPartition[world.EventID, *CombatEvent](store.KindEvent),
		Rand:          rng,
		Log:           log.WithField("component", "world"),
		Settings:      settings,
		planners:      planners,
		nextCharacter: 1,
		nextEvent:     1,
	}
	w.Characters.OrderBy(func(a, b *Character) int {
		return cmp.Compare(b.Level(), a.Level())
	})
	for _, t := range grid.Tiles() {
		w.Tiles.Add(t.ID, t)
	}
	return w, nil
}

// SetFeed mirrors character and event mutations to feed.
func (w *World) SetFeed(feed *store.Feed) {
	w.Characters.SetFeed(feed)
	w.Events.SetFeed(feed)
}

// OnNotice registers the notice callback.
func (w *World) OnNotice(fn func(Notice)) { w.onNotice = fn }

func (w *World) notify(category, format string, args ...any) {
	desc := fmt.Sprintf(format, args...)
	w.Log.WithField("category", category).Debug(desc)
	if w.onNotice != nil {
		w.onNotice(Notice{Category: category, Description: desc})
	}
}

// NextCharacterID issues a fresh character id.
func (w *World) NextCharacterID() world.CharacterID {
	id := w.nextCharacter
	w.nextCharacter++
	return id
}

// NextEventID issues a fresh event id.
func (w *World) NextEventID() world.EventID {
	id := w.nextEvent
	w.nextEvent++
	return id
}

// Character returns the character with the given id.
func (w *World) Character(id world.CharacterID) (*Character, bool) {
	return w.Characters.Get(id)
}

// Event returns the combat event with the given id.
func (w *World) Event(id world.EventID) (*CombatEvent, bool) {
	return w.Events.Get(id)
}

// TileAt returns the tile at p.
func (w *World) TileAt(p world.Point) (*world.Tile, bool) {
	return w.Grid.TileAt(p)
}

// AddCharacter registers c and places it on its tile.
func (w *World) AddCharacter(c *Character) error {
	tile, ok := w.Grid.TileAt(c.Pos)
	if !ok {
		return fmt.Errorf("character %d: position %v off grid", c.ID, c.Pos)
	}
	if tile.Obstacle() {
		return fmt.Errorf("character %d: position %v is an obstacle", c.ID, c.Pos)
	}
	w.Characters.Add(c.ID, c)
	tile.AddOccupant(c.ID)
	return nil
}

// Living returns every living character in store order.
func (w *World) Living() []*Character {
	all := w.Characters.All()
	out := all[:0]
	for _, c := range all {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

// planner returns the cached planner for id if it targets goal, otherwise a
// fresh one.
func (w *World) planner(id world.CharacterID, goal world.Point) *pathfind.Planner {
	if p, ok := w.planners.Get(id); ok && p.Goal() == goal {
		return p
	}
	p := pathfind.NewPlanner(goal, w.Grid.InBounds)
	w.planners.Add(id, p)
	return p
}

func (w *World) forgetPlanner(id world.CharacterID) { w.planners.Remove(id) }
