// Package memory holds what a character believes about its surroundings.
// Character and event beliefs are rebuilt every perception cycle; tile
// beliefs persist until the tile is seen again.
package memory

import (
	"cmp"
	"math/rand"
	"slices"

	"github.com/talgya/tilesim/internal/world"
)

// PowerEst is a bucketed estimate of another party's power relative to our
// own.
type PowerEst uint8

const (
	MuchWeaker PowerEst = iota
	Weaker
	Same
	Stronger
	MuchStronger
)

func (p PowerEst) String() string {
	switch p {
	case MuchWeaker:
		return "much_weaker"
	case Weaker:
		return "weaker"
	case Same:
		return "same"
	case Stronger:
		return "stronger"
	}
	return "much_stronger"
}

// IsWeaker reports whether the estimate is below Same.
func (p PowerEst) IsWeaker() bool { return p < Same }

// IsStronger reports whether the estimate is above Same.
func (p PowerEst) IsStronger() bool { return p > Same }

// Bucket maps a power ratio (theirs / ours) to an estimate.
func Bucket(ratio float64) PowerEst {
	switch {
	case ratio <= 0.5:
		return MuchWeaker
	case ratio <= 0.8:
		return Weaker
	case ratio <= 1.25:
		return Same
	case ratio <= 2:
		return Stronger
	}
	return MuchStronger
}

// Estimate buckets theirs/ours after perturbing the ratio by U(1−r, 1+r),
// r = 1 − accuracy/100. Accuracy of 100 or more is exact. A non-positive
// own power reads every other party as much stronger.
func Estimate(theirs, ours, accuracy float64, rng *rand.Rand) PowerEst {
	if ours <= 0 {
		if theirs <= 0 {
			return Same
		}
		return MuchStronger
	}
	ratio := theirs / ours
	if accuracy < 100 {
		r := 1 - accuracy/100
		ratio *= 1 - r + rng.Float64()*2*r
	}
	return Bucket(ratio)
}

// CharacterEntry is a belief about another character.
type CharacterEntry struct {
	ID      world.CharacterID `json:"id"`
	Pos     world.Point       `json:"pos"`
	Faction world.Faction     `json:"faction"`
	Power   PowerEst          `json:"power"`
}

// EventEntry is a belief about a combat involving our own faction.
type EventEntry struct {
	ID    world.EventID `json:"id"`
	Pos   world.Point   `json:"pos"`
	Power PowerEst      `json:"power"` // hostile power against our faction
}

// TileEntry is a belief about a tile.
type TileEntry struct {
	ID           world.TileID   `json:"id"`
	Pos          world.Point    `json:"pos"`
	Type         world.TileType `json:"type"`
	Collectibles []string       `json:"collectibles,omitempty"`
	SeenAt       uint64         `json:"seen_at"` // turn of the last observation
}

// Memory is one character's belief store.
type Memory struct {
	characters map[world.CharacterID]CharacterEntry
	events     map[world.EventID]EventEntry
	tiles      map[world.Point]TileEntry
}

// New returns an empty memory.
func New() *Memory {
	return &Memory{
		characters: make(map[world.CharacterID]CharacterEntry),
		events:     make(map[world.EventID]EventEntry),
		tiles:      make(map[world.Point]TileEntry),
	}
}

// Reset forgets every transient belief. Tile beliefs survive.
func (m *Memory) Reset() {
	clear(m.characters)
	clear(m.events)
}

// RememberCharacter overwrites the belief about e.ID.
func (m *Memory) RememberCharacter(e CharacterEntry) { m.characters[e.ID] = e }

// RememberEvent overwrites the belief about e.ID.
func (m *Memory) RememberEvent(e EventEntry) { m.events[e.ID] = e }

// RememberTile overwrites the belief about the tile at e.Pos.
func (m *Memory) RememberTile(e TileEntry) { m.tiles[e.Pos] = e }

// Character returns the belief about id.
func (m *Memory) Character(id world.CharacterID) (CharacterEntry, bool) {
	e, ok := m.characters[id]
	return e, ok
}

// Tile returns the belief about the tile at p.
func (m *Memory) Tile(p world.Point) (TileEntry, bool) {
	e, ok := m.tiles[p]
	return e, ok
}

// Characters returns every character belief ordered by distance from
// origin, then id.
func (m *Memory) Characters(origin world.Point) []CharacterEntry {
	out := make([]CharacterEntry, 0, len(m.characters))
	for _, e := range m.characters {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b CharacterEntry) int {
		if c := cmp.Compare(world.Manhattan(origin, a.Pos), world.Manhattan(origin, b.Pos)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Events returns every event belief ordered by distance from origin, then id.
func (m *Memory) Events(origin world.Point) []EventEntry {
	out := make([]EventEntry, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b EventEntry) int {
		if c := cmp.Compare(world.Manhattan(origin, a.Pos), world.Manhattan(origin, b.Pos)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Tiles returns every tile belief ordered by distance from origin, then id.
func (m *Memory) Tiles(origin world.Point) []TileEntry {
	out := make([]TileEntry, 0, len(m.tiles))
	for _, e := range m.tiles {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b TileEntry) int {
		if c := cmp.Compare(world.Manhattan(origin, a.Pos), world.Manhattan(origin, b.Pos)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// KnownCells returns the remembered tile type of every known cell.
func (m *Memory) KnownCells() map[world.Point]world.TileType {
	out := make(map[world.Point]world.TileType, len(m.tiles))
	for p, e := range m.tiles {
		out[p] = e.Type
	}
	return out
}

// Counts returns the number of character, event and tile beliefs.
func (m *Memory) Counts() (characters, events, tiles int) {
	return len(m.characters), len(m.events), len(m.tiles)
}
