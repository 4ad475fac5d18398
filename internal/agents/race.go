package agents

import (
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// Factions. A character's faction is its race.
const (
	Human  world.Faction = "Human"
	Demon  world.Faction = "Demon"
	Ruin   world.Faction = "Ruin"
	Forest world.Faction = "Forest"
)

// Race holds the fixed traits shared by every member of a faction.
type Race struct {
	Faction      world.Faction
	Hostile      mapset.Set[world.Faction]
	Friendly     mapset.Set[world.Faction]
	CapGain      map[stats.Attribute]int // cap increase per character level
	Restricted   mapset.Set[world.TileType]
	Curve        stats.Curve
	DefaultState StateKind
	Move         MoveStrategy
	Behavior     Behavior
	Playable     bool             // pursues goals and archetypes
	SpawnTiles   []world.TileType // where generators of this race sit
}

// IsHostile reports whether f is hostile to the race.
func (r *Race) IsHostile(f world.Faction) bool { return r.Hostile.Has(f) }

// IsFriendly reports whether f is the race itself or friendly to it.
func (r *Race) IsFriendly(f world.Faction) bool { return f == r.Faction || r.Friendly.Has(f) }

// CanEnter reports whether members may stand on tiles of type t.
func (r *Race) CanEnter(t world.TileType) bool { return !r.Restricted.Has(t) }

// HostileFactions returns the hostile set sorted.
func (r *Race) HostileFactions() []world.Faction { return sortedFactions(r.Hostile) }

func newFactionSet(fs ...world.Faction) mapset.Set[world.Faction] {
	s := mapset.New[world.Faction]()
	for _, f := range fs {
		s.Put(f)
	}
	return s
}

// allExcept restricts every tile type other than the allowed ones.
func allExcept(allowed ...world.TileType) mapset.Set[world.TileType] {
	s := mapset.New[world.TileType]()
	for _, t := range world.TileTypes() {
		s.Put(t)
	}
	for _, t := range allowed {
		s.Remove(t)
	}
	return s
}

func sortedFactions(s mapset.Set[world.Faction]) []world.Faction {
	out := make([]world.Faction, 0, s.Size())
	s.Each(func(f world.Faction) { out = append(out, f) })
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var races = map[world.Faction]*Race{
	Human: {
		Faction:      Human,
		Hostile:      newFactionSet(Demon, Forest, Ruin),
		Friendly:     newFactionSet(),
		CapGain:      map[stats.Attribute]int{stats.Vitality: 2, stats.Endurance: 2, stats.Strength: 3, stats.Agility: 4},
		Restricted:   mapset.New[world.TileType](),
		Curve:        stats.Curve{Base: 100},
		DefaultState: StateBasic,
		Move:         MoveThinking,
		Behavior:     BehaviorDefault,
		Playable:     true,
		SpawnTiles:   []world.TileType{world.TileHumanGenerator},
	},
	Demon: {
		Faction:      Demon,
		Hostile:      newFactionSet(Human, Forest, Ruin),
		Friendly:     newFactionSet(),
		CapGain:      map[stats.Attribute]int{stats.Vitality: 3, stats.Endurance: 3, stats.Strength: 4, stats.Agility: 2},
		Restricted:   mapset.New[world.TileType](),
		Curve:        stats.Curve{Base: 200},
		DefaultState: StateBasic,
		Move:         MoveThinking,
		Behavior:     BehaviorAggressive,
		Playable:     true,
		SpawnTiles:   []world.TileType{world.TileDemonGenerator},
	},
	Ruin: {
		Faction:      Ruin,
		Hostile:      newFactionSet(Human, Demon),
		Friendly:     newFactionSet(),
		CapGain:      map[stats.Attribute]int{stats.Vitality: 4, stats.Endurance: 4, stats.Strength: 4, stats.Agility: 1},
		Restricted:   allExcept(world.TileRuin),
		Curve:        stats.Curve{Base: 100},
		DefaultState: StateBasicMob,
		Move:         MoveAggressiveMob,
		Behavior:     BehaviorAggressive,
		SpawnTiles:   []world.TileType{world.TileRuin},
	},
	Forest: {
		Faction:      Forest,
		Hostile:      newFactionSet(Demon),
		Friendly:     newFactionSet(),
		CapGain:      map[stats.Attribute]int{stats.Vitality: 2, stats.Endurance: 2, stats.Strength: 2, stats.Agility: 5},
		Restricted:   allExcept(world.TileForest),
		Curve:        stats.Curve{Base: 100},
		DefaultState: StateBasicMob,
		Move:         MovePassiveMob,
		Behavior:     BehaviorPassive,
		SpawnTiles:   []world.TileType{world.TileForest},
	},
}

// RaceOf returns the race of faction f.
func RaceOf(f world.Faction) (*Race, bool) {
	r, ok := races[f]
	return r, ok
}

// Factions returns every known faction sorted.
func Factions() []world.Faction {
	out := make([]world.Faction, 0, len(races))
	for f := range races {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
