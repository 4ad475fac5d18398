// Character spawning: attribute rolls and names per race, and the
// interval generators that drop new characters onto their tiles.

package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// attrRange is an inclusive roll range.
type attrRange struct{ lo, hi int }

var raceAttributes = map[world.Faction]map[stats.Attribute]attrRange{
	Human: {
		stats.Vitality: {5, 7}, stats.Endurance: {3, 5}, stats.Strength: {3, 6}, stats.Agility: {8, 12},
		stats.Perception: {3, 6}, stats.Intellect: {4, 8}, stats.Insight: {1, 3},
	},
	Demon: {
		stats.Vitality: {10, 15}, stats.Endurance: {5, 8}, stats.Strength: {6, 10}, stats.Agility: {5, 7},
		stats.Perception: {2, 4}, stats.Intellect: {2, 5}, stats.Insight: {0, 2},
	},
	Ruin: {
		stats.Vitality: {12, 18}, stats.Endurance: {6, 10}, stats.Strength: {8, 12}, stats.Agility: {3, 5},
		stats.Perception: {1, 3},
	},
	Forest: {
		stats.Vitality: {4, 6}, stats.Endurance: {2, 4}, stats.Strength: {2, 4}, stats.Agility: {10, 14},
		stats.Perception: {5, 8},
	},
}

// Spawner rolls new characters.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed + 300))}
}

// Spawn creates a character of faction f at pos and places it in w. A
// playable character starts with the Player archetype, both kinds of
// knowledge, a Fighting goal, and works toward SwordTrainee.
func (s *Spawner) Spawn(w *World, f world.Faction, pos world.Point) (*Character, error) {
	r, ok := RaceOf(f)
	if !ok {
		return nil, fmt.Errorf("spawn: unknown faction %q", f)
	}
	tile, ok := w.Grid.TileAt(pos)
	if !ok || tile.Obstacle() || !r.CanEnter(tile.Type) {
		return nil, fmt.Errorf("spawn %s: cannot stand at %v", f, pos)
	}

	c := NewCharacter(w.NextCharacterID(), s.name(f), r, pos, s.rollAttributes(f))
	c.Born = w.Turn
	if err := w.AddCharacter(c); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", f, err)
	}

	if r.Playable {
		c.archetypes = append(c.archetypes, ArchPlayer)
		c.Learn(KnowIncreaseAttribute)
		c.Learn(KnowIncreaseAttributeCap)
		c.goals.Insert(&Fighting{Target: c.Level() + 1}, 1)
		if a, ok := ArchetypeByName(ArchSwordTrainee); ok {
			c.AddArchetype(a)
		}
	} else {
		c.archetypes = append(c.archetypes, ArchMob)
	}
	c.chronicle.Add(w.Turn, fmt.Sprintf("spawned at %v", pos), 0.2)

	c.onEnterTile(w, tile)
	w.Characters.Touch(c.ID)
	return c, nil
}

func (s *Spawner) rollAttributes(f world.Faction) *stats.Attributes {
	values := make(map[stats.Attribute]int)
	for a, r := range raceAttributes[f] {
		values[a] = r.lo + s.rng.Intn(r.hi-r.lo+1)
	}
	return stats.NewAttributes(values)
}

func (s *Spawner) name(f world.Faction) string {
	switch f {
	case Human:
		first := humanNames[s.rng.Intn(len(humanNames))]
		return first + " " + lastNames[s.rng.Intn(len(lastNames))]
	case Demon:
		return demonNames[s.rng.Intn(len(demonNames))] + " the " + demonEpithets[s.rng.Intn(len(demonEpithets))]
	}
	return mobNames[f][s.rng.Intn(len(mobNames[f]))]
}

// GeneratorSpec configures the generators of one faction.
type GeneratorSpec struct {
	Faction  world.Faction
	Interval float64 // simulated seconds between spawns
	Amount   int     // spawns per generator; 0 means unlimited
	Initial  int     // characters placed at start
	Sites    int     // generators for races spawning on common tiles
}

// Generator spawns Amount characters of Faction at Pos, one every Interval.
type Generator struct {
	Faction  world.Faction
	Pos      world.Point
	Interval float64
	Amount   int
	Spawned  int

	elapsed float64
}

// PlaceGenerators puts generators on the spawn tiles of each spec's race.
// Mob races spawn on common tiles and get at most Sites generators on
// randomly chosen ones; a grid without such tiles simply has none.
func PlaceGenerators(g *world.Grid, specs []GeneratorSpec, rng *rand.Rand) ([]*Generator, error) {
	var out []*Generator
	for _, spec := range specs {
		r, ok := RaceOf(spec.Faction)
		if !ok {
			return nil, fmt.Errorf("generator: unknown faction %q", spec.Faction)
		}
		var sites []world.Point
		for _, tt := range r.SpawnTiles {
			sites = append(sites, g.FindAll(tt)...)
		}
		if len(sites) == 0 {
			if r.Playable {
				return nil, fmt.Errorf("generator %s: no %v tile on the grid", spec.Faction, r.SpawnTiles)
			}
			continue
		}
		if !r.Playable {
			rng.Shuffle(len(sites), func(i, j int) { sites[i], sites[j] = sites[j], sites[i] })
			n := max(spec.Sites, 1)
			if n < len(sites) {
				sites = sites[:n]
			}
		}
		for _, p := range sites {
			out = append(out, &Generator{Faction: spec.Faction, Pos: p, Interval: spec.Interval, Amount: spec.Amount})
		}
	}
	return out, nil
}

// Done reports whether the generator has spawned its full amount.
func (gen *Generator) Done() bool { return gen.Amount > 0 && gen.Spawned >= gen.Amount }

// Update advances the generator by dt simulated seconds and spawns when its
// interval has elapsed. A failed spawn is retried on the next interval.
func (gen *Generator) Update(w *World, s *Spawner, dt float64) (*Character, error) {
	if gen.Done() || gen.Interval <= 0 {
		return nil, nil
	}
	gen.elapsed += dt
	if gen.elapsed < gen.Interval {
		return nil, nil
	}
	gen.elapsed -= gen.Interval
	c, err := s.Spawn(w, gen.Faction, gen.Pos)
	if err != nil {
		return nil, err
	}
	gen.Spawned++
	return c, nil
}

// Record projects the generator for JSON output.
func (gen *Generator) Record() map[string]any {
	return map[string]any{
		"faction": gen.Faction, "pos": gen.Pos, "interval": gen.Interval,
		"amount": gen.Amount, "spawned": gen.Spawned,
	}
}

// Name pools for procedural generation.
var humanNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Ravenmoor", "Silverdale", "Wolfsbane", "Stoneheart", "Redforge",
}

var demonNames = []string{
	"Azhar", "Belroth", "Cazrith", "Drogath", "Ezzum", "Gharn", "Hexis",
	"Kroth", "Malgor", "Nyzra", "Orzhul", "Razhik", "Skarn", "Vhool",
}

var demonEpithets = []string{
	"Cinder", "Hollow", "Ravenous", "Scarred", "Unbound", "Wretched", "Ashen",
}

var mobNames = map[world.Faction][]string{
	Ruin:   {"Ruin Sentinel", "Ruin Golem", "Crumbling Guard", "Relic Shade"},
	Forest: {"Forest Sprite", "Moss Stag", "Thorn Wisp", "Bark Hound"},
}
