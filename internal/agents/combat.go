package agents

import (
	"fmt"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/world"
)

// CombatEvent aggregates every character fighting on one tile. Each faction
// present keeps at least one hostile faction present; a faction left
// without one leaves the fight.
type CombatEvent struct {
	ID      world.EventID
	TileID  world.TileID
	Pos     world.Point
	Started uint64 // world turn

	factions []world.Faction // join order
	rosters  map[world.Faction][]world.CharacterID
	hostiles map[world.Faction]mapset.Set[world.Faction]
	closed   bool
}

func newCombatEvent(id world.EventID, t *world.Tile, turn uint64) *CombatEvent {
	return &CombatEvent{
		ID:       id,
		TileID:   t.ID,
		Pos:      t.Pos,
		Started:  turn,
		rosters:  make(map[world.Faction][]world.CharacterID),
		hostiles: make(map[world.Faction]mapset.Set[world.Faction]),
	}
}

// startCombat opens a combat on t between initiator and the occupants it is
// hostile to. Occupants of the initiator's faction join its side.
func (w *World) startCombat(t *world.Tile, initiator *Character, occupants []*Character) *CombatEvent {
	ev := newCombatEvent(w.NextEventID(), t, w.Turn)
	ev.addFaction(initiator.Faction())
	for _, o := range occupants {
		if initiator.race.IsHostile(o.Faction()) {
			ev.addFaction(o.Faction())
			ev.link(initiator.Faction(), o.Faction())
		}
	}

	ev.enroll(initiator)
	for _, o := range occupants {
		if ev.HasFaction(o.Faction()) {
			ev.enroll(o)
		}
	}
	t.BindCombat(ev.ID)
	w.Events.Add(ev.ID, ev)
	w.notify("combat", "%s started combat %d at %v against %v", initiator, ev.ID, t.Pos, ev.opponents(initiator.Faction()))
	return ev
}

// Join adds c to the fight. A faction new to the fight enters only if its
// race is hostile to a faction present, and gains hostility edges to each
// of them in both directions.
func (e *CombatEvent) Join(w *World, c *Character) bool {
	if e.closed || !c.Alive() {
		return false
	}
	f := c.Faction()
	if !e.HasFaction(f) {
		var targets []world.Faction
		for _, other := range e.factions {
			if c.race.IsHostile(other) {
				targets = append(targets, other)
			}
		}
		if len(targets) == 0 {
			return false
		}
		e.addFaction(f)
		for _, other := range targets {
			e.link(f, other)
		}
	}
	e.enroll(c)
	w.Events.Touch(e.ID)
	return true
}

func (e *CombatEvent) addFaction(f world.Faction) {
	if e.HasFaction(f) {
		return
	}
	e.factions = append(e.factions, f)
	e.rosters[f] = nil
	e.hostiles[f] = mapset.New[world.Faction]()
}

func (e *CombatEvent) link(a, b world.Faction) {
	e.hostiles[a].Put(b)
	e.hostiles[b].Put(a)
}

func (e *CombatEvent) enroll(c *Character) {
	f := c.Faction()
	if !slices.Contains(e.rosters[f], c.ID) {
		e.rosters[f] = append(e.rosters[f], c.ID)
	}
	c.enterCombat(e.ID)
}

// Remove takes character id out of the fight. A faction whose roster
// empties leaves both maps; factions then left without hostiles leave too,
// their members exiting combat, until the fight is stable. An empty fight
// is deleted and its tile freed.
func (e *CombatEvent) Remove(w *World, id world.CharacterID) {
	if e.closed {
		return
	}
	for _, f := range e.factions {
		i := slices.Index(e.rosters[f], id)
		if i < 0 {
			continue
		}
		e.rosters[f] = slices.Delete(e.rosters[f], i, i+1)
		if len(e.rosters[f]) == 0 {
			e.dropFaction(f)
		}
		break
	}

	for {
		idx := slices.IndexFunc(e.factions, func(f world.Faction) bool { return e.hostiles[f].Size() == 0 })
		if idx < 0 {
			break
		}
		f := e.factions[idx]
		members := e.rosters[f]
		e.dropFaction(f)
		for _, mid := range members {
			if c, ok := w.Character(mid); ok && c.Alive() {
				c.ExitCombat()
				w.Characters.Touch(mid)
			}
		}
	}

	if len(e.factions) == 0 {
		e.destroy(w)
		return
	}
	w.Events.Touch(e.ID)
}

func (e *CombatEvent) dropFaction(f world.Faction) {
	e.factions = slices.DeleteFunc(e.factions, func(g world.Faction) bool { return g == f })
	delete(e.rosters, f)
	delete(e.hostiles, f)
	for _, hs := range e.hostiles {
		hs.Remove(f)
	}
}

func (e *CombatEvent) destroy(w *World) {
	e.closed = true
	if t, ok := w.Grid.Tile(e.TileID); ok {
		if id, bound := t.Combat(); bound && id == e.ID {
			t.ClearCombat()
		}
	}
	w.Events.Remove(e.ID)
	w.notify("combat", "combat %d at %v ended", e.ID, e.Pos)
}

// KillCharacter settles a death. The killer earns exp for the victim's
// level, plus a ValorMedal for felling a higher level foe. The victim is
// marked dead and taken off its tile and out of the fight.
func (e *CombatEvent) KillCharacter(w *World, killer, victim *Character) {
	exp := w.Settings.KillExpPerLevel * victim.Level()
	if victim.Level() > killer.Level() {
		if medal, ok := items.Lookup(items.ValorMedal); ok {
			killer.AddItem(medal)
		}
	}
	if levels := killer.GainExp(exp); levels > 0 {
		killer.chronicle.Add(w.Turn, fmt.Sprintf("reached level %d", killer.Level()), 0.6)
		w.notify("level", "%s reached level %d", killer, killer.Level())
	}
	killer.record(ResultKilledEnemy)
	killer.chronicle.Add(w.Turn, "killed "+victim.String(), 0.5)

	victim.die()
	victim.chronicle.Add(w.Turn, "killed by "+killer.String(), 1)
	if t, ok := w.Grid.TileAt(victim.Pos); ok {
		t.RemoveOccupant(victim.ID)
	}
	w.forgetPlanner(victim.ID)
	w.notify("death", "%s killed %s at %v", killer, victim, victim.Pos)
	w.Characters.Touch(victim.ID)

	e.Remove(w, victim.ID)
}

// HostilePower sums the power of the living members of every faction
// hostile to f.
func (e *CombatEvent) HostilePower(w *World, f world.Faction) float64 {
	hs, ok := e.hostiles[f]
	if !ok {
		return 0
	}
	total := 0.0
	hs.Each(func(h world.Faction) {
		for _, id := range e.rosters[h] {
			if c, ok := w.Character(id); ok && c.Alive() {
				total += c.Power()
			}
		}
	})
	return total
}

// HasFaction reports whether f takes part.
func (e *CombatEvent) HasFaction(f world.Faction) bool {
	_, ok := e.rosters[f]
	return ok
}

// Factions returns the factions in join order.
func (e *CombatEvent) Factions() []world.Faction { return slices.Clone(e.factions) }

// Roster returns the members of f in join order.
func (e *CombatEvent) Roster(f world.Faction) []world.CharacterID { return slices.Clone(e.rosters[f]) }

// Hostiles returns the factions hostile to f, in join order.
func (e *CombatEvent) Hostiles(f world.Faction) []world.Faction { return e.opponents(f) }

func (e *CombatEvent) opponents(f world.Faction) []world.Faction {
	hs, ok := e.hostiles[f]
	if !ok {
		return nil
	}
	var out []world.Faction
	for _, g := range e.factions {
		if hs.Has(g) {
			out = append(out, g)
		}
	}
	return out
}

// Size returns the number of fighters.
func (e *CombatEvent) Size() int {
	n := 0
	for _, r := range e.rosters {
		n += len(r)
	}
	return n
}

// Closed reports whether the fight is over.
func (e *CombatEvent) Closed() bool { return e.closed }

// Record projects the fight for JSON output.
func (e *CombatEvent) Record() map[string]any {
	rosters := make(map[world.Faction][]world.CharacterID, len(e.rosters))
	hostiles := make(map[world.Faction][]world.Faction, len(e.hostiles))
	for _, f := range e.factions {
		rosters[f] = e.Roster(f)
		hostiles[f] = e.opponents(f)
	}
	return map[string]any{
		"id":       e.ID,
		"tile_id":  e.TileID,
		"pos":      e.Pos,
		"started":  e.Started,
		"factions": e.Factions(),
		"rosters":  rosters,
		"hostiles": hostiles,
	}
}
