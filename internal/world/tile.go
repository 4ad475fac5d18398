package world

import (
	"slices"
	"sort"
)

// TileType is the terrain of a tile. Tiles never change type at runtime.
type TileType uint8

const (
	TileGround         TileType = iota
	TileTown                    // entry grants the town speed buff
	TileWater                   // impassable
	TileForest                  // blocks vision
	TileMountain                // impassable, blocks vision
	TileRuin                    // ancient equipment can be found here
	TileHumanGenerator          // Human spawn point
	TileDemonGenerator          // Demon spawn point
	numTileTypes
)

// TileSpec describes the fixed properties of a tile type.
type TileSpec struct {
	Name         string
	Code         rune               // map dump glyph
	Obstacle     bool               // cannot be entered
	BlocksVision bool               // blocks line of sight through it
	Collectibles map[string]float64 // item name -> find probability per search
	EntryStatus  string             // status granted on entering, "" for none
}

var tileSpecs = [numTileTypes]TileSpec{
	TileGround:   {Name: "Ground", Code: '.'},
	TileTown:     {Name: "Town", Code: 'T', EntryStatus: "TownTileBuff", Collectibles: map[string]float64{"SteelSword": 0.15, "SteelArmor": 0.15, "Gold": 0.4}},
	TileWater:    {Name: "Water", Code: '~', Obstacle: true},
	TileForest:   {Name: "Forest", Code: 'f', BlocksVision: true},
	TileMountain: {Name: "Mountain", Code: '^', Obstacle: true, BlocksVision: true},
	TileRuin: {Name: "Ruin", Code: 'r', Collectibles: map[string]float64{
		"DamagedAncientSword": 0.1, "DamagedAncientArmor": 0.1, "Gold": 0.3, "RuinMark": 0.05,
	}},
	TileHumanGenerator: {Name: "HumanGenerator", Code: 'H'},
	TileDemonGenerator: {Name: "DemonGenerator", Code: 'D'},
}

// Spec returns the properties of t.
func (t TileType) Spec() TileSpec {
	if t >= numTileTypes {
		return tileSpecs[TileGround]
	}
	return tileSpecs[t]
}

func (t TileType) String() string { return t.Spec().Name }

// TileTypes lists every tile type in declaration order.
func TileTypes() []TileType {
	out := make([]TileType, 0, numTileTypes)
	for t := TileType(0); t < numTileTypes; t++ {
		out = append(out, t)
	}
	return out
}

// Tile is one grid cell. The occupant list and the combat binding are the
// only mutable parts.
type Tile struct {
	ID   TileID
	Pos  Point
	Type TileType

	occupants []CharacterID
	combat    EventID
	hasCombat bool
	redraw    bool
}

// Obstacle reports whether the tile cannot be entered.
func (t *Tile) Obstacle() bool { return t.Type.Spec().Obstacle }

// BlocksVision reports whether the tile blocks line of sight.
func (t *Tile) BlocksVision() bool { return t.Type.Spec().BlocksVision }

// Collectibles returns the item names findable here, sorted.
func (t *Tile) Collectibles() []string {
	table := t.Type.Spec().Collectibles
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindChance returns the per-search probability of finding item here.
func (t *Tile) FindChance(item string) float64 {
	return t.Type.Spec().Collectibles[item]
}

// IsCollectable reports whether anything can be found on the tile.
func (t *Tile) IsCollectable() bool { return len(t.Type.Spec().Collectibles) > 0 }

// EntryStatus returns the status granted on entry, if any.
func (t *Tile) EntryStatus() (string, bool) {
	s := t.Type.Spec().EntryStatus
	return s, s != ""
}

// Occupants returns a copy of the occupant ids in arrival order.
func (t *Tile) Occupants() []CharacterID { return slices.Clone(t.occupants) }

// HasOccupant reports whether id stands on the tile.
func (t *Tile) HasOccupant(id CharacterID) bool { return slices.Contains(t.occupants, id) }

// AddOccupant places id on the tile. Adding twice is a no-op.
func (t *Tile) AddOccupant(id CharacterID) {
	if t.HasOccupant(id) {
		return
	}
	t.occupants = append(t.occupants, id)
	t.redraw = true
}

// RemoveOccupant removes id from the tile if present.
func (t *Tile) RemoveOccupant(id CharacterID) {
	if i := slices.Index(t.occupants, id); i >= 0 {
		t.occupants = slices.Delete(t.occupants, i, i+1)
		t.redraw = true
	}
}

// Combat returns the combat event bound to the tile.
func (t *Tile) Combat() (EventID, bool) { return t.combat, t.hasCombat }

// BindCombat binds a combat event to the tile.
func (t *Tile) BindCombat(id EventID) {
	t.combat, t.hasCombat = id, true
	t.redraw = true
}

// ClearCombat removes the combat binding.
func (t *Tile) ClearCombat() {
	t.combat, t.hasCombat = 0, false
	t.redraw = true
}

// ShouldRedraw reports whether the tile changed since the last ResetRedraw.
func (t *Tile) ShouldRedraw() bool { return t.redraw }

// ResetRedraw clears the dirty flag.
func (t *Tile) ResetRedraw() { t.redraw = false }

// Record is the JSON projection served to observers.
func (t *Tile) Record() map[string]any {
	rec := map[string]any{
		"id":        uint64(t.ID),
		"x":         t.Pos.X,
		"y":         t.Pos.Y,
		"type":      t.Type.String(),
		"occupants": t.Occupants(),
	}
	if id, ok := t.Combat(); ok {
		rec["combat"] = uint64(id)
	}
	return rec
}
