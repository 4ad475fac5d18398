// Package items is the item catalog: equipment with stat overlays,
// stackable materials and consumables.
package items

import (
	"sort"

	"github.com/talgya/tilesim/internal/stats"
)

// Type is the broad category of an item.
type Type uint8

const (
	TypeMaterial Type = iota
	TypeEquipment
	TypeConsumable
)

func (t Type) String() string {
	switch t {
	case TypeEquipment:
		return "equipment"
	case TypeConsumable:
		return "consumable"
	}
	return "material"
}

// Rarity orders items from Common to Primordial.
type Rarity uint8

const (
	Common Rarity = iota + 1
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
	Primordial
)

var rarityNames = map[Rarity]string{
	Common: "common", Uncommon: "uncommon", Rare: "rare", Epic: "epic",
	Legendary: "legendary", Mythic: "mythic", Primordial: "primordial",
}

func (r Rarity) String() string {
	if n, ok := rarityNames[r]; ok {
		return n
	}
	return "unknown"
}

// Slot is the equipment slot an item occupies.
type Slot uint8

const (
	SlotNone Slot = iota
	SlotWeapon
	SlotArmor
)

func (s Slot) String() string {
	switch s {
	case SlotWeapon:
		return "weapon"
	case SlotArmor:
		return "armor"
	}
	return "none"
}

// Item names in the catalog.
const (
	SteelSword          = "SteelSword"
	DamagedAncientSword = "DamagedAncientSword"
	SteelArmor          = "SteelArmor"
	DamagedAncientArmor = "DamagedAncientArmor"
	Gold                = "Gold"
	ValorMedal          = "ValorMedal"
	RuinMark            = "RuinMark"
)

// Item is an immutable catalog entry. Characters share pointers to it.
type Item struct {
	Name        string
	Description string
	Type        Type
	Rarity      Rarity
	Slot        Slot
	Stackable   bool
	Modifiers   []stats.Modifier // applied while equipped
}

// IsEquipment reports whether the item can be equipped.
func (i *Item) IsEquipment() bool { return i.Type == TypeEquipment && i.Slot != SlotNone }

var catalog = map[string]*Item{
	SteelSword: {
		Name: SteelSword, Description: "A plain steel blade.",
		Type: TypeEquipment, Rarity: Common, Slot: SlotWeapon,
		Modifiers: []stats.Modifier{stats.Flat(stats.Power, 20)},
	},
	DamagedAncientSword: {
		Name: DamagedAncientSword, Description: "A chipped blade from the old ruins.",
		Type: TypeEquipment, Rarity: Uncommon, Slot: SlotWeapon,
		Modifiers: []stats.Modifier{stats.Flat(stats.Power, 30)},
	},
	SteelArmor: {
		Name: SteelArmor, Description: "Plain steel plate.",
		Type: TypeEquipment, Rarity: Common, Slot: SlotArmor,
		Modifiers: []stats.Modifier{stats.Flat(stats.MaxHealth, 100)},
	},
	DamagedAncientArmor: {
		Name: DamagedAncientArmor, Description: "Cracked plate from the old ruins.",
		Type: TypeEquipment, Rarity: Uncommon, Slot: SlotArmor,
		Modifiers: []stats.Modifier{stats.Flat(stats.MaxHealth, 150)},
	},
	Gold: {
		Name: Gold, Description: "Coin.", Type: TypeMaterial, Rarity: Common, Stackable: true,
	},
	ValorMedal: {
		Name: ValorMedal, Description: "Awarded for surviving a hard fight.",
		Type: TypeConsumable, Rarity: Uncommon, Stackable: true,
	},
	RuinMark: {
		Name: RuinMark, Description: "A sigil cut from ruin stone.",
		Type: TypeConsumable, Rarity: Rare, Stackable: true,
	},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (*Item, bool) {
	it, ok := catalog[name]
	return it, ok
}

// Names returns every catalog name, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
