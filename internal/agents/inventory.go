package agents

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/stats"
)

// ErrInsufficientItems is the panic value for consuming more than is held.
var ErrInsufficientItems = errors.New("insufficient items")

// Equipment holds the equipped weapon and armor. Either may be nil.
type Equipment struct {
	Weapon *items.Item
	Armor  *items.Item
}

// Modifiers returns the overlay of every equipped item, weapon first.
func (e Equipment) Modifiers() []stats.Modifier {
	var out []stats.Modifier
	for _, it := range []*items.Item{e.Weapon, e.Armor} {
		if it != nil {
			out = append(out, it.Modifiers...)
		}
	}
	return out
}

// With returns a copy with it in its slot, and the item it displaced.
func (e Equipment) With(it *items.Item) (Equipment, *items.Item) {
	var prev *items.Item
	switch it.Slot {
	case items.SlotWeapon:
		prev, e.Weapon = e.Weapon, it
	case items.SlotArmor:
		prev, e.Armor = e.Armor, it
	}
	return e, prev
}

// Inventory counts carried items by name, stackable and unique kept apart.
type Inventory struct {
	stackable map[string]int
	unique    map[string]int
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{stackable: make(map[string]int), unique: make(map[string]int)}
}

// Add stores n of it.
func (inv *Inventory) Add(it *items.Item, n int) {
	if n <= 0 {
		return
	}
	if it.Stackable {
		inv.stackable[it.Name] += n
	} else {
		inv.unique[it.Name] += n
	}
}

// Count returns how many items named name are held.
func (inv *Inventory) Count(name string) int {
	return inv.stackable[name] + inv.unique[name]
}

// Remove consumes n items named name. Consuming more than is held panics
// with ErrInsufficientItems.
func (inv *Inventory) Remove(name string, n int) {
	bucket := inv.unique
	if _, ok := inv.stackable[name]; ok {
		bucket = inv.stackable
	}
	if bucket[name] < n {
		panic(fmt.Errorf("%w: have %d %s, need %d", ErrInsufficientItems, bucket[name], name, n))
	}
	bucket[name] -= n
	if bucket[name] == 0 {
		delete(bucket, name)
	}
}

// Names returns every held item name, sorted.
func (inv *Inventory) Names() []string {
	var out []string
	for n := range inv.stackable {
		out = append(out, n)
	}
	for n := range inv.unique {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Record projects the inventory for JSON output.
func (inv *Inventory) Record() map[string]any {
	return map[string]any{
		"stackable": copyCounts(inv.stackable),
		"items":     copyCounts(inv.unique),
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
