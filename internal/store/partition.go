package store

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/constraints"
)

// ErrDuplicateID is the panic value for adding an id twice to a partition.
var ErrDuplicateID = errors.New("duplicate id")

// Partition maps typed ids to entities of one kind.
type Partition[K constraints.Unsigned, V any] struct {
	kind  Kind
	items map[K]V
	order func(a, b V) int
	feed  *Feed
}

// NewPartition creates an empty partition for kind.
func NewPartition[K constraints.Unsigned, V any](kind Kind) *Partition[K, V] {
	return &Partition[K, V]{kind: kind, items: make(map[K]V)}
}

// OrderBy sets the ordering used by All. Without one All sorts by id.
func (p *Partition[K, V]) OrderBy(cmp func(a, b V) int) { p.order = cmp }

// SetFeed routes this partition's mutations to feed. nil disables emission.
func (p *Partition[K, V]) SetFeed(feed *Feed) { p.feed = feed }

// Kind returns the partition kind.
func (p *Partition[K, V]) Kind() Kind { return p.kind }

// Add registers v under id. An id already present panics with
// ErrDuplicateID.
func (p *Partition[K, V]) Add(id K, v V) {
	if _, ok := p.items[id]; ok {
		panic(fmt.Errorf("%w: %s %d", ErrDuplicateID, p.kind, id))
	}
	p.items[id] = v
	p.emit(id, ActionUpdate, v)
}

// Remove deletes id. Removing an absent id is a no-op.
func (p *Partition[K, V]) Remove(id K) {
	v, ok := p.items[id]
	if !ok {
		return
	}
	delete(p.items, id)
	p.emit(id, ActionDelete, v)
}

// Touch emits an update record for an entity mutated in place.
func (p *Partition[K, V]) Touch(id K) {
	if v, ok := p.items[id]; ok {
		p.emit(id, ActionUpdate, v)
	}
}

// Get returns the entity under id.
func (p *Partition[K, V]) Get(id K) (V, bool) {
	v, ok := p.items[id]
	return v, ok
}

// Has reports whether id is present.
func (p *Partition[K, V]) Has(id K) bool {
	_, ok := p.items[id]
	return ok
}

// Len returns the number of entities.
func (p *Partition[K, V]) Len() int { return len(p.items) }

// IDs returns every id in ascending order.
func (p *Partition[K, V]) IDs() []K {
	ids := make([]K, 0, len(p.items))
	for id := range p.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// All returns a snapshot of every entity, ordered by the partition order
// with ties broken by ascending id.
func (p *Partition[K, V]) All() []V {
	ids := p.IDs()
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.items[id])
	}
	if p.order != nil {
		slices.SortStableFunc(out, p.order)
	}
	return out
}

func (p *Partition[K, V]) emit(id K, action Action, v V) {
	if p.feed == nil {
		return
	}
	var data map[string]any
	if r, ok := any(v).(Recorder); ok {
		data = r.Record()
	}
	p.feed.Emit(p.kind, uint64(id), action, data)
}
