// Package stats holds the numeric character model: derived stat blocks,
// the attributes that feed them, overlay modifiers, statuses and the level
// curve.
package stats

import (
	"errors"
	"fmt"
)

// Kind names one derived stat.
type Kind uint8

const (
	MaxHealth Kind = iota
	CurrentHealth
	MaxEnergy
	CurrentEnergy
	Power
	Speed
	Defense
	Resistance
	Regeneration
	numKinds
)

var kindNames = [numKinds]string{
	"max_health", "current_health", "max_energy", "current_energy",
	"power", "speed", "defense", "resistance", "regeneration",
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("stat(%d)", k)
	}
	return kindNames[k]
}

// Kinds lists every stat kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

var (
	// ErrUnknownStat is the panic value for reading or updating a stat the
	// block was never given.
	ErrUnknownStat = errors.New("unknown stat")
	// ErrDuplicateStat is the panic value for adding a stat twice.
	ErrDuplicateStat = errors.New("duplicate stat")
)

// Block is a set of derived stats. Current health and energy are kept
// within [0, max] after every mutation.
type Block struct {
	values [numKinds]float64
	set    [numKinds]bool
}

// NewBlock returns an empty block.
func NewBlock() *Block { return &Block{} }

// Add initialises stat k. Adding an existing stat panics.
func (b *Block) Add(k Kind, v float64) {
	if b.set[k] {
		panic(fmt.Errorf("%w: %s", ErrDuplicateStat, k))
	}
	b.set[k] = true
	b.values[k] = v
	b.clamp()
}

// Has reports whether stat k was initialised.
func (b *Block) Has(k Kind) bool { return k < numKinds && b.set[k] }

// Get returns stat k. Reading a missing stat panics.
func (b *Block) Get(k Kind) float64 {
	b.mustHave(k)
	return b.values[k]
}

// Set overwrites stat k, then clamps.
func (b *Block) Set(k Kind, v float64) {
	b.mustHave(k)
	b.values[k] = v
	b.clamp()
}

// Update adds delta to stat k, then clamps.
func (b *Block) Update(k Kind, delta float64) {
	b.mustHave(k)
	b.values[k] += delta
	b.clamp()
}

// Put sets stat k, adding it when missing.
func (b *Block) Put(k Kind, v float64) {
	b.set[k] = true
	b.values[k] = v
	b.clamp()
}

// Clone returns an independent copy.
func (b *Block) Clone() *Block {
	c := *b
	return &c
}

// HealthRatio returns current/max health, 0 when max is 0.
func (b *Block) HealthRatio() float64 { return b.ratio(CurrentHealth, MaxHealth) }

// EnergyRatio returns current/max energy, 0 when max is 0.
func (b *Block) EnergyRatio() float64 { return b.ratio(CurrentEnergy, MaxEnergy) }

// Apply applies an overlay modifier to the block.
func (b *Block) Apply(m Modifier) {
	if !b.Has(m.Stat) {
		return
	}
	switch m.Mode {
	case ModePercent:
		b.values[m.Stat] *= 1 + m.Value
	default:
		b.values[m.Stat] += m.Value
	}
	b.clamp()
}

// Map projects the block for JSON output.
func (b *Block) Map() map[string]float64 {
	out := make(map[string]float64, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		if b.set[k] {
			out[k.String()] = b.values[k]
		}
	}
	return out
}

func (b *Block) ratio(cur, max Kind) float64 {
	if !b.set[cur] || !b.set[max] || b.values[max] <= 0 {
		return 0
	}
	return b.values[cur] / b.values[max]
}

func (b *Block) mustHave(k Kind) {
	if !b.Has(k) {
		panic(fmt.Errorf("%w: %s", ErrUnknownStat, k))
	}
}

func (b *Block) clamp() {
	b.clampPair(CurrentHealth, MaxHealth)
	b.clampPair(CurrentEnergy, MaxEnergy)
}

func (b *Block) clampPair(cur, max Kind) {
	if !b.set[cur] {
		return
	}
	if b.set[max] && b.values[cur] > b.values[max] {
		b.values[cur] = b.values[max]
	}
	if b.values[cur] < 0 {
		b.values[cur] = 0
	}
}
