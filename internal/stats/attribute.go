package stats

import (
	"fmt"
	"math"
)

// Attribute names one of the nine base attributes.
type Attribute uint8

const (
	Vitality Attribute = iota
	Endurance
	Strength
	Agility
	Perception
	Intellect
	Insight
	Heritage
	Essence
	numAttributes
)

var attributeNames = [numAttributes]string{
	"vitality", "endurance", "strength", "agility", "perception",
	"intellect", "insight", "heritage", "essence",
}

func (a Attribute) String() string {
	if a >= numAttributes {
		return fmt.Sprintf("attribute(%d)", a)
	}
	return attributeNames[a]
}

// AllAttributes lists every attribute in declaration order.
func AllAttributes() []Attribute {
	out := make([]Attribute, numAttributes)
	for i := range out {
		out[i] = Attribute(i)
	}
	return out
}

// Effect is one attribute contribution: each attribute point adds
// Multiplier to Stat.
type Effect struct {
	Stat       Kind
	Multiplier float64
}

// attributeEffects are the fixed per-point stat contributions. Perception,
// Insight, Heritage and Essence have special effects only.
var attributeEffects = map[Attribute][]Effect{
	Vitality:  {{MaxHealth, 20}, {Regeneration, 2}},
	Endurance: {{Defense, 1}, {Resistance, 1}},
	Strength:  {{Power, 5}},
	Agility:   {{Speed, 10}},
	Intellect: {{MaxEnergy, 10}},
}

// Effects returns the stat effects of a.
func Effects(a Attribute) []Effect { return attributeEffects[a] }

// GainResult is the outcome of GainProficiency.
type GainResult uint8

const (
	Increased GainResult = iota
	LeveledUp
	Capped
)

func (r GainResult) String() string {
	switch r {
	case LeveledUp:
		return "leveled_up"
	case Capped:
		return "capped"
	}
	return "increased"
}

// Score is the state of one attribute.
type Score struct {
	Value       int `json:"value"`
	Cap         int `json:"cap"`
	Proficiency int `json:"proficiency"`
}

// Threshold is the proficiency needed for the next point.
func (s Score) Threshold() int { return 10 * (s.Value + 1) }

// Attributes is a character's attribute sheet.
type Attributes struct {
	scores [numAttributes]Score
	set    [numAttributes]bool
}

// NewAttributes builds a sheet. Each attribute's cap defaults to twice its
// value.
func NewAttributes(values map[Attribute]int) *Attributes {
	as := &Attributes{}
	for a, v := range values {
		as.scores[a] = Score{Value: v, Cap: v * 2}
		as.set[a] = true
	}
	return as
}

// Has reports whether a is on the sheet.
func (as *Attributes) Has(a Attribute) bool { return a < numAttributes && as.set[a] }

// Score returns the state of a. Missing attributes panic.
func (as *Attributes) Score(a Attribute) Score {
	as.mustHave(a)
	return as.scores[a]
}

// Value returns the value of a, 0 when the sheet lacks it.
func (as *Attributes) Value(a Attribute) int {
	if !as.Has(a) {
		return 0
	}
	return as.scores[a].Value
}

// RaiseCap adds n to the cap of a.
func (as *Attributes) RaiseCap(a Attribute, n int) {
	as.mustHave(a)
	as.scores[a].Cap += n
}

// IsCapped reports whether a has reached its cap.
func (as *Attributes) IsCapped(a Attribute) bool {
	s := as.Score(a)
	return s.Value >= s.Cap
}

// GainProficiency adds amount proficiency to a. Reaching the threshold
// raises the value by one and keeps the excess. A capped attribute gains
// nothing.
func (as *Attributes) GainProficiency(a Attribute, amount int) GainResult {
	as.mustHave(a)
	s := &as.scores[a]
	if s.Value >= s.Cap {
		return Capped
	}
	s.Proficiency += amount
	if s.Proficiency < s.Threshold() {
		return Increased
	}
	s.Proficiency -= s.Threshold()
	s.Value++
	if s.Value >= s.Cap {
		s.Proficiency = 0
	}
	return LeveledUp
}

// Clone returns an independent copy.
func (as *Attributes) Clone() *Attributes {
	c := *as
	return &c
}

// Map projects the sheet for JSON output.
func (as *Attributes) Map() map[string]Score {
	out := make(map[string]Score)
	for a := Attribute(0); a < numAttributes; a++ {
		if as.set[a] {
			out[a.String()] = as.scores[a]
		}
	}
	return out
}

func (as *Attributes) mustHave(a Attribute) {
	if !as.Has(a) {
		panic(fmt.Errorf("%w: %s", ErrUnknownStat, a))
	}
}

// ApplyAttributes recomputes every stat an attribute affects as the sum of
// value × multiplier. Current health and energy start full when first
// created and are clamped otherwise.
func ApplyAttributes(b *Block, as *Attributes) {
	var sums [numKinds]float64
	var touched [numKinds]bool
	for a := Attribute(0); a < numAttributes; a++ {
		if !as.set[a] {
			continue
		}
		for _, e := range attributeEffects[a] {
			sums[e.Stat] += float64(as.scores[a].Value) * e.Multiplier
			touched[e.Stat] = true
		}
	}
	for k := Kind(0); k < numKinds; k++ {
		if touched[k] {
			b.Put(k, sums[k])
		}
	}
	if b.Has(MaxHealth) && !b.Has(CurrentHealth) {
		b.Add(CurrentHealth, b.Get(MaxHealth))
	}
	if b.Has(MaxEnergy) && !b.Has(CurrentEnergy) {
		b.Add(CurrentEnergy, b.Get(MaxEnergy))
	}
}

// ApplyAttributeGain adds the stat deltas of one new point of a. Raised
// maxima raise the matching current value by the same amount.
func ApplyAttributeGain(b *Block, a Attribute) {
	for _, e := range attributeEffects[a] {
		if !b.Has(e.Stat) {
			b.Add(e.Stat, 0)
		}
		b.Update(e.Stat, e.Multiplier)
		switch e.Stat {
		case MaxHealth:
			if b.Has(CurrentHealth) {
				b.Update(CurrentHealth, e.Multiplier)
			}
		case MaxEnergy:
			if b.Has(CurrentEnergy) {
				b.Update(CurrentEnergy, e.Multiplier)
			}
		}
	}
}

// VisionRadius is the Manhattan vision distance granted by perception.
func VisionRadius(base, perception int) int { return base + perception/5 }

// Accuracy is the power perception accuracy in percent. Perception never
// lifts a noisy base to perfect accuracy.
func Accuracy(base float64, perception int) float64 {
	if base >= 100 {
		return 100
	}
	return math.Min(99, base+float64(perception))
}

// ProficiencyBonus is the extra proficiency granted by insight.
func ProficiencyBonus(insight int) int { return insight }
