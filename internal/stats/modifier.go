package stats

// Mode is how a modifier combines with the stat it targets.
type Mode uint8

const (
	ModeFlat    Mode = iota // added
	ModePercent             // multiplied by 1 + value
)

// Modifier is one overlay entry from equipment or a status.
type Modifier struct {
	Stat  Kind    `json:"stat"`
	Value float64 `json:"value"`
	Mode  Mode    `json:"mode"`
}

// Flat returns a modifier adding v to k.
func Flat(k Kind, v float64) Modifier { return Modifier{Stat: k, Value: v, Mode: ModeFlat} }

// Percent returns a modifier scaling k by 1 + p.
func Percent(k Kind, p float64) Modifier { return Modifier{Stat: k, Value: p, Mode: ModePercent} }

// Overlay applies mods to b in order. A flat max-health or max-energy bonus
// also raises the matching current value, so the bonus is usable.
func Overlay(b *Block, mods []Modifier) {
	for _, m := range mods {
		b.Apply(m)
		if m.Mode != ModeFlat || m.Value <= 0 {
			continue
		}
		switch m.Stat {
		case MaxHealth:
			if b.Has(CurrentHealth) {
				b.Update(CurrentHealth, m.Value)
			}
		case MaxEnergy:
			if b.Has(CurrentEnergy) {
				b.Update(CurrentEnergy, m.Value)
			}
		}
	}
}
