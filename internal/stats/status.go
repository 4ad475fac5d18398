package stats

import "sort"

// StatusClass groups statuses that replace or extend each other. A character
// holds at most one status per class.
type StatusClass uint8

const (
	ClassInjury StatusClass = iota
	ClassTownBuff
)

func (c StatusClass) String() string {
	switch c {
	case ClassInjury:
		return "injury"
	case ClassTownBuff:
		return "town_buff"
	}
	return "unknown"
}

// StatusDef is the immutable definition of a status.
type StatusDef struct {
	Name        string
	Class       StatusClass
	Level       int // a higher level replaces a lower one of the same class
	Debuff      bool
	Expirable   bool // counts down every turn
	Recoverable bool // counts down when the character rests
	Modifiers   []Modifier
}

// Built-in statuses.
var (
	LightInjury = &StatusDef{
		Name: "LightInjury", Class: ClassInjury, Level: 1, Debuff: true, Recoverable: true,
		Modifiers: []Modifier{Percent(Power, -0.3), Percent(Speed, -0.3)},
	}
	HeavyInjury = &StatusDef{
		Name: "HeavyInjury", Class: ClassInjury, Level: 2, Debuff: true, Recoverable: true,
		Modifiers: []Modifier{Percent(Power, -0.3), Percent(Speed, -0.3)},
	}
	TownTileBuff = &StatusDef{
		Name: "TownTileBuff", Class: ClassTownBuff, Level: 1, Expirable: true,
		Modifiers: []Modifier{Percent(Speed, 0.3)},
	}
)

var statusByName = map[string]*StatusDef{
	LightInjury.Name:  LightInjury,
	HeavyInjury.Name:  HeavyInjury,
	TownTileBuff.Name: TownTileBuff,
}

// StatusByName looks up a built-in status.
func StatusByName(name string) (*StatusDef, bool) {
	d, ok := statusByName[name]
	return d, ok
}

// Status is an active status with its remaining duration in turns.
type Status struct {
	Def      *StatusDef
	Duration int
}

// Statuses is a status set keyed by class.
type Statuses struct {
	byClass map[StatusClass]*Status
}

// NewStatuses returns an empty set.
func NewStatuses() *Statuses {
	return &Statuses{byClass: make(map[StatusClass]*Status)}
}

// Add applies def for duration turns. An existing status of the same class
// is extended, and upgraded when def has a higher level.
func (s *Statuses) Add(def *StatusDef, duration int) {
	if cur, ok := s.byClass[def.Class]; ok {
		cur.Duration += duration
		if def.Level > cur.Def.Level {
			cur.Def = def
		}
		return
	}
	s.byClass[def.Class] = &Status{Def: def, Duration: duration}
}

// Has reports whether a status of class c is active.
func (s *Statuses) Has(c StatusClass) bool {
	_, ok := s.byClass[c]
	return ok
}

// Get returns the active status of class c.
func (s *Statuses) Get(c StatusClass) (Status, bool) {
	st, ok := s.byClass[c]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Len returns the number of active statuses.
func (s *Statuses) Len() int { return len(s.byClass) }

// Tick counts down expirable statuses by one and returns the names of those
// that expired.
func (s *Statuses) Tick() []string {
	return s.countDown(1, func(d *StatusDef) bool { return d.Expirable })
}

// Recover counts down recoverable debuffs by n and returns the names of
// those that ended.
func (s *Statuses) Recover(n int) []string {
	return s.countDown(n, func(d *StatusDef) bool { return d.Debuff && d.Recoverable })
}

// HasRecoverableDebuff reports whether any recoverable debuff is active.
func (s *Statuses) HasRecoverableDebuff() bool {
	for _, st := range s.byClass {
		if st.Def.Debuff && st.Def.Recoverable {
			return true
		}
	}
	return false
}

// Modifiers returns the overlay of every active status in class order.
func (s *Statuses) Modifiers() []Modifier {
	var out []Modifier
	for _, st := range s.List() {
		out = append(out, st.Def.Modifiers...)
	}
	return out
}

// List returns the active statuses in class order.
func (s *Statuses) List() []Status {
	out := make([]Status, 0, len(s.byClass))
	for _, st := range s.byClass {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.Class < out[j].Def.Class })
	return out
}

func (s *Statuses) countDown(n int, match func(*StatusDef) bool) []string {
	var ended []string
	for class, st := range s.byClass {
		if !match(st.Def) {
			continue
		}
		st.Duration -= n
		if st.Duration <= 0 {
			ended = append(ended, st.Def.Name)
			delete(s.byClass, class)
		}
	}
	sort.Strings(ended)
	return ended
}
