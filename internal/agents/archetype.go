// Archetypes are unlockable classes. Each has attribute requirements, an
// optional race restriction and prerequisite archetypes, and grants skills
// once unlocked.

package agents

import (
	"slices"
	"sort"

	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// Archetype names.
const (
	ArchMob          = "Mob"
	ArchPlayer       = "Player"
	ArchSwordTrainee = "SwordTrainee"
	ArchSwordman     = "Swordman"
)

// Archetype is an immutable class definition.
type Archetype struct {
	Name         string
	Requirements map[stats.Attribute]int
	Races        []world.Faction // empty means any race
	Requires     []string        // prerequisite archetypes
	Skills       []*SkillDef
}

var archetypes = map[string]*Archetype{
	ArchMob:    {Name: ArchMob},
	ArchPlayer: {Name: ArchPlayer},
	ArchSwordTrainee: {
		Name:         ArchSwordTrainee,
		Requirements: map[stats.Attribute]int{stats.Strength: 15, stats.Agility: 15},
		Races:        []world.Faction{Human, Demon},
		Requires:     []string{ArchPlayer},
		Skills:       []*SkillDef{SkillSlash, SkillSwordDance},
	},
	ArchSwordman: {
		Name:         ArchSwordman,
		Requirements: map[stats.Attribute]int{stats.Strength: 25, stats.Agility: 25},
		Races:        []world.Faction{Human, Demon},
		Requires:     []string{ArchSwordTrainee},
	},
}

// ArchetypeByName looks up an archetype.
func ArchetypeByName(name string) (*Archetype, bool) {
	a, ok := archetypes[name]
	return a, ok
}

// AllowsRace reports whether members of f may hold the archetype.
func (a *Archetype) AllowsRace(f world.Faction) bool {
	return len(a.Races) == 0 || slices.Contains(a.Races, f)
}

// HasPrerequisites reports whether c holds every prerequisite archetype.
func (a *Archetype) HasPrerequisites(c *Character) bool {
	for _, name := range a.Requires {
		if !c.HasArchetype(name) {
			return false
		}
	}
	return true
}

// MissingAttributes returns the requirements c does not meet, ordered by
// attribute.
func (a *Archetype) MissingAttributes(c *Character) []AttributeRequirement {
	var out []AttributeRequirement
	for attr, want := range a.Requirements {
		if c.attrs.Value(attr) < want {
			out = append(out, AttributeRequirement{Attr: attr, Value: want})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attr < out[j].Attr })
	return out
}

// CanUnlock reports whether c meets every requirement of a.
func (a *Archetype) CanUnlock(c *Character) bool {
	return a.AllowsRace(c.Faction()) && a.HasPrerequisites(c) && len(a.MissingAttributes(c)) == 0
}

// AttributeRequirement is one unmet attribute requirement.
type AttributeRequirement struct {
	Attr  stats.Attribute
	Value int
}

// Mastery is how well a skill is known.
type Mastery uint8

const (
	Learning Mastery = iota
	Beginner
	Adept
	Master
	Perfection
)

var masteryMultipliers = [...]float64{0.1, 1, 1.2, 1.5, 2}

// gain divisors per mastery below Perfection
var masteryDivisors = [...]int{1, 2, 5, 10}

// MasteryThreshold is the proficiency needed to advance a mastery level.
const MasteryThreshold = 100

func (m Mastery) String() string {
	return [...]string{"learning", "beginner", "adept", "master", "perfection"}[m]
}

// Multiplier scales skill damage.
func (m Mastery) Multiplier() float64 { return masteryMultipliers[m] }

// SkillDef is an immutable skill definition.
type SkillDef struct {
	Name       string
	Multiplier float64
	EnergyCost float64
	AOE        bool                        // hits every member of the target faction
	Scaling    map[stats.Attribute]float64 // damage bonus per attribute point
}

// Built-in skills.
var (
	SkillSlash = &SkillDef{
		Name: "Slash", Multiplier: 1.5, EnergyCost: 30,
		Scaling: map[stats.Attribute]float64{stats.Strength: 0.01, stats.Agility: 0.01},
	}
	SkillSwordDance = &SkillDef{
		Name: "SwordDance", Multiplier: 2, EnergyCost: 60, AOE: true,
		Scaling: map[stats.Attribute]float64{stats.Agility: 0.02},
	}
)

// Skill is a character's copy of a skill with its mastery.
type Skill struct {
	Def         *SkillDef
	Mastery     Mastery
	Proficiency int
}

// Learned reports whether the skill is past the Learning stage.
func (s *Skill) Learned() bool { return s.Mastery > Learning }

// GainProficiency adds amount, reduced by the mastery's divisor, and
// reports whether the mastery advanced.
func (s *Skill) GainProficiency(amount int) bool {
	if s.Mastery >= Perfection {
		return false
	}
	gain := amount / masteryDivisors[s.Mastery]
	if gain < 1 {
		gain = 1
	}
	s.Proficiency += gain
	if s.Proficiency < MasteryThreshold {
		return false
	}
	s.Proficiency -= MasteryThreshold
	s.Mastery++
	if s.Mastery == Perfection {
		s.Proficiency = 0
	}
	return true
}

// Damage is power × (1 + Σ scale × attribute) × mastery × base multiplier.
func (s *Skill) Damage(power float64, attrs *stats.Attributes) float64 {
	bonus := 1.0
	for attr, scale := range s.Def.Scaling {
		bonus += scale * float64(attrs.Value(attr))
	}
	return power * bonus * s.Mastery.Multiplier() * s.Def.Multiplier
}

// Knowledge lets a character resolve blocked goals.
type Knowledge uint8

const (
	KnowIncreaseAttribute    Knowledge = iota // unmet attribute -> AttributeTraining
	KnowIncreaseAttributeCap                  // capped attribute -> Training(level+1)
)
