package agents

import (
	"fmt"
	"slices"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// Level at which a fighter starts looking for better equipment.
const gearUpLevel = 3

// merger is implemented by goals that fold a duplicate into the queued one
// instead of being rejected.
type merger interface {
	Merge(other Goal)
}

// Training trains until the character reaches Target.
type Training struct {
	baseGoal
	Target int
}

func (g *Training) Name() string                 { return fmt.Sprintf("Training(%d)", g.Target) }
func (g *Training) IsComplete(c *Character) bool { return c.Level() >= g.Target }
func (g *Training) CanApplyTo(c *Character) bool { return c.state.Has(ActionTrain) }
func (g *Training) ApplyToActions(c *Character)  { c.state.Modify(ActionTrain, 80, ModifyFixed) }

// Fighting roams for fights until the character reaches Target.
type Fighting struct {
	baseGoal
	Target int
}

func (g *Fighting) Name() string                 { return fmt.Sprintf("Fighting(%d)", g.Target) }
func (g *Fighting) IsComplete(c *Character) bool { return c.Level() >= g.Target }
func (g *Fighting) CanApplyTo(c *Character) bool { return c.state.Has(ActionMove) }
func (g *Fighting) ApplyToActions(c *Character)  { c.state.Modify(ActionMove, 80, ModifyFixed) }

func (g *Fighting) OnComplete(c *Character) {
	if c.Level() >= gearUpLevel {
		c.goals.InsertHighest(NewFindingItem(items.Uncommon, items.SlotWeapon, items.SlotArmor))
		return
	}
	c.goals.InsertHighest(&Fighting{Target: c.Level() + 1})
}

// FindingItem hunts for equipment of the given slots at or above MinRarity.
// Matching items are tracked as targets once a tile offering them is seen;
// the goal completes when every tracked target has been collected.
type FindingItem struct {
	baseGoal
	Slots     []items.Slot
	MinRarity items.Rarity
	targets   []string
	collected []string
}

// NewFindingItem builds a FindingItem goal.
func NewFindingItem(minRarity items.Rarity, slots ...items.Slot) *FindingItem {
	return &FindingItem{Slots: slots, MinRarity: minRarity}
}

func (g *FindingItem) Name() string { return "FindingItem" }

// Satisfies reports whether it is an item the goal wants.
func (g *FindingItem) Satisfies(it *items.Item) bool {
	if slices.Contains(g.targets, it.Name) {
		return true
	}
	return it.IsEquipment() && slices.Contains(g.Slots, it.Slot) && it.Rarity >= g.MinRarity
}

// Matches reports whether any of the named collectibles satisfies the goal.
func (g *FindingItem) Matches(names []string) bool {
	for _, n := range names {
		if it, ok := items.Lookup(n); ok && g.Satisfies(it) {
			return true
		}
	}
	return false
}

// Track adds every satisfying collectible not yet collected to the targets.
func (g *FindingItem) Track(names []string) {
	for _, n := range names {
		it, ok := items.Lookup(n)
		if !ok || !g.Satisfies(it) || slices.Contains(g.collected, n) || slices.Contains(g.targets, n) {
			continue
		}
		g.targets = append(g.targets, n)
	}
}

// Targets returns the items still to collect.
func (g *FindingItem) Targets() []string { return slices.Clone(g.targets) }

func (g *FindingItem) IsComplete(c *Character) bool {
	if !c.JustDid(ResultSuccessFindItem) {
		return false
	}
	for _, n := range c.takeRecentItems() {
		if i := slices.Index(g.targets, n); i >= 0 {
			g.targets = slices.Delete(g.targets, i, i+1)
			g.collected = append(g.collected, n)
		}
	}
	return len(g.targets) == 0 && len(g.collected) > 0
}

func (g *FindingItem) CanApplyTo(c *Character) bool { return c.state.Has(ActionSearch) }
func (g *FindingItem) ApplyToActions(c *Character)  { c.state.Modify(ActionSearch, 80, ModifyFixed) }

func (g *FindingItem) OnComplete(c *Character) {
	c.ResetState()
	c.goals.InsertHighest(&Fighting{Target: c.Level() + 1})
}

// Recovery rests until no recoverable debuff is left and the health ratio
// reaches Ratio.
type Recovery struct {
	baseGoal
	Ratio float64
}

func (g *Recovery) Name() string { return "Recovery" }

func (g *Recovery) IsComplete(c *Character) bool {
	return !c.statuses.HasRecoverableDebuff() && c.HealthRatio() >= g.Ratio
}

func (g *Recovery) CanApplyTo(c *Character) bool { return c.state.Has(ActionRecover) }
func (g *Recovery) ApplyToActions(c *Character)  { c.state.Modify(ActionRecover, 100, ModifyFixed) }

// Merge keeps the higher ratio.
func (g *Recovery) Merge(other Goal) {
	if o, ok := other.(*Recovery); ok && o.Ratio > g.Ratio {
		g.Ratio = o.Ratio
	}
}

// UnlockArchetype adds Archetype once the character qualifies.
type UnlockArchetype struct {
	baseGoal
	Archetype *Archetype
}

func (g *UnlockArchetype) Name() string { return "UnlockArchetype(" + g.Archetype.Name + ")" }

func (g *UnlockArchetype) IsComplete(c *Character) bool { return c.HasArchetype(g.Archetype.Name) }
func (g *UnlockArchetype) CanApplyTo(c *Character) bool { return g.Archetype.CanUnlock(c) }
func (g *UnlockArchetype) ApplyToCharacter(c *Character) {
	c.unlockArchetype(g.Archetype)
}

// LearningSkill practises Skill until it is learned.
type LearningSkill struct {
	baseGoal
	Skill *SkillDef
}

func (g *LearningSkill) Name() string { return "LearningSkill(" + g.Skill.Name + ")" }

func (g *LearningSkill) IsComplete(c *Character) bool {
	s, ok := c.Skill(g.Skill.Name)
	return ok && s.Learned()
}

func (g *LearningSkill) CanApplyTo(c *Character) bool { return c.state.Has(ActionLearnSkill) }
func (g *LearningSkill) ApplyToActions(c *Character) {
	c.state.Modify(ActionLearnSkill, 100, ModifyFixed)
}

func (g *LearningSkill) ApplyToCharacter(c *Character) {
	c.addSkill(g.Skill)
	c.learningTarget = g.Skill.Name
}

func (g *LearningSkill) OnComplete(c *Character) {
	if c.learningTarget == g.Skill.Name {
		c.learningTarget = ""
	}
}

// AttributeTraining trains Attr up to Value.
type AttributeTraining struct {
	baseGoal
	Attr  stats.Attribute
	Value int
}

func (g *AttributeTraining) Name() string { return "AttributeTraining(" + g.Attr.String() + ")" }

func (g *AttributeTraining) IsComplete(c *Character) bool { return c.attrs.Value(g.Attr) >= g.Value }
func (g *AttributeTraining) CanApplyTo(c *Character) bool { return c.state.Has(ActionTrain) }
func (g *AttributeTraining) ApplyToActions(c *Character) {
	c.state.Modify(ActionTrain, 100, ModifyFixed)
}

func (g *AttributeTraining) ApplyToCharacter(c *Character) { c.setTrainingTarget(g.Attr) }

func (g *AttributeTraining) OnComplete(c *Character) { c.clearTrainingTarget(g.Attr) }

func (g *AttributeTraining) IsBlocked(c *Character) bool {
	return c.attrs.IsCapped(g.Attr) && c.attrs.Value(g.Attr) < g.Value
}

func (g *AttributeTraining) ResolveBlock(c *Character) []Goal {
	if !c.Knows(KnowIncreaseAttributeCap) {
		return nil
	}
	return []Goal{&Training{Target: c.Level() + 1}}
}

// Merge keeps the higher target value.
func (g *AttributeTraining) Merge(other Goal) {
	if o, ok := other.(*AttributeTraining); ok && o.Value > g.Value {
		g.Value = o.Value
	}
}

func findingGoal(c *Character) (*FindingItem, bool) {
	g, ok := c.goals.Current()
	if !ok {
		return nil, false
	}
	f, ok := g.(*FindingItem)
	return f, ok
}

// tileWanted reports whether the current FindingItem goal wants something
// tile t offers.
func tileWanted(c *Character, t *world.Tile) bool {
	f, ok := findingGoal(c)
	return ok && t.IsCollectable() && f.Matches(t.Collectibles())
}
