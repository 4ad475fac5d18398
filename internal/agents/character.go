package agents

import (
	"fmt"
	"math"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/memory"
	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// ActionResult is an outcome of a character's last action, consulted by
// goal completion checks.
type ActionResult uint8

const (
	ResultMovedIntoNewTile ActionResult = iota
	ResultHitEnemy
	ResultKilledEnemy
	ResultStartCombat
	ResultJoinCombat
	ResultEscapedCombat
	ResultSuccessFindItem
	ResultTrained
	ResultRecovered
	ResultLearnedSkill
	ResultLeveledUp
)

var resultNames = [...]string{
	"moved_into_new_tile", "hit_enemy", "killed_enemy", "start_combat", "join_combat",
	"escaped_combat", "success_find_item", "trained", "recovered", "learned_skill", "leveled_up",
}

func (r ActionResult) String() string { return resultNames[r] }

// Injury duration, the health ratios that cause injuries on combat exit,
// and the health ratio a Recovery goal then waits for.
const (
	injuryDuration   = 5
	heavyInjuryRatio = 0.25
	lightInjuryRatio = 0.5
	recoveryRatio    = 0.95
)

// Character is an autonomous agent. Current health and energy are owned
// here; every other stat derives from the attribute sheet through the
// equipment and status overlays.
type Character struct {
	ID   world.CharacterID
	Name string
	Pos  world.Point
	Born uint64 // world turn of creation

	race       *Race
	attrs      *stats.Attributes
	base       *stats.Block
	health     float64
	energy     float64
	statuses   *stats.Statuses
	level      stats.Level
	equipment  Equipment
	inventory  *Inventory
	memory     *memory.Memory
	goals      *GoalManager
	state      *ActionState
	archetypes []string
	skills     map[string]*Skill
	knowledge  mapset.Set[Knowledge]
	chronicle  Chronicle
	alive      bool

	trainingTarget    stats.Attribute
	hasTrainingTarget bool
	learningTarget    string

	results     mapset.Set[ActionResult]
	recentItems []string
	lastAction  ActionKind
	redraw      bool
}

// NewCharacter builds a living level 1 character of race r at pos.
func NewCharacter(id world.CharacterID, name string, r *Race, pos world.Point, attrs *stats.Attributes) *Character {
	c := &Character{
		ID:        id,
		Name:      name,
		Pos:       pos,
		race:      r,
		attrs:     attrs,
		base:      stats.NewBlock(),
		statuses:  stats.NewStatuses(),
		level:     stats.NewLevel(r.Curve, 1),
		inventory: NewInventory(),
		memory:    memory.New(),
		skills:    make(map[string]*Skill),
		knowledge: mapset.New[Knowledge](),
		alive:     true,
		results:   mapset.New[ActionResult](),
		redraw:    true,
	}
	c.goals = newGoalManager(func() { c.state.ResetProbabilities() })
	c.state = NewState(r.DefaultState)

	stats.ApplyAttributes(c.base, attrs)
	for _, k := range stats.Kinds() {
		if !c.base.Has(k) {
			c.base.Add(k, 0)
		}
	}
	final := c.FinalStats()
	c.health = final.Get(stats.MaxHealth)
	c.energy = final.Get(stats.MaxEnergy)
	return c
}

// Faction returns the character's faction.
func (c *Character) Faction() world.Faction { return c.race.Faction }

// Race returns the character's race.
func (c *Character) Race() *Race { return c.race }

// Alive reports whether the character is alive.
func (c *Character) Alive() bool { return c.alive }

// Level returns the current level.
func (c *Character) Level() int { return c.level.Current }

// Exp returns the exp accumulated toward the next level.
func (c *Character) Exp() int { return c.level.Exp }

// Attributes returns a copy of the attribute sheet.
func (c *Character) Attributes() *stats.Attributes { return c.attrs.Clone() }

// BaseStats returns a copy of the stats derived from attributes alone.
func (c *Character) BaseStats() *stats.Block {
	b := c.base.Clone()
	b.Put(stats.CurrentHealth, c.health)
	b.Put(stats.CurrentEnergy, c.energy)
	return b
}

// FinalStats composes base, equipment and statuses into a fresh block.
func (c *Character) FinalStats() *stats.Block {
	b := c.base.Clone()
	stats.Overlay(b, c.equipment.Modifiers())
	stats.Overlay(b, c.statuses.Modifiers())
	b.Set(stats.CurrentHealth, c.health)
	b.Set(stats.CurrentEnergy, c.energy)
	return b
}

// Power is current health × power × speed / 100.
func (c *Character) Power() float64 {
	f := c.FinalStats()
	return f.Get(stats.CurrentHealth) * f.Get(stats.Power) * f.Get(stats.Speed) / 100
}

// HealthRatio returns current/max health.
func (c *Character) HealthRatio() float64 { return c.FinalStats().HealthRatio() }

// Health returns current health.
func (c *Character) Health() float64 { return c.health }

// Energy returns current energy.
func (c *Character) Energy() float64 { return c.energy }

// TakeDamage lowers health by d and returns the damage dealt.
func (c *Character) TakeDamage(d float64) float64 {
	if d <= 0 || !c.alive {
		return 0
	}
	dealt := math.Min(d, c.health)
	c.health -= dealt
	c.redraw = true
	return dealt
}

// Heal raises health by n up to its maximum.
func (c *Character) Heal(n float64) {
	if n <= 0 || !c.alive {
		return
	}
	c.health = math.Min(c.health+n, c.maxOf(stats.MaxHealth))
}

// RestoreEnergy raises energy by n up to its maximum.
func (c *Character) RestoreEnergy(n float64) {
	if n <= 0 {
		return
	}
	c.energy = math.Min(c.energy+n, c.maxOf(stats.MaxEnergy))
}

// SpendEnergy consumes n energy. It reports false, spending nothing, when
// there is not enough.
func (c *Character) SpendEnergy(n float64) bool {
	if n > c.energy {
		return false
	}
	c.energy -= n
	return true
}

func (c *Character) maxOf(k stats.Kind) float64 {
	b := c.base.Clone()
	stats.Overlay(b, c.equipment.Modifiers())
	stats.Overlay(b, c.statuses.Modifiers())
	return b.Get(k)
}

// clampPools keeps health and energy within the current maxima.
func (c *Character) clampPools() {
	c.health = math.Max(0, math.Min(c.health, c.maxOf(stats.MaxHealth)))
	c.energy = math.Max(0, math.Min(c.energy, c.maxOf(stats.MaxEnergy)))
}

// GainExp adds exp and levels up as often as the race's curve allows. Each
// level raises the attribute caps by the race's cap gain. It returns the
// levels gained.
func (c *Character) GainExp(exp int) int {
	gained := c.level.AddExp(exp)
	for i := 0; i < gained; i++ {
		for attr, n := range c.race.CapGain {
			if c.attrs.Has(attr) {
				c.attrs.RaiseCap(attr, n)
			}
		}
	}
	if gained > 0 {
		c.results.Put(ResultLeveledUp)
		c.redraw = true
	}
	return gained
}

// gainAttribute adds proficiency to attr and applies the stat gain on a
// level-up of the attribute.
func (c *Character) gainAttribute(attr stats.Attribute, amount int) stats.GainResult {
	if !c.attrs.Has(attr) {
		return stats.Capped
	}
	res := c.attrs.GainProficiency(attr, amount)
	if res == stats.LeveledUp {
		before := c.maxOf(stats.MaxHealth)
		beforeEnergy := c.maxOf(stats.MaxEnergy)
		stats.ApplyAttributeGain(c.base, attr)
		c.health += c.maxOf(stats.MaxHealth) - before
		c.energy += c.maxOf(stats.MaxEnergy) - beforeEnergy
		c.clampPools()
	}
	return res
}

// Statuses returns the active statuses.
func (c *Character) Statuses() []stats.Status { return c.statuses.List() }

// AddStatus applies def for duration turns.
func (c *Character) AddStatus(def *stats.StatusDef, duration int) {
	c.statuses.Add(def, duration)
	c.clampPools()
	c.redraw = true
}

// Equipment returns the equipped items.
func (c *Character) Equipment() Equipment { return c.equipment }

// Inventory returns the carried items.
func (c *Character) Inventory() *Inventory { return c.inventory }

// Equip puts it in its slot; the displaced item goes to the inventory.
// Gaining max health also gains the same current health.
func (c *Character) Equip(it *items.Item) {
	if !it.IsEquipment() {
		return
	}
	before := c.maxOf(stats.MaxHealth)
	eq, prev := c.equipment.With(it)
	c.equipment = eq
	if prev != nil {
		c.inventory.Add(prev, 1)
	}
	if gain := c.maxOf(stats.MaxHealth) - before; gain > 0 {
		c.health += gain
	}
	c.clampPools()
	c.redraw = true
}

// AddItem stores it. Equipment that would raise the character's power is
// equipped instead.
func (c *Character) AddItem(it *items.Item) {
	c.recentItems = append(c.recentItems, it.Name)
	if it.IsEquipment() && c.powerWith(it) > c.Power() {
		c.Equip(it)
		return
	}
	c.inventory.Add(it, 1)
}

// powerWith estimates power with it equipped, counting any max health it
// grants as current health.
func (c *Character) powerWith(it *items.Item) float64 {
	eq, _ := c.equipment.With(it)
	b := c.base.Clone()
	stats.Overlay(b, eq.Modifiers())
	stats.Overlay(b, c.statuses.Modifiers())
	gain := math.Max(0, b.Get(stats.MaxHealth)-c.maxOf(stats.MaxHealth))
	hp := math.Min(c.health+gain, b.Get(stats.MaxHealth))
	return hp * b.Get(stats.Power) * b.Get(stats.Speed) / 100
}

func (c *Character) takeRecentItems() []string {
	out := c.recentItems
	c.recentItems = nil
	return out
}

// HasArchetype reports whether the archetype named name is unlocked.
func (c *Character) HasArchetype(name string) bool { return slices.Contains(c.archetypes, name) }

// Archetypes returns the unlocked archetypes in unlock order.
func (c *Character) Archetypes() []string { return slices.Clone(c.archetypes) }

// AddArchetype unlocks a right away when c qualifies. Otherwise it queues
// an UnlockArchetype goal behind AttributeTraining goals for every unmet
// requirement.
func (c *Character) AddArchetype(a *Archetype) {
	if c.HasArchetype(a.Name) || !a.AllowsRace(c.Faction()) {
		return
	}
	if a.CanUnlock(c) {
		c.unlockArchetype(a)
		return
	}
	c.goals.InsertHighest(&UnlockArchetype{Archetype: a})
	if !c.Knows(KnowIncreaseAttribute) {
		return
	}
	missing := a.MissingAttributes(c)
	for i := len(missing) - 1; i >= 0; i-- {
		c.goals.InsertHighest(&AttributeTraining{Attr: missing[i].Attr, Value: missing[i].Value})
	}
}

// unlockArchetype grants a and queues a LearningSkill goal per skill.
func (c *Character) unlockArchetype(a *Archetype) {
	if c.HasArchetype(a.Name) {
		return
	}
	c.archetypes = append(c.archetypes, a.Name)
	for i := len(a.Skills) - 1; i >= 0; i-- {
		c.goals.InsertHighest(&LearningSkill{Skill: a.Skills[i]})
	}
	c.redraw = true
}

// Skill returns the character's copy of the skill named name.
func (c *Character) Skill(name string) (*Skill, bool) {
	s, ok := c.skills[name]
	return s, ok
}

// Skills returns every known skill sorted by name.
func (c *Character) Skills() []*Skill {
	out := make([]*Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Skill) int {
		if a.Def.Name < b.Def.Name {
			return -1
		}
		if a.Def.Name > b.Def.Name {
			return 1
		}
		return 0
	})
	return out
}

func (c *Character) addSkill(def *SkillDef) *Skill {
	if s, ok := c.skills[def.Name]; ok {
		return s
	}
	s := &Skill{Def: def}
	c.skills[def.Name] = s
	return s
}

// Knows reports whether c has knowledge k.
func (c *Character) Knows(k Knowledge) bool { return c.knowledge.Has(k) }

// Learn grants knowledge k.
func (c *Character) Learn(k Knowledge) { c.knowledge.Put(k) }

func (c *Character) setTrainingTarget(a stats.Attribute) {
	c.trainingTarget, c.hasTrainingTarget = a, true
}

func (c *Character) clearTrainingTarget(a stats.Attribute) {
	if c.hasTrainingTarget && c.trainingTarget == a {
		c.hasTrainingTarget = false
	}
}

// Goals returns the goal queue.
func (c *Character) Goals() *GoalManager { return c.goals }

// State returns the active action state.
func (c *Character) State() *ActionState { return c.state }

// Memory returns the character's beliefs.
func (c *Character) Memory() *memory.Memory { return c.memory }

// Chronicle returns the character's notable moments.
func (c *Character) Chronicle() *Chronicle { return &c.chronicle }

// SetState replaces the action state. The current goal applies again to
// the new menu.
func (c *Character) SetState(s *ActionState) {
	c.state = s
	c.goals.StateReplaced()
	c.redraw = true
}

// ResetState reverts to the race's default state.
func (c *Character) ResetState() { c.SetState(NewState(c.race.DefaultState)) }

// InCombat returns the combat the character is bound to.
func (c *Character) InCombat() (world.EventID, bool) {
	if c.state.Kind != StateCombat {
		return 0, false
	}
	return c.state.CombatID, true
}

// enterCombat switches to the combat state for event id.
func (c *Character) enterCombat(id world.EventID) {
	if cur, ok := c.InCombat(); ok && cur == id {
		return
	}
	c.SetState(NewCombatState(id))
}

// ExitCombat leaves the combat state. A badly hurt playable character gets
// an injury and a Recovery goal first.
func (c *Character) ExitCombat() {
	if c.race.Playable && c.alive {
		switch hr := c.HealthRatio(); {
		case hr < heavyInjuryRatio:
			c.AddStatus(stats.HeavyInjury, injuryDuration)
			c.goals.InsertHighest(&Recovery{Ratio: recoveryRatio})
		case hr < lightInjuryRatio:
			c.AddStatus(stats.LightInjury, injuryDuration)
			c.goals.InsertHighest(&Recovery{Ratio: recoveryRatio})
		}
	}
	c.ResetState()
}

// die marks the character dead. Removal from its tile and combat is the
// caller's job.
func (c *Character) die() {
	c.alive = false
	c.health = 0
	c.redraw = true
}

// JustDid reports whether the last action produced r.
func (c *Character) JustDid(r ActionResult) bool { return c.results.Has(r) }

func (c *Character) record(r ActionResult) { c.results.Put(r) }

// LastAction returns the action drawn on the last turn.
func (c *Character) LastAction() ActionKind { return c.lastAction }

// ShouldRedraw reports whether the character changed since the last
// ResetRedraw.
func (c *Character) ShouldRedraw() bool { return c.redraw }

// ResetRedraw clears the redraw flag.
func (c *Character) ResetRedraw() { c.redraw = false }

// DoAction runs one turn: apply the current goal, draw an action, look
// around and execute it, tick statuses, then settle goals.
func (c *Character) DoAction(w *World) {
	if !c.alive {
		return
	}
	c.results.Clear()

	c.goals.Apply(c)
	menu := c.state.Menu(c.HealthRatio(), c.race.Behavior.EscapeThreshold())
	kind := Draw(menu, w.Rand)
	c.lastAction = kind

	c.InspectAround(w)
	c.execute(w, kind)
	if !c.alive {
		return
	}

	if expired := c.statuses.Tick(); len(expired) > 0 {
		c.clampPools()
		c.redraw = true
	}
	for c.goals.CheckComplete(c) {
		// a successor may already be satisfied
	}
	c.goals.ResolveBlock(c)
}

// InspectAround rebuilds the transient memory from what c can see: every
// visible tile, the combats there involving c's faction, and the living
// characters there.
func (c *Character) InspectAround(w *World) {
	c.memory.Reset()
	perception := c.attrs.Value(stats.Perception)
	radius := stats.VisionRadius(w.Settings.VisionRadius, perception)
	accuracy := stats.Accuracy(w.Settings.PerceptionAccuracy, perception)
	own := c.Power()

	points := append([]world.Point{c.Pos}, w.Grid.VisiblePoints(c.Pos, radius)...)
	for _, p := range points {
		tile, ok := w.Grid.TileAt(p)
		if !ok {
			continue
		}
		c.memory.RememberTile(memory.TileEntry{
			ID: tile.ID, Pos: p, Type: tile.Type, Collectibles: tile.Collectibles(), SeenAt: w.Turn,
		})
		if f, ok := findingGoal(c); ok && tile.IsCollectable() {
			f.Track(tile.Collectibles())
		}

		if id, ok := tile.Combat(); ok {
			if ev, ok := w.Event(id); ok && ev.HasFaction(c.Faction()) {
				c.memory.RememberEvent(memory.EventEntry{
					ID: id, Pos: p, Power: memory.Estimate(ev.HostilePower(w, c.Faction()), own, accuracy, w.Rand),
				})
			}
		}
		for _, oid := range tile.Occupants() {
			if oid == c.ID {
				continue
			}
			other, ok := w.Character(oid)
			if !ok || !other.alive {
				continue
			}
			c.memory.RememberCharacter(memory.CharacterEntry{
				ID: oid, Pos: other.Pos, Faction: other.Faction(),
				Power: memory.Estimate(other.Power(), own, accuracy, w.Rand),
			})
		}
	}
}

// Record projects the character for JSON output.
func (c *Character) Record() map[string]any {
	goal := ""
	if g, ok := c.goals.Current(); ok {
		goal = g.Name()
	}
	skills := make(map[string]any, len(c.skills))
	for name, s := range c.skills {
		skills[name] = map[string]any{"mastery": s.Mastery.String(), "proficiency": s.Proficiency}
	}
	statuses := make([]map[string]any, 0, c.statuses.Len())
	for _, st := range c.statuses.List() {
		statuses = append(statuses, map[string]any{"name": st.Def.Name, "duration": st.Duration})
	}
	equipment := map[string]string{}
	if c.equipment.Weapon != nil {
		equipment["weapon"] = c.equipment.Weapon.Name
	}
	if c.equipment.Armor != nil {
		equipment["armor"] = c.equipment.Armor.Name
	}
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"faction":     c.Faction(),
		"pos":         c.Pos,
		"alive":       c.alive,
		"level":       c.level.Current,
		"exp":         c.level.Exp,
		"power":       c.Power(),
		"stats":       c.FinalStats().Map(),
		"attributes":  c.attrs.Map(),
		"state":       c.state.Kind.String(),
		"goal":        goal,
		"goals":       c.goals.Record(),
		"archetypes":  c.Archetypes(),
		"skills":      skills,
		"statuses":    statuses,
		"equipment":   equipment,
		"inventory":   c.inventory.Record(),
		"last_action": c.lastAction.String(),
		"chronicle":   c.chronicle.Recent(5),
		"born":        c.Born,
	}
}

func (c *Character) String() string {
	return fmt.Sprintf("%s#%d(%s L%d)", c.Name, c.ID, c.Faction(), c.level.Current)
}
