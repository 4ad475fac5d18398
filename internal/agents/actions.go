package agents

import (
	"fmt"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// Rest and learning tuning.
const (
	standbyEnergy    = 0.1
	recoverEnergy    = 0.2
	recoverRegenMult = 3
	recoverHealthDiv = 20
	trainHealthDiv   = 10
	learnBase        = 20
)

// trainable attributes picked at random when no training target is set
var trainable = []stats.Attribute{stats.Vitality, stats.Endurance, stats.Strength, stats.Agility, stats.Intellect}

func (c *Character) execute(w *World, kind ActionKind) {
	switch kind {
	case ActionMove:
		c.move(w)
	case ActionStandby:
		c.standby()
	case ActionTrain:
		c.train(w)
	case ActionRecover:
		c.recover()
	case ActionLearnSkill:
		c.learnSkill(w)
	case ActionFight:
		c.fight(w)
	case ActionEscape:
		c.escape(w)
	case ActionSearch:
		c.search(w)
	}
}

func (c *Character) move(w *World) {
	delta, ok := c.race.Move.next(w, c)
	if !ok {
		return
	}
	c.moveTo(w, c.Pos.Add(delta))
}

// moveTo relocates c to p and settles what the tile triggers.
func (c *Character) moveTo(w *World, p world.Point) {
	to, ok := w.Grid.TileAt(p)
	if !ok || !c.canStand(w)(p) {
		return
	}
	if from, ok := w.Grid.TileAt(c.Pos); ok {
		from.RemoveOccupant(c.ID)
	}
	c.Pos = p
	to.AddOccupant(c.ID)
	c.record(ResultMovedIntoNewTile)
	c.redraw = true
	c.onEnterTile(w, to)
}

// onEnterTile applies the tile's entry status, then joins the fight on the
// tile or starts one against hostile occupants. A peaceful tile offering
// what a finding goal wants switches c to searching.
func (c *Character) onEnterTile(w *World, t *world.Tile) {
	if name, ok := t.EntryStatus(); ok {
		if def, ok := stats.StatusByName(name); ok {
			c.AddStatus(def, w.Settings.BuffDuration)
		}
	}

	if id, ok := t.Combat(); ok {
		if ev, ok := w.Event(id); ok && ev.Join(w, c) {
			c.record(ResultJoinCombat)
			w.notify("combat", "%s joined combat %d at %v", c, id, t.Pos)
		}
		if _, fighting := c.InCombat(); fighting {
			return
		}
	} else {
		var occupants []*Character
		hostile := false
		for _, oid := range t.Occupants() {
			o, ok := w.Character(oid)
			if !ok || oid == c.ID || !o.Alive() {
				continue
			}
			occupants = append(occupants, o)
			if c.race.IsHostile(o.Faction()) {
				hostile = true
			}
		}
		if hostile {
			w.startCombat(t, c, occupants)
			c.record(ResultStartCombat)
			return
		}
	}

	if c.state.Kind != StateFindItem && tileWanted(c, t) {
		c.SetState(NewFindItemState(w.Settings.FindItemAttempts))
	}
}

func (c *Character) standby() {
	f := c.FinalStats()
	c.Heal(f.Get(stats.Regeneration))
	c.RestoreEnergy(f.Get(stats.MaxEnergy) * standbyEnergy)
}

func (c *Character) recover() {
	f := c.FinalStats()
	c.Heal(recoverRegenMult*f.Get(stats.Regeneration) + f.Get(stats.MaxHealth)/recoverHealthDiv)
	c.RestoreEnergy(f.Get(stats.MaxEnergy) * recoverEnergy)
	if ended := c.statuses.Recover(1); len(ended) > 0 {
		c.clampPools()
		c.redraw = true
	}
	c.record(ResultRecovered)
}

// train heals a little, earns exp and works the training target, or a
// random attribute without one.
func (c *Character) train(w *World) {
	c.Heal(c.FinalStats().Get(stats.MaxHealth) / trainHealthDiv)
	if c.GainExp(w.Settings.TrainExp) > 0 {
		c.chronicle.Add(w.Turn, fmt.Sprintf("reached level %d", c.Level()), 0.6)
		w.notify("level", "%s reached level %d", c, c.Level())
	}

	attr := c.trainingTarget
	if !c.hasTrainingTarget {
		attr = trainable[w.Rand.Intn(len(trainable))]
	}
	amount := w.Settings.TrainProficiency + stats.ProficiencyBonus(c.attrs.Value(stats.Insight))
	if c.gainAttribute(attr, amount) == stats.LeveledUp {
		c.redraw = true
	}
	c.record(ResultTrained)
}

// learnSkill practises the learning target, or the first skill not yet
// learned.
func (c *Character) learnSkill(w *World) {
	s, ok := c.skills[c.learningTarget]
	if !ok {
		for _, sk := range c.Skills() {
			if !sk.Learned() {
				s, ok = sk, true
				break
			}
		}
	}
	if !ok {
		return
	}
	if s.GainProficiency(learnBase + c.attrs.Value(stats.Intellect)) {
		c.record(ResultLearnedSkill)
		c.chronicle.Add(w.Turn, fmt.Sprintf("%s reached %s", s.Def.Name, s.Mastery), 0.4)
		w.notify("skill", "%s: %s reached %s", c, s.Def.Name, s.Mastery)
		c.redraw = true
	}
}

// bestSkill picks the learned skill dealing the most damage that c can
// afford.
func (c *Character) bestSkill(power float64) (*Skill, float64) {
	var best *Skill
	bestDmg := 0.0
	for _, s := range c.Skills() {
		if !s.Learned() || s.Def.EnergyCost > c.energy {
			continue
		}
		if d := s.Damage(power, c.attrs); d > bestDmg {
			best, bestDmg = s, d
		}
	}
	return best, bestDmg
}

// fight strikes a random living member of a hostile faction. A skill hits
// harder and, when area-of-effect, hits the whole faction.
func (c *Character) fight(w *World) {
	id, ok := c.InCombat()
	if !ok {
		return
	}
	ev, ok := w.Event(id)
	if !ok {
		c.ResetState()
		return
	}

	opponents := ev.Hostiles(c.Faction())
	if len(opponents) == 0 {
		return
	}
	faction := opponents[w.Rand.Intn(len(opponents))]
	var living []*Character
	for _, tid := range ev.Roster(faction) {
		if t, ok := w.Character(tid); ok && t.Alive() {
			living = append(living, t)
		}
	}
	if len(living) == 0 {
		return
	}

	damage := c.FinalStats().Get(stats.Power)
	targets := []*Character{living[w.Rand.Intn(len(living))]}
	if skill, dmg := c.bestSkill(damage); skill != nil && c.SpendEnergy(skill.Def.EnergyCost) {
		damage = dmg
		if skill.Def.AOE {
			targets = living
		}
	}

	for _, t := range targets {
		dealt := damage - t.FinalStats().Get(stats.Defense)
		if dealt < 1 {
			dealt = 1
		}
		t.TakeDamage(dealt)
		c.record(ResultHitEnemy)
		w.Characters.Touch(t.ID)
		if t.Health() <= 0 {
			ev.KillCharacter(w, c, t)
		}
	}
}

// escape tries to leave the fight. The odds depend on the hostile power
// against c's own; on success c leaves, exits combat and moves.
func (c *Character) escape(w *World) {
	id, ok := c.InCombat()
	if !ok {
		return
	}
	ev, ok := w.Event(id)
	if !ok {
		c.ResetState()
		return
	}

	hostile, own := ev.HostilePower(w, c.Faction()), c.Power()
	chance := w.Settings.EscapeChance
	switch {
	case hostile > 2*own:
		chance = w.Settings.EscapeChanceLow
	case hostile < 0.5*own:
		chance = w.Settings.EscapeChanceHigh
	}
	if w.Rand.Float64() >= chance {
		return
	}

	ev.Remove(w, c.ID)
	c.ExitCombat()
	c.record(ResultEscapedCombat)
	w.notify("combat", "%s escaped combat %d", c, id)
	c.move(w)
}

// search rolls each collectible of the tile once. The state reverts to the
// default when the attempts run out.
func (c *Character) search(w *World) {
	t, ok := w.Grid.TileAt(c.Pos)
	if !ok || !t.IsCollectable() {
		c.ResetState()
		return
	}
	for _, name := range t.Collectibles() {
		if w.Rand.Float64() >= t.FindChance(name) {
			continue
		}
		it, ok := items.Lookup(name)
		if !ok {
			continue
		}
		c.AddItem(it)
		c.record(ResultSuccessFindItem)
		if it.Rarity > items.Common {
			c.chronicle.Add(w.Turn, "found "+it.Name, 0.3)
		}
	}
	c.redraw = true

	c.state.Attempts--
	if c.state.Attempts <= 0 {
		c.ResetState()
	}
}
