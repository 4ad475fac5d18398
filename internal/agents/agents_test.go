package agents

import (
	"go/parser"
	"go/token"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilesim/internal/items"
	"github.com/talgya/tilesim/internal/logger"
	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

func newTestWorld(t *testing.T, lines ...string) *World {
	t.Helper()
	g, err := world.ParseGrid(lines)
	require.NoError(t, err)
	w, err := NewWorld(g, rand.New(rand.NewSource(1)), logger.Discard(), DefaultSettings())
	require.NoError(t, err)
	return w
}

func place(t *testing.T, w *World, f world.Faction, pos world.Point, attrs map[stats.Attribute]int) *Character {
	t.Helper()
	r, ok := RaceOf(f)
	require.True(t, ok)
	c := NewCharacter(w.NextCharacterID(), string(f), r, pos, stats.NewAttributes(attrs))
	require.NoError(t, w.AddCharacter(c))
	return c
}

// fighter has 100 health, 20 power, 100 speed and 1 defense.
func fighter() map[stats.Attribute]int {
	return map[stats.Attribute]int{stats.Vitality: 5, stats.Endurance: 1, stats.Strength: 4, stats.Agility: 10}
}

// tank has 100 health and 5 defense.
func tank() map[stats.Attribute]int {
	return map[stats.Attribute]int{stats.Vitality: 5, stats.Endurance: 5, stats.Strength: 2, stats.Agility: 5}
}

func TestGoalInsertShiftsPriorities(t *testing.T) {
	m := newGoalManager(func() {})
	require.True(t, m.Insert(&Training{Target: 2}, 1))
	require.True(t, m.Insert(&Training{Target: 3}, 1))
	require.True(t, m.Insert(&Training{Target: 4}, 2))
	require.True(t, m.Insert(&Training{Target: 5}, 0))

	var names []string
	for _, g := range m.Goals() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"Training(5)", "Training(3)", "Training(4)", "Training(2)"}, names)

	p, ok := m.Priority("Training(2)")
	require.True(t, ok)
	assert.Equal(t, 4, p)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "Training(5)", cur.Name())
	assert.Equal(t, GoalWaitingToApply, m.Status())
}

func TestGoalInsertRejectsDuplicates(t *testing.T) {
	m := newGoalManager(func() {})
	r := &Recovery{Ratio: 0.8}
	require.True(t, m.Insert(r, 1))
	assert.False(t, m.Insert(&Recovery{Ratio: 0.95}, 1))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0.95, r.Ratio, "duplicate folds its higher ratio in")
}

func TestApplyGoalIsIdempotent(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.goals.Insert(&Training{Target: 5}, 1)

	require.True(t, c.goals.Apply(c))
	assert.Equal(t, GoalAlreadyApplied, c.goals.Status())
	menu := c.state.Menu(1, 0)
	assert.Contains(t, menu, Weight{ActionTrain, 80})

	assert.False(t, c.goals.Apply(c))
	assert.Equal(t, menu, c.state.Menu(1, 0))

	c.SetState(NewBasicState())
	assert.Equal(t, GoalWaitingToApply, c.goals.Status())
	assert.Contains(t, c.state.Menu(1, 0), Weight{ActionTrain, 20})
	assert.True(t, c.goals.Apply(c))
}

func TestDisplacingAppliedGoalResetsMenu(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.goals.Insert(&Training{Target: 5}, 1)
	require.True(t, c.goals.Apply(c))

	c.goals.InsertHighest(&Fighting{Target: 5})
	assert.Equal(t, GoalWaitingToApply, c.goals.Status())
	assert.Contains(t, c.state.Menu(1, 0), Weight{ActionTrain, 20})

	require.True(t, c.goals.Apply(c))
	assert.Contains(t, c.state.Menu(1, 0), Weight{ActionMove, 80})
}

func TestCheckCompleteQueuesSuccessor(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.goals.Insert(&Fighting{Target: 2}, 1)
	require.True(t, c.goals.Apply(c))

	assert.False(t, c.goals.CheckComplete(c))
	require.Equal(t, 1, c.GainExp(200))
	require.True(t, c.goals.CheckComplete(c))

	cur, ok := c.goals.Current()
	require.True(t, ok)
	assert.Equal(t, "Fighting(3)", cur.Name())
	assert.Equal(t, GoalWaitingToApply, c.goals.Status())
	assert.Contains(t, c.state.Menu(1, 0), Weight{ActionMove, 50})
}

func TestResolveBlockQueuesResolversAhead(t *testing.T) {
	w := newTestWorld(t, "...")
	attrs := fighter()
	attrs[stats.Strength] = 0
	c := place(t, w, Human, world.Point{}, attrs)
	c.Learn(KnowIncreaseAttributeCap)
	c.goals.Insert(&Fighting{Target: 4}, 1)
	c.goals.InsertHighest(&AttributeTraining{Attr: stats.Strength, Value: 15})

	require.True(t, c.goals.ResolveBlock(c))
	var names []string
	for _, g := range c.goals.Goals() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"Training(2)", "AttributeTraining(strength)", "Fighting(4)"}, names)
	p, _ := c.goals.Priority("AttributeTraining(strength)")
	assert.Equal(t, 2, p)
}

func TestAddArchetypeQueuesTraining(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.archetypes = append(c.archetypes, ArchPlayer)
	c.Learn(KnowIncreaseAttribute)
	a, ok := ArchetypeByName(ArchSwordTrainee)
	require.True(t, ok)

	c.AddArchetype(a)
	assert.False(t, c.HasArchetype(ArchSwordTrainee))
	var names []string
	for _, g := range c.goals.Goals() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{
		"AttributeTraining(strength)", "AttributeTraining(agility)", "UnlockArchetype(SwordTrainee)",
	}, names)
}

func TestAddArchetypeUnlocksWhenQualified(t *testing.T) {
	w := newTestWorld(t, "...")
	attrs := fighter()
	attrs[stats.Strength], attrs[stats.Agility] = 15, 15
	c := place(t, w, Human, world.Point{}, attrs)
	c.archetypes = append(c.archetypes, ArchPlayer)
	a, _ := ArchetypeByName(ArchSwordTrainee)

	c.AddArchetype(a)
	assert.True(t, c.HasArchetype(ArchSwordTrainee))
	cur, ok := c.goals.Current()
	require.True(t, ok)
	assert.Equal(t, "LearningSkill(Slash)", cur.Name())

	require.True(t, c.goals.Apply(c))
	s, ok := c.Skill("Slash")
	require.True(t, ok)
	assert.False(t, s.Learned())
	for i := 0; i < 10 && !s.Learned(); i++ {
		c.learnSkill(w)
	}
	assert.True(t, s.Learned())
	assert.True(t, c.goals.CheckComplete(c))
}

func TestDamageAndDeath(t *testing.T) {
	w := newTestWorld(t, "...")
	h := place(t, w, Human, world.Point{X: 0}, fighter())
	d1 := place(t, w, Demon, world.Point{X: 1}, tank())
	d2 := place(t, w, Demon, world.Point{X: 1}, tank())

	h.moveTo(w, world.Point{X: 1})
	id, ok := h.InCombat()
	require.True(t, ok)
	ev, ok := w.Event(id)
	require.True(t, ok)
	assert.Equal(t, []world.CharacterID{d1.ID, d2.ID}, ev.Roster(Demon))

	h.fight(w)
	hp := []float64{d1.Health(), d2.Health()}
	assert.ElementsMatch(t, []float64{100, 85}, hp)

	victim := d1
	if d2.Health() < d1.Health() {
		victim = d2
	}
	victim.TakeDamage(80)
	ev.KillCharacter(w, h, victim)
	assert.False(t, victim.Alive())
	assert.Len(t, ev.Roster(Demon), 1)
	assert.Equal(t, 50, h.Exp())
	tile, _ := w.Grid.TileAt(world.Point{X: 1})
	assert.False(t, tile.HasOccupant(victim.ID))
	assert.True(t, w.Events.Has(id))
}

func TestLastKillEndsCombat(t *testing.T) {
	w := newTestWorld(t, "...")
	h := place(t, w, Human, world.Point{X: 0}, fighter())
	d := place(t, w, Demon, world.Point{X: 1}, tank())
	h.moveTo(w, world.Point{X: 1})
	id, _ := h.InCombat()

	d.TakeDamage(99)
	h.fight(w)
	assert.False(t, d.Alive())
	assert.False(t, w.Events.Has(id))
	tile, _ := w.Grid.TileAt(world.Point{X: 1})
	_, bound := tile.Combat()
	assert.False(t, bound)
	_, fighting := h.InCombat()
	assert.False(t, fighting)
	assert.True(t, h.JustDid(ResultKilledEnemy))
}

func TestSingleCombatPerTile(t *testing.T) {
	w := newTestWorld(t, "...", "...")
	a := place(t, w, Human, world.Point{X: 0}, fighter())
	b := place(t, w, Human, world.Point{X: 1, Y: 1}, fighter())
	place(t, w, Demon, world.Point{X: 1}, tank())

	a.moveTo(w, world.Point{X: 1})
	b.moveTo(w, world.Point{X: 1})

	assert.Equal(t, 1, w.Events.Len())
	ida, _ := a.InCombat()
	idb, _ := b.InCombat()
	assert.Equal(t, ida, idb)
	ev, _ := w.Event(ida)
	assert.Equal(t, []world.CharacterID{a.ID, b.ID}, ev.Roster(Human))
	assert.True(t, b.JustDid(ResultJoinCombat))
}

func TestHostilitySymmetryAndCascade(t *testing.T) {
	w := newTestWorld(t, ".ff")
	h := place(t, w, Human, world.Point{X: 0}, fighter())
	d := place(t, w, Demon, world.Point{X: 1}, tank())
	f := place(t, w, Forest, world.Point{X: 2}, fighter())

	h.moveTo(w, world.Point{X: 1})
	f.moveTo(w, world.Point{X: 1})
	id, ok := f.InCombat()
	require.True(t, ok)
	ev, _ := w.Event(id)

	for _, a := range ev.Factions() {
		for _, b := range ev.Hostiles(a) {
			assert.Contains(t, ev.Hostiles(b), a, "%s -> %s", a, b)
		}
	}
	assert.Equal(t, []world.Faction{Human, Forest}, ev.Hostiles(Demon))
	assert.Equal(t, []world.Faction{Demon}, ev.Hostiles(Forest))

	d.TakeDamage(d.Health())
	ev.KillCharacter(w, f, d)
	assert.Empty(t, ev.Factions())
	assert.False(t, w.Events.Has(id))
	assert.Equal(t, StateBasic, h.State().Kind)
	assert.Equal(t, StateBasicMob, f.State().Kind)
}

func TestEscapeLeavesCombat(t *testing.T) {
	w := newTestWorld(t, "...")
	w.Settings.EscapeChance, w.Settings.EscapeChanceLow, w.Settings.EscapeChanceHigh = 1, 1, 1
	h := place(t, w, Human, world.Point{X: 0}, fighter())
	d := place(t, w, Demon, world.Point{X: 1}, tank())
	h.moveTo(w, world.Point{X: 1})
	id, _ := h.InCombat()

	h.escape(w)
	assert.True(t, h.JustDid(ResultEscapedCombat))
	assert.False(t, w.Events.Has(id))
	assert.Equal(t, StateBasic, h.State().Kind)
	assert.Equal(t, StateBasic, d.State().Kind)
}

func TestExitCombatInjuries(t *testing.T) {
	w := newTestWorld(t, "...")
	heavy := place(t, w, Human, world.Point{}, fighter())
	heavy.TakeDamage(80)
	heavy.ExitCombat()
	st, ok := heavy.statuses.Get(stats.ClassInjury)
	require.True(t, ok)
	assert.Equal(t, "HeavyInjury", st.Def.Name)
	g, _ := heavy.goals.Current()
	require.IsType(t, &Recovery{}, g)
	assert.Equal(t, 0.95, g.(*Recovery).Ratio)

	light := place(t, w, Human, world.Point{}, fighter())
	light.TakeDamage(60)
	light.ExitCombat()
	st, ok = light.statuses.Get(stats.ClassInjury)
	require.True(t, ok)
	assert.Equal(t, "LightInjury", st.Def.Name)
	g, _ = light.goals.Current()
	require.IsType(t, &Recovery{}, g)
	assert.Equal(t, 0.95, g.(*Recovery).Ratio, "both injury tiers recover to the same ratio")

	fine := place(t, w, Human, world.Point{}, fighter())
	fine.TakeDamage(20)
	fine.ExitCombat()
	assert.Zero(t, fine.statuses.Len())
	assert.Equal(t, StateBasic, fine.State().Kind)
}

func TestRecoverClearsInjury(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.TakeDamage(60)
	c.ExitCombat()
	for i := 0; i < 5; i++ {
		c.recover()
	}
	assert.False(t, c.statuses.HasRecoverableDebuff())
	assert.True(t, c.goals.CheckComplete(c))
}

func TestStandbyAndRecoverHeal(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	c.TakeDamage(30)
	c.standby()
	assert.InDelta(t, 80, c.Health(), 1e-9, "standby heals by regeneration")
	c.recover()
	assert.InDelta(t, 100, c.Health(), 1e-9, "recover heals 3x regeneration plus a twentieth, capped")
}

// weakling is easily outclassed by a fighter.
func weakling() map[stats.Attribute]int {
	return map[stats.Attribute]int{stats.Vitality: 1, stats.Strength: 1, stats.Agility: 1}
}

func TestMoveStrategies(t *testing.T) {
	t.Run("thinking chases weaker enemy", func(t *testing.T) {
		w := newTestWorld(t, ".....")
		w.Settings.PerceptionAccuracy = 100
		c := place(t, w, Human, world.Point{}, fighter())
		place(t, w, Demon, world.Point{X: 2}, weakling())
		c.InspectAround(w)
		step, ok := MoveThinking.next(w, c)
		require.True(t, ok)
		assert.Equal(t, world.Point{X: 1}, step)
	})
	t.Run("aggressive mob chases any enemy on its tiles", func(t *testing.T) {
		w := newTestWorld(t, "rr.")
		w.Settings.PerceptionAccuracy = 100
		c := place(t, w, Ruin, world.Point{}, weakling())
		place(t, w, Human, world.Point{X: 2}, fighter())
		c.InspectAround(w)
		step, ok := MoveAggressiveMob.next(w, c)
		require.True(t, ok)
		assert.Equal(t, world.Point{X: 1}, step)
	})
	t.Run("passive mob flees stronger", func(t *testing.T) {
		w := newTestWorld(t, "fff")
		w.Settings.PerceptionAccuracy = 100
		c := place(t, w, Forest, world.Point{X: 1}, weakling())
		place(t, w, Demon, world.Point{X: 2}, fighter())
		c.InspectAround(w)
		step, ok := MovePassiveMob.next(w, c)
		require.True(t, ok)
		assert.Equal(t, world.Point{X: -1}, step)
	})
}

func TestAddItemAutoEquips(t *testing.T) {
	w := newTestWorld(t, "...")
	c := place(t, w, Human, world.Point{}, fighter())
	base := c.Power()

	sword, _ := items.Lookup(items.SteelSword)
	c.AddItem(sword)
	require.NotNil(t, c.Equipment().Weapon)
	assert.Equal(t, items.SteelSword, c.Equipment().Weapon.Name)
	assert.Greater(t, c.Power(), base)

	c.AddItem(sword)
	assert.Equal(t, 1, c.Inventory().Count(items.SteelSword))

	ancient, _ := items.Lookup(items.DamagedAncientSword)
	c.AddItem(ancient)
	assert.Equal(t, items.DamagedAncientSword, c.Equipment().Weapon.Name)
	assert.Equal(t, 2, c.Inventory().Count(items.SteelSword))

	armor, _ := items.Lookup(items.SteelArmor)
	c.AddItem(armor)
	assert.Equal(t, 200.0, c.Health())
	assert.Equal(t, 200.0, c.FinalStats().Get(stats.MaxHealth))
	assert.Equal(t, 100.0, c.BaseStats().Get(stats.MaxHealth), "base is untouched")
}

func TestRaceRelations(t *testing.T) {
	forest, ok := RaceOf(Forest)
	require.True(t, ok)
	assert.True(t, forest.IsFriendly(Forest))
	assert.False(t, forest.IsFriendly(Human), "forest mobs only trust their own")
	assert.True(t, forest.IsHostile(Demon))
	assert.False(t, forest.IsHostile(Human))
}

func TestTileEntryStatusesResolve(t *testing.T) {
	granted := map[string]bool{}
	for _, tt := range world.TileTypes() {
		name := tt.Spec().EntryStatus
		if name == "" {
			continue
		}
		_, ok := stats.StatusByName(name)
		assert.True(t, ok, "tile %s grants unknown status %q", tt, name)
		granted[name] = true
	}
	assert.Equal(t, map[string]bool{"TownTileBuff": true}, granted)
	_, ok := stats.StatusByName("GroundTileBuff")
	assert.False(t, ok, "no tile grants a ground buff")
}

func TestTownEntryBuff(t *testing.T) {
	w := newTestWorld(t, ".T")
	c := place(t, w, Human, world.Point{}, fighter())
	c.moveTo(w, world.Point{X: 1})
	assert.True(t, c.statuses.Has(stats.ClassTownBuff))
	assert.InDelta(t, 130, c.FinalStats().Get(stats.Speed), 1e-9)
}

func TestInspectAroundRespectsVision(t *testing.T) {
	w := newTestWorld(t,
		".f..",
		"....",
		"....",
	)
	c := place(t, w, Human, world.Point{}, fighter())
	hidden := place(t, w, Demon, world.Point{X: 2}, tank())
	seen := place(t, w, Demon, world.Point{Y: 2}, tank())

	c.InspectAround(w)
	_, ok := c.memory.Character(seen.ID)
	assert.True(t, ok)
	_, ok = c.memory.Character(hidden.ID)
	assert.False(t, ok)
	_, ok = c.memory.Tile(world.Point{X: 1})
	assert.True(t, ok, "a blocking tile is itself visible")
}

func TestSpawnerPlayable(t *testing.T) {
	w := newTestWorld(t, "H..")
	s := NewSpawner(7)
	c, err := s.Spawn(w, Human, world.Point{})
	require.NoError(t, err)

	assert.True(t, c.HasArchetype(ArchPlayer))
	assert.True(t, c.Knows(KnowIncreaseAttributeCap))
	cur, ok := c.goals.Current()
	require.True(t, ok)
	assert.Equal(t, "AttributeTraining(strength)", cur.Name())
	assert.True(t, c.goals.Has("Fighting(2)"))
	assert.True(t, c.goals.Has("UnlockArchetype(SwordTrainee)"))

	_, err = s.Spawn(w, Ruin, world.Point{X: 1})
	assert.Error(t, err, "ruin mobs stay on ruin tiles")
	_, err = s.Spawn(w, "Elf", world.Point{X: 1})
	assert.Error(t, err)
}

func TestGeneratorUpdate(t *testing.T) {
	w := newTestWorld(t, "H.D", "rrf")
	gens, err := PlaceGenerators(w.Grid, []GeneratorSpec{
		{Faction: Human, Interval: 2, Amount: 2},
		{Faction: Ruin, Interval: 1, Sites: 1},
	}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, gens, 2)
	gen := gens[0]
	assert.Equal(t, world.Point{}, gen.Pos)
	assert.Equal(t, Ruin, gens[1].Faction)

	s := NewSpawner(1)
	c, err := gen.Update(w, s, 1)
	require.NoError(t, err)
	assert.Nil(t, c)
	c, err = gen.Update(w, s, 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	_, err = gen.Update(w, s, 2)
	require.NoError(t, err)
	assert.True(t, gen.Done())
	c, _ = gen.Update(w, s, 10)
	assert.Nil(t, c)
	assert.Equal(t, 2, w.Characters.Len())
}

func TestTurnsKeepInvariants(t *testing.T) {
	w := newTestWorld(t,
		"H....f....",
		"..~~..T...",
		"....rr....",
		".^^..rr..D",
		"....ff....",
	)
	s := NewSpawner(11)
	for _, spot := range []struct {
		f world.Faction
		p world.Point
	}{
		{Human, world.Point{X: 0}}, {Human, world.Point{X: 0}}, {Demon, world.Point{X: 9, Y: 3}},
		{Demon, world.Point{X: 9, Y: 3}}, {Ruin, world.Point{X: 4, Y: 2}}, {Forest, world.Point{X: 5}},
	} {
		_, err := s.Spawn(w, spot.f, spot.p)
		require.NoError(t, err)
	}

	for turn := 0; turn < 300; turn++ {
		w.Turn++
		for _, c := range w.Living() {
			c.DoAction(w)
		}
		for _, c := range w.Characters.All() {
			f := c.FinalStats()
			require.GreaterOrEqual(t, f.Get(stats.CurrentHealth), 0.0)
			require.LessOrEqual(t, f.Get(stats.CurrentHealth), f.Get(stats.MaxHealth))
			require.LessOrEqual(t, f.Get(stats.CurrentEnergy), f.Get(stats.MaxEnergy))
			tile, _ := w.Grid.TileAt(c.Pos)
			require.Equal(t, c.Alive(), tile.HasOccupant(c.ID), "%s occupancy", c)
			for _, a := range stats.AllAttributes() {
				if c.attrs.Has(a) {
					s := c.attrs.Score(a)
					require.LessOrEqual(t, s.Value, s.Cap)
				}
			}
		}
		for _, ev := range w.Events.All() {
			require.NotEmpty(t, ev.Factions())
			for _, f := range ev.Factions() {
				require.NotEmpty(t, ev.Hostiles(f), "faction %s without hostiles", f)
				require.NotEmpty(t, ev.Roster(f))
			}
			tile, _ := w.Grid.Tile(ev.TileID)
			bound, ok := tile.Combat()
			require.True(t, ok)
			require.Equal(t, ev.ID, bound)
		}
	}
}

func TestSinglePackageDoc(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	var documented []string
	for _, name := range files {
		f, err := parser.ParseFile(token.NewFileSet(), name, nil, parser.PackageClauseOnly|parser.ParseComments)
		require.NoError(t, err)
		if f.Doc != nil {
			documented = append(documented, name)
		}
	}
	assert.Equal(t, []string{"world.go"}, documented)
}
