package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttributes() *Attributes {
	return NewAttributes(map[Attribute]int{
		Vitality:   5,
		Endurance:  3,
		Strength:   4,
		Agility:    8,
		Perception: 5,
		Intellect:  6,
	})
}

func TestApplyAttributes(t *testing.T) {
	b := NewBlock()
	ApplyAttributes(b, sampleAttributes())

	assert.Equal(t, 100.0, b.Get(MaxHealth))
	assert.Equal(t, 100.0, b.Get(CurrentHealth))
	assert.Equal(t, 10.0, b.Get(Regeneration))
	assert.Equal(t, 3.0, b.Get(Defense))
	assert.Equal(t, 20.0, b.Get(Power))
	assert.Equal(t, 80.0, b.Get(Speed))
	assert.Equal(t, 60.0, b.Get(MaxEnergy))
	assert.Equal(t, 60.0, b.Get(CurrentEnergy))
}

func TestBlockClampsCurrentValues(t *testing.T) {
	b := NewBlock()
	b.Add(MaxHealth, 100)
	b.Add(CurrentHealth, 100)

	b.Update(CurrentHealth, 50)
	assert.Equal(t, 100.0, b.Get(CurrentHealth))

	b.Update(CurrentHealth, -250)
	assert.Equal(t, 0.0, b.Get(CurrentHealth))

	b.Set(CurrentHealth, 80)
	b.Set(MaxHealth, 60)
	assert.Equal(t, 60.0, b.Get(CurrentHealth))
}

func TestBlockUnknownStatPanics(t *testing.T) {
	b := NewBlock()
	assert.PanicsWithError(t, "unknown stat: power", func() { b.Get(Power) })

	b.Add(Power, 1)
	assert.Panics(t, func() { b.Add(Power, 2) })
}

func TestOverlayDoesNotMutateBase(t *testing.T) {
	base := NewBlock()
	ApplyAttributes(base, sampleAttributes())

	final := base.Clone()
	Overlay(final, []Modifier{Flat(Power, 20), Percent(Speed, -0.3), Flat(MaxHealth, 100)})

	assert.Equal(t, 40.0, final.Get(Power))
	assert.InDelta(t, 56.0, final.Get(Speed), 1e-9)
	assert.Equal(t, 200.0, final.Get(MaxHealth))
	assert.Equal(t, 200.0, final.Get(CurrentHealth))

	assert.Equal(t, 20.0, base.Get(Power))
	assert.Equal(t, 80.0, base.Get(Speed))
	assert.Equal(t, 100.0, base.Get(MaxHealth))
}

func TestGainProficiency(t *testing.T) {
	as := NewAttributes(map[Attribute]int{Strength: 2})
	s := as.Score(Strength)
	assert.Equal(t, 4, s.Cap)
	assert.Equal(t, 30, s.Threshold())

	assert.Equal(t, Increased, as.GainProficiency(Strength, 20))
	assert.Equal(t, LeveledUp, as.GainProficiency(Strength, 15))
	s = as.Score(Strength)
	assert.Equal(t, 3, s.Value)
	assert.Equal(t, 5, s.Proficiency)

	assert.Equal(t, LeveledUp, as.GainProficiency(Strength, 40))
	assert.Equal(t, 4, as.Value(Strength))
	assert.True(t, as.IsCapped(Strength))

	for range 10 {
		assert.Equal(t, Capped, as.GainProficiency(Strength, 1000))
	}
	assert.Equal(t, 4, as.Value(Strength))
	assert.LessOrEqual(t, as.Value(Strength), as.Score(Strength).Cap)

	as.RaiseCap(Strength, 2)
	assert.False(t, as.IsCapped(Strength))
}

func TestApplyAttributeGain(t *testing.T) {
	as := sampleAttributes()
	b := NewBlock()
	ApplyAttributes(b, as)
	b.Update(CurrentHealth, -30)

	ApplyAttributeGain(b, Vitality)
	assert.Equal(t, 120.0, b.Get(MaxHealth))
	assert.Equal(t, 90.0, b.Get(CurrentHealth))
	assert.Equal(t, 12.0, b.Get(Regeneration))
}

func TestStatusesExtendAndUpgrade(t *testing.T) {
	s := NewStatuses()
	s.Add(LightInjury, 5)
	s.Add(HeavyInjury, 5)
	assert.Equal(t, 1, s.Len())

	st, ok := s.Get(ClassInjury)
	require.True(t, ok)
	assert.Equal(t, HeavyInjury, st.Def)
	assert.Equal(t, 10, st.Duration)

	s.Add(LightInjury, 2)
	st, _ = s.Get(ClassInjury)
	assert.Equal(t, HeavyInjury, st.Def)
	assert.Equal(t, 12, st.Duration)
}

func TestStatusesTickAndRecover(t *testing.T) {
	s := NewStatuses()
	s.Add(TownTileBuff, 2)
	s.Add(LightInjury, 2)

	assert.Empty(t, s.Tick())
	assert.Equal(t, []string{"TownTileBuff"}, s.Tick())
	assert.True(t, s.HasRecoverableDebuff(), "injuries are not expirable")

	assert.Equal(t, []string{"LightInjury"}, s.Recover(2))
	assert.False(t, s.HasRecoverableDebuff())
	assert.Equal(t, 0, s.Len())
}

func TestStatusOverlay(t *testing.T) {
	b := NewBlock()
	ApplyAttributes(b, sampleAttributes())
	s := NewStatuses()
	s.Add(LightInjury, 5)

	final := b.Clone()
	Overlay(final, s.Modifiers())
	assert.InDelta(t, 14.0, final.Get(Power), 1e-9)
	assert.InDelta(t, 56.0, final.Get(Speed), 1e-9)
}

func TestLevelCurve(t *testing.T) {
	l := NewLevel(Curve{Base: 100}, 0)
	assert.Equal(t, 100, l.Next())

	assert.Equal(t, 0, l.AddExp(50))
	assert.Equal(t, 2, l.AddExp(300))
	assert.Equal(t, 2, l.Current)
	assert.Equal(t, 50, l.Exp)
	assert.Equal(t, 400, l.Next())
}

func TestPerceptionHelpers(t *testing.T) {
	assert.Equal(t, 3, VisionRadius(2, 5))
	assert.Equal(t, 95.0, Accuracy(90, 5))
	assert.Equal(t, 99.0, Accuracy(90, 30))
	assert.Equal(t, 100.0, Accuracy(100, 0))
}
