package memory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilesim/internal/world"
)

func TestBucket(t *testing.T) {
	cases := []struct {
		ratio float64
		want  PowerEst
	}{
		{0.1, MuchWeaker},
		{0.49, MuchWeaker},
		{0.5, MuchWeaker},
		{0.51, Weaker},
		{0.8, Weaker},
		{0.81, Same},
		{1.25, Same},
		{1.26, Stronger},
		{2, Stronger},
		{2.01, MuchStronger},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Bucket(c.ratio), "ratio %.2f", c.ratio)
	}
}

func TestEstimateExactAtFullAccuracy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, Same, Estimate(100, 100, 100, rng))
	assert.Equal(t, MuchStronger, Estimate(300, 100, 100, rng))
	assert.Equal(t, MuchStronger, Estimate(10, 0, 90, rng))
}

func TestEstimateNoiseStaysNearby(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	// ratio 1.0 with 10% noise stays in [0.9, 1.1], always Same
	for range 200 {
		assert.Equal(t, Same, Estimate(100, 100, 90, rng))
	}
}

func TestResetKeepsTiles(t *testing.T) {
	m := New()
	m.RememberCharacter(CharacterEntry{ID: 1, Pos: world.Point{X: 1}})
	m.RememberEvent(EventEntry{ID: 2})
	m.RememberTile(TileEntry{ID: 3, Pos: world.Point{X: 2}, Type: world.TileRuin})

	m.Reset()
	c, e, tiles := m.Counts()
	assert.Equal(t, 0, c)
	assert.Equal(t, 0, e)
	assert.Equal(t, 1, tiles)

	tile, ok := m.Tile(world.Point{X: 2})
	require.True(t, ok)
	assert.Equal(t, world.TileRuin, tile.Type)
	assert.Equal(t, world.TileRuin, m.KnownCells()[world.Point{X: 2}])
}

func TestCharactersSortedByDistance(t *testing.T) {
	m := New()
	m.RememberCharacter(CharacterEntry{ID: 5, Pos: world.Point{X: 3, Y: 3}})
	m.RememberCharacter(CharacterEntry{ID: 9, Pos: world.Point{X: 1, Y: 0}})
	m.RememberCharacter(CharacterEntry{ID: 2, Pos: world.Point{X: 0, Y: 1}})

	got := m.Characters(world.Point{})
	require.Len(t, got, 3)
	assert.Equal(t, world.CharacterID(2), got[0].ID)
	assert.Equal(t, world.CharacterID(9), got[1].ID)
	assert.Equal(t, world.CharacterID(5), got[2].ID)
}
