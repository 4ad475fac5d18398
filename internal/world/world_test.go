package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, lines ...string) *Grid {
	t.Helper()
	g, err := ParseGrid(lines)
	require.NoError(t, err)
	return g
}

func TestNewGridAssignsIDs(t *testing.T) {
	g := mustParse(t,
		"..~",
		"T.^",
	)
	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 2, g.Height)

	tile, ok := g.TileAt(Point{2, 1})
	require.True(t, ok)
	assert.Equal(t, TileMountain, tile.Type)
	assert.Equal(t, TileID(6), tile.ID)

	byID, ok := g.Tile(6)
	require.True(t, ok)
	assert.Same(t, tile, byID)

	_, ok = g.TileAt(Point{3, 0})
	assert.False(t, ok)
	assert.False(t, g.IsMoveable(Point{2, 0}))
	assert.True(t, g.IsMoveable(Point{0, 1}))
}

func TestNewGridRejectsRagged(t *testing.T) {
	_, err := ParseGrid([]string{"...", ".."})
	assert.Error(t, err)
}

func TestTileOccupants(t *testing.T) {
	g := mustParse(t, ".")
	tile, _ := g.TileAt(Point{0, 0})
	tile.ResetRedraw()

	tile.AddOccupant(3)
	tile.AddOccupant(1)
	tile.AddOccupant(3)
	assert.Equal(t, []CharacterID{3, 1}, tile.Occupants())
	assert.True(t, tile.ShouldRedraw())

	tile.RemoveOccupant(3)
	tile.RemoveOccupant(99)
	assert.Equal(t, []CharacterID{1}, tile.Occupants())

	tile.BindCombat(7)
	id, ok := tile.Combat()
	assert.True(t, ok)
	assert.Equal(t, EventID(7), id)
	tile.ClearCombat()
	_, ok = tile.Combat()
	assert.False(t, ok)
}

func TestVisionBlockedByForest(t *testing.T) {
	g := mustParse(t,
		".....",
		".....",
		"..f..",
		".....",
		".....",
	)
	origin := Point{2, 0}

	assert.False(t, g.LineOfSight(origin, Point{2, 4}))
	assert.True(t, g.LineOfSight(origin, Point{2, 2}), "blocking endpoint is still visible")

	visible := g.VisiblePoints(origin, 4)
	assert.Contains(t, visible, Point{2, 2})
	assert.NotContains(t, visible, Point{2, 3})
	assert.NotContains(t, visible, origin)
	assert.Contains(t, visible, Point{0, 0})
}

func TestLineOfSightSymmetric(t *testing.T) {
	g := mustParse(t,
		"......",
		"..ff..",
		"......",
		".f....",
	)
	for _, a := range []Point{{0, 0}, {5, 3}, {3, 2}} {
		for _, b := range []Point{{5, 0}, {0, 3}, {2, 3}, {4, 1}} {
			assert.Equal(t, g.LineOfSight(a, b), g.LineOfSight(b, a), "%v <-> %v", a, b)
		}
	}
}

func TestVisiblePointsWithinRadius(t *testing.T) {
	g := mustParse(t,
		".....",
		".....",
		".....",
	)
	origin := Point{0, 0}
	for _, p := range g.VisiblePoints(origin, 2) {
		assert.LessOrEqual(t, Manhattan(origin, p), 2)
	}
	assert.Len(t, g.VisiblePoints(origin, 2), 5)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 11
	a := Generate(cfg)
	b := Generate(cfg)
	assert.Equal(t, a.String(), b.String())

	counts := a.Counts()
	assert.Equal(t, 1, counts[TileHumanGenerator])
	assert.Equal(t, 1, counts[TileDemonGenerator])
	assert.Equal(t, cfg.Towns, counts[TileTown])
	assert.Len(t, a.Tiles(), cfg.Width*cfg.Height)
}
