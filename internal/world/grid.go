package world

import (
	"fmt"
	"strings"
)

// Grid is the rectangular tile map. Tiles are created once by NewGrid and
// never added or removed afterwards.
type Grid struct {
	Width  int
	Height int
	tiles  []*Tile // row-major: index y*Width + x
	byID   map[TileID]*Tile
}

// NewGrid builds a grid from rows of tile types, rows[y][x]. All rows must
// have the same length. Tile ids are assigned row-major starting at 1.
func NewGrid(rows [][]TileType) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	g := &Grid{
		Width:  len(rows[0]),
		Height: len(rows),
		byID:   make(map[TileID]*Tile),
	}
	g.tiles = make([]*Tile, 0, g.Width*g.Height)
	for y, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("row %d has %d tiles, want %d", y, len(row), g.Width)
		}
		for x, tt := range row {
			if tt >= numTileTypes {
				return nil, fmt.Errorf("unknown tile type %d at (%d,%d)", tt, x, y)
			}
			t := &Tile{ID: TileID(len(g.tiles) + 1), Pos: Point{x, y}, Type: tt, redraw: true}
			g.tiles = append(g.tiles, t)
			g.byID[t.ID] = t
		}
	}
	return g, nil
}

// ParseGrid builds a grid from glyph rows using the TileSpec codes.
func ParseGrid(lines []string) (*Grid, error) {
	byCode := make(map[rune]TileType)
	for _, t := range TileTypes() {
		byCode[t.Spec().Code] = t
	}
	rows := make([][]TileType, 0, len(lines))
	for y, line := range lines {
		row := make([]TileType, 0, len(line))
		for x, r := range line {
			t, ok := byCode[r]
			if !ok {
				return nil, fmt.Errorf("unknown glyph %q at (%d,%d)", r, x, y)
			}
			row = append(row, t)
		}
		rows = append(rows, row)
	}
	return NewGrid(rows)
}

// InBounds reports whether p lies on the grid.
func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// TileAt returns the tile at p.
func (g *Grid) TileAt(p Point) (*Tile, bool) {
	if !g.InBounds(p) {
		return nil, false
	}
	return g.tiles[p.Y*g.Width+p.X], true
}

// Tile returns the tile with the given id.
func (g *Grid) Tile(id TileID) (*Tile, bool) {
	t, ok := g.byID[id]
	return t, ok
}

// Tiles returns every tile in row-major order.
func (g *Grid) Tiles() []*Tile { return g.tiles }

// IsMoveable reports whether p is on the grid and not an obstacle.
func (g *Grid) IsMoveable(p Point) bool {
	t, ok := g.TileAt(p)
	return ok && !t.Obstacle()
}

// BlocksVision reports whether the tile at p blocks line of sight. Off-grid
// points block.
func (g *Grid) BlocksVision(p Point) bool {
	t, ok := g.TileAt(p)
	return !ok || t.BlocksVision()
}

// FindAll returns the positions of every tile of type t in row-major order.
func (g *Grid) FindAll(t TileType) []Point {
	var out []Point
	for _, tile := range g.tiles {
		if tile.Type == t {
			out = append(out, tile.Pos)
		}
	}
	return out
}

// Counts returns how many tiles of each type the grid has.
func (g *Grid) Counts() map[TileType]int {
	out := make(map[TileType]int)
	for _, tile := range g.tiles {
		out[tile.Type]++
	}
	return out
}

// String renders the grid with one glyph per tile.
func (g *Grid) String() string {
	var b strings.Builder
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			b.WriteRune(g.tiles[y*g.Width+x].Type.Spec().Code)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
