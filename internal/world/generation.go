// Terrain generation using layered simplex noise. Elevation decides water and
// mountains, moisture decides forest, a third layer scatters ruins. Towns and
// the two generator tiles are placed afterwards on walkable ground.

package world

import (
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width         int
	Height        int
	Seed          int64   // 0 picks a random seed
	WaterLevel    float64 // elevation threshold for water (0.0–1.0)
	MountainLevel float64 // elevation threshold for mountains (0.0–1.0)
	ForestLevel   float64 // moisture threshold for forest (0.0–1.0)
	RuinLevel     float64 // ruin-noise threshold (0.0–1.0)
	Towns         int     // towns placed around the Human generator
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:         48,
		Height:        32,
		WaterLevel:    0.28,
		MountainLevel: 0.78,
		ForestLevel:   0.64,
		RuinLevel:     0.82,
		Towns:         3,
	}
}

// Generate creates a grid from noise. The Human generator sits in the
// western third, the Demon generator in the eastern third.
func Generate(cfg GenConfig) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed + 100))

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	ruinNoise := opensimplex.NewNormalized(seed + 2)

	rows := make([][]TileType, cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		rows[y] = make([]TileType, cfg.Width)
		for x := 0; x < cfg.Width; x++ {
			fx, fy := float64(x), float64(y)
			elev := octaveNoise(elevNoise, fx, fy, 4, 0.08, 0.5)
			moist := octaveNoise(moistNoise, fx, fy, 3, 0.06, 0.5)
			ruin := octaveNoise(ruinNoise, fx, fy, 2, 0.2, 0.5)
			rows[y][x] = deriveTile(elev, moist, ruin, cfg)
		}
	}

	human := placeOn(rows, rng, 0, cfg.Width/3)
	demon := placeOn(rows, rng, cfg.Width-cfg.Width/3, cfg.Width)
	rows[human.Y][human.X] = TileHumanGenerator
	rows[demon.Y][demon.X] = TileDemonGenerator
	placeTowns(rows, human, cfg.Towns)

	g, err := NewGrid(rows)
	if err != nil {
		// rows are rectangular and typed by construction
		panic(err)
	}
	return g
}

// deriveTile maps the noise samples of one cell to a tile type.
func deriveTile(elev, moist, ruin float64, cfg GenConfig) TileType {
	switch {
	case elev < cfg.WaterLevel:
		return TileWater
	case elev > cfg.MountainLevel:
		return TileMountain
	case ruin > cfg.RuinLevel:
		return TileRuin
	case moist > cfg.ForestLevel:
		return TileForest
	}
	return TileGround
}

// placeOn picks a random ground tile with x in [minX, maxX). If the band has
// no ground, the band's first cell is cleared and used.
func placeOn(rows [][]TileType, rng *rand.Rand, minX, maxX int) Point {
	var candidates []Point
	for y := range rows {
		for x := minX; x < maxX && x < len(rows[y]); x++ {
			if rows[y][x] == TileGround {
				candidates = append(candidates, Point{x, y})
			}
		}
	}
	if len(candidates) == 0 {
		p := Point{minX, len(rows) / 2}
		rows[p.Y][p.X] = TileGround
		return p
	}
	return candidates[rng.Intn(len(candidates))]
}

// placeTowns turns the nearest ground tiles around center into towns.
func placeTowns(rows [][]TileType, center Point, n int) {
	var ground []Point
	for y := range rows {
		for x := range rows[y] {
			if rows[y][x] == TileGround {
				ground = append(ground, Point{x, y})
			}
		}
	}
	sort.SliceStable(ground, func(i, j int) bool {
		return Manhattan(ground[i], center) < Manhattan(ground[j], center)
	})
	for i := 0; i < n && i < len(ground); i++ {
		rows[ground[i].Y][ground[i].X] = TileTown
	}
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
