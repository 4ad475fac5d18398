// Package world provides the square tile grid: points, tiles, vision and
// terrain generation. It also owns the typed ids shared by every other
// simulation package.
package world

import "fmt"

// CharacterID identifies a character. Ids are never reused within a World.
type CharacterID uint64

// TileID identifies a tile.
type TileID uint64

// EventID identifies a combat event.
type EventID uint64

// Faction is the group identity of a character. It never changes.
type Faction string

// Point is a grid coordinate. X grows to the right, Y grows downward.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Directions lists the four orthogonal unit steps: up, down, left, right.
var Directions = [4]Point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Neighbors returns the four orthogonal neighbors in Directions order.
func (p Point) Neighbors() [4]Point {
	var out [4]Point
	for i, d := range Directions {
		out[i] = p.Add(d)
	}
	return out
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
