package world

// VisiblePoints returns every in-bounds point within Manhattan distance
// radius of origin that has line of sight from origin. The origin itself is
// excluded. Points are ordered by distance, then row-major.
func (g *Grid) VisiblePoints(origin Point, radius int) []Point {
	var out []Point
	for d := 1; d <= radius; d++ {
		for dy := -d; dy <= d; dy++ {
			dx := d - abs(dy)
			for _, x := range uniq(origin.X-dx, origin.X+dx) {
				p := Point{x, origin.Y + dy}
				if g.InBounds(p) && g.LineOfSight(origin, p) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// LineOfSight reports whether no vision-blocking tile lies strictly between
// a and b. The raster line is tried in both directions and either clear
// direction counts, so the answer is symmetric.
func (g *Grid) LineOfSight(a, b Point) bool {
	return g.clearLine(a, b) || g.clearLine(b, a)
}

// clearLine walks the Bresenham line from a to b, checking every cell except
// the two endpoints.
func (g *Grid) clearLine(a, b Point) bool {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := abs(b.Y - y0)
	sx, sy := 1, 1
	if x0 > b.X {
		sx = -1
	}
	if y0 > b.Y {
		sy = -1
	}
	err := dx - dy

	for {
		if x0 == b.X && y0 == b.Y {
			return true
		}
		if (x0 != a.X || y0 != a.Y) && g.BlocksVision(Point{x0, y0}) {
			return false
		}
		e2 := err * 2
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func uniq(a, b int) []int {
	if a == b {
		return []int{a}
	}
	return []int{a, b}
}
