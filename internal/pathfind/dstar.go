package pathfind

import (
	"container/heap"
	"maps"
	"math"

	"github.com/talgya/tilesim/internal/world"
)

// DefaultMaxExpansions bounds a single replanning pass.
const DefaultMaxExpansions = 20000

var inf = math.Inf(1)

// Planner is an incremental D*-lite planner toward a fixed goal. Cells the
// caller has not marked blocked are assumed passable. Between calls the
// planner keeps its search state and only repairs the cells whose blocked
// flag changed.
type Planner struct {
	goal     world.Point
	start    world.Point
	last     world.Point
	km       float64
	g        map[world.Point]float64
	rhs      map[world.Point]float64
	open     *openList
	blocked  map[world.Point]bool
	inBounds func(world.Point) bool
	ready    bool

	MaxExpansions int
}

// NewPlanner creates a planner toward goal over the cells inBounds accepts.
func NewPlanner(goal world.Point, inBounds func(world.Point) bool) *Planner {
	return &Planner{
		goal:          goal,
		inBounds:      inBounds,
		MaxExpansions: DefaultMaxExpansions,
	}
}

// Goal returns the planner's goal cell.
func (p *Planner) Goal() world.Point { return p.goal }

// Next returns the neighbor of start that lies on a shortest path to the
// goal given the current blocked set. It reports false when start is the
// goal or no path is known.
func (p *Planner) Next(start world.Point, blocked map[world.Point]bool) (world.Point, bool) {
	if start == p.goal || !p.inBounds(p.goal) || blocked[p.goal] {
		return world.Point{}, false
	}
	if !p.ready {
		p.init(start, blocked)
	} else {
		p.update(start, blocked)
	}
	p.computeShortestPath()

	if math.IsInf(p.gOf(start), 1) {
		return world.Point{}, false
	}
	best, bestCost := world.Point{}, inf
	for _, n := range start.Neighbors() {
		c := p.cost(start, n) + p.gOf(n)
		if c < bestCost {
			best, bestCost = n, c
		}
	}
	return best, !math.IsInf(bestCost, 1)
}

func (p *Planner) init(start world.Point, blocked map[world.Point]bool) {
	p.start, p.last = start, start
	p.km = 0
	p.g = make(map[world.Point]float64)
	p.rhs = make(map[world.Point]float64)
	p.open = newOpenList()
	p.blocked = copyBlocked(blocked)
	p.rhs[p.goal] = 0
	p.open.upsert(p.goal, p.calcKey(p.goal))
	p.ready = true
}

// update moves the start and feeds blocked-set changes back as edge cost
// changes around each changed cell.
func (p *Planner) update(start world.Point, blocked map[world.Point]bool) {
	p.start = start

	var changed []world.Point
	for c, b := range blocked {
		if b && !p.blocked[c] {
			changed = append(changed, c)
		}
	}
	for c := range p.blocked {
		if !blocked[c] {
			changed = append(changed, c)
		}
	}
	if len(changed) == 0 {
		return
	}

	p.km += heuristic(p.last, start)
	p.last = start
	p.blocked = copyBlocked(blocked)
	for _, c := range changed {
		p.updateVertex(c)
		for _, n := range c.Neighbors() {
			if p.inBounds(n) {
				p.updateVertex(n)
			}
		}
	}
}

func (p *Planner) computeShortestPath() {
	limit := p.MaxExpansions
	if limit <= 0 {
		limit = DefaultMaxExpansions
	}
	for expansions := 0; p.open.Len() > 0 && expansions < limit; expansions++ {
		top := p.open.top()
		if !top.key.less(p.calcKey(p.start)) && p.rhsOf(p.start) == p.gOf(p.start) {
			return
		}
		u := top.pos
		kOld, kNew := top.key, p.calcKey(u)
		switch {
		case kOld.less(kNew):
			p.open.upsert(u, kNew)
		case p.gOf(u) > p.rhsOf(u):
			p.g[u] = p.rhsOf(u)
			p.open.remove(u)
			for _, n := range u.Neighbors() {
				if p.inBounds(n) {
					p.updateVertex(n)
				}
			}
		default:
			p.g[u] = inf
			for _, n := range u.Neighbors() {
				if p.inBounds(n) {
					p.updateVertex(n)
				}
			}
			p.updateVertex(u)
		}
	}
}

func (p *Planner) updateVertex(u world.Point) {
	if u != p.goal {
		best := inf
		for _, n := range u.Neighbors() {
			if c := p.cost(u, n) + p.gOf(n); c < best {
				best = c
			}
		}
		p.rhs[u] = best
	}
	if p.gOf(u) != p.rhsOf(u) {
		p.open.upsert(u, p.calcKey(u))
	} else {
		p.open.remove(u)
	}
}

func (p *Planner) cost(a, b world.Point) float64 {
	if !p.inBounds(a) || !p.inBounds(b) || p.blocked[a] || p.blocked[b] {
		return inf
	}
	return 1
}

func (p *Planner) calcKey(s world.Point) key {
	m := math.Min(p.gOf(s), p.rhsOf(s))
	return key{m + heuristic(p.start, s) + p.km, m}
}

func (p *Planner) gOf(s world.Point) float64 {
	if v, ok := p.g[s]; ok {
		return v
	}
	return inf
}

func (p *Planner) rhsOf(s world.Point) float64 {
	if v, ok := p.rhs[s]; ok {
		return v
	}
	return inf
}

func heuristic(a, b world.Point) float64 { return float64(world.Manhattan(a, b)) }

func copyBlocked(src map[world.Point]bool) map[world.Point]bool {
	out := make(map[world.Point]bool, len(src))
	maps.Copy(out, src)
	for c, b := range out {
		if !b {
			delete(out, c)
		}
	}
	return out
}

type key struct{ k1, k2 float64 }

func (a key) less(b key) bool {
	return a.k1 < b.k1 || (a.k1 == b.k1 && a.k2 < b.k2)
}

// openList is an indexed min-heap of cells keyed by D*-lite keys.
type openList struct {
	items []*openItem
	byPos map[world.Point]*openItem
}

type openItem struct {
	pos   world.Point
	key   key
	index int
}

func newOpenList() *openList {
	return &openList{byPos: make(map[world.Point]*openItem)}
}

func (o *openList) Len() int           { return len(o.items) }
func (o *openList) Less(i, j int) bool { return o.items[i].key.less(o.items[j].key) }
func (o *openList) Swap(i, j int) {
	o.items[i], o.items[j] = o.items[j], o.items[i]
	o.items[i].index = i
	o.items[j].index = j
}

func (o *openList) Push(x any) {
	it := x.(*openItem)
	it.index = len(o.items)
	o.items = append(o.items, it)
	o.byPos[it.pos] = it
}

func (o *openList) Pop() any {
	n := len(o.items)
	it := o.items[n-1]
	o.items[n-1] = nil
	o.items = o.items[:n-1]
	it.index = -1
	delete(o.byPos, it.pos)
	return it
}

func (o *openList) top() *openItem { return o.items[0] }

func (o *openList) upsert(pos world.Point, k key) {
	if it, ok := o.byPos[pos]; ok {
		it.key = k
		heap.Fix(o, it.index)
		return
	}
	heap.Push(o, &openItem{pos: pos, key: k})
}

func (o *openList) remove(pos world.Point) {
	if it, ok := o.byPos[pos]; ok {
		heap.Remove(o, it.index)
	}
}
