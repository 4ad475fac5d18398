package agents

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/looplab/fsm"
)

// Goal is a directive that biases a character's action menu until it is
// complete.
type Goal interface {
	Name() string
	AllowDuplicate() bool
	IsComplete(c *Character) bool
	CanApplyTo(c *Character) bool
	ApplyToActions(c *Character)
	ApplyToCharacter(c *Character)
	OnComplete(c *Character)
	IsBlocked(c *Character) bool
	ResolveBlock(c *Character) []Goal
}

// baseGoal provides the no-op defaults.
type baseGoal struct{}

func (baseGoal) AllowDuplicate() bool           { return false }
func (baseGoal) CanApplyTo(*Character) bool     { return false }
func (baseGoal) ApplyToActions(*Character)      {}
func (baseGoal) ApplyToCharacter(*Character)    {}
func (baseGoal) OnComplete(*Character)          {}
func (baseGoal) IsBlocked(*Character) bool      { return false }
func (baseGoal) ResolveBlock(*Character) []Goal { return nil }

// GoalStatus is the lifecycle of the current goal.
type GoalStatus string

const (
	GoalNothing        GoalStatus = "nothing"
	GoalWaitingToApply GoalStatus = "waiting_to_apply"
	GoalAlreadyApplied GoalStatus = "already_applied"
)

const (
	evLoad   = "load"   // a goal became current
	evReload = "reload" // the applied goal must apply again
	evApply  = "apply"
	evClear  = "clear"
)

type goalEntry struct {
	goal     Goal
	priority int
	seq      uint64
	index    int
}

// goalQueue is a min-heap on (priority, insertion sequence).
type goalQueue []*goalEntry

func (q goalQueue) Len() int { return len(q) }
func (q goalQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q goalQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *goalQueue) Push(x any) {
	e := x.(*goalEntry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *goalQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// GoalManager owns a character's goal queue and the status of its current
// goal.
type GoalManager struct {
	queue   goalQueue
	byName  map[string]*goalEntry
	seq     uint64
	current *goalEntry
	status  *fsm.FSM
	onReset func() // restores the owner's base menu
}

func newGoalManager(onReset func()) *GoalManager {
	return &GoalManager{
		byName:  make(map[string]*goalEntry),
		onReset: onReset,
		status: fsm.NewFSM(
			string(GoalNothing),
			fsm.Events{
				{Name: evLoad, Src: []string{string(GoalNothing)}, Dst: string(GoalWaitingToApply)},
				{Name: evReload, Src: []string{string(GoalAlreadyApplied)}, Dst: string(GoalWaitingToApply)},
				{Name: evApply, Src: []string{string(GoalWaitingToApply)}, Dst: string(GoalAlreadyApplied)},
				{Name: evClear, Src: []string{string(GoalWaitingToApply), string(GoalAlreadyApplied)}, Dst: string(GoalNothing)},
			},
			fsm.Callbacks{},
		),
	}
}

// Status returns the status of the current goal.
func (m *GoalManager) Status() GoalStatus { return GoalStatus(m.status.Current()) }

// Len returns the number of queued goals, the current one included.
func (m *GoalManager) Len() int { return len(m.queue) }

// Current returns the goal at the head of the queue.
func (m *GoalManager) Current() (Goal, bool) {
	if m.current == nil {
		return nil, false
	}
	return m.current.goal, true
}

// Has reports whether a goal named name is queued.
func (m *GoalManager) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Insert queues g at priority p (1 is highest). Every goal at priority p or
// lower moves down by one. A non-duplicate goal whose name is already queued
// is rejected, or merged into the queued one when it supports merging.
func (m *GoalManager) Insert(g Goal, p int) bool {
	if !m.insert(g, p) {
		return false
	}
	m.refresh()
	return true
}

// InsertHighest queues g ahead of every other goal.
func (m *GoalManager) InsertHighest(g Goal) bool { return m.Insert(g, 1) }

// Remove drops the goal named name.
func (m *GoalManager) Remove(name string) bool {
	e, ok := m.byName[name]
	if !ok {
		return false
	}
	m.remove(e)
	m.refresh()
	return true
}

// Goals returns the queued goals in priority order.
func (m *GoalManager) Goals() []Goal {
	entries := m.sorted()
	out := make([]Goal, len(entries))
	for i, e := range entries {
		out[i] = e.goal
	}
	return out
}

// Priority returns the priority of the goal named name.
func (m *GoalManager) Priority(name string) (int, bool) {
	e, ok := m.byName[name]
	if !ok {
		return 0, false
	}
	return e.priority, true
}

// Apply lets the current goal bias c's menu and state. It does nothing
// while the goal is already applied or cannot apply to c.
func (m *GoalManager) Apply(c *Character) bool {
	if m.current == nil || m.Status() != GoalWaitingToApply {
		return false
	}
	e := m.current
	c.state.ResetProbabilities()
	if !e.goal.CanApplyTo(c) {
		return false
	}
	e.goal.ApplyToActions(c)
	e.goal.ApplyToCharacter(c)
	if m.current != e {
		// the goal queued successors ahead of itself
		c.state.ResetProbabilities()
		return true
	}
	m.fire(evApply)
	return true
}

// StateReplaced marks the current goal for re-application after the owner
// switched action state.
func (m *GoalManager) StateReplaced() {
	if m.Status() == GoalAlreadyApplied {
		m.fire(evReload)
	}
}

// CheckComplete pops the current goal if c completed it, runs its
// OnComplete and loads the next goal.
func (m *GoalManager) CheckComplete(c *Character) bool {
	if m.current == nil || !m.current.goal.IsComplete(c) {
		return false
	}
	done := m.current
	m.remove(done)
	m.current = nil
	if m.Status() == GoalAlreadyApplied {
		m.onReset()
	}
	m.fire(evClear)
	done.goal.OnComplete(c)
	m.refresh()
	return true
}

// ResolveBlock replaces a blocked current goal by its resolvers, queued at
// the highest priority in order, and re-queues the goal directly behind
// them.
func (m *GoalManager) ResolveBlock(c *Character) bool {
	if m.current == nil || !m.current.goal.IsBlocked(c) {
		return false
	}
	blocked := m.current.goal
	resolvers := blocked.ResolveBlock(c)
	if len(resolvers) == 0 {
		return false
	}
	m.remove(m.current)
	queued := 0
	for i := len(resolvers) - 1; i >= 0; i-- {
		r := resolvers[i]
		if e, ok := m.byName[r.Name()]; ok && !r.AllowDuplicate() {
			// already queued: promote it
			m.remove(e)
			r = e.goal
		}
		if m.insert(r, 1) {
			queued++
		}
	}
	m.insert(blocked, queued+1)
	m.refresh()
	return true
}

// Record projects the queue for JSON output.
func (m *GoalManager) Record() []map[string]any {
	entries := m.sorted()
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = map[string]any{"name": e.goal.Name(), "priority": e.priority}
	}
	return out
}

func (m *GoalManager) insert(g Goal, p int) bool {
	if p < 1 {
		p = 1
	}
	if !g.AllowDuplicate() {
		if e, ok := m.byName[g.Name()]; ok {
			if mg, ok := e.goal.(merger); ok && e.goal != g {
				mg.Merge(g)
			}
			return false
		}
	}
	for _, e := range m.queue {
		if e.priority >= p {
			e.priority++
		}
	}
	m.seq++
	e := &goalEntry{goal: g, priority: p, seq: m.seq}
	heap.Push(&m.queue, e)
	if !g.AllowDuplicate() {
		m.byName[g.Name()] = e
	}
	return true
}

func (m *GoalManager) remove(e *goalEntry) {
	if e.index >= 0 {
		heap.Remove(&m.queue, e.index)
	}
	if m.byName[e.goal.Name()] == e {
		delete(m.byName, e.goal.Name())
	}
}

// refresh loads the head of the queue as the current goal. Displacing an
// applied goal resets the owner's menu.
func (m *GoalManager) refresh() {
	var head *goalEntry
	if len(m.queue) > 0 {
		head = m.queue[0]
	}
	if head == m.current {
		return
	}
	if m.Status() == GoalAlreadyApplied {
		m.onReset()
		m.fire(evReload)
	}
	m.current = head
	switch {
	case head == nil:
		m.fire(evClear)
	case m.Status() == GoalNothing:
		m.fire(evLoad)
	}
}

func (m *GoalManager) fire(event string) {
	if !m.status.Can(event) {
		return
	}
	if err := m.status.Event(context.Background(), event); err != nil {
		panic(fmt.Errorf("goal status %s -> %s: %w", m.status.Current(), event, err))
	}
}

func (m *GoalManager) sorted() []*goalEntry {
	entries := make([]*goalEntry, len(m.queue))
	copy(entries, m.queue)
	sort.Slice(entries, func(i, j int) bool { return goalQueue(entries).Less(i, j) })
	return entries
}
