// Simulation owns the World and advances it one scheduler pass per tick.

package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/agents"
	"github.com/talgya/tilesim/internal/stats"
	"github.com/talgya/tilesim/internal/world"
)

// Event is a notable occurrence in the world.
type Event struct {
	Turn        uint64  `json:"turn"`
	Clock       float64 `json:"clock"` // simulated seconds
	Description string  `json:"description"`
	Category    string  `json:"category"` // "combat", "death", "spawn", "level", "escape", "admin", ...
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Alive     int                   `json:"alive"`
	ByFaction map[world.Faction]int `json:"by_faction"`
	Combats   int                   `json:"combats"`
	Deaths    int                   `json:"deaths"`
	Spawns    int                   `json:"spawns"`
	Actions   uint64                `json:"actions"`
	Panics    int                   `json:"panics"`
	TopLevel  int                   `json:"top_level"`
}

// Options configures a Simulation.
type Options struct {
	SecondsPerTick  float64 // simulated time per pass
	SpeedMultiplier float64 // scales every action interval
	MaxEvents       int     // retained event log entries
}

// Simulation holds the complete world state and schedules character turns.
// Every exported method takes the lock; callbacks fired during a pass run
// with it held.
type Simulation struct {
	mu sync.Mutex

	World      *agents.World
	Spawner    *agents.Spawner
	Generators []*agents.Generator
	Events     []Event // most recent last
	Stats      SimStats
	Clock      float64 // simulated seconds since start

	// OnEvent receives every event as it is logged.
	OnEvent func(Event)

	opts       Options
	nextAction map[world.CharacterID]float64
	turn       func(c *agents.Character, w *agents.World)
	log        logrus.FieldLogger
}

// NewSimulation wraps w. Notices raised by the world become events.
func NewSimulation(w *agents.World, spawner *agents.Spawner, gens []*agents.Generator, opts Options, log logrus.FieldLogger) *Simulation {
	if opts.SecondsPerTick <= 0 {
		opts.SecondsPerTick = 0.1
	}
	if opts.SpeedMultiplier <= 0 {
		opts.SpeedMultiplier = 1
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = 1000
	}
	s := &Simulation{
		World:      w,
		Spawner:    spawner,
		Generators: gens,
		opts:       opts,
		nextAction: make(map[world.CharacterID]float64),
		turn:       (*agents.Character).DoAction,
		log:        log.WithField("component", "simulation"),
	}
	w.OnNotice(func(n agents.Notice) {
		if n.Category == "death" {
			s.Stats.Deaths++
		}
		s.emit(n.Category, n.Description)
	})
	for _, c := range w.Living() {
		s.schedule(c)
	}
	s.updateStats()
	return s
}

// View runs fn with the lock held. fn must not retain w.
func (s *Simulation) View(fn func(w *agents.World)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.World)
}

// Update runs a mutation with the lock held and refreshes the statistics.
func (s *Simulation) Update(fn func(w *agents.World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.World)
	s.updateStats()
	return err
}

// Populate places each spec's initial characters, cycling through the
// faction's generators.
func (s *Simulation) Populate(specs []agents.GeneratorSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, spec := range specs {
		var gens []*agents.Generator
		for _, g := range s.Generators {
			if g.Faction == spec.Faction {
				gens = append(gens, g)
			}
		}
		if len(gens) == 0 {
			continue
		}
		for i := 0; i < spec.Initial; i++ {
			g := gens[i%len(gens)]
			c, err := s.Spawner.Spawn(s.World, spec.Faction, g.Pos)
			if err != nil {
				s.log.WithError(err).WithField("faction", spec.Faction).Warn("initial spawn failed")
				continue
			}
			s.spawned(c)
		}
	}
	s.updateStats()
}

// Interval returns the simulated seconds between turns of c.
func (s *Simulation) Interval(c *agents.Character) float64 {
	speed := c.FinalStats().Get(stats.Speed)
	if speed <= 0 {
		speed = 1
	}
	return 100 / (speed * s.opts.SpeedMultiplier)
}

// Step runs one scheduler pass: generators, then every due character in
// store order. It is the engine's OnTick.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Clock += s.opts.SecondsPerTick
	s.World.Turn = tick

	for _, g := range s.Generators {
		c, err := g.Update(s.World, s.Spawner, s.opts.SecondsPerTick)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"faction": g.Faction, "pos": g.Pos}).Debug("generator spawn failed")
			continue
		}
		if c != nil {
			s.spawned(c)
		}
	}

	for _, c := range s.World.Living() {
		if !c.Alive() {
			// killed earlier in this pass
			continue
		}
		due, ok := s.nextAction[c.ID]
		if !ok {
			s.schedule(c)
			continue
		}
		if s.Clock < due {
			continue
		}
		s.act(c)
		s.nextAction[c.ID] = s.Clock + s.Interval(c)
		s.World.Characters.Touch(c.ID)
	}

	s.prune()
	s.updateStats()
}

// act runs one turn of c. A panic is logged with the character id and
// does not stop the pass.
func (s *Simulation) act(c *agents.Character) {
	defer func() {
		if r := recover(); r != nil {
			s.Stats.Panics++
			s.log.WithFields(logrus.Fields{
				"character": c.ID,
				"name":      c.Name,
				"panic":     r,
			}).Error("character turn panicked")
		}
	}()
	s.turn(c, s.World)
	s.Stats.Actions++
}

func (s *Simulation) schedule(c *agents.Character) {
	s.nextAction[c.ID] = s.Clock + s.Interval(c)
}

func (s *Simulation) spawned(c *agents.Character) {
	s.schedule(c)
	s.Stats.Spawns++
	s.emit("spawn", fmt.Sprintf("%s appeared at %v", c, c.Pos))
}

// prune unschedules characters killed during the pass. The dead stay in
// the store, off their tiles.
func (s *Simulation) prune() {
	for id := range s.nextAction {
		if c, ok := s.World.Character(id); ok && c.Alive() {
			continue
		}
		delete(s.nextAction, id)
	}
}

func (s *Simulation) emit(category, desc string) {
	e := Event{Turn: s.World.Turn, Clock: s.Clock, Description: desc, Category: category}
	s.Events = append(s.Events, e)
	if len(s.Events) > s.opts.MaxEvents {
		s.Events = s.Events[len(s.Events)-s.opts.MaxEvents:]
	}
	if s.OnEvent != nil {
		s.OnEvent(e)
	}
}

// RecentEvents returns up to n of the latest events, newest last. A
// non-empty category filters them.
func (s *Simulation) RecentEvents(n int, category string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, n)
	for i := len(s.Events) - 1; i >= 0 && len(out) < n; i-- {
		if category != "" && s.Events[i].Category != category {
			continue
		}
		out = append(out, s.Events[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Snapshot returns a copy of the statistics with the clock.
func (s *Simulation) Snapshot() (SimStats, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.Stats
	st.ByFaction = make(map[world.Faction]int, len(s.Stats.ByFaction))
	for f, n := range s.Stats.ByFaction {
		st.ByFaction[f] = n
	}
	return st, s.Clock
}

func (s *Simulation) updateStats() {
	s.Stats.Alive = 0
	s.Stats.TopLevel = 0
	s.Stats.ByFaction = make(map[world.Faction]int)
	for _, c := range s.World.Living() {
		s.Stats.Alive++
		s.Stats.ByFaction[c.Faction()]++
		s.Stats.TopLevel = max(s.Stats.TopLevel, c.Level())
	}
	s.Stats.Combats = s.World.Events.Len()
}

// Report logs a summary line and the notable events since the last one.
// It is the engine's OnReport.
func (s *Simulation) Report(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	factions := make([]string, 0, len(s.Stats.ByFaction))
	for f := range s.Stats.ByFaction {
		factions = append(factions, string(f))
	}
	sort.Strings(factions)
	fields := logrus.Fields{
		"tick":     humanize.Comma(int64(tick)),
		"time":     SimTime(s.Clock),
		"alive":    s.Stats.Alive,
		"combats":  s.Stats.Combats,
		"deaths":   humanize.Comma(int64(s.Stats.Deaths)),
		"spawns":   humanize.Comma(int64(s.Stats.Spawns)),
		"actions":  humanize.Comma(int64(s.Stats.Actions)),
		"topLevel": s.Stats.TopLevel,
	}
	for _, f := range factions {
		fields["n_"+f] = s.Stats.ByFaction[world.Faction(f)]
	}
	s.log.WithFields(fields).Info("world report")

	start := max(len(s.Events)-10, 0)
	for _, e := range s.Events[start:] {
		if e.Category == "death" || e.Category == "level" || e.Category == "admin" {
			s.log.WithField("category", e.Category).Info(e.Description)
		}
	}
}
