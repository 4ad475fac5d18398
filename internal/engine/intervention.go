package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/agents"
	"github.com/talgya/tilesim/internal/world"
)

// ErrNoSpawnSite is returned when a faction has nowhere to appear.
var ErrNoSpawnSite = errors.New("no spawn site")

// SpawnCharacter places a character of faction f. With at == nil it uses
// one of the faction's generators, least used first.
func (s *Simulation) SpawnCharacter(f world.Faction, at *world.Point) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.spawnAt(f, at)
	if err != nil {
		return nil, err
	}
	s.emit("admin", fmt.Sprintf("%s was summoned at %v", c, c.Pos))
	s.log.WithFields(logrus.Fields{"character": c.ID, "faction": f, "pos": c.Pos}).Info("spawn intervention")
	s.updateStats()
	return c.Record(), nil
}

// Reinforce spawns up to n characters of faction f at its generators and
// returns how many appeared.
func (s *Simulation) Reinforce(f world.Faction, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placed := 0
	var errs []error
	for i := 0; i < n; i++ {
		if _, err := s.spawnAt(f, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		placed++
	}
	if placed > 0 {
		s.emit("admin", fmt.Sprintf("%d %s reinforcements arrived", placed, f))
		s.log.WithFields(logrus.Fields{"faction": f, "count": placed}).Info("reinforce intervention")
	}
	s.updateStats()
	if placed == 0 {
		return 0, errors.Join(errs...)
	}
	return placed, nil
}

func (s *Simulation) spawnAt(f world.Faction, at *world.Point) (*agents.Character, error) {
	if _, ok := agents.RaceOf(f); !ok {
		return nil, fmt.Errorf("unknown faction %q", f)
	}
	pos, err := s.siteFor(f, at)
	if err != nil {
		return nil, err
	}
	c, err := s.Spawner.Spawn(s.World, f, pos)
	if err != nil {
		return nil, err
	}
	s.spawned(c)
	return c, nil
}

func (s *Simulation) siteFor(f world.Faction, at *world.Point) (world.Point, error) {
	if at != nil {
		return *at, nil
	}
	var best *agents.Generator
	for _, g := range s.Generators {
		if g.Faction != f {
			continue
		}
		if best == nil || g.Spawned < best.Spawned {
			best = g
		}
	}
	if best == nil {
		return world.Point{}, fmt.Errorf("%w for %s", ErrNoSpawnSite, f)
	}
	return best.Pos, nil
}
