package gardener

import (
	"fmt"
	"strings"
)

// Policy bounds what the steward may do in one cycle.
type Policy struct {
	MaxSpawn int // characters per intervention
	Cooldown int // cycles before the same faction is reinforced again
}

// DefaultPolicy is a light touch: a few characters, then wait.
func DefaultPolicy() Policy {
	return Policy{MaxSpawn: 3, Cooldown: 2}
}

// Decision is the steward's verdict for one cycle.
type Decision struct {
	Action       string        `json:"action"` // "none" or "spawn"
	Rationale    string        `json:"rationale"`
	Intervention *Intervention `json:"intervention"`
}

// Intervention is the payload for POST /api/v1/spawn, sent Count times.
type Intervention struct {
	Type    string `json:"type"`
	Faction string `json:"faction"`
	Count   int    `json:"count"`
}

// Decide turns a triage result into at most one intervention. Only
// endangered factions are reinforced; a faction reinforced within the
// cooldown is left alone so the world can respond first.
func Decide(h *WorldHealth, mem *CycleMemory, th Thresholds, p Policy) *Decision {
	if len(h.Endangered) == 0 {
		return &Decision{Action: "none", Rationale: healthyRationale(h)}
	}

	var skipped []string
	for _, f := range h.Endangered {
		if mem.ReinforcedWithin(f, p.Cooldown) {
			skipped = append(skipped, f)
			continue
		}
		count := th.MinPopulation - h.Population[f]
		if h.CrisisLevel == Critical && h.Population[f] == 0 {
			count++
		}
		count = min(max(count, 1), p.MaxSpawn)
		return &Decision{
			Action: "spawn",
			Rationale: fmt.Sprintf("%s: %s down to %d (minimum %d), sending %d",
				h.CrisisLevel, f, h.Population[f], th.MinPopulation, count),
			Intervention: &Intervention{Type: "spawn", Faction: f, Count: count},
		}
	}
	return &Decision{
		Action:    "none",
		Rationale: fmt.Sprintf("%s: %s reinforced recently, waiting", h.CrisisLevel, strings.Join(skipped, ", ")),
	}
}

func healthyRationale(h *WorldHealth) string {
	if h.Dominant != "" {
		return fmt.Sprintf("%s: %s dominates but every watched faction holds", h.CrisisLevel, h.Dominant)
	}
	return fmt.Sprintf("%s: %d alive, %d deaths since last cycle", h.CrisisLevel, h.Alive, h.DeathsDelta)
}
