package gardener

import (
	"sort"
)

// Crisis levels, most severe first.
const (
	Critical = "CRITICAL"
	Warning  = "WARNING"
	Watch    = "WATCH"
	Healthy  = "HEALTHY"
)

// Thresholds tunes the triage rules.
type Thresholds struct {
	Factions      []string // factions the steward keeps alive
	MinPopulation int      // below this a faction is endangered
	Dominance     float64  // share of the living above which one faction dominates
}

// DefaultThresholds watches the two playable factions.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Factions:      []string{"Human", "Demon"},
		MinPopulation: 2,
		Dominance:     0.8,
	}
}

// WorldHealth holds derived diagnostic signals computed from a WorldSnapshot.
// Deterministic and free; runs before any decision.
type WorldHealth struct {
	Alive       int
	Population  map[string]int
	Endangered  []string // watched factions below MinPopulation, scarcest first
	Extinct     []string // watched factions with nobody left
	Dominant    string   // faction holding more than Dominance of the living, if any
	DeathsDelta int      // deaths since the previous cycle
	CrisisLevel string
}

// Triage computes a WorldHealth from the snapshot. prev is the previous
// cycle's record, nil on the first cycle.
func Triage(snap *WorldSnapshot, prev *CycleRecord, th Thresholds) *WorldHealth {
	h := &WorldHealth{
		Alive:      snap.Status.Alive,
		Population: make(map[string]int, len(th.Factions)),
	}
	for _, f := range th.Factions {
		n := snap.Status.ByFaction[f]
		h.Population[f] = n
		if n == 0 {
			h.Extinct = append(h.Extinct, f)
		}
		if n < th.MinPopulation {
			h.Endangered = append(h.Endangered, f)
		}
	}
	sort.SliceStable(h.Endangered, func(i, j int) bool {
		return h.Population[h.Endangered[i]] < h.Population[h.Endangered[j]]
	})

	if h.Alive > 0 {
		for f, n := range snap.Status.ByFaction {
			if float64(n)/float64(h.Alive) > th.Dominance {
				h.Dominant = f
			}
		}
	}

	// Counter reset: a restarted world starts its death count at zero.
	if prev != nil && snap.Status.Deaths >= prev.Deaths {
		h.DeathsDelta = snap.Status.Deaths - prev.Deaths
	}

	switch {
	case len(h.Extinct) > 0:
		h.CrisisLevel = Critical
	case len(h.Endangered) > 0:
		h.CrisisLevel = Warning
	case h.Dominant != "":
		h.CrisisLevel = Watch
	default:
		h.CrisisLevel = Healthy
	}
	return h
}
