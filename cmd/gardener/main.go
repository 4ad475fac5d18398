// Command gardener runs the autonomous world steward. It observes world
// state, triages faction populations, and reinforces factions close to
// extinction via the admin spawn API.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/gardener"
	"github.com/talgya/tilesim/internal/logger"
)

type steward struct {
	observer   *gardener.Observer
	actor      *gardener.Actor
	watcher    *gardener.Watcher
	mem        *gardener.CycleMemory
	thresholds gardener.Thresholds
	policy     gardener.Policy
	log        logrus.FieldLogger
}

func main() {
	log := logger.FromEnv("info", "text")

	// Configuration from environment.
	apiURL := envOrDefault("WORLDSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("WORLDSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("GARDENER_INTERVAL", 60)
	memPath := envOrDefault("GARDENER_MEMORY", "gardener_memory.json")

	if adminKey == "" {
		log.Fatal("WORLDSIM_ADMIN_KEY is required")
	}

	interval := time.Duration(intervalSec) * time.Second
	th := gardener.DefaultThresholds()
	th.MinPopulation = envIntOrDefault("GARDENER_MIN_POPULATION", th.MinPopulation)

	log.WithFields(logrus.Fields{
		"api_url":  apiURL,
		"interval": interval,
	}).Info("gardener starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &steward{
		observer:   gardener.NewObserver(apiURL),
		actor:      gardener.NewActor(apiURL, adminKey),
		mem:        gardener.LoadMemory(memPath, log),
		thresholds: th,
		policy:     gardener.DefaultPolicy(),
		log:        log,
	}

	log.Info("waiting for worldsim API...")
	if !waitForAPI(ctx, s.observer, log) {
		log.Fatal("worldsim API did not become ready within 5 minutes")
	}

	if os.Getenv("GARDENER_WATCH") != "false" {
		s.watcher = gardener.NewWatcher(apiURL, log)
		go s.watcher.Run(ctx)
	}

	// Run first cycle immediately.
	s.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			log.Info("gardener stopped")
			return
		}
	}
}

// runCycle executes one observe, triage, decide, act cycle.
func (s *steward) runCycle(ctx context.Context) {
	snap, err := s.observer.Observe(ctx)
	if err != nil {
		s.log.WithError(err).Error("observation failed")
		return
	}

	health := gardener.Triage(snap, s.mem.Last(), s.thresholds)
	rec := gardener.CycleRecord{
		Tick:        snap.Status.Tick,
		Alive:       health.Alive,
		Deaths:      snap.Status.Deaths,
		CrisisLevel: health.CrisisLevel,
	}
	fields := logrus.Fields{
		"tick":         snap.Status.Tick,
		"alive":        health.Alive,
		"deaths_delta": health.DeathsDelta,
		"crisis":       health.CrisisLevel,
	}
	if s.watcher != nil {
		byKind, died := s.watcher.Counts()
		rec.FeedChanges = gardener.Total(byKind)
		fields["feed_changes"] = rec.FeedChanges
		fields["feed_deaths"] = died
	}
	s.log.WithFields(fields).Info("observation complete")

	decision := gardener.Decide(health, s.mem, s.thresholds, s.policy)
	rec.Action = decision.Action
	rec.Rationale = decision.Rationale
	s.log.WithFields(logrus.Fields{
		"action":    decision.Action,
		"rationale": decision.Rationale,
	}).Info("decision made")

	if decision.Intervention != nil {
		rec.Faction = decision.Intervention.Faction
		result, err := s.actor.Act(ctx, decision.Intervention)
		if result != nil {
			rec.Spawned = result.Spawned
		}
		if err != nil {
			s.log.WithError(err).Error("intervention failed")
		} else {
			s.log.WithFields(logrus.Fields{
				"faction":      decision.Intervention.Faction,
				"spawned":      result.Spawned,
				"rate_limited": result.RateLimited,
			}).Info("intervention executed")
		}
	}

	s.mem.Record(rec)
	if err := s.mem.Save(); err != nil {
		s.log.WithError(err).Warn("failed to save gardener memory")
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the worldsim status endpoint with exponential backoff
// until it responds or five minutes pass.
func waitForAPI(ctx context.Context, o *gardener.Observer, log logrus.FieldLogger) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		if o.Ready(ctx) {
			log.Info("worldsim API is ready")
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		log.WithField("backoff", backoff).Info("worldsim not ready, retrying...")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
