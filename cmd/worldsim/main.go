// Command worldsim runs the tile-grid agent simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/agents"
	"github.com/talgya/tilesim/internal/api"
	"github.com/talgya/tilesim/internal/config"
	"github.com/talgya/tilesim/internal/engine"
	"github.com/talgya/tilesim/internal/logger"
	"github.com/talgya/tilesim/internal/persistence"
	"github.com/talgya/tilesim/internal/store"
	"github.com/talgya/tilesim/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	printSchema := flag.Bool("schema", false, "print the config JSON Schema and exit")
	flag.Parse()

	if *printSchema {
		out, err := config.Schema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.WithField("seed", cfg.Seed).Info("tilesim starting")

	// ── World ─────────────────────────────────────────────────────────
	grid := world.Generate(world.GenConfig{
		Width:         cfg.World.Width,
		Height:        cfg.World.Height,
		Seed:          cfg.Seed,
		WaterLevel:    cfg.World.WaterLevel,
		MountainLevel: cfg.World.MountainLevel,
		ForestLevel:   cfg.World.ForestLevel,
		RuinLevel:     cfg.World.RuinLevel,
		Towns:         cfg.World.Towns,
	})
	for t, n := range grid.Counts() {
		log.WithFields(logrus.Fields{"type": t.String(), "count": n}).Debug("terrain")
	}
	log.Debugf("map:\n%s", grid)

	w, err := agents.NewWorld(grid, rand.New(rand.NewSource(cfg.Seed+1)), log, settingsFrom(cfg))
	if err != nil {
		log.WithError(err).Fatal("failed to build world")
	}

	specs := generatorSpecs(cfg.Spawners)
	gens, err := agents.PlaceGenerators(grid, specs, rand.New(rand.NewSource(cfg.Seed+2)))
	if err != nil {
		log.WithError(err).Fatal("failed to place generators")
	}

	// ── Change feed ───────────────────────────────────────────────────
	hub := api.NewHub(cfg.API.FeedBufferSize, log)
	sinks := store.Sinks{hub}

	var journal *persistence.Journal
	if cfg.Journal.Enabled {
		if cfg.Journal.Driver == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(cfg.Journal.DSN), 0o755); err != nil {
				log.WithError(err).Fatal("failed to create journal directory")
			}
		}
		journal, err = persistence.Open(cfg.Journal.Driver, cfg.Journal.DSN, persistence.Options{
			QueueSize: cfg.Journal.QueueSize,
			BatchSize: cfg.Journal.BatchSize,
			Flush:     time.Duration(cfg.Journal.FlushMillis) * time.Millisecond,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("failed to open journal")
		}
		sinks = append(sinks, journal)
	}
	feed := store.NewFeed(sinks, log)
	w.SetFeed(feed)
	log.WithField("run_id", feed.RunID).Info("change feed ready")

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(w, agents.NewSpawner(cfg.Seed+3), gens, engine.Options{
		SecondsPerTick:  cfg.Simulation.SecondsPerTick,
		SpeedMultiplier: cfg.Simulation.SpeedMultiplier,
		MaxEvents:       cfg.Simulation.MaxEvents,
	}, log)
	if journal != nil {
		sim.OnEvent = journal.RecordEvent
	}
	sim.Populate(specs)

	st, _ := sim.Snapshot()
	log.WithFields(logrus.Fields{
		"characters": st.Alive,
		"generators": len(gens),
		"tiles":      len(grid.Tiles()),
	}).Info("world ready")

	eng := engine.NewEngine(time.Duration(cfg.Simulation.TickMillis)*time.Millisecond, log)
	eng.ReportEvery = uint64(max(cfg.Simulation.ReportEvery, 0))
	eng.OnTick = sim.Step
	eng.OnReport = sim.Report

	// ── HTTP API ──────────────────────────────────────────────────────
	var httpServer interface{ Shutdown(context.Context) error }
	if cfg.API.Enabled {
		if cfg.API.AdminKey == "" {
			log.Warn("WORLDSIM_ADMIN_KEY not set, admin POST endpoints are disabled")
		}
		srv := &api.Server{
			Sim:          sim,
			Eng:          eng,
			Hub:          hub,
			Port:         cfg.API.Port,
			AdminKey:     cfg.API.AdminKey,
			SpawnLimiter: api.NewRateLimiter(cfg.API.SpawnRate, time.Duration(cfg.API.SpawnWindowSecs)*time.Second),
			Log:          log,
		}
		if journal != nil {
			srv.Journal = journal
		}
		httpServer = srv.Start()
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("received signal, shutting down")
		eng.Stop()
	}()

	log.Info("starting simulation (Ctrl+C to stop)")
	eng.Run()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("HTTP shutdown")
		}
		cancel()
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			log.WithError(err).Error("journal close failed")
		}
		log.WithFields(logrus.Fields{"written": journal.Written(), "dropped": journal.Dropped()}).Info("journal closed")
	}
	sim.Report(eng.Tick())
	log.Info("simulation stopped")
}

func settingsFrom(cfg config.Config) agents.Settings {
	return agents.Settings{
		VisionRadius:       cfg.Perception.VisionRadius,
		PerceptionAccuracy: cfg.Perception.Accuracy,
		EscapeChance:       cfg.Combat.EscapeChance,
		EscapeChanceLow:    cfg.Combat.EscapeChanceLow,
		EscapeChanceHigh:   cfg.Combat.EscapeChanceHigh,
		KillExpPerLevel:    cfg.Combat.KillExpPerLevel,
		TrainExp:           cfg.Training.Exp,
		TrainProficiency:   cfg.Training.Proficiency,
		FindItemAttempts:   cfg.Training.FindItemAttempts,
		BuffDuration:       cfg.Training.BuffDuration,
		PlannerCacheSize:   cfg.Simulation.PlannerCacheSize,
	}
}

func generatorSpecs(spawners []config.SpawnerConfig) []agents.GeneratorSpec {
	specs := make([]agents.GeneratorSpec, 0, len(spawners))
	for _, s := range spawners {
		specs = append(specs, agents.GeneratorSpec{
			Faction:  world.Faction(s.Faction),
			Interval: s.Interval,
			Amount:   s.Amount,
			Initial:  s.Initial,
			Sites:    s.Sites,
		})
	}
	return specs
}
