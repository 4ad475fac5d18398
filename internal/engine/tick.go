// Package engine provides the tick loop and the scheduler that advances the
// world one pass per tick.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Engine drives the simulation forward in real time.
type Engine struct {
	Interval    time.Duration // base tick interval at speed 1
	ReportEvery uint64        // ticks between OnReport calls, 0 disables

	// Callbacks populated during setup.
	OnTick   func(tick uint64) // every tick
	OnReport func(tick uint64) // every ReportEvery ticks

	tick    atomic.Uint64
	running atomic.Bool

	mu    sync.Mutex
	speed float64 // 1.0 = real-time, 0 = paused

	log logrus.FieldLogger
}

// NewEngine creates an engine ticking every interval at speed 1.
func NewEngine(interval time.Duration, log logrus.FieldLogger) *Engine {
	return &Engine{
		Interval: interval,
		speed:    1.0,
		log:      log.WithField("component", "engine"),
	}
}

// Tick returns the current tick counter.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

// SetTick sets the counter, for resuming a run.
func (e *Engine) SetTick(t uint64) { e.tick.Store(t) }

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses the loop.
func (e *Engine) SetSpeed(s float64) error {
	if s < 0 {
		return fmt.Errorf("speed %.2f must not be negative", s)
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
	e.log.WithField("speed", s).Info("speed changed")
	return nil
}

// Run starts the loop. Blocks until Stop is called.
func (e *Engine) Run() {
	e.running.Store(true)
	e.log.WithFields(logrus.Fields{"tick": e.Tick(), "speed": e.Speed()}).Info("simulation engine started")

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	e.log.WithField("tick", e.Tick()).Info("simulation engine stopped")
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() { e.running.Store(false) }

// Step advances by exactly one tick, independent of Run.
func (e *Engine) Step() {
	tick := e.tick.Add(1)
	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.OnReport != nil && e.ReportEvery > 0 && tick%e.ReportEvery == 0 {
		e.OnReport(tick)
	}
}

// SimTime renders simulated seconds as a compact duration, e.g. "1h2m3s".
func SimTime(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
