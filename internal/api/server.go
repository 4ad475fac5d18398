// Package api provides the HTTP API for observing the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/agents"
	"github.com/talgya/tilesim/internal/engine"
	"github.com/talgya/tilesim/internal/store"
	"github.com/talgya/tilesim/internal/world"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// ChangeLog is the read side of the change journal.
type ChangeLog interface {
	RecentChanges(ctx context.Context, limit int) ([]store.Change, error)
	ChangesFor(ctx context.Context, kind store.Kind, id uint64, limit int) ([]store.Change, error)
}

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	Journal  ChangeLog // nil disables /changes
	Hub      *Hub      // nil disables /feed
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	SpawnLimiter *RateLimiter
	Log          logrus.FieldLogger
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	if s.SpawnLimiter == nil {
		s.SpawnLimiter = NewRateLimiter(5, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/characters", s.handleCharacters)
	mux.HandleFunc("GET /api/v1/character/{id}", s.handleCharacterDetail)
	mux.HandleFunc("GET /api/v1/combats", s.handleCombats)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/changes", s.handleChanges)
	if s.Hub != nil {
		mux.Handle("GET /api/v1/feed", s.Hub)
	}

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/spawn", s.adminOnly(RateLimitMiddleware(s.SpawnLimiter, s.handleSpawn)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server is
// for shutdown.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Log.WithFields(logrus.Fields{"addr": srv.Addr, "admin_auth": s.AdminKey != ""}).Info("HTTP API starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.WithError(err).Error("HTTP server error")
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, clock := s.Sim.Snapshot()
	status := map[string]any{
		"name":       "tilesim",
		"clock":      clock,
		"sim_time":   engine.SimTime(clock),
		"alive":      st.Alive,
		"by_faction": st.ByFaction,
		"combats":    st.Combats,
		"deaths":     st.Deaths,
		"spawns":     st.Spawns,
		"actions":    humanize.Comma(int64(st.Actions)),
		"panics":     st.Panics,
		"top_level":  st.TopLevel,
	}
	if s.Eng != nil {
		status["tick"] = s.Eng.Tick()
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	if s.Hub != nil {
		status["feed_clients"] = s.Hub.Clients()
	}
	writeJSON(w, status)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	faction := world.Faction(r.URL.Query().Get("faction"))
	dirty := r.URL.Query().Get("dirty") == "true"

	type characterSummary struct {
		ID      world.CharacterID `json:"id"`
		Name    string            `json:"name"`
		Faction world.Faction     `json:"faction"`
		Pos     world.Point       `json:"pos"`
		Level   int               `json:"level"`
		Health  float64           `json:"health"`
		Power   float64           `json:"power"`
		State   string            `json:"state"`
		Goal    string            `json:"goal,omitempty"`
	}

	result := []characterSummary{}
	s.Sim.View(func(wd *agents.World) {
		for _, c := range wd.Living() {
			if faction != "" && c.Faction() != faction {
				continue
			}
			if dirty {
				if !c.ShouldRedraw() {
					continue
				}
				c.ResetRedraw()
			}
			goal := ""
			if g, ok := c.Goals().Current(); ok {
				goal = g.Name()
			}
			result = append(result, characterSummary{
				ID:      c.ID,
				Name:    c.Name,
				Faction: c.Faction(),
				Pos:     c.Pos,
				Level:   c.Level(),
				Health:  c.Health(),
				Power:   c.Power(),
				State:   c.State().Kind.String(),
				Goal:    goal,
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleCharacterDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid character id", http.StatusBadRequest)
		return
	}

	var rec map[string]any
	s.Sim.View(func(wd *agents.World) {
		c, ok := wd.Character(world.CharacterID(id))
		if !ok {
			return
		}
		rec = c.Record()
		chars, events, tiles := c.Memory().Counts()
		rec["memory"] = map[string]int{"characters": chars, "events": events, "tiles": tiles}
		rec["milestones"] = c.Chronicle().Important(5)
		if eid, ok := c.InCombat(); ok {
			rec["combat"] = eid
		}
	})
	if rec == nil {
		http.Error(w, "character not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleCombats(w http.ResponseWriter, r *http.Request) {
	result := []map[string]any{}
	s.Sim.View(func(wd *agents.World) {
		for _, e := range wd.Events.All() {
			result = append(result, e.Record())
		}
	})
	writeJSON(w, result)
}

// handleMap returns the glyph rows and the tiles with something on them.
// With dirty=true only tiles changed since the last such call are listed.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	dirty := r.URL.Query().Get("dirty") == "true"

	var resp map[string]any
	s.Sim.View(func(wd *agents.World) {
		tiles := []map[string]any{}
		for _, t := range wd.Grid.Tiles() {
			if dirty {
				if !t.ShouldRedraw() {
					continue
				}
				t.ResetRedraw()
			} else if _, fighting := t.Combat(); len(t.Occupants()) == 0 && !fighting {
				continue
			}
			tiles = append(tiles, t.Record())
		}
		generators := make([]map[string]any, 0, len(s.Sim.Generators))
		for _, g := range s.Sim.Generators {
			generators = append(generators, g.Record())
		}
		resp = map[string]any{
			"width":      wd.Grid.Width,
			"height":     wd.Grid.Height,
			"rows":       strings.Split(strings.TrimSuffix(wd.Grid.String(), "\n"), "\n"),
			"tiles":      tiles,
			"generators": generators,
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	writeJSON(w, s.Sim.RecentEvents(limit, r.URL.Query().Get("category")))
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "change journal disabled", http.StatusServiceUnavailable)
		return
	}
	limit := parseLimit(r)
	q := r.URL.Query()

	var (
		changes []store.Change
		err     error
	)
	if kind := q.Get("kind"); kind != "" {
		id, perr := strconv.ParseUint(q.Get("id"), 10, 64)
		if perr != nil {
			http.Error(w, "kind requires a numeric id", http.StatusBadRequest)
			return
		}
		changes, err = s.Journal.ChangesFor(r.Context(), store.Kind(kind), id, limit)
	} else {
		changes, err = s.Journal.RecentChanges(r.Context(), limit)
	}
	if err != nil {
		s.Log.WithError(err).Error("changes query failed")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, changes)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.Eng.SetSpeed(req.Speed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"speed": s.Eng.Speed()})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Faction world.Faction `json:"faction"`
		X       *int          `json:"x"`
		Y       *int          `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	var at *world.Point
	if req.X != nil && req.Y != nil {
		at = &world.Point{X: *req.X, Y: *req.Y}
	}

	rec, err := s.Sim.SpawnCharacter(req.Faction, at)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Log.WithFields(logrus.Fields{"faction": req.Faction, "id": rec["id"]}).Info("admin spawn")
	writeJSONStatus(w, http.StatusCreated, rec)
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("encode response")
	}
}
