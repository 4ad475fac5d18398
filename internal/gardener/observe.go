// Package gardener implements the autonomous world steward.
// It observes world state via the API, decides on interventions with a
// small rule set, and acts via the admin spawn endpoint.
package gardener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WorldSnapshot holds all data collected during an observation cycle.
type WorldSnapshot struct {
	Status     WorldStatus     `json:"status"`
	Characters []CharacterInfo `json:"characters"`
	Deaths     []EventInfo     `json:"deaths"`
}

// WorldStatus mirrors GET /api/v1/status.
type WorldStatus struct {
	Name      string         `json:"name"`
	Tick      uint64         `json:"tick"`
	SimTime   string         `json:"sim_time"`
	Speed     float64        `json:"speed"`
	Running   bool           `json:"running"`
	Alive     int            `json:"alive"`
	ByFaction map[string]int `json:"by_faction"`
	Combats   int            `json:"combats"`
	Deaths    int            `json:"deaths"`
	Spawns    int            `json:"spawns"`
	TopLevel  int            `json:"top_level"`
}

// CharacterInfo mirrors items from GET /api/v1/characters.
type CharacterInfo struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name"`
	Faction string  `json:"faction"`
	Level   int     `json:"level"`
	Health  float64 `json:"health"`
	Power   float64 `json:"power"`
	State   string  `json:"state"`
	Goal    string  `json:"goal"`
}

// EventInfo mirrors items from GET /api/v1/events.
type EventInfo struct {
	Turn        uint64 `json:"turn"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Observer fetches world state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status, characters and recent deaths.
func (o *Observer) Observe(ctx context.Context) (*WorldSnapshot, error) {
	snap := &WorldSnapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/characters", &snap.Characters); err != nil {
		return nil, fmt.Errorf("fetch characters: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/events?category=death&limit=20", &snap.Deaths); err != nil {
		return nil, fmt.Errorf("fetch deaths: %w", err)
	}
	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready(ctx context.Context) bool {
	var status WorldStatus
	return o.fetchJSON(ctx, "/api/v1/status", &status) == nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
