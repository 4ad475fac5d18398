package gardener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InterventionResult summarizes the spawn requests of one intervention.
type InterventionResult struct {
	Spawned     int      `json:"spawned"`
	IDs         []uint64 `json:"ids"`
	RateLimited bool     `json:"rate_limited"`
}

// Actor executes interventions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act posts one spawn request per character. It stops early, without an
// error, when the server rate-limits it.
func (a *Actor) Act(ctx context.Context, iv *Intervention) (*InterventionResult, error) {
	body, err := json.Marshal(map[string]string{"faction": iv.Faction})
	if err != nil {
		return nil, fmt.Errorf("marshal intervention: %w", err)
	}

	result := &InterventionResult{}
	for i := 0; i < iv.Count; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/spawn", bytes.NewReader(body))
		if err != nil {
			return result, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.AdminKey)

		resp, err := a.HTTPClient.Do(req)
		if err != nil {
			return result, fmt.Errorf("POST spawn: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return result, fmt.Errorf("read response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusCreated:
		case http.StatusTooManyRequests:
			result.RateLimited = true
			return result, nil
		default:
			return result, fmt.Errorf("spawn failed (%d): %s", resp.StatusCode, string(respBody))
		}

		var created struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err != nil {
			return result, fmt.Errorf("decode response: %w", err)
		}
		result.Spawned++
		result.IDs = append(result.IDs, created.ID)
	}
	return result, nil
}
