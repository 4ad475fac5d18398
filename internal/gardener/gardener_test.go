package gardener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tilesim/internal/logger"
)

func snapshot(alive int, byFaction map[string]int, deaths int) *WorldSnapshot {
	return &WorldSnapshot{Status: WorldStatus{Alive: alive, ByFaction: byFaction, Deaths: deaths}}
}

func TestTriageLevels(t *testing.T) {
	th := DefaultThresholds()

	h := Triage(snapshot(6, map[string]int{"Human": 3, "Demon": 3}, 0), nil, th)
	assert.Equal(t, Healthy, h.CrisisLevel)
	assert.Empty(t, h.Endangered)

	h = Triage(snapshot(6, map[string]int{"Human": 5, "Demon": 1}, 0), nil, th)
	assert.Equal(t, Warning, h.CrisisLevel)
	assert.Equal(t, []string{"Demon"}, h.Endangered)
	assert.Equal(t, "Human", h.Dominant)

	h = Triage(snapshot(4, map[string]int{"Human": 4}, 9), &CycleRecord{Deaths: 5}, th)
	assert.Equal(t, Critical, h.CrisisLevel)
	assert.Equal(t, []string{"Demon"}, h.Extinct)
	assert.Equal(t, 4, h.DeathsDelta)

	h = Triage(snapshot(10, map[string]int{"Human": 9, "Demon": 2, "Ruin": 0}, 0), nil, th)
	assert.Equal(t, Watch, h.CrisisLevel)
}

func TestTriageOrdersEndangeredByScarcity(t *testing.T) {
	th := DefaultThresholds()
	th.MinPopulation = 5
	h := Triage(snapshot(4, map[string]int{"Human": 3, "Demon": 1}, 0), nil, th)
	assert.Equal(t, []string{"Demon", "Human"}, h.Endangered)
}

func TestTriageIgnoresCounterReset(t *testing.T) {
	h := Triage(snapshot(4, map[string]int{"Human": 2, "Demon": 2}, 1), &CycleRecord{Deaths: 30}, DefaultThresholds())
	assert.Zero(t, h.DeathsDelta)
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	p := DefaultPolicy()
	mem := &CycleMemory{}

	d := Decide(Triage(snapshot(4, map[string]int{"Human": 2, "Demon": 2}, 0), nil, th), mem, th, p)
	assert.Equal(t, "none", d.Action)
	assert.Nil(t, d.Intervention)

	d = Decide(Triage(snapshot(3, map[string]int{"Human": 3}, 0), nil, th), mem, th, p)
	require.Equal(t, "spawn", d.Action)
	assert.Equal(t, "Demon", d.Intervention.Faction)
	assert.Equal(t, 3, d.Intervention.Count, "extinct faction gets one extra")

	th.MinPopulation = 10
	d = Decide(Triage(snapshot(3, map[string]int{"Human": 3}, 0), nil, th), mem, th, p)
	assert.Equal(t, p.MaxSpawn, d.Intervention.Count)
}

func TestDecideCooldown(t *testing.T) {
	th := DefaultThresholds()
	p := DefaultPolicy()
	mem := &CycleMemory{}
	mem.Record(CycleRecord{Action: "spawn", Faction: "Demon", Spawned: 2})

	h := Triage(snapshot(4, map[string]int{"Human": 1, "Demon": 0}, 0), nil, th)
	d := Decide(h, mem, th, p)
	require.NotNil(t, d.Intervention)
	assert.Equal(t, "Human", d.Intervention.Faction)

	mem.Record(CycleRecord{Action: "spawn", Faction: "Human", Spawned: 1})
	d = Decide(h, mem, th, p)
	assert.Equal(t, "none", d.Action)
	assert.Contains(t, d.Rationale, "reinforced recently")

	mem.Record(CycleRecord{Action: "none"})
	mem.Record(CycleRecord{Action: "none"})
	d = Decide(h, mem, th, p)
	assert.Equal(t, "spawn", d.Action)
}

func TestMemoryRingAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := LoadMemory(path, logger.Discard())
	assert.Nil(t, mem.Last())

	for i := 0; i < maxRecords+3; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: "none"})
	}
	assert.Len(t, mem.Records, maxRecords)
	require.NoError(t, mem.Save())

	loaded := LoadMemory(path, logger.Discard())
	require.Len(t, loaded.Records, maxRecords)
	assert.Equal(t, uint64(maxRecords+2), loaded.Last().Tick)
}

// fakeAPI serves the endpoints the gardener uses.
type fakeAPI struct {
	spawned   atomic.Int32
	limitAt   int32
	lastAuth  atomic.Value
	lastFact  atomic.Value
	upgrader  websocket.Upgrader
	feedLines []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tick": 42, "alive": 3, "deaths": 7,
			"by_faction": map[string]int{"Human": 3},
		})
	})
	mux.HandleFunc("GET /api/v1/characters", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "Ada", "faction": "Human", "level": 2}})
	})
	mux.HandleFunc("GET /api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"turn": 40, "description": "Bob died", "category": r.URL.Query().Get("category")}})
	})
	mux.HandleFunc("POST /api/v1/spawn", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		var body struct {
			Faction string `json:"faction"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.lastFact.Store(body.Faction)
		if f.limitAt > 0 && f.spawned.Load() >= f.limitAt {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		n := f.spawned.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 100 + n})
	})
	mux.HandleFunc("GET /api/v1/feed", func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, line := range f.feedLines {
			conn.WriteMessage(websocket.TextMessage, []byte(line))
		}
		conn.ReadMessage()
	})
	return mux
}

func TestObserve(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	o := NewObserver(srv.URL)
	assert.True(t, o.Ready(context.Background()))

	snap, err := o.Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Status.Tick)
	assert.Equal(t, 3, snap.Status.ByFaction["Human"])
	require.Len(t, snap.Characters, 1)
	assert.Equal(t, "Ada", snap.Characters[0].Name)
	require.Len(t, snap.Deaths, 1)
	assert.Equal(t, "death", snap.Deaths[0].Category)
}

func TestObserveReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	o := NewObserver(srv.URL)
	assert.False(t, o.Ready(context.Background()))
	_, err := o.Observe(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestActSpawnsCount(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	res, err := NewActor(srv.URL, "secret").Act(context.Background(), &Intervention{Type: "spawn", Faction: "Demon", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Spawned)
	assert.Equal(t, []uint64{101, 102, 103}, res.IDs)
	assert.Equal(t, "Bearer secret", api.lastAuth.Load())
	assert.Equal(t, "Demon", api.lastFact.Load())
}

func TestActStopsWhenRateLimited(t *testing.T) {
	api := &fakeAPI{limitAt: 1}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	res, err := NewActor(srv.URL, "secret").Act(context.Background(), &Intervention{Type: "spawn", Faction: "Human", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Spawned)
	assert.True(t, res.RateLimited)
}

func TestActReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := NewActor(srv.URL, "wrong").Act(context.Background(), &Intervention{Faction: "Human", Count: 2})
	assert.ErrorContains(t, err, "401")
	assert.Zero(t, res.Spawned)
}

func TestWatcherCountsFeed(t *testing.T) {
	api := &fakeAPI{feedLines: []string{
		`{"kind":"character","entity_id":1,"data_action":"update","data":{"alive":true}}`,
		`{"kind":"character","entity_id":2,"data_action":"update","data":{"alive":false}}`,
		`{"kind":"tile","entity_id":9,"data_action":"update"}`,
	}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	w := NewWatcher(srv.URL, logger.Discard())
	assert.True(t, strings.HasPrefix(w.URL, "ws://"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	var total int64
	var died int64
	byKind := map[string]int64{}
	require.Eventually(t, func() bool {
		k, d := w.Counts()
		for kind, n := range k {
			byKind[kind] += n
		}
		died += d
		total = Total(byKind)
		return total == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), byKind["character"])
	assert.Equal(t, int64(1), died)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
