package gardener

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// FeedChange is the subset of a change record the watcher reads.
type FeedChange struct {
	Kind       string `json:"kind"`
	EntityID   uint64 `json:"entity_id"`
	DataAction string `json:"data_action"`
	Data       struct {
		Alive *bool `json:"alive"`
	} `json:"data"`
}

// Watcher tails the change feed between cycles so the steward sees churn
// that snapshots miss, such as characters spawned and killed in between.
type Watcher struct {
	URL string // websocket URL of /api/v1/feed

	mu     sync.Mutex
	counts map[string]int64
	deaths int64
	log    logrus.FieldLogger
}

// NewWatcher derives the feed URL from the API base URL.
func NewWatcher(baseURL string, log logrus.FieldLogger) *Watcher {
	u := strings.Replace(baseURL, "http", "ws", 1) + "/api/v1/feed"
	return &Watcher{
		URL:    u,
		counts: make(map[string]int64),
		log:    log.WithField("component", "watcher"),
	}
}

// Run reads the feed until ctx is cancelled, redialing after failures.
func (w *Watcher) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := w.tail(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.WithError(err).WithField("retry_in", backoff).Warn("feed connection lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (w *Watcher) tail(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.log.WithField("url", w.URL).Info("watching change feed")
	for {
		var c FeedChange
		if err := conn.ReadJSON(&c); err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		w.observe(c)
	}
}

func (w *Watcher) observe(c FeedChange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[c.Kind]++
	// The dead stay in the store; a death is an update with alive false.
	if c.Kind == "character" && c.Data.Alive != nil && !*c.Data.Alive {
		w.deaths++
	}
}

// Counts returns and resets the per-kind change counts and the number of
// character deaths seen since the last call.
func (w *Watcher) Counts() (byKind map[string]int64, died int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	byKind, died = w.counts, w.deaths
	w.counts = make(map[string]int64)
	w.deaths = 0
	return byKind, died
}

// Total sums a Counts result.
func Total(byKind map[string]int64) int64 {
	var n int64
	for _, v := range byKind {
		n += v
	}
	return n
}
