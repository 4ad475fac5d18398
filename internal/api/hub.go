package api

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/talgya/tilesim/internal/store"
)

// Websocket settings.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans change records out to websocket subscribers. It implements
// store.Sink and never blocks the publisher: a subscriber whose buffer is
// full misses the record.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	buffer  int
	dropped atomic.Int64
	log     logrus.FieldLogger
}

type client struct {
	conn *websocket.Conn
	send chan store.Change
	kind store.Kind // empty subscribes to every kind
}

// NewHub creates a hub with a per-subscriber buffer of size buffer.
func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		buffer:  buffer,
		log:     log.WithField("component", "feed_hub"),
	}
}

// Publish delivers c to every interested subscriber.
func (h *Hub) Publish(c store.Change) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		if cl.kind != "" && cl.kind != c.Kind {
			continue
		}
		select {
		case cl.send <- c:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeHTTP upgrades the request and streams change records as JSON. The
// optional kind query parameter restricts the stream to one partition.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	cl := &client{
		conn: conn,
		send: make(chan store.Change, h.buffer),
		kind: store.Kind(r.URL.Query().Get("kind")),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"remote": r.RemoteAddr, "kind": cl.kind}).Info("feed subscriber connected")

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// readPump discards client messages and keeps the read deadline alive.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		if err := cl.conn.Close(); err != nil {
			h.log.WithError(err).Debug("close websocket")
		}
		h.log.Info("feed subscriber disconnected")
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	if err := cl.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.log.WithError(err).Warn("failed to set read deadline")
	}
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}

// writePump sends queued records and pings.
func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			if err := cl.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.log.WithError(err).Debug("failed to set write deadline")
			}
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("write json message failed")
				return
			}
		case <-ticker.C:
			if err := cl.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.log.WithError(err).Debug("failed to set ping write deadline")
			}
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
