// Package sync fans user-state changes out to that user's open websocket
// connections.
package sync

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/metrics"
)

const writeWait = 2 * time.Second

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]struct{}
	log  *logrus.Logger
}

type Stats struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		subs: make(map[string]map[*websocket.Conn]struct{}),
		log:  log,
	}
}

func (h *Hub) Add(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	conns, ok := h.subs[userID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.subs[userID] = conns
	}
	conns[ws] = struct{}{}
	h.mu.Unlock()
	metrics.FeedConnections.Inc()
}

func (h *Hub) Remove(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	removed := h.dropLocked(userID, ws)
	h.mu.Unlock()
	if removed {
		metrics.FeedConnections.Dec()
	}
	_ = ws.Close()
}

func (h *Hub) dropLocked(userID string, ws *websocket.Conn) bool {
	conns, ok := h.subs[userID]
	if !ok {
		return false
	}
	if _, ok := conns[ws]; !ok {
		return false
	}
	delete(conns, ws)
	if len(conns) == 0 {
		delete(h.subs, userID)
	}
	return true
}

// Publish writes ev to the user's connections. A connection that fails a
// write is closed and dropped.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("type", ev.Type).Error("encode feed event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.subs[ev.UserID] {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.WithError(err).WithField("user_id", ev.UserID).Debug("dropping feed connection")
			if h.dropLocked(ev.UserID, ws) {
				metrics.FeedConnections.Dec()
			}
			_ = ws.Close()
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Users: len(h.subs)}
	for _, conns := range h.subs {
		s.Connections += len(conns)
	}
	return s
}
