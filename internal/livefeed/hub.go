// Package livefeed streams finished API calls to connected dashboards
// over WebSocket and plain TCP (one JSON object per line).
package livefeed

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mangalib/internal/monitor"
)

const writeTimeout = 2 * time.Second

type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}

	mon *monitor.Monitor
	log zerolog.Logger
	now func() time.Time
}

type Stats struct {
	TCPClients int `json:"tcpClients"`
	WSClients  int `json:"wsClients"`
}

// NewHub subscribes to mon when it is non-nil; every ended call is then
// broadcast as a call.ended event.
func NewHub(mon *monitor.Monitor, log zerolog.Logger) *Hub {
	h := &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
		mon:       mon,
		log:       log.With().Str("component", "livefeed").Logger(),
		now:       time.Now,
	}
	if mon != nil {
		mon.AddObserver(h)
	}
	return h
}

// CallEnded implements monitor.Observer.
func (h *Hub) CallEnded(e monitor.CallLogEntry) {
	h.BroadcastJSON(Event{Type: TypeCallEnded, Call: &e, At: h.now().UTC()})
}

// Cleared tells dashboards the log was wiped.
func (h *Hub) Cleared() {
	h.BroadcastJSON(Event{Type: TypeCleared, At: h.now().UTC()})
}

// Add sends the welcome line and registers conn. Both happen under the
// hub lock so a client never sees an event before its welcome.
func (h *Hub) Add(conn net.Conn) {
	msg := h.welcome("tcp")
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(msg); err != nil {
		_ = conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	msg := h.welcome("websocket")
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		_ = ws.Close()
		return
	}
	h.wsClients[ws] = struct{}{}
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON writes v to every client, dropping the ones that fail.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err == nil {
			err = w.Flush()
		}
		if err != nil {
			_ = c.Close()
			delete(h.clients, c)
		}
	}

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{TCPClients: len(h.clients), WSClients: len(h.wsClients)}
}

// welcome carries the current monitor stats so a dashboard can render
// before the first call ends.
func (h *Hub) welcome(transport string) []byte {
	ev := Event{Type: TypeWelcome, Transport: transport, At: h.now().UTC()}
	if h.mon != nil {
		s := h.mon.Stats()
		ev.Stats = &s
	}
	b, _ := json.Marshal(ev)
	return append(b, '\n')
}
