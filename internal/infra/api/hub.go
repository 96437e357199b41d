package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/model"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/domain/ports/adapter"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/metrics"
)

var (
	_ adapter.JobNotifier  = (*Hub)(nil)
	_ adapter.ChatObserver = (*Hub)(nil)
)

const (
	EventJobsActive   = "jobs.active"
	EventJobsFinished = "jobs.finished"
	EventChatTurn     = "chat.turn"
	EventChatInput    = "chat.input"
	EventChatThinking = "chat.thinking"

	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Event is the envelope pushed to every websocket client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	wake chan struct{}
	// dirty holds state event types owed to the client; guarded by Hub.mu.
	dirty map[string]bool
}

// stateEvents are delivered as the latest value and are never dropped.
var stateEvents = []string{EventJobsActive, EventChatInput}

// Hub fans job and chat updates out to connected UI clients. A client whose
// buffer is full misses transient events rather than stalling the caller;
// state events coalesce and always reach it.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	active  int
	input   bool
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "ws_hub").Logger()
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     &l,
		clients: make(map[*client]struct{}),
		input:   true,
	}
}

// ServeHTTP upgrades the connection and sends the current indicator and input
// state before any live event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := newClient(conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	for _, typ := range stateEvents {
		h.markLocked(c, typ)
	}
	h.mu.Unlock()
	metrics.SetHubClients(n)
	h.log.Debug().Int("clients", n).Msg("websocket client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:  conn,
		send:  make(chan []byte, clientBuffer),
		wake:  make(chan struct{}, 1),
		dirty: make(map[string]bool, len(stateEvents)),
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !h.write(c, msg, ok) {
				return
			}
		case <-c.wake:
			// Events queued before the state change go out first.
			for queued := true; queued; {
				select {
				case msg, ok := <-c.send:
					if !h.write(c, msg, ok) {
						return
					}
				default:
					queued = false
				}
			}
			for _, msg := range h.takeState(c) {
				if !h.write(c, msg, true) {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write sends one message; ok false means the send channel was closed. It
// reports whether the loop should continue.
func (h *Hub) write(c *client, msg []byte, ok bool) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !ok {
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg) == nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetHubClients(n)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	metrics.SetHubClients(0)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) markLocked(c *client, typ string) {
	c.dirty[typ] = true
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) statePayloadLocked(typ string) any {
	if typ == EventJobsActive {
		return map[string]int{"count": h.active}
	}
	return map[string]bool{"enabled": h.input}
}

// takeState encodes the current value of every state event owed to c and
// clears them.
func (h *Hub) takeState(c *client) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]byte
	for _, typ := range stateEvents {
		if !c.dirty[typ] {
			continue
		}
		delete(c.dirty, typ)
		b, err := json.Marshal(Event{Type: typ, Payload: h.statePayloadLocked(typ)})
		if err != nil {
			h.log.Error().Err(err).Str("type", typ).Msg("failed to encode event")
			continue
		}
		out = append(out, b)
	}
	return out
}

func (h *Hub) setState(typ string, apply func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	apply()
	for c := range h.clients {
		h.markLocked(c, typ)
	}
}

func (h *Hub) broadcast(typ string, payload any) {
	b, err := json.Marshal(Event{Type: typ, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", typ).Msg("failed to encode event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			metrics.IncNotification("hub", "dropped")
		}
	}
}

func (h *Hub) ActiveJobsChanged(n int) {
	h.setState(EventJobsActive, func() { h.active = n })
}

func (h *Hub) JobFinished(job model.Job, ev model.CompletionEvent) {
	h.broadcast(EventJobsFinished, map[string]string{
		"job_id":  job.ID,
		"kind":    string(job.Kind),
		"source":  string(ev.Source),
		"outcome": string(ev.Outcome),
	})
}

func (h *Hub) InputEnabled(enabled bool) {
	h.setState(EventChatInput, func() { h.input = enabled })
}

func (h *Hub) TurnAdded(turn model.ChatTurn) {
	h.broadcast(EventChatTurn, turn)
}

func (h *Hub) Thinking(on bool) {
	h.broadcast(EventChatThinking, map[string]bool{"on": on})
}
