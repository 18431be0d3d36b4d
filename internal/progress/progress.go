// Package progress broadcasts live discovery events (round boundaries,
// confirmed candidates) to at most one attached dashboard client, mirroring
// the original CLI's single-line progress counter but over a WebSocket so a
// browser can watch a run in flight.
package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arjun-x/arjun-go/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventType names the kind of update a Hub broadcasts.
type EventType string

const (
	EventRoundStart EventType = "round_start"
	EventRoundDone  EventType = "round_done"
	EventCandidate  EventType = "candidate"
	EventTarget     EventType = "target_done"
)

// Event is one broadcastable update. Data's shape depends on Type.
type Event struct {
	Type EventType   `json:"type"`
	URL  string      `json:"url"`
	Data interface{} `json:"data"`
}

// RoundSnapshot is the Data payload for EventRoundStart/EventRoundDone.
type RoundSnapshot struct {
	Round       int `json:"round"`
	PendingSize int `json:"pending_size"`
	Survivors   int `json:"survivors,omitempty"`
}

// Hub manages one active dashboard connection at a time, exactly as the
// teacher's single-operator session hub does: a second connection simply
// displaces the first.
type Hub struct {
	client     *client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds a Hub; call Run in its own goroutine before serving
// connections.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drives the hub's event loop until ctx-equivalent shutdown (the
// process exiting); callers invoke it once as `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.client != nil {
				close(h.client.send)
			}
			h.client = c
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.client == c {
				close(h.client.send)
				h.client = nil
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if h.client != nil {
				select {
				case h.client.send <- msg:
				default:
					log.Printf("progress: dashboard client too slow, disconnecting")
					close(h.client.send)
					h.client = nil
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Emit marshals and broadcasts ev; a no-op when no dashboard is attached.
func (h *Hub) Emit(ev Event) {
	h.mu.RLock()
	attached := h.client != nil
	h.mu.RUnlock()
	if !attached {
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Printf("progress: failed to marshal event: %v", err)
		return
	}
	h.broadcast <- raw
}

// RoundStart/RoundDone/Candidate/TargetDone are the convenience emitters
// internal/engine calls at each lifecycle boundary.

func (h *Hub) RoundStart(url string, round, pending int) {
	h.Emit(Event{Type: EventRoundStart, URL: url, Data: RoundSnapshot{Round: round, PendingSize: pending}})
}

func (h *Hub) RoundDone(url string, round, pending, survivors int) {
	h.Emit(Event{Type: EventRoundDone, URL: url, Data: RoundSnapshot{Round: round, PendingSize: pending, Survivors: survivors}})
}

func (h *Hub) Candidate(url string, c model.Candidate) {
	h.Emit(Event{Type: EventCandidate, URL: url, Data: c})
}

func (h *Hub) TargetDone(url string, result model.Result) {
	h.Emit(Event{Type: EventTarget, URL: url, Data: result})
}

// ServeWS upgrades r to a WebSocket and registers the connection as the
// hub's (sole) dashboard client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("progress: upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("progress: readPump error: %v", err)
			}
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
