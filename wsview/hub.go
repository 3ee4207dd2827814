// Package wsview pushes observer-bus notifications to browser-based
// ticker views over a websocket, standing in for the Qt ticker widget §9
// places out of scope — only the transport is wired here, no rendering.
// Grounded on niceyeti-tabular/tabular/server/fastview's client: a
// per-connection ping/pong liveness check plus a single reader and a
// single writer goroutine, simplified to plain channels and goroutines in
// place of that file's errgroup/generic-channel helpers (neither of which
// this module depends on elsewhere).
package wsview

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stskit-go/dispocore/bus"
)

// Message is one notification pushed to every connected client.
type Message struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub upgrades incoming HTTP requests to websockets and fans out Message
// values to every connected client. One Hub serves one set of bus topics.
type Hub struct {
	upgrader websocket.Upgrader
	log      func(msg string)

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty Hub. log receives per-connection diagnostics;
// nil discards them.
func NewHub(log func(msg string)) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{},
		log:      log,
		clients:  make(map[*wsClient]struct{}),
	}
}

// Subscribe registers the Hub on b for every named topic: each Publish or
// Flush-triggered delivery on any of them is broadcast to every connected
// client as a Message. Callbacks run synchronously on whichever goroutine
// calls Publish/Flush (normally the orchestrator's own goroutine), so
// broadcast must never block on a slow client — it doesn't, since each
// client's send channel is buffered and a full buffer drops the client.
func (h *Hub) Subscribe(b *bus.Bus, topics ...string) {
	for _, topic := range topics {
		topic := topic
		b.Subscribe(topic, func(e bus.Event) {
			h.broadcast(Message{Topic: e.Topic, Payload: e.Payload})
		})
	}
}

// ServeHTTP upgrades the request to a websocket and registers a client
// that receives every subsequent broadcast until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan Message, 16)}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logf("wsview: dropping message for slow client, buffer full")
		}
	}
}

func (h *Hub) logf(format string) {
	if h.log != nil {
		h.log(format)
	}
}

// ClientCount reports how many clients are currently connected, for
// health checks and tests.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
