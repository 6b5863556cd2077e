package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader configures the WebSocket handshake.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Auth is handled at the HTTP layer.
	},
}

// Hub bridges the event bus to WebSocket clients. It subscribes to all topics
// and fans every event out to connected monitors.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	done    chan struct{}
}

// NewHub creates a hub and starts its fan-out pump on the given bus.
func NewHub(bus *Bus) *Hub {
	h := &Hub{
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
	go h.pump(bus.SubscribeAll(512))
	return h
}

// pump forwards bus events to all connected clients until the bus closes.
func (h *Hub) pump(ch <-chan Event) {
	defer close(h.done)
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[events] marshal error: %v", err)
			continue
		}
		h.broadcast(data)
	}
}

// broadcast writes data to every client, dropping clients whose writes fail.
func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[events] write to client error: %v", err)
			h.remove(conn)
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Done returns a channel closed when the fan-out pump exits.
func (h *Hub) Done() <-chan struct{} { return h.done }

// HandleWebSocket upgrades an HTTP connection and registers it with the hub.
// The client connection is read-only from the client's perspective; incoming
// frames are drained and discarded so pings and close frames are processed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
				) {
					log.Printf("[events] ws read error: %v", err)
				}
				return
			}
		}
	}()
}
