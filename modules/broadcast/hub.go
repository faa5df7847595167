package broadcast

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/example/room-relay/modules/relay"
)

// sendQueueSize is the per-connection outbound buffer. A consumer that falls
// this far behind starts losing frames instead of stalling the router.
const sendQueueSize = 256

// wsWriter is the slice of *websocket.Conn the hub needs. Tests substitute
// a fake.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client is one attached connection: its transport handle, outbound queue
// and writer-shutdown signal.
type client struct {
	conn wsWriter
	out  chan []byte
	quit chan struct{}
}

// Hub maps connection handles to outbound queues, each drained by its own
// writer goroutine. Send is a non-blocking enqueue, so a slow connection
// never blocks the caller; it only loses its own frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[relay.ConnID]*client
}

// Compile-time interface check: the hub is the router's sender.
var _ relay.Sender = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[relay.ConnID]*client)}
}

// Attach registers a connection under id and starts its writer.
func (h *Hub) Attach(id relay.ConnID, conn wsWriter) {
	c := &client{
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		quit: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	go c.writeLoop()
	log.Printf("[hub] Connection %s attached", id)
}

// Detach removes the connection and stops its writer. Frames still queued
// are discarded; the transport connection is closed by the writer.
func (h *Hub) Detach(id relay.ConnID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		close(c.quit)
		log.Printf("[hub] Connection %s detached", id)
	}
}

// Send enqueues one frame for id. Returns false when the connection is not
// attached or its queue is full; either way the caller is never blocked.
func (h *Hub) Send(id relay.ConnID, data []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// Count returns the number of attached connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll detaches every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[relay.ConnID]*client)
	h.mu.Unlock()

	for _, c := range clients {
		close(c.quit)
	}
}

// writeLoop drains the outbound queue onto the transport until the client is
// detached. Write errors end the loop; a dead connection is reaped by the
// read loop's close path, not here.
func (c *client) writeLoop() {
	defer c.conn.Close()
	for {
		select {
		case data := <-c.out:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}
