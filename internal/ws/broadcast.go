package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/omnilab/atsconsole/internal/messaging"
)

// ErrTooManyConnections is returned by AddClient when the maximum number of
// concurrent WebSocket connections has been reached.
var ErrTooManyConnections = errors.New("too many WebSocket connections")

type client struct {
	conn          *websocket.Conn
	send          chan []byte
	destinationID string
}

func newClient(conn *websocket.Conn, destinationID string) *client {
	c := &client{
		conn:          conn,
		send:          make(chan []byte, 64),
		destinationID: destinationID,
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Hub fans delivered messaging.MessageReceptions batches out to
// websocket-connected watchers, scoped to the destination each client
// subscribed to.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	seq      atomic.Uint64
}

// NewHub returns a Hub with no connected clients. maxConns <= 0 means no
// connection limit.
func NewHub(maxConns int) *Hub {
	return &Hub{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
	}
}

// AddClient registers conn as a watcher of destinationID.
func (h *Hub) AddClient(conn *websocket.Conn, destinationID string) (*client, error) {
	h.mu.Lock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return nil, ErrTooManyConnections
	}

	c := newClient(conn, destinationID)
	h.clients[c] = true
	h.mu.Unlock()

	return c, nil
}

// RemoveClient unregisters c and closes its send channel.
func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver fans batch out to every client watching destinationID. Its
// signature matches messaging.MessageReceptionsHandler once bound to a
// fixed destinationID by the caller, so it can be installed directly as a
// MessagingManager subscriber's transport.
func (h *Hub) Deliver(destinationID string, batch messaging.MessageReceptions) {
	wire := toWireBatch(destinationID, h.seq.Add(1), batch)
	data, err := json.Marshal(wire)
	if err != nil {
		log.Printf("ws: marshal batch for %s: %v", destinationID, err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.destinationID == destinationID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			log.Printf("ws: client too slow, disconnecting")
			h.RemoveClient(c)
		}
	}
}
