package ws

import (
	"encoding/json"
	"log"
	"sync"

	"mealswipe/internal/model"
)

const sendBufferSize = 256

// Connection represents a WebSocket connection bound to one session and one
// principal for its whole life
type Connection struct {
	SessionID string
	Principal model.Principal
	Send      chan []byte

	mu     sync.Mutex
	closed bool
}

// NewConnection creates a connection with a buffered send queue
func NewConnection(sessionID string, p model.Principal) *Connection {
	return &Connection{
		SessionID: sessionID,
		Principal: p,
		Send:      make(chan []byte, sendBufferSize),
	}
}

// trySend queues data without blocking. It reports false when the
// connection is closed or its buffer is full.
func (c *Connection) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// bucket holds the live connections of one session. A dead bucket has been
// unlinked from the hub and must not take new connections.
type bucket struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}
	dead  bool
}

// Hub manages WebSocket connections for sessions
type Hub struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		buckets: make(map[string]*bucket),
	}
}

func (h *Hub) bucketFor(sessionID string) *bucket {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buckets[sessionID]
	if !ok {
		b = &bucket{conns: make(map[*Connection]struct{})}
		h.buckets[sessionID] = b
	}
	return b
}

func (h *Hub) lookup(sessionID string) *bucket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buckets[sessionID]
}

// Connect registers conn under its session
func (h *Hub) Connect(conn *Connection) {
	for {
		b := h.bucketFor(conn.SessionID)
		b.mu.Lock()
		if b.dead {
			// Emptied and unlinked while we waited; retry on a fresh bucket
			b.mu.Unlock()
			continue
		}
		b.conns[conn] = struct{}{}
		n := len(b.conns)
		b.mu.Unlock()

		log.Printf("User %d connected to session %s (%d connected)", conn.Principal.UserID, conn.SessionID, n)
		return
	}
}

// Disconnect removes conn, closes its send queue and reports whether the
// session has no connections left
func (h *Hub) Disconnect(conn *Connection) bool {
	b := h.lookup(conn.SessionID)
	if b == nil {
		conn.close()
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.conns[conn]; ok {
		delete(b.conns, conn)
		log.Printf("User %d disconnected from session %s", conn.Principal.UserID, conn.SessionID)
	}
	conn.close()

	empty := len(b.conns) == 0
	if empty && !b.dead {
		b.dead = true
		h.mu.Lock()
		if h.buckets[conn.SessionID] == b {
			delete(h.buckets, conn.SessionID)
		}
		h.mu.Unlock()
	}
	return empty
}

// Unicast sends a packet to a single connection
func (h *Hub) Unicast(conn *Connection, action model.Action, payload interface{}) {
	data, err := encode(action, payload)
	if err != nil {
		log.Printf("Failed to encode %s packet: %v", action, err)
		return
	}
	if !conn.trySend(data) {
		log.Printf("Dropped %s packet for user %d in session %s", action, conn.Principal.UserID, conn.SessionID)
	}
}

// SessionBroadcast sends a packet to every connection of a session
// (implements service.Broadcaster)
func (h *Hub) SessionBroadcast(sessionID string, action model.Action, payload interface{}) {
	b := h.lookup(sessionID)
	if b == nil {
		return
	}
	data, err := encode(action, payload)
	if err != nil {
		log.Printf("Failed to encode %s packet: %v", action, err)
		return
	}
	b.fanOut(action, data)
}

// GlobalBroadcast sends a packet to every connection on the hub
// (implements service.Broadcaster)
func (h *Hub) GlobalBroadcast(action model.Action, payload interface{}) {
	data, err := encode(action, payload)
	if err != nil {
		log.Printf("Failed to encode %s packet: %v", action, err)
		return
	}
	for _, b := range h.snapshot() {
		b.fanOut(action, data)
	}
}

// ConnectionCount returns the live connections of one session, or of the
// whole hub when sessionID is empty
func (h *Hub) ConnectionCount(sessionID string) int {
	if sessionID != "" {
		b := h.lookup(sessionID)
		if b == nil {
			return 0
		}
		return b.size()
	}

	total := 0
	for _, b := range h.snapshot() {
		total += b.size()
	}
	return total
}

// SessionCount returns the number of sessions with live connections
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buckets)
}

func (h *Hub) snapshot() []*bucket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*bucket, 0, len(h.buckets))
	for _, b := range h.buckets {
		out = append(out, b)
	}
	return out
}

func (b *bucket) fanOut(action model.Action, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		if !conn.trySend(data) {
			log.Printf("Dropped %s packet for user %d in session %s", action, conn.Principal.UserID, conn.SessionID)
		}
	}
}

func (b *bucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func encode(action model.Action, payload interface{}) ([]byte, error) {
	return json.Marshal(&model.Packet{Action: action, Payload: payload})
}
