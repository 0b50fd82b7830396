package operator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// sendBuffer is the per-client outbound queue. A client that falls this far
// behind is disconnected rather than allowed to stall the broadcast path.
const sendBuffer = 32

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// client is one connected operator console.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub tracks connected operator clients and fans events out to them.
// Safe for concurrent use.
type hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	// onDelta is called with +1 or -1 as clients connect and disconnect.
	onDelta func(int)
}

func newHub(log *slog.Logger, onDelta func(int)) *hub {
	return &hub{
		log:     log,
		clients: make(map[*client]struct{}),
		onDelta: onDelta,
	}
}

// add registers a connection and starts its write pump. The returned client
// must be released with remove when the read loop ends.
func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.notifyDelta(1)

	go c.writePump()
	return c
}

// remove unregisters a client and closes its queue, ending the write pump.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	close(c.send)
	h.notifyDelta(-1)
}

// broadcast sends an event to every connected client. Clients whose queue is
// full are disconnected; the next read on their connection fails and the
// handler cleans them up.
func (h *hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encoding event", "type", ev.Type, "error", err)
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.trySend(data) {
			h.log.Warn("operator client too slow, disconnecting")
			c.conn.Close(websocket.StatusPolicyViolation, "send queue overflow")
			h.remove(c)
		}
	}
}

// sendTo queues an event for a single client.
func (h *hub) sendTo(c *client, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encoding event", "type", ev.Type, "error", err)
		return
	}
	if !c.trySend(data) {
		c.conn.Close(websocket.StatusPolicyViolation, "send queue overflow")
		h.remove(c)
	}
}

func (h *hub) notifyDelta(n int) {
	if h.onDelta != nil {
		h.onDelta(n)
	}
}

// trySend queues data without blocking. A send on a closed queue (client
// already removed) is swallowed; the connection is gone either way.
func (c *client) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the connection. It exits when the
// queue is closed or a write fails.
func (c *client) writePump() {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			return
		}
	}
}
