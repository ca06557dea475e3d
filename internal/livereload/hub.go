package livereload

import (
	"sync"
	"sync/atomic"
)

// maxDroppedMessages is the number of consecutive messages a slow browser
// may miss before it is disconnected.
const maxDroppedMessages = 8

type client struct {
	send    chan []byte
	dropped atomic.Int32
}

// hub tracks connected browsers and fans messages out to them.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add() *client {
	c := &client{send: make(chan []byte, maxDroppedMessages)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast queues msg for every client without blocking. The send
// happens under the hub lock so remove and closeAll cannot close a channel
// mid-send.
func (h *hub) broadcast(msg []byte) (delivered int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			c.dropped.Store(0)
			delivered++
		default:
			if c.dropped.Add(1) >= maxDroppedMessages {
				delete(h.clients, c)
				close(c.send)
			}
		}
	}
	return delivered
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
