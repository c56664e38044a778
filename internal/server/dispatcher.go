package server

import (
	"log"
	"sync"
)

// Dispatcher is the global fan-out: it tracks every live connection
// and delivers directory-wide events (room-list changes, avatar
// updates) to all of them. Room-scoped fan-out is done by the room
// itself over its member set. Delivery is push-only and at-most-once;
// a client whose send buffer is full simply misses the event.
type Dispatcher struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *log.Logger
}

func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		clients: make(map[*Client]struct{}),
		log:     logger,
	}
}

func (d *Dispatcher) Add(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c] = struct{}{}
}

func (d *Dispatcher) Remove(c *Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, c)
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// StopAll stops every client's pumps, used during shutdown.
func (d *Dispatcher) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := range d.clients {
		c.stopClient()
	}
	d.clients = make(map[*Client]struct{})
}

// Broadcast delivers an event to every connection, optionally skipping
// the originator.
func (d *Dispatcher) Broadcast(ev *ServerEvent, skip *Client) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for c := range d.clients {
		if c == skip {
			continue
		}
		c.queueMessage(ev)
	}
}
