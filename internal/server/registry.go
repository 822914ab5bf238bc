// Package server implements the connection registry that tracks all live
// WebSocket clients for the relay.
package server

import "sync"

// Registry is the set of live client connections. The hub owns the single
// process-wide instance; all structural mutation and snapshotting is
// serialized by the internal mutex, while network writes always happen
// outside of it in each client's write pump.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Client]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[*Client]struct{}),
	}
}

// Register adds a connection to the registry.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.closed = false
	r.conns[c] = struct{}{}
}

// Unregister removes a connection if present and closes its send channel.
// Calling it again for the same connection is a safe no-op, so the error
// path and the normal close path may both run it. It reports whether the
// connection was actually removed.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	_, ok := r.conns[c]
	if ok {
		delete(r.conns, c)
		c.closed = true
	}
	r.mu.Unlock()

	// Close the channel after releasing the lock; TrySend checks the closed
	// flag under the read lock before enqueueing.
	if ok {
		close(c.send)
	}
	return ok
}

// Snapshot returns a point-in-time copy of the current membership for
// iteration, so broadcasting never holds the registry lock across sends.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// TrySend enqueues a payload on the client's send channel without blocking.
// It reports false when the client has been unregistered or its buffer is
// full; the actual network write happens later in the client's write pump.
func (r *Registry) TrySend(c *Client, payload []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conns[c]; !ok || c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
