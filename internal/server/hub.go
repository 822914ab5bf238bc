// Package server coordinates client registration, history replay, message
// broadcast, and connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chaos-ds/pychat/internal/store"
)

// storeTimeout bounds every message store call made from the hub loop so a
// stalled database cannot block broadcasting indefinitely.
const storeTimeout = 5 * time.Second

// Hub manages all client connections and drives the broadcast pipeline.
// A single goroutine services registration, unregistration, and inbound
// frames, which preserves each sender's frame order end to end.
type Hub struct {
	registry *Registry
	store    store.Store
	logger   *slog.Logger

	inbound    chan inboundFrame
	register   chan *Client
	unregister chan *Client

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub backed by the given message store. The returned Hub
// owns the process-wide connection registry; call Run in a goroutine to
// start servicing connections.
func NewHub(st store.Store, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		store:      st,
		logger:     logger.With("component", "hub"),
		inbound:    make(chan inboundFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run services the hub's event loop until Shutdown is called. It must run
// in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("Received nil client registration, skipping")
				continue
			}

			h.registry.Register(client)
			h.logger.Info("Client registered",
				"client_id", client.id, "addr", client.addr, "total", h.registry.Len())

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

			// Replay before returning to the select: no broadcast can be
			// serviced until the full history sits in the client's queue.
			h.replayHistory(client)

		case client := <-h.unregister:
			if h.registry.Unregister(client) {
				h.logger.Info("Client unregistered",
					"client_id", client.id, "addr", client.addr, "total", h.registry.Len())
			}

		case frame := <-h.inbound:
			h.handleInbound(frame.origin, frame.msg)
		}
	}
}

// handleInbound persists an inbound message and fans it out to every client
// except the origin. Persistence failures are logged and delivery proceeds
// anyway; a peer whose queue is unreachable is skipped, never removed, since
// removal belongs to that peer's own session loop.
func (h *Hub) handleInbound(origin *Client, msg *store.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := h.store.Append(ctx, msg); err != nil {
		h.logger.Error("Failed to persist message, broadcasting anyway",
			"sender", msg.Sender, "error", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize message", "sender", msg.Sender, "error", err)
		return
	}

	for _, peer := range h.registry.Snapshot() {
		if peer == origin {
			continue
		}
		if !h.registry.TrySend(peer, payload) {
			h.logger.Warn("Dropping message for unreachable client",
				"client_id", peer.id, "message_id", msg.ID)
		}
	}
}

// replayHistory streams every stored message to a newly registered client in
// ascending id order. A failed lookup or enqueue is logged and skipped so
// the session still proceeds to live traffic.
func (h *Hub) replayHistory(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	messages, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.Error("History replay failed, continuing with live traffic",
			"client_id", client.id, "error", err)
		return
	}

	for i := range messages {
		payload, err := json.Marshal(&messages[i])
		if err != nil {
			h.logger.Error("Failed to serialize history message",
				"message_id", messages[i].ID, "error", err)
			continue
		}
		if !h.registry.TrySend(client, payload) {
			h.logger.Warn("Dropping history message for client",
				"client_id", client.id, "message_id", messages[i].ID)
		}
	}

	h.logger.Debug("History replayed", "client_id", client.id, "count", len(messages))
}

// closeAllClients closes every live connection during shutdown.
func (h *Hub) closeAllClients() {
	clients := h.registry.Snapshot()
	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn("Error closing client connection",
				"client_id", client.id, "error", err)
		}
	}
	h.logger.Info("Closed all client connections", "count", len(clients))
}

// Shutdown stops the hub, closes all client connections, and waits for the
// event loop and pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Shutting down hub")
	h.cancel()

	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("Hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
