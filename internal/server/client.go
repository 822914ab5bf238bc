// Package server manages individual WebSocket clients: the per-connection
// read and write pumps, inbound frame parsing, and lifecycle cleanup.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaos-ds/pychat/internal/store"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// pump gives up on it.
	pongWait = 60 * time.Second

	// pingInterval must be shorter than pongWait.
	pingInterval = 54 * time.Second

	// sendQueueSize is the outbound frame buffer per client.
	sendQueueSize = 256
)

// ClientConfig carries the per-connection limits applied to each new client.
type ClientConfig struct {
	MaxMessageSize  int64
	RateLimitBurst  int
	RateLimitRefill time.Duration
}

// Client represents one live WebSocket session. Identity is the handle
// itself: two connections sharing a sender name are still distinct clients.
// A Client moves through connecting, active, and closed exactly once and is
// never reused after its session ends.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	id      string
	addr    string
	logger  *slog.Logger
	limiter *rateLimiter

	maxMessageSize int64

	// closed is guarded by the registry mutex.
	closed bool
}

// NewClient creates a Client for an upgraded connection. The client is inert
// until it is handed to the hub's register channel, which starts its pumps
// and replays history to it.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg ClientConfig) *Client {
	id := uuid.NewString()
	if conn != nil && cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, sendQueueSize),
		hub:            hub,
		id:             id,
		addr:           addr,
		logger:         hub.logger.With("client_id", id, "addr", addr),
		limiter:        newRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill),
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// parseInbound decodes a frame into a message. Payloads that do not parse as
// a structured message are wrapped as raw text from an unknown sender rather
// than rejected. Any client-supplied id is discarded; ids come from the
// store alone.
func parseInbound(raw []byte) *store.Message {
	var msg store.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return &store.Message{Sender: "unknown", Text: string(raw)}
	}
	msg.ID = 0
	return &msg
}

// readPump reads inbound frames until the transport closes or an
// unrecoverable read error occurs, feeding each frame into the hub. The
// deferred unregister runs exactly once no matter which exit path fires.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in read pump", "error", err)
		}
	}()

	c.setupReadDeadlines()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if c.limiter != nil && !c.limiter.allow() {
			c.logger.Warn("Rate limit exceeded, discarding message")
			continue
		}

		frame := inboundFrame{origin: c, msg: parseInbound(raw)}
		select {
		case c.hub.inbound <- frame:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError classifies a read failure; every variant ends the session but
// only the unexpected ones are worth more than a debug line.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Message exceeded maximum size", "max_message_size", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug("Client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("Connection closed", "error", err)
	default:
		c.logger.Warn("WebSocket read error", "error", err)
	}
}

// writePump drains the send queue to the connection, one complete JSON
// document per WebSocket text message, and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in write pump", "error", err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Error setting write deadline", "error", err)
				return
			}
			if !ok {
				// The registry closed the channel; tell the peer we are done.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.logger.Debug("Error writing close message", "error", err)
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Debug("Write failed", "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Error setting write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.ctx.Done():
			return
		}
	}
}
