// Package server exposes the HTTP surface of the relay: the WebSocket
// upgrade endpoint and a health check, wired into a chi router.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/chaos-ds/pychat/internal/config"
)

// Handler bundles the hub with the upgrade policy for the HTTP endpoints.
type Handler struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
	client   ClientConfig
}

// NewHandler creates the HTTP handler set for the relay.
func NewHandler(hub *Hub, cfg *config.Config, logger *slog.Logger) *Handler {
	logger = logger.With("component", "http")
	origins := newOriginChecker(cfg.AllowedOrigins, logger)

	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		client: ClientConfig{
			MaxMessageSize:  cfg.MaxMessageSize,
			RateLimitBurst:  cfg.RateLimitBurst,
			RateLimitRefill: cfg.RateLimitRefill,
		},
	}
}

// Routes builds the router for all relay endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/ws", h.serveWS)

	return r
}

// serveWS upgrades the request and hands the new session to the hub, which
// registers it, replays history, and starts its pumps.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, h.client)

	select {
	case h.hub.register <- client:
	case <-h.hub.ctx.Done():
		_ = conn.Close()
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "pychat relay is running")
}
