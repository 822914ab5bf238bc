package server

import (
	"net/http"
	"time"
)

// NewHTTPServer creates the relay's HTTP server with production timeouts.
// The timeouts apply to plain HTTP requests only; upgraded WebSocket
// connections manage their own deadlines in the client pumps.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
