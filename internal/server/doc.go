// Package server implements the core of the chat relay: the connection
// registry, the broadcast engine, and the per-connection session loops.
//
// The implementation is organized into specialized files for the hub,
// registry, clients, origin policy, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
