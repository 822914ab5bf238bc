package server

import (
	"strings"

	"github.com/chaos-ds/pychat/internal/store"
)

// inboundFrame pairs a parsed message with its origin connection so the
// broadcast loop can exclude the sender from delivery.
type inboundFrame struct {
	origin *Client
	msg    *store.Message
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
