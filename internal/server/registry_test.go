package server

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	return NewClient(nil, hub, "test-addr", ClientConfig{
		MaxMessageSize:  4096,
		RateLimitBurst:  100,
		RateLimitRefill: time.Second,
	})
}

func newIdleHub(t *testing.T, st *memStore) *Hub {
	t.Helper()
	if st == nil {
		st = &memStore{}
	}
	return NewHub(st, discardLogger())
}

func TestRegistrySnapshot(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	b := newTestClient(t, hub)
	r.Register(a)
	r.Register(b)

	require.Equal(t, 2, r.Len())
	assert.ElementsMatch(t, []*Client{a, b}, r.Snapshot())
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	r.Register(a)

	snap := r.Snapshot()
	r.Unregister(a)

	require.Len(t, snap, 1, "snapshot must not change after unregister")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryUnregisterTwice(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	b := newTestClient(t, hub)
	r.Register(a)
	r.Register(b)

	assert.True(t, r.Unregister(a))
	// Second removal from a competing exit path: no panic, no effect on b.
	assert.False(t, r.Unregister(a))
	assert.Equal(t, 1, r.Len())
	assert.ElementsMatch(t, []*Client{b}, r.Snapshot())
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	assert.False(t, r.Unregister(newTestClient(t, hub)))
}

func TestRegistryTrySend(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	r.Register(a)

	require.True(t, r.TrySend(a, []byte("hello")))
	assert.Equal(t, []byte("hello"), <-a.send)
}

func TestRegistryTrySendAfterUnregister(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	r.Register(a)
	r.Unregister(a)

	assert.False(t, r.TrySend(a, []byte("hello")))
}

func TestRegistryTrySendFullBuffer(t *testing.T) {
	hub := newIdleHub(t, nil)
	r := NewRegistry()

	a := newTestClient(t, hub)
	r.Register(a)

	for i := 0; i < sendQueueSize; i++ {
		require.True(t, r.TrySend(a, []byte("fill")))
	}

	assert.False(t, r.TrySend(a, []byte("overflow")), "full buffer must not block")
	assert.Equal(t, 1, r.Len(), "a failed send must not remove the client")
}
