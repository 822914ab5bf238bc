package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-ds/pychat/internal/store"
)

// memStore is an in-memory Store for hub tests.
type memStore struct {
	mu       sync.Mutex
	messages []store.Message
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) Append(_ context.Context, msg *store.Message) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return msg.ID, nil
}

func (m *memStore) ListAll(context.Context) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Message(nil), m.messages...), nil
}

// failStore simulates an unavailable database.
type failStore struct{}

func (failStore) Ping(context.Context) error { return errors.New("store down") }

func (failStore) Append(context.Context, *store.Message) (int64, error) {
	return 0, errors.New("store down")
}

func (failStore) ListAll(context.Context) ([]store.Message, error) {
	return nil, errors.New("store down")
}

func decodeFrame(t *testing.T, payload []byte) store.Message {
	t.Helper()
	var msg store.Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHandleInboundSkipsOrigin(t *testing.T) {
	st := &memStore{}
	hub := NewHub(st, discardLogger())

	a := newTestClient(t, hub)
	b := newTestClient(t, hub)
	c := newTestClient(t, hub)
	hub.registry.Register(a)
	hub.registry.Register(b)
	hub.registry.Register(c)

	hub.handleInbound(a, &store.Message{Sender: "A", Text: "hi"})

	for _, peer := range []*Client{b, c} {
		select {
		case payload := <-peer.send:
			msg := decodeFrame(t, payload)
			assert.Equal(t, "A", msg.Sender)
			assert.Equal(t, "hi", msg.Text)
		default:
			t.Fatal("peer did not receive the broadcast")
		}
	}

	select {
	case <-a.send:
		t.Fatal("origin must not receive its own message")
	default:
	}
}

func TestHandleInboundStampsStoreID(t *testing.T) {
	st := &memStore{}
	hub := NewHub(st, discardLogger())

	a := newTestClient(t, hub)
	b := newTestClient(t, hub)
	hub.registry.Register(a)
	hub.registry.Register(b)

	hub.handleInbound(a, &store.Message{Sender: "A", Text: "first"})
	hub.handleInbound(a, &store.Message{Sender: "A", Text: "second"})

	first := decodeFrame(t, <-b.send)
	second := decodeFrame(t, <-b.send)
	assert.Equal(t, int64(1), first.ID, "live frames carry the store-assigned id")
	assert.Equal(t, int64(2), second.ID)
	assert.NotEmpty(t, first.Timestamp)
}

func TestHandleInboundPersistFailureStillBroadcasts(t *testing.T) {
	hub := NewHub(failStore{}, discardLogger())

	a := newTestClient(t, hub)
	b := newTestClient(t, hub)
	hub.registry.Register(a)
	hub.registry.Register(b)

	hub.handleInbound(a, &store.Message{Sender: "A", Text: "best effort"})

	select {
	case payload := <-b.send:
		msg := decodeFrame(t, payload)
		assert.Equal(t, "best effort", msg.Text)
		assert.Zero(t, msg.ID, "an unpersisted frame carries no id")
	default:
		t.Fatal("broadcast must proceed despite a persistence fault")
	}
}

func TestHandleInboundSkipsUnreachablePeer(t *testing.T) {
	st := &memStore{}
	hub := NewHub(st, discardLogger())

	a := newTestClient(t, hub)
	stuck := newTestClient(t, hub)
	healthy := newTestClient(t, hub)
	hub.registry.Register(a)
	hub.registry.Register(stuck)
	hub.registry.Register(healthy)

	for i := 0; i < sendQueueSize; i++ {
		require.True(t, hub.registry.TrySend(stuck, []byte("fill")))
	}

	hub.handleInbound(a, &store.Message{Sender: "A", Text: "hello"})

	select {
	case payload := <-healthy.send:
		assert.Equal(t, "hello", decodeFrame(t, payload).Text)
	default:
		t.Fatal("delivery failure on one peer must not affect the others")
	}

	assert.Equal(t, 3, hub.registry.Len(), "a failed delivery must not deregister the peer")
}

func TestReplayHistoryOrder(t *testing.T) {
	st := &memStore{}
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := st.Append(ctx, &store.Message{Sender: "A", Text: text})
		require.NoError(t, err)
	}

	hub := NewHub(st, discardLogger())
	c := newTestClient(t, hub)
	hub.registry.Register(c)

	hub.replayHistory(c)

	require.Len(t, c.send, 3)
	for i, want := range []string{"one", "two", "three"} {
		msg := decodeFrame(t, <-c.send)
		assert.Equal(t, int64(i+1), msg.ID)
		assert.Equal(t, want, msg.Text)
	}
}

func TestReplayHistoryStoreFailure(t *testing.T) {
	hub := NewHub(failStore{}, discardLogger())
	c := newTestClient(t, hub)
	hub.registry.Register(c)

	hub.replayHistory(c)

	assert.Empty(t, c.send, "a failed history lookup leaves the session live with no replay")
}
