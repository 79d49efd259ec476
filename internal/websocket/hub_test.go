package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/pkg/logger"
	"bonfire-agent/pkg/identity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connected(h *Hub, address string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[address]) > 0
}

func TestHub_DeliverToConnectedPeer(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{Hub: hub, Address: "agent1qpeer", Send: make(chan []byte, 1)}
	hub.register <- client
	require.Eventually(t, func() bool { return connected(hub, "agent1qpeer") }, time.Second, 5*time.Millisecond)

	ok, err := hub.Deliver(ctx, "agent1qpeer", []byte(`{"kind":"chat_message"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"kind":"chat_message"}`), <-client.Send)

	hub.unregister <- client
	require.Eventually(t, func() bool { return !connected(hub, "agent1qpeer") }, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHub_DeliverUnknownPeerWithoutRedis(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())

	ok, err := hub.Deliver(context.Background(), "agent1qnobody", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

// Deliveries from pipeline goroutines race with disconnects handled by Run.
// Run with -race.
func TestHub_DeliverWhilePeerDisconnects(t *testing.T) {
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	for i := 0; i < 500; i++ {
		client := &Client{Hub: hub, Address: "agent1qpeer", Send: make(chan []byte, 64)}
		hub.register <- client

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Deliver(ctx, "agent1qpeer", []byte(`{}`))
			}
		}()
		hub.unregister <- client
		wg.Wait()
	}

	assert.Eventually(t, func() bool { return !connected(hub, "agent1qpeer") }, time.Second, 5*time.Millisecond)
}

func TestPresenceKey(t *testing.T) {
	assert.Equal(t, "agent:presence:agent1qpeer", PresenceKey("agent1qpeer"))
}

func openEnvelope(t *testing.T, id *identity.Identity, nonce uuid.UUID) dto.Envelope {
	t.Helper()
	env := dto.Envelope{
		Version: dto.EnvelopeVersion,
		Sender:  id.Address(),
		Target:  "agent1qme",
		Session: nonce,
		Kind:    dto.KindMailboxOpen,
		Payload: json.RawMessage(`{}`),
	}
	id.Sign(&env)
	return env
}

func TestVerifyOpen(t *testing.T) {
	peer, err := identity.FromSeed("peer seed")
	require.NoError(t, err)
	other, err := identity.FromSeed("someone else")
	require.NoError(t, err)
	nonce := uuid.New()

	assert.NoError(t, verifyOpen(openEnvelope(t, peer, nonce), peer.Address(), nonce))

	t.Run("stale nonce", func(t *testing.T) {
		err := verifyOpen(openEnvelope(t, peer, uuid.New()), peer.Address(), nonce)
		assert.ErrorIs(t, err, errHandshake)
	})

	t.Run("claims another address", func(t *testing.T) {
		err := verifyOpen(openEnvelope(t, other, nonce), peer.Address(), nonce)
		assert.ErrorIs(t, err, errHandshake)
	})

	t.Run("unsigned", func(t *testing.T) {
		env := openEnvelope(t, peer, nonce)
		env.Signature = ""
		err := verifyOpen(env, peer.Address(), nonce)
		assert.ErrorIs(t, err, errHandshake)
		assert.ErrorIs(t, err, identity.ErrUnsigned)
	})

	t.Run("key of another agent", func(t *testing.T) {
		env := openEnvelope(t, other, nonce)
		env.Sender = peer.Address()
		err := verifyOpen(env, peer.Address(), nonce)
		assert.ErrorIs(t, err, identity.ErrSenderMismatch)
	})

	t.Run("wrong kind", func(t *testing.T) {
		env := openEnvelope(t, peer, nonce)
		env.Kind = dto.KindChatMessage
		assert.ErrorIs(t, verifyOpen(env, peer.Address(), nonce), errHandshake)
	})
}
