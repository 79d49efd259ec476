package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bonfire-agent/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	// RedisChannel carries envelopes for peers connected to another instance.
	RedisChannel = "agent_envelopes"
	// presenceTTL outlives one ping period so a live peer never expires.
	presenceTTL = 2 * pongWait
)

// PresenceKey marks an address as connected to some instance.
func PresenceKey(address string) string {
	return "agent:presence:" + address
}

type Hub struct {
	// Connected peers: address -> connections
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Cross-instance delivery, optional
	rdb *redis.Client

	logger logger.ILogger
}

type redisEnvelope struct {
	Target  string          `json:"target"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Address] = append(h.clients[client.Address], client)
			h.mu.Unlock()
			h.markPresent(ctx, client.Address)
			h.logger.Info("Hub", "Peer connected", map[string]interface{}{"address": client.Address})

		case client := <-h.unregister:
			h.remove(ctx, client)
		}
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.Address]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.Address] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.Address]) == 0 {
		delete(h.clients, client.Address)
		if h.rdb != nil {
			h.rdb.Del(ctx, PresenceKey(client.Address))
		}
		h.logger.Info("Hub", "Peer disconnected", map[string]interface{}{"address": client.Address})
	}
}

func (h *Hub) markPresent(ctx context.Context, address string) {
	if h.rdb == nil {
		return
	}
	if err := h.rdb.Set(ctx, PresenceKey(address), "1", presenceTTL).Err(); err != nil {
		h.logger.Warn("Hub", "Failed to mark presence", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
	}
}

// Deliver sends data to a connected peer. A peer held by another instance is
// reached through redis. ok is false when the peer is connected nowhere.
func (h *Hub) Deliver(ctx context.Context, address string, data []byte) (bool, error) {
	if h.sendLocal(address, data) {
		return true, nil
	}
	if h.rdb == nil {
		return false, nil
	}

	n, err := h.rdb.Exists(ctx, PresenceKey(address)).Result()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	payload, err := json.Marshal(redisEnvelope{Target: address, Message: data})
	if err != nil {
		return false, err
	}
	if err := h.rdb.Publish(ctx, RedisChannel, payload).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// sendLocal holds the read lock for every send; remove closes a client's
// channel only under the write lock.
func (h *Hub) sendLocal(address string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for _, client := range h.clients[address] {
		select {
		case client.Send <- data:
			delivered = true
		default:
			h.logger.Warn("Hub", "Peer send buffer full, dropping connection", map[string]interface{}{"address": address})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
	return delivered
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			h.sendLocal(payload.Target, payload.Message)
		}
	}
}

func (h *Hub) refreshPresence(address string) {
	if h.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.rdb.Expire(ctx, PresenceKey(address), presenceTTL)
}
