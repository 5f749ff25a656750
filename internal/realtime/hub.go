package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/guild-portal/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes vote events for other instances.
type RedisPublisher interface {
	PublishVoteEvent(ctx context.Context, event string, payload []byte) error
}

// RedisSubscriber subscribes to the vote events channel.
type RedisSubscriber interface {
	SubscribeVoteEvents(handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub keeps the set of connected live-feed clients and fans vote lifecycle
// events out to them. With Redis configured, events go through pub/sub so
// every instance delivers them exactly once.
type Hub struct {
	clients     map[string]*Client
	unsub       func()
	subscribing bool
	mu          sync.RWMutex
	logger      *zap.Logger
	redis       RedisPublisher
	redisSub    RedisSubscriber
}

// NewHub creates a hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client. The Redis subscription starts with the first
// client; the SUBSCRIBE round trip runs without holding the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	start := h.redisSub != nil && h.unsub == nil && !h.subscribing
	if start {
		h.subscribing = true
	}
	h.mu.Unlock()
	h.logger.Debug("live client joined", zap.String("client_id", c.ID), zap.Bool("signed_in", c.Signed()))

	if start {
		h.subscribe()
	}
}

func (h *Hub) subscribe() {
	cancel, err := h.redisSub.SubscribeVoteEvents(func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})

	h.mu.Lock()
	h.subscribing = false
	keep := err == nil && len(h.clients) > 0 && h.unsub == nil
	if keep {
		h.unsub = cancel
	}
	h.mu.Unlock()

	switch {
	case err != nil:
		h.logger.Warn("vote events subscribe failed", zap.Error(err))
	case !keep:
		// Every client left while subscribing.
		cancel()
	}
}

// Unregister removes a client. The Redis subscription ends with the last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	var unsub func()
	if len(h.clients) == 0 && h.unsub != nil {
		unsub, h.unsub = h.unsub, nil
	}
	h.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	h.logger.Debug("live client left", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected clients on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all local clients. Slow clients drop messages.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Error("marshal live event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// PublishVoteEvent delivers ev to live clients on every instance. When Redis
// is unavailable, or this instance has no subscription, local clients get it directly.
func (h *Hub) PublishVoteEvent(ctx context.Context, ev models.VoteEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal vote event", zap.String("event", ev.Type), zap.Error(err))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishVoteEvent(ctx, ev.Type, data)
		if err == nil && h.subscribed() {
			return
		}
		if err != nil {
			h.logger.Warn("publish vote event", zap.String("event", ev.Type), zap.Error(err))
		}
	}
	h.Broadcast(ev.Type, json.RawMessage(data))
}

func (h *Hub) subscribed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.unsub != nil
}
