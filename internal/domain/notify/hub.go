// Package notify streams pipeline outcomes to connected admin consoles.
// Events published on one instance reach consoles on every instance through Redis.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const eventsChannel = "admin:console:events"

// Envelope is the frame written to consoles
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type relayMessage struct {
	Envelope
	SenderInstanceID string `json:"sender_instance_id"`
}

// Client is one console connection
type Client struct {
	AdminID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub fans events out to console connections
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	redis      *redis.Client
	instanceID string

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewHub creates a hub. A nil redis client keeps delivery local to this instance.
func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		redis:      redisClient,
		instanceID: uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run manages registrations and relays Redis events until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	if h.redis != nil {
		pubsub := h.redis.Subscribe(ctx, eventsChannel)
		defer pubsub.Close()
		go h.relay(ctx, pubsub.Channel())
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			log.Debug().Str("admin_id", c.AdminID.String()).Msg("Console connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Send)
			}
			h.mu.Unlock()
			log.Debug().Str("admin_id", c.AdminID.String()).Msg("Console disconnected")
		}
	}
}

func (h *Hub) relay(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			if m.SenderInstanceID == h.instanceID {
				continue
			}
			data, err := json.Marshal(m.Envelope)
			if err != nil {
				continue
			}
			h.deliver(data)
		}
	}
}

// Register adds a connection. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends payload to every console on every instance
func (h *Hub) Broadcast(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{Type: kind, Data: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.deliver(data)

	if h.redis == nil {
		return nil
	}
	msg, err := json.Marshal(relayMessage{Envelope: env, SenderInstanceID: h.instanceID})
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, eventsChannel, msg).Err()
}

func (h *Hub) deliver(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.Send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			log.Warn().Str("admin_id", c.AdminID.String()).Msg("Console send buffer full")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
	}
}

// ConnectionCount returns the number of local console connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns delivered and dropped frame counts
func (h *Hub) Stats() (sent, dropped int64) {
	return h.sent.Load(), h.dropped.Load()
}
