// Package ws pushes realtime discussion events to connected clients.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/academvault/discussions/internal/metrics"
	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannel = "academvault:discussions:events"

// Hub manages all WebSocket connections on this instance. With a Redis
// client, events fan out through Pub/Sub so every instance delivers to its
// own connections; without one, delivery is local only.
type Hub struct {
	// userID -> set of connections (one user can have several tabs/devices)
	clients map[uuid.UUID]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	rdb *redis.Client
	log *zap.Logger

	// called when a user's first connection opens or last one closes
	onStatusChange func(userID uuid.UUID, online bool)
}

// NewHub creates a new WebSocket Hub. rdb may be nil.
func NewHub(rdb *redis.Client, log *zap.Logger, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		rdb:            rdb,
		log:            log,
		onStatusChange: onStatusChange,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		h.mu.Lock()
		client.close()
		h.mu.Unlock()
	}
}

// Unregister queues a client for removal. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[client.UserID] = conns
	}
	conns[client] = struct{}{}
	total := len(conns)
	h.mu.Unlock()

	metrics.WebSocketConnections.Inc()
	h.log.Debug("client connected", zap.String("user_id", client.UserID.String()), zap.Int("connections", total))

	if !ok {
		h.presenceChanged(client.UserID, true)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, client)
	client.close()
	offline := len(conns) == 0
	if offline {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	metrics.WebSocketConnections.Dec()
	h.log.Debug("client disconnected", zap.String("user_id", client.UserID.String()))

	if offline {
		h.presenceChanged(client.UserID, false)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for c := range conns {
			c.close()
			metrics.WebSocketConnections.Dec()
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) presenceChanged(userID uuid.UUID, online bool) {
	if h.onStatusChange != nil {
		go h.onStatusChange(userID, online)
	}
}

// PublishToUsers delivers event to every connection of the listed users,
// on whichever instance they are connected
func (h *Hub) PublishToUsers(userIDs []uuid.UUID, event model.WSEvent) {
	if len(userIDs) == 0 {
		return
	}
	h.dispatch(envelope{TargetUserIDs: userIDs, Event: event})
}

// IsUserOnline checks if a user has any active connections on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// envelope wraps an event with its recipients
type envelope struct {
	TargetUserIDs []uuid.UUID   `json:"target_user_ids"`
	Event         model.WSEvent `json:"event"`
}

func (h *Hub) dispatch(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("marshal ws event", zap.String("type", env.Event.Type), zap.Error(err))
		return
	}
	if h.rdb == nil {
		h.deliverLocal(data)
		return
	}
	if err := h.rdb.Publish(context.Background(), redisChannel, data).Err(); err != nil {
		h.log.Warn("publish to redis failed, delivering locally", zap.Error(err))
		h.deliverLocal(data)
	}
}

// deliverLocal sends an encoded envelope to the matching local connections
func (h *Hub) deliverLocal(data []byte) {
	var env struct {
		TargetUserIDs []uuid.UUID     `json:"target_user_ids"`
		Event         json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		h.log.Warn("malformed ws envelope", zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	send := func(conns map[*Client]struct{}) {
		for c := range conns {
			select {
			case c.send <- env.Event:
			default:
				slow = append(slow, c)
			}
		}
	}
	for _, id := range env.TargetUserIDs {
		send(h.clients[id])
	}
	h.mu.RUnlock()

	// a client whose buffer is full is dropped; it can catch up by polling
	for _, c := range slow {
		h.log.Warn("dropping slow ws client", zap.String("user_id", c.UserID.String()))
		go h.Unregister(c)
	}
}

// subscribeRedis delivers events published by any instance to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	h.log.Info("redis pub/sub subscriber started", zap.String("channel", redisChannel))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliverLocal([]byte(msg.Payload))
		}
	}
}
