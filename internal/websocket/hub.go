package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-mediagen-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Message is the frame written to websocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterEnvelope struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

type Hub struct {
	// UserID -> connections (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis fan-out across instances, nil when running alone.
	rdb *redis.Client

	// Frames we published ourselves are skipped on the way back from Redis.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Connected reports how many connections a user currently holds on this instance.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send delivers an event to every connection of the user, locally and through Redis.
func (h *Hub) Send(userID uuid.UUID, eventType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"error": err.Error(), "type": eventType})
		return
	}

	h.deliver(userID, frame)
	h.publish(userID.String(), frame)
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"error": err.Error(), "type": eventType})
		return
	}

	h.deliverAll(frame)
	h.publish("*", frame)
}

func (h *Hub) deliver(userID uuid.UUID, frame []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	h.push(clients, frame)
}

func (h *Hub) deliverAll(frame []byte) {
	h.mu.RLock()
	var clients []*Client
	for _, cs := range h.clients {
		clients = append(clients, cs...)
	}
	h.mu.RUnlock()

	h.push(clients, frame)
}

// push never blocks; clients with a full buffer are dropped.
func (h *Hub) push(clients []*Client, frame []byte) {
	for _, client := range clients {
		select {
		case client.Send <- frame:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID})
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

func (h *Hub) publish(target string, frame []byte) {
	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterEnvelope{
		Origin:       h.instanceID,
		TargetUserID: target,
		Message:      frame,
	})
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Failed to publish cluster event", map[string]interface{}{"error": err.Error()})
	}
}

// subscribeToRedis relays frames published by other instances to local clients.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var envelope clusterEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if envelope.Origin == h.instanceID {
			continue
		}

		if envelope.TargetUserID == "*" {
			h.deliverAll(envelope.Message)
			continue
		}

		uid, err := uuid.Parse(envelope.TargetUserID)
		if err != nil {
			continue
		}
		h.deliver(uid, envelope.Message)
	}
}
