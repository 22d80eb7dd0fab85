package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/team-balancer/internal/domain"
)

// Message types
const (
	MessageTypeAlertCreated   = "alert_created"
	MessageTypeTeamsGenerated = "teams_generated"
	MessageTypeTeamsDeleted   = "teams_deleted"
	MessageTypeSubscribe      = "subscribe"
	MessageTypeUnsubscribe    = "unsubscribe"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeError          = "error"
)

// Message is a frame pushed to clients
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// TeamsUpdate is the payload of team broadcasts
type TeamsUpdate struct {
	MatchID int64         `json:"match_id"`
	Teams   []domain.Team `json:"teams,omitempty"`
}

// MatchTopic names the feed of a match
func MatchTopic(matchID int64) string {
	return fmt.Sprintf("match:%d", matchID)
}

// UserTopic names the feed of a user
func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Hub tracks connected clients and their topic subscriptions
type Hub struct {
	// Subscribed clients by topic
	topics map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *envelope
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// envelope carries a message and the topics it is addressed to. No topics
// means every connected client.
type envelope struct {
	message *Message
	topics  []string
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *envelope, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for topic, clients := range h.topics {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.topics, topic)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.topics[req.topic]; !ok {
				h.topics[req.topic] = make(map[*Client]bool)
			}
			h.topics[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.topics[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.topics, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// deliver sends a message once to every client subscribed to any of its topics
func (h *Hub) deliver(env *envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(env.message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if len(env.topics) > 0 {
		targets = make(map[*Client]bool)
		for _, topic := range env.topics {
			for client := range h.topics[topic] {
				targets[client] = true
			}
		}
	}

	for client := range targets {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(env *envelope) {
	select {
	case h.broadcast <- env:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", env.message.Type)
	}
}

// PublishAlert pushes a new alert to the feeds of its match and user. Alerts
// without either reach every client.
func (h *Hub) PublishAlert(alert domain.Alert) {
	var topics []string
	if alert.MatchID != nil {
		topics = append(topics, MatchTopic(*alert.MatchID))
	}
	if alert.UserID != nil {
		topics = append(topics, UserTopic(*alert.UserID))
	}

	h.enqueue(&envelope{
		message: &Message{
			Type:      MessageTypeAlertCreated,
			Data:      alert,
			Timestamp: time.Now(),
		},
		topics: topics,
	})
}

// BroadcastTeams pushes freshly generated teams to the match feed
func (h *Hub) BroadcastTeams(matchID int64, teams []domain.Team) {
	topic := MatchTopic(matchID)
	h.enqueue(&envelope{
		message: &Message{
			Type:      MessageTypeTeamsGenerated,
			Topic:     topic,
			Data:      TeamsUpdate{MatchID: matchID, Teams: teams},
			Timestamp: time.Now(),
		},
		topics: []string{topic},
	})
}

// BroadcastTeamsDeleted tells the match feed its teams were removed
func (h *Hub) BroadcastTeamsDeleted(matchID int64) {
	topic := MatchTopic(matchID)
	h.enqueue(&envelope{
		message: &Message{
			Type:      MessageTypeTeamsDeleted,
			Topic:     topic,
			Data:      TeamsUpdate{MatchID: matchID},
			Timestamp: time.Now(),
		},
		topics: []string{topic},
	})
}

// Register adds a client to the hub. It is a no-op once the hub is stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub. It is a no-op once the hub is
// stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.ctx.Done():
	}
}

// SubscriberCount returns the number of subscribers of a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TotalConnections returns the number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
