package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// ClientMessage is a subscription request from a client. Exactly one of
// MatchID and UserID selects the topic.
type ClientMessage struct {
	Type    string `json:"type"`
	MatchID int64  `json:"match_id,omitempty"`
	UserID  int64  `json:"user_id,omitempty"`
}

func (m *ClientMessage) topic() string {
	switch {
	case m.MatchID > 0:
		return MatchTopic(m.MatchID)
	case m.UserID > 0:
		return UserTopic(m.UserID)
	}
	return ""
}

// NewClient creates a new websocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// readPump reads subscription requests until the connection closes
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("invalid message format", "error", err)
			c.reply(MessageTypeError, "", map[string]string{"error": "invalid message format"})
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		topic := msg.topic()
		if topic == "" {
			c.reply(MessageTypeError, "", map[string]string{"error": "match_id or user_id required for subscribe"})
			return
		}
		c.hub.Subscribe(c, topic)
		c.reply("subscribed", topic, map[string]string{"status": "ok"})

	case MessageTypeUnsubscribe:
		if topic := msg.topic(); topic != "" {
			c.hub.Unsubscribe(c, topic)
			c.reply("unsubscribed", topic, map[string]string{"status": "ok"})
		}

	case MessageTypePing:
		c.reply(MessageTypePong, "", nil)

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// writePump forwards hub messages to the connection and keeps it alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a control message for this client only
func (c *Client) reply(msgType, topic string, data interface{}) {
	msg := Message{
		Type:      msgType,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now(),
	}
	payload, _ := json.Marshal(msg)
	select {
	case c.send <- payload:
	default:
	}
}

// ServeWs upgrades the request and attaches the connection to the hub
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id)
}
