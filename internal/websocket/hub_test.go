package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team-balancer/internal/domain"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func subscribe(t *testing.T, hub *Hub, conn *websocket.Conn, req ClientMessage, topic string) {
	t.Helper()
	req.Type = MessageTypeSubscribe
	require.NoError(t, conn.WriteJSON(req))
	ack := readMessage(t, conn)
	require.Equal(t, "subscribed", ack.Type)
	require.Equal(t, topic, ack.Topic)
	require.Eventually(t, func() bool { return hub.SubscriberCount(topic) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_AlertReachesMatchSubscriber(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	subscribe(t, hub, conn, ClientMessage{MatchID: 7}, "match:7")

	matchID := int64(7)
	hub.PublishAlert(domain.Alert{ID: 3, Type: domain.AlertTypeLowCapacity, Message: "3 slots left", MatchID: &matchID})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeAlertCreated, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "LOW_CAPACITY", data["type"])
}

func TestHub_AlertReachesUserOnlyOnce(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	subscribe(t, hub, conn, ClientMessage{UserID: 4}, "user:4")
	subscribe(t, hub, conn, ClientMessage{MatchID: 9}, "match:9")

	matchID, userID := int64(9), int64(4)
	hub.PublishAlert(domain.Alert{ID: 1, Type: domain.AlertTypeReservationConfirmed, Message: "in", MatchID: &matchID, UserID: &userID})
	hub.BroadcastTeamsDeleted(9)

	first := readMessage(t, conn)
	assert.Equal(t, MessageTypeAlertCreated, first.Type)
	second := readMessage(t, conn)
	assert.Equal(t, MessageTypeTeamsDeleted, second.Type, "the alert must not be delivered twice")
}

func TestHub_TeamsGoOnlyToTheirMatch(t *testing.T) {
	hub, srv := startHub(t)
	watcher := dial(t, srv)
	other := dial(t, srv)
	subscribe(t, hub, watcher, ClientMessage{MatchID: 1}, "match:1")
	subscribe(t, hub, other, ClientMessage{MatchID: 2}, "match:2")

	hub.BroadcastTeams(1, []domain.Team{{ID: 10, MatchID: 1, Label: "Team A"}})

	msg := readMessage(t, watcher)
	assert.Equal(t, MessageTypeTeamsGenerated, msg.Type)
	assert.Equal(t, "match:1", msg.Topic)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "subscriber of another match receives nothing")
}

func TestHub_SubscribeRequiresTopic(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypePing}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	subscribe(t, hub, conn, ClientMessage{MatchID: 5}, "match:5")
	require.Equal(t, 1, hub.TotalConnections())

	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.TotalConnections() == 0 && hub.SubscriberCount("match:5") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CallsReturnAfterStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	go hub.Run()
	hub.Stop()

	client := NewClient(hub, nil, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Register(client)
		for i := 0; i < 100; i++ {
			hub.Subscribe(client, MatchTopic(1))
		}
		hub.Unregister(client)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after Stop")
	}
}
