package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team-balancer/internal/config"
	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/metrics"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.RosterEvent
	failOn int64
}

func (h *recordingHandler) HandleRosterEvent(_ context.Context, event domain.RosterEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if event.MatchID == h.failOn {
		return errors.New("match service unavailable")
	}
	return nil
}

func (h *recordingHandler) seen() []domain.RosterEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.RosterEvent(nil), h.events...)
}

// fakeSession implements sarama.ConsumerGroupSession
type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

// fakeClaim implements sarama.ConsumerGroupClaim
type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "match-roster-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newTestConsumer(handler RosterHandler, batchSize int) *Consumer {
	return &Consumer{
		config: &config.KafkaConfig{
			Topic:        "match-roster-events",
			BatchSize:    batchSize,
			BatchTimeout: time.Hour,
		},
		handler: handler,
		metrics: metrics.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDecodeRosterEvent(t *testing.T) {
	event, err := DecodeRosterEvent([]byte(`{"type":"participant_joined","match_id":4,"user_id":9}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RosterEventJoined, event.Type)
	assert.Equal(t, int64(4), event.MatchID)
	assert.Equal(t, int64(9), event.UserID)
	assert.False(t, event.Timestamp.IsZero())

	event, err = DecodeRosterEvent([]byte(`{"type":"match_cancelled","match_id":4,"timestamp":"2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 2026, event.Timestamp.Year())

	event, err = DecodeRosterEvent([]byte(`{"type":"participant_left","match_id":4,"user_id":2,"confirmed_count":7}`))
	require.NoError(t, err)
	require.NotNil(t, event.ConfirmedCount)
	assert.Equal(t, 7, *event.ConfirmedCount)

	for _, raw := range []string{
		`{"type":"participant_joined","match_id":4,"user_id":2,"confirmed_count":-1}`,
		`not json`,
		`{"type":"participant_joined","match_id":0}`,
		`{"type":"participant_kicked","match_id":3}`,
		`{"type":"participant_left","match_id":3,"user_id":-1}`,
	} {
		_, err := DecodeRosterEvent([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrValidation, raw)
	}
}

func TestConsumeClaim_BatchesAndSkipsBadMessages(t *testing.T) {
	handler := &recordingHandler{failOn: 2}
	consumer := newTestConsumer(handler, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 8)}

	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"type":"participant_joined","match_id":1,"user_id":5}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`garbage`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"type":"participant_left","match_id":2,"user_id":6}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 4, Value: []byte(`{"type":"match_starting_soon","match_id":3}`)}
	close(claim.messages)

	h := &consumerGroupHandler{consumer: consumer, ready: make(chan bool)}
	require.NoError(t, h.ConsumeClaim(session, claim))

	seen := handler.seen()
	require.Len(t, seen, 3, "malformed message is dropped, failing event does not stop the batch")
	assert.Equal(t, int64(1), seen[0].MatchID)
	assert.Equal(t, int64(2), seen[1].MatchID)
	assert.Equal(t, int64(3), seen[2].MatchID)
	assert.Equal(t, []int64{1, 2, 3, 4}, session.marked)
}

func TestConsumeClaim_FlushesOnSessionEnd(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler, 100)

	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 7, Value: []byte(`{"type":"participant_left","match_id":8,"user_id":1}`)}

	done := make(chan error, 1)
	h := &consumerGroupHandler{consumer: consumer, ready: make(chan bool)}
	go func() { done <- h.ConsumeClaim(session, claim) }()

	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return len(session.marked) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, handler.seen(), "partial batch waits for the timer or the session end")

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, handler.seen(), 1)
}

func TestPublisher_KeysByMatch(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event, err := DecodeRosterEvent(val)
		if err != nil {
			return err
		}
		if event.MatchID != 12 || event.Type != domain.RosterEventJoined {
			return errors.New("unexpected event")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisher(producer, "match-roster-events")
	event := domain.RosterEvent{Type: domain.RosterEventJoined, MatchID: 12, UserID: 3, Timestamp: time.Now()}

	require.NoError(t, pub.Publish(event))
	assert.ErrorIs(t, pub.Publish(event), sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}
