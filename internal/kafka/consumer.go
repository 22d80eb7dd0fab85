package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/team-balancer/internal/config"
	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/metrics"
)

// RosterHandler reacts to a single roster change
type RosterHandler interface {
	HandleRosterEvent(ctx context.Context, event domain.RosterEvent) error
}

// Consumer consumes roster events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       RosterHandler
	metrics       *metrics.Metrics
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler RosterHandler, m *metrics.Metrics, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		metrics:       m,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// handleBatch processes events in arrival order. A failing event is logged and
// does not block the rest of the batch.
func (c *Consumer) handleBatch(events []domain.RosterEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, event := range events {
		err := c.handler.HandleRosterEvent(ctx, event)
		c.metrics.RosterEvent(string(event.Type), err)
		if err != nil {
			failed++
			c.logger.Error("failed to handle roster event",
				"type", event.Type,
				"match_id", event.MatchID,
				"user_id", event.UserID,
				"error", err,
			)
		}
	}
	c.logger.Debug("processed roster batch", "batch_size", len(events), "failed", failed)
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim batches roster events from a partition and hands them over
// when the batch is full or the batch timeout fires.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.RosterEvent, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		h.consumer.handleBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			flush()
			return nil

		case <-batchTimer.C:
			flush()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}

			event, err := DecodeRosterEvent(message.Value)
			if err != nil {
				h.consumer.logger.Warn("dropping roster message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, event)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				flush()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// DecodeRosterEvent parses and validates a roster message
func DecodeRosterEvent(data []byte) (domain.RosterEvent, error) {
	var event domain.RosterEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.RosterEvent{}, domain.Validation("malformed roster event: %v", err)
	}
	if err := domain.ValidateID("match", event.MatchID); err != nil {
		return domain.RosterEvent{}, err
	}

	switch event.Type {
	case domain.RosterEventJoined, domain.RosterEventLeft:
		if event.UserID < 0 {
			return domain.RosterEvent{}, domain.Validation("user id must not be negative, got %d", event.UserID)
		}
	case domain.RosterEventCancelled, domain.RosterEventStartingSoon:
	default:
		return domain.RosterEvent{}, domain.Validation("unknown roster event type %q", event.Type)
	}

	if event.ConfirmedCount != nil && *event.ConfirmedCount < 0 {
		return domain.RosterEvent{}, domain.Validation("confirmed count must not be negative, got %d", *event.ConfirmedCount)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event, nil
}
