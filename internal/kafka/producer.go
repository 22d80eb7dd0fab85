package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/team-balancer/internal/domain"
)

// Publisher writes roster events to a topic, keyed by match so every event of
// a match lands on the same partition in order.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig returns the sarama settings used for roster events
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// NewPublisher wraps a sync producer
func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish sends one roster event
func (p *Publisher) Publish(event domain.RosterEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding roster event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.MatchID, 10)),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sending roster event: %w", err)
	}
	return nil
}

// Close closes the underlying producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
