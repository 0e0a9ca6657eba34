package kafka

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages to Kafka
type Producer struct {
	writer Writer
	logger ectologger.Logger
	config ProducerConfig
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return NewProducerWithWriter(config, config.writer(), logger), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(config ProducerConfig, writer Writer, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		config: config,
	}
}

func (p *Producer) Topic() string {
	return p.config.Topic
}

// PublishBatch writes the messages in one call, keyed by record id. A message that cannot be
// encoded fails the whole batch before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, messages []*RecordMessage) error {
	if len(messages) == 0 {
		return nil
	}

	out := make([]kafka.Message, len(messages))
	for i, msg := range messages {
		encoded, err := msg.toKafka()
		if err != nil {
			metrics.RecordKafkaPublish(p.config.Topic, "error", len(messages))
			return fmt.Errorf("record %s: %w", msg.RecordID, err)
		}
		out[i] = encoded
	}

	status := "success"
	err := p.writer.WriteMessages(ctx, out...)
	if err != nil {
		status = "error"
		err = fmt.Errorf("failed to publish %d records to %s: %w", len(out), p.config.Topic, err)
	}
	metrics.RecordKafkaPublish(p.config.Topic, status, len(out))
	return err
}

// Close closes the producer
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
