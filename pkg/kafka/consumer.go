package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReceivedMessage wraps a Kafka message
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   MessageHeaders
}

// Consumer reads bounded batches of messages from Kafka
type Consumer struct {
	reader Reader
	logger ectologger.Logger
	config ConsumerConfig
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig, logger ectologger.Logger) (*Consumer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	reader := kafka.NewReader(config.readerConfig())

	return NewConsumerWithReader(config, reader, logger), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(config ConsumerConfig, reader Reader, logger ectologger.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		logger: logger,
		config: config,
	}
}

// ReadBatch fetches messages until MaxMessages have been read or no message arrives within
// IdleTimeout. Offsets of returned messages are committed before returning.
func (c *Consumer) ReadBatch(ctx context.Context) ([]*ReceivedMessage, error) {
	var (
		fetched  []kafka.Message
		received []*ReceivedMessage
	)

	for c.config.MaxMessages <= 0 || len(received) < c.config.MaxMessages {
		fetchCtx := ctx
		cancel := func() {}
		if c.config.IdleTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, c.config.IdleTimeout)
		}
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break // idle
			}
			return nil, fmt.Errorf("failed to fetch message: %w", err)
		}

		fetched = append(fetched, msg)
		received = append(received, toReceived(msg))
	}

	if len(fetched) > 0 {
		if err := c.reader.CommitMessages(ctx, fetched...); err != nil {
			return nil, fmt.Errorf("failed to commit %d messages: %w", len(fetched), err)
		}
	}

	c.logger.WithContext(ctx).Infof("Read %d messages from topic %s", len(received), c.config.Topic)
	return received, nil
}

func toReceived(msg kafka.Message) *ReceivedMessage {
	kafkaHeaders := make([]Header, len(msg.Headers))
	for i, h := range msg.Headers {
		kafkaHeaders[i] = Header{Key: h.Key, Value: h.Value}
	}

	return &ReceivedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   ExtractHeaders(kafkaHeaders),
	}
}

func (c *Consumer) Topic() string {
	return c.config.Topic
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	c.logger.Info("Kafka consumer stopped")
	return nil
}
