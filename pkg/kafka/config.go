package kafka

import (
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig bounds one read of raw records from the source topic.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// FromLatest skips the backlog when the group has no committed offset.
	FromLatest bool

	// a read ends after MaxMessages (0 is unbounded) or IdleTimeout without a message
	MaxMessages int
	IdleTimeout time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:     []string{"localhost:9092"},
		Topic:       "fern-raw-records",
		GroupID:     "fern",
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		MaxMessages: 10000,
		IdleTimeout: 5 * time.Second,
	}
}

func (c ConsumerConfig) validate() error {
	switch {
	case len(c.Brokers) == 0:
		return errors.New("kafka consumer: no brokers configured")
	case c.Topic == "":
		return errors.New("kafka consumer: topic is required")
	case c.GroupID == "":
		return errors.New("kafka consumer: group id is required")
	}
	return nil
}

func (c ConsumerConfig) readerConfig() kafka.ReaderConfig {
	offset := kafka.FirstOffset
	if c.FromLatest {
		offset = kafka.LastOffset
	}
	return kafka.ReaderConfig{
		Brokers:     c.Brokers,
		Topic:       c.Topic,
		GroupID:     c.GroupID,
		MinBytes:    c.MinBytes,
		MaxBytes:    c.MaxBytes,
		MaxWait:     c.MaxWait,
		StartOffset: offset,
	}
}

// ProducerConfig controls how normalized records are published.
type ProducerConfig struct {
	Brokers []string
	Topic   string

	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks is 0 (none), 1 (leader) or -1 (all in-sync replicas).
	RequiredAcks int
	MaxAttempts  int
	WriteTimeout time.Duration
	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression string
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "fern-records",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}

func (c ProducerConfig) validate() error {
	switch {
	case len(c.Brokers) == 0:
		return errors.New("kafka producer: no brokers configured")
	case c.Topic == "":
		return errors.New("kafka producer: topic is required")
	}
	return nil
}

// writer keys partitions by message key so every version of a record lands together.
func (c ProducerConfig) writer() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              c.BatchSize,
		BatchTimeout:           c.BatchTimeout,
		MaxAttempts:            c.MaxAttempts,
		WriteTimeout:           c.WriteTimeout,
		Compression:            codecs[c.Compression],
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
}

var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}
