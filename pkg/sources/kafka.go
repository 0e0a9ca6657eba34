package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// BatchReader is satisfied by *kafka.Consumer.
type BatchReader interface {
	ReadBatch(ctx context.Context) ([]*kafka.ReceivedMessage, error)
	Topic() string
}

// KafkaSource drains raw record messages, one JSON object per message value.
type KafkaSource struct {
	reader  BatchReader
	options Options
	logger  ectologger.Logger
}

func NewKafkaSource(reader BatchReader, options Options, logger ectologger.Logger) *KafkaSource {
	return &KafkaSource{
		reader:  reader,
		options: options,
		logger:  logger,
	}
}

func (s *KafkaSource) Name() string {
	return TypeKafka
}

func (s *KafkaSource) Fetch(ctx context.Context) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "sources.KafkaSource.Fetch")
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordSourceFetch(s.Name(), time.Since(start).Seconds()) }()

	messages, err := s.reader.ReadBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from topic %s: %w", s.reader.Topic(), err)
	}

	collector := diagnostics.New(nil)
	values := make([]models.Value, 0, len(messages))
	for _, msg := range messages {
		v, err := models.ParseJSON(msg.Value)
		if err != nil {
			collector.Warn(diagnostics.Warning{
				Code:    diagnostics.CodeInvalidRecordStructure,
				Stage:   stage,
				Message: fmt.Sprintf("message at %s/%d offset %d is not valid JSON: %v", msg.Topic, msg.Partition, msg.Offset, err),
			})
			continue
		}
		values = append(values, v)
	}

	batch := &Batch{
		Label:   s.options.label(s.reader.Topic()),
		Records: collect(values, "topic "+s.reader.Topic(), s.options, collector),
	}
	batch.Warnings = collector.Warnings()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":    s.reader.Topic(),
		"messages": len(messages),
		"records":  len(batch.Records),
	}).Infof("Consumed %d records from %s", len(batch.Records), s.reader.Topic())

	return batch, nil
}
