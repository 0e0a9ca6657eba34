package sinks

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, messages []*kafka.RecordMessage) error
	Topic() string
}

// KafkaSink publishes one message per flat record, keyed by record identity, one write per
// page.
type KafkaSink struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewKafkaSink(publisher Publisher, logger ectologger.Logger) *KafkaSink {
	return &KafkaSink{publisher: publisher, logger: logger}
}

func (s *KafkaSink) Name() string {
	return TargetKafka
}

func (s *KafkaSink) Export(ctx context.Context, export Export) error {
	ctx, span := tracing.StartSpan(ctx, "sinks.KafkaSink.Export")
	defer span.End()

	traceID := tracing.GetTraceID(ctx)
	spanID := tracing.GetSpanID(ctx)

	published := 0
	for i, page := range export.Pages {
		messages := make([]*kafka.RecordMessage, 0, len(page))
		for j, record := range page {
			entry := export.Entry(i, j)
			messages = append(messages, &kafka.RecordMessage{
				RunID:       export.Metadata.RunID,
				BatchLabel:  export.Metadata.BatchLabel,
				RecordID:    entry.ID,
				ContentHash: string(entry.Hash),
				ExportedAt:  export.Metadata.GeneratedAt,
				Data:        record,
				TraceID:     traceID,
				SpanID:      spanID,
			})
		}

		if err := s.publisher.PublishBatch(ctx, messages); err != nil {
			return fmt.Errorf("page %d of %d: %w", i+1, len(export.Pages), err)
		}
		published += len(messages)
	}

	s.logger.WithContext(ctx).Debugf("Published %d records to %s", published, s.publisher.Topic())
	return nil
}
