package kafka

import (
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RecordMessage is one exported flat record as published to Kafka.
type RecordMessage struct {
	RunID       string            `json:"run_id"`
	BatchLabel  string            `json:"batch_label"`
	RecordID    string            `json:"record_id"`
	ContentHash string            `json:"content_hash,omitempty"`
	ExportedAt  time.Time         `json:"exported_at"`
	Data        models.FlatRecord `json:"data"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ToJSON serializes the RecordMessage to JSON bytes
func (m *RecordMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *RecordMessage) toKafka() (kafka.Message, error) {
	value, err := m.ToJSON()
	if err != nil {
		return kafka.Message{}, err
	}
	headers := m.Headers()
	pairs := headers.ToKafkaHeaders()
	kafkaHeaders := make([]kafka.Header, len(pairs))
	for i, h := range pairs {
		kafkaHeaders[i] = kafka.Header{Key: h.Key, Value: h.Value}
	}
	return kafka.Message{
		Key:     []byte(m.RecordID),
		Value:   value,
		Headers: kafkaHeaders,
		Time:    m.ExportedAt,
	}, nil
}

// Headers builds the headers published alongside the message
func (m *RecordMessage) Headers() MessageHeaders {
	headers := MessageHeaders{
		RunID:       m.RunID,
		BatchLabel:  m.BatchLabel,
		RecordID:    m.RecordID,
		ContentHash: m.ContentHash,
	}
	if m.TraceID != "" {
		headers.TraceParent = "00-" + m.TraceID + "-" + m.SpanID + "-01"
	}
	return headers
}

// MessageHeaders contains Kafka message headers for filtering without decoding the body
type MessageHeaders struct {
	RunID       string
	BatchLabel  string
	RecordID    string
	ContentHash string
	TraceParent string
}

// ToKafkaHeaders converts MessageHeaders to a slice of header key-value pairs
func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 5)

	if h.RunID != "" {
		headers = append(headers, Header{Key: "run_id", Value: []byte(h.RunID)})
	}
	if h.BatchLabel != "" {
		headers = append(headers, Header{Key: "batch_label", Value: []byte(h.BatchLabel)})
	}
	if h.RecordID != "" {
		headers = append(headers, Header{Key: "record_id", Value: []byte(h.RecordID)})
	}
	if h.ContentHash != "" {
		headers = append(headers, Header{Key: "content_hash", Value: []byte(h.ContentHash)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}

	return headers
}

// Header represents a Kafka message header
type Header struct {
	Key   string
	Value []byte
}

// ExtractHeaders extracts MessageHeaders from Kafka headers
func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "run_id":
			mh.RunID = string(h.Value)
		case "batch_label":
			mh.BatchLabel = string(h.Value)
		case "record_id":
			mh.RecordID = string(h.Value)
		case "content_hash":
			mh.ContentHash = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		}
	}
	return mh
}
