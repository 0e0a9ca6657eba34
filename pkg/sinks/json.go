package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

type documentMetadata struct {
	Metadata
	Page      int `json:"page" yaml:"page"`
	PageCount int `json:"page_count" yaml:"page_count"`
}

// Document is the envelope written by the json and yaml sinks.
type Document struct {
	Metadata documentMetadata    `json:"metadata"`
	Records  []models.FlatRecord `json:"records"`
}

func newDocument(export Export, page int) Document {
	records := make([]models.FlatRecord, 0, len(export.Pages[page]))
	for _, record := range export.Pages[page] {
		records = append(records, export.DisplayRecord(record))
	}
	return Document{
		Metadata: documentMetadata{
			Metadata:  export.Metadata,
			Page:      page + 1,
			PageCount: len(export.Pages),
		},
		Records: records,
	}
}

// JSONSink writes one JSON document per page.
type JSONSink struct {
	fileTarget
	logger ectologger.Logger
}

func NewJSONSink(dir string, logger ectologger.Logger) (*JSONSink, error) {
	target, err := newFileTarget(dir)
	if err != nil {
		return nil, err
	}
	return &JSONSink{fileTarget: target, logger: logger}, nil
}

func (s *JSONSink) Name() string {
	return TargetJSON
}

func (s *JSONSink) Export(ctx context.Context, export Export) error {
	for i := range export.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.MarshalIndent(newDocument(export, i), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json export: %w", err)
		}

		path, err := s.write(export.FileName(i, "json"), append(data, '\n'))
		if err != nil {
			return err
		}
		s.logger.WithContext(ctx).Debugf("Wrote %d records to %s", len(export.Pages[i]), path)
	}
	return nil
}
