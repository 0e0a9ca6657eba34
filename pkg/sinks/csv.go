package sinks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

// CSVSink writes one CSV file per page. The header row uses display names; cells are the
// textual form of each value and empty for null or missing fields.
type CSVSink struct {
	fileTarget
	logger ectologger.Logger
}

func NewCSVSink(dir string, logger ectologger.Logger) (*CSVSink, error) {
	target, err := newFileTarget(dir)
	if err != nil {
		return nil, err
	}
	return &CSVSink{fileTarget: target, logger: logger}, nil
}

func (s *CSVSink) Name() string {
	return TargetCSV
}

func (s *CSVSink) Export(ctx context.Context, export Export) error {
	headers := export.Mapping.Headers(export.Columns)

	for i, page := range export.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := EncodeCSV(headers, export.Columns, page)
		if err != nil {
			return err
		}

		path, err := s.write(export.FileName(i, "csv"), data)
		if err != nil {
			return err
		}
		s.logger.WithContext(ctx).Debugf("Wrote %d rows to %s", len(page), path)
	}
	return nil
}

// EncodeCSV renders records under the given header row, reading cells by column.
func EncodeCSV(headers, columns []string, records []models.FlatRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			v, _ := record.Get(column)
			row[i] = v.Text()
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
