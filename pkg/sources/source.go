// Package sources fetches raw survey records and hands them to the pipeline as a Batch.
package sources

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const stage = "source"

const (
	TypeJSONFile = "jsonfile"
	TypeHTTP     = "http"
	TypeKafka    = "kafka"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Batch, error)
}

// Batch is one fetch worth of records. Warnings raised while reading it travel with it so the
// run that processes the batch can report them.
type Batch struct {
	Label    string
	Records  []models.Record
	Warnings []diagnostics.Warning
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// Options shared by the document based sources.
type Options struct {
	// Label names the batch. The source name is used when empty.
	Label string
	// RecordsPath is a JMESPath expression locating the record array inside each document.
	RecordsPath string
	// RequiredFields are checked on every record. Missing fields only warn.
	RequiredFields []string
}

func (o Options) label(fallback string) string {
	if o.Label != "" {
		return o.Label
	}
	return fallback
}

// collect turns extracted values into records, rejecting anything that is not a mapping.
func collect(values []models.Value, origin string, options Options, collector diagnostics.Collector) []models.Record {
	records := make([]models.Record, 0, len(values))
	for i, v := range values {
		record, err := models.RecordFromValue(v)
		if err != nil {
			collector.Warn(diagnostics.Warning{
				Code:    diagnostics.CodeInvalidRecordStructure,
				Stage:   stage,
				Message: fmt.Sprintf("%s item %d is a %s, not an object; skipped", origin, i, v.Kind()),
			})
			continue
		}
		ValidateRecord(record, collector, options.RequiredFields...)
		records = append(records, record)
	}
	return records
}
