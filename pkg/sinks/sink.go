// Package sinks writes a processed batch to export targets.
package sinks

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	TargetCSV       = "csv"
	TargetJSON      = "json"
	TargetYAML      = "yaml"
	TargetKafka     = "kafka"
	TargetSQL       = "sql"
	TargetMongo     = "mongo"
	TargetHashStore = "hashstore"
)

// Targets lists every sink name in the order they are documented.
var Targets = []string{TargetCSV, TargetJSON, TargetYAML, TargetKafka, TargetSQL, TargetMongo, TargetHashStore}

type Sink interface {
	Name() string
	Export(ctx context.Context, export Export) error
}

type Metadata struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	BatchLabel  string    `json:"batch_label" yaml:"batch_label"`
	RecordCount int       `json:"record_count" yaml:"record_count"`
	GeneratedAt time.Time `json:"export_date" yaml:"export_date"`
}

// Entry is the merged identity of one exported record.
type Entry struct {
	// ID is the identity as plain text.
	ID string `json:"id"`
	// Key keeps the identity's type, so 1 and "1" stay apart. Stores key records on it.
	Key  string                  `json:"key"`
	Hash fingerprint.ContentHash `json:"hash"`
}

// Export is everything a sink needs from one pipeline run.
type Export struct {
	Metadata Metadata
	// Columns is the sorted union of raw flat keys.
	Columns []string
	Mapping fields.FieldMapping
	Pages   [][]models.FlatRecord
	// Entries runs parallel to Pages.
	Entries [][]Entry
}

// Records returns every page concatenated.
func (e Export) Records() []models.FlatRecord {
	var out []models.FlatRecord
	for _, page := range e.Pages {
		out = append(out, page...)
	}
	return out
}

// Entry returns the identity of the record at index on page, or a zero Entry when there is
// none.
func (e Export) Entry(page, index int) Entry {
	if page < 0 || page >= len(e.Entries) || index < 0 || index >= len(e.Entries[page]) {
		return Entry{}
	}
	return e.Entries[page][index]
}

// DisplayRecord renames a flat record's keys with the export's field mapping, keeping column
// order.
func (e Export) DisplayRecord(record models.FlatRecord) models.FlatRecord {
	return e.Mapping.Apply(record)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName names the file written for one page. Single page exports drop the page suffix.
func (e Export) FileName(page int, ext string) string {
	label := unsafeFileChars.ReplaceAllString(e.Metadata.BatchLabel, "_")
	if label == "" {
		label = "records"
	}
	base := fmt.Sprintf("%s_%s", label, e.Metadata.GeneratedAt.UTC().Format("20060102T150405Z"))
	if len(e.Pages) > 1 {
		base = fmt.Sprintf("%s_p%03d", base, page+1)
	}
	return base + "." + ext
}
