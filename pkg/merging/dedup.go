// Package merging collapses records that describe the same entity into one, keeping the most
// recently updated version.
package merging

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

const (
	DefaultIdentityField = models.FieldID
	stage                = "merge"
)

type Deduplicator struct {
	identityField string
}

func NewDeduplicator(identityField string) (*Deduplicator, error) {
	if identityField == "" {
		return nil, errors.InvalidConfiguration("identity field must not be empty").AddStage(stage)
	}
	return &Deduplicator{identityField: identityField}, nil
}

func (d *Deduplicator) IdentityField() string {
	return d.identityField
}

// Merge keeps one record per identity. The winner has the greatest parsed updated_at; on a
// tie the record later in input order wins, and a record whose updated_at is missing or
// unparsable ranks below any parsed one. Records without an identity are dropped with a
// warning. Output follows the order in which each identity was first seen.
func Merge(records []models.Record, identityField string, collector diagnostics.Collector) ([]models.Record, error) {
	d, err := NewDeduplicator(identityField)
	if err != nil {
		return nil, err
	}
	return d.Merge(records, collector), nil
}

// MergeSnapshots merges several fetches of the same source, oldest first.
func (d *Deduplicator) MergeSnapshots(collector diagnostics.Collector, snapshots ...[]models.Record) []models.Record {
	var all []models.Record
	for _, snapshot := range snapshots {
		all = append(all, snapshot...)
	}
	return d.Merge(all, collector)
}

type candidate struct {
	record    models.Record
	updatedAt time.Time
	parsed    bool
}

// wins reports whether c, seen later in the input, replaces the current winner.
func (c candidate) wins(current candidate) bool {
	switch {
	case c.parsed && current.parsed:
		return !c.updatedAt.Before(current.updatedAt)
	case c.parsed:
		return true
	case current.parsed:
		return false
	default:
		return true
	}
}

func (d *Deduplicator) Merge(records []models.Record, collector diagnostics.Collector) []models.Record {
	if collector == nil {
		collector = diagnostics.Discard
	}

	order := make([]string, 0, len(records))
	winners := make(map[string]candidate, len(records))

	for i, record := range records {
		key, display, ok := d.identity(record)
		if !ok {
			collector.Warn(diagnostics.Warning{
				Code:    diagnostics.CodeMissingIdentity,
				Stage:   stage,
				Field:   d.identityField,
				Message: fmt.Sprintf("record at position %d has no usable '%s' and was excluded", i, d.identityField),
			})
			continue
		}

		c := candidate{record: record}
		c.updatedAt, c.parsed = d.updatedAt(record, display, collector)

		current, seen := winners[key]
		if !seen {
			order = append(order, key)
			winners[key] = c
			continue
		}
		if c.wins(current) {
			winners[key] = c
		}
	}

	out := make([]models.Record, 0, len(order))
	for _, key := range order {
		out = append(out, winners[key].record)
	}
	return out
}

// Identity returns the record's identity as plain text, and false when it has none.
func (d *Deduplicator) Identity(record models.Record) (string, bool) {
	_, display, ok := d.identity(record)
	return display, ok
}

// Key returns the grouping key that keeps identity types apart, along with the plain text.
func (d *Deduplicator) Key(record models.Record) (key string, id string, ok bool) {
	return d.identity(record)
}

// identity returns a grouping key that keeps types apart (1 and "1" differ) and the plain text
// for messages. The reserved-marker form of the field is checked as a fallback.
func (d *Deduplicator) identity(record models.Record) (key string, display string, ok bool) {
	v, found := lookup(record, d.identityField)
	if !found || v.IsNull() || !v.IsScalar() {
		return "", "", false
	}
	if s, isString := v.AsString(); isString && s == "" {
		return "", "", false
	}
	return string(v.Kind()) + ":" + v.Text(), v.Text(), true
}

func (d *Deduplicator) updatedAt(record models.Record, recordID string, collector diagnostics.Collector) (time.Time, bool) {
	v, found := lookup(record, models.FieldUpdatedAt)
	if !found || v.IsNull() {
		return time.Time{}, false
	}

	t, ok := normalizers.ParseTimestamp(v)
	if !ok {
		collector.Warn(diagnostics.Warning{
			Code:     diagnostics.CodeInvalidTimestamp,
			Stage:    stage,
			RecordID: recordID,
			Field:    models.FieldUpdatedAt,
			Message:  fmt.Sprintf("could not parse %q as a timestamp; record ranks as oldest", v.Text()),
		})
		return time.Time{}, false
	}
	return t, true
}

func lookup(record models.Record, field string) (models.Value, bool) {
	if v, ok := record.Get(field); ok {
		return v, true
	}
	return record.Get(fields.ReservedMarker + field)
}
