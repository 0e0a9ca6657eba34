// Package summary describes a normalized batch: how many records, what fields, which
// statuses and what time span it covers.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// UnknownStatus counts records that carry no status.
const UnknownStatus = "unknown"

type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
	SpanDays int    `json:"span_days"`
}

type FieldCount struct {
	NonNull int `json:"non_null"`
	Null    int `json:"null"`
}

type Summary struct {
	TotalRecords        int                   `json:"total_records"`
	FieldNames          []string              `json:"field_names"`
	DateRange           *DateRange            `json:"date_range,omitempty"`
	StatusCounts        map[string]int        `json:"status_counts"`
	FieldCounts         map[string]FieldCount `json:"field_counts"`
	RecordsWithPhotos   int                   `json:"records_with_photos"`
	RecordsWithGeometry int                   `json:"records_with_geometry"`
}

// Summarize inspects flat records. Field counts skip metadata columns (leading "_"); a
// record missing a column counts as null for it.
func Summarize(records []models.FlatRecord, columns []string) Summary {
	s := Summary{
		TotalRecords: len(records),
		FieldNames:   append([]string{}, columns...),
		StatusCounts: make(map[string]int),
		FieldCounts:  make(map[string]FieldCount),
	}

	var earliest, latest time.Time
	for _, record := range records {
		status := UnknownStatus
		if v, ok := record.Get(models.FieldStatus); ok && !v.IsNull() {
			status = v.Text()
		}
		s.StatusCounts[status]++

		if v, ok := record.Get(models.FieldCreatedAt); ok {
			if t, ok := normalizers.ParseTimestamp(v); ok {
				if earliest.IsZero() || t.Before(earliest) {
					earliest = t
				}
				if latest.IsZero() || t.After(latest) {
					latest = t
				}
			}
		}

		if hasPrefixedValue(record, models.FieldPhotos) {
			s.RecordsWithPhotos++
		}
		if hasPrefixedValue(record, models.FieldGeometry) {
			s.RecordsWithGeometry++
		}
	}

	for _, column := range columns {
		if strings.HasPrefix(column, "_") {
			continue
		}
		var count FieldCount
		for _, record := range records {
			if v, ok := record.Get(column); ok && !v.IsNull() {
				count.NonNull++
			} else {
				count.Null++
			}
		}
		s.FieldCounts[column] = count
	}

	if !earliest.IsZero() {
		s.DateRange = &DateRange{
			Earliest: normalizers.FormatTimestamp(earliest),
			Latest:   normalizers.FormatTimestamp(latest),
			SpanDays: int(latest.Sub(earliest).Hours() / 24),
		}
	}

	return s
}

// hasPrefixedValue reports a non-null field named prefix or flattened below it.
func hasPrefixedValue(record models.FlatRecord, prefix string) bool {
	found := false
	record.Range(func(key string, v models.Value) bool {
		if (key == prefix || strings.HasPrefix(key, prefix+"_")) && !v.IsNull() {
			found = true
			return false
		}
		return true
	})
	return found
}

// Report renders the summary as plain text for terminal output.
func (s Summary) Report(label string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch: %s\n", label)
	fmt.Fprintf(&b, "Total Records: %d\n", s.TotalRecords)

	if len(s.StatusCounts) > 0 {
		b.WriteString("\nStatus Summary:\n")
		for _, status := range sortedKeys(s.StatusCounts) {
			fmt.Fprintf(&b, "  %s: %d\n", status, s.StatusCounts[status])
		}
	}

	if s.DateRange != nil {
		fmt.Fprintf(&b, "\nDate Range: %s to %s (%d days)\n", s.DateRange.Earliest, s.DateRange.Latest, s.DateRange.SpanDays)
	}

	if len(s.FieldCounts) > 0 {
		b.WriteString("\nField Summary:\n")
		fields := make([]string, 0, len(s.FieldCounts))
		for field := range s.FieldCounts {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			c := s.FieldCounts[field]
			fmt.Fprintf(&b, "  %s: %d non-null, %d null\n", field, c.NonNull, c.Null)
		}
	}

	fmt.Fprintf(&b, "\nRecords with Photos: %d\n", s.RecordsWithPhotos)
	fmt.Fprintf(&b, "Records with Geometry: %d\n", s.RecordsWithGeometry)

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
