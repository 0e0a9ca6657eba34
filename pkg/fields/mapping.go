// Package fields derives display names for flat record columns.
package fields

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ReservedMarker prefixes system fields in their raw form, e.g. "_status".
const ReservedMarker = "_"

// FieldMapping maps a raw field key to its display name. Display names are not required
// to be unique; keeping them apart is the caller's responsibility.
type FieldMapping map[string]string

// DefaultDisplayName strips a single leading reserved marker. A name that would become
// empty is kept as is.
func DefaultDisplayName(raw string) string {
	if clean := strings.TrimPrefix(raw, ReservedMarker); clean != "" {
		return clean
	}
	return raw
}

// BuildMapping assigns every field its default display name, then applies overrides for
// fields in the set. Overrides for unknown fields are ignored.
func BuildMapping(fieldNames []string, overrides map[string]string) FieldMapping {
	mapping := make(FieldMapping, len(fieldNames))
	for _, name := range fieldNames {
		mapping[name] = DefaultDisplayName(name)
	}

	for raw, display := range overrides {
		if _, ok := mapping[raw]; ok {
			mapping[raw] = display
		}
	}

	return mapping
}

// BuildMappingForRecords uses the union of keys across records as the field set.
func BuildMappingForRecords(records []models.FlatRecord, overrides map[string]string) FieldMapping {
	return BuildMapping(models.Columns(records), overrides)
}

// Display returns the mapped name, falling back to the default rule for unmapped keys.
func (m FieldMapping) Display(raw string) string {
	if display, ok := m[raw]; ok {
		return display
	}
	return DefaultDisplayName(raw)
}

// Headers maps columns to display names, preserving column order.
func (m FieldMapping) Headers(columns []string) []string {
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = m.Display(column)
	}
	return headers
}

// Collisions lists display names shared by more than one raw key, sorted.
func (m FieldMapping) Collisions() map[string][]string {
	byDisplay := make(map[string][]string)
	for raw, display := range m {
		byDisplay[display] = append(byDisplay[display], raw)
	}

	collisions := make(map[string][]string)
	for display, raws := range byDisplay {
		if len(raws) > 1 {
			sort.Strings(raws)
			collisions[display] = raws
		}
	}
	return collisions
}

// Apply returns a copy of record keyed by display name. When two keys share a display
// name the later key in record order wins.
func (m FieldMapping) Apply(record models.FlatRecord) models.FlatRecord {
	out := models.NewFlatRecord()
	record.Range(func(key string, v models.Value) bool {
		out.Set(m.Display(key), v)
		return true
	})
	return out
}

// ParseOverrides reads "raw=display" pairs.
func ParseOverrides(pairs []string) (map[string]string, error) {
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		raw, display, ok := strings.Cut(pair, "=")
		raw = strings.TrimSpace(raw)
		display = strings.TrimSpace(display)
		if !ok || raw == "" || display == "" {
			return nil, errors.InvalidConfiguration("field name override %q must look like raw=display", pair).AddStage("fields")
		}
		overrides[raw] = display
	}
	return overrides, nil
}

func (m FieldMapping) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, m[k])
	}
	return strings.Join(parts, ",")
}
