package sources

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// ValidateRecord warns about required fields that are missing or null. A field also counts as
// present in its reserved-marker form. It reports whether every field was present; the record
// is never dropped here.
func ValidateRecord(record models.Record, collector diagnostics.Collector, requiredFields ...string) bool {
	if collector == nil {
		collector = diagnostics.Discard
	}

	valid := true
	for _, field := range requiredFields {
		if present(record, field) {
			continue
		}
		valid = false
		collector.Warn(diagnostics.Warning{
			Code:     diagnostics.CodeInvalidRecordStructure,
			Stage:    stage,
			RecordID: normalizers.RecordID(record),
			Field:    field,
			Message:  fmt.Sprintf("required field '%s' is missing", field),
		})
	}
	return valid
}

func present(record models.Record, field string) bool {
	for _, key := range []string{field, fields.ReservedMarker + field} {
		if v, ok := record.Get(key); ok && !v.IsNull() {
			return true
		}
	}
	return false
}
