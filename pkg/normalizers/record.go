package normalizers

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/flatten"
	"github.com/Ramsey-B/fern/pkg/models"
)

const stage = "normalize"

// SystemFields maps the reserved-marker form of each system field to its normalized name.
var SystemFields = map[string]string{
	"_id":         models.FieldID,
	"_status":     models.FieldStatus,
	"_created_at": models.FieldCreatedAt,
	"_updated_at": models.FieldUpdatedAt,
	"_created_by": models.FieldCreatedBy,
	"_updated_by": models.FieldUpdatedBy,
	"_geometry":   models.FieldGeometry,
	"_photos":     models.FieldPhotos,
	"_signatures": models.FieldSignatures,
	"_audio":      models.FieldAudio,
	"_video":      models.FieldVideo,
	"_notes":      models.FieldNotes,
}

// TimestampFields are parsed after renaming.
var TimestampFields = []string{models.FieldCreatedAt, models.FieldUpdatedAt}

type Config struct {
	// BatchLabel is written to every flat record as _batch_label.
	BatchLabel string
	// FieldNormalizers applies named string normalizers to flat fields, keyed by flat key.
	FieldNormalizers map[string][]string
	// Now stamps _processed_at. Defaults to time.Now.
	Now func() time.Time
}

type RecordNormalizer struct {
	flattener        *flatten.Flattener
	batchLabel       string
	fieldNormalizers map[string][]string
	now              func() time.Time
}

func NewRecordNormalizer(flattener *flatten.Flattener, config Config) *RecordNormalizer {
	if flattener == nil {
		flattener = flatten.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &RecordNormalizer{
		flattener:        flattener,
		batchLabel:       config.BatchLabel,
		fieldNormalizers: config.FieldNormalizers,
		now:              now,
	}
}

// RenameField returns the normalized name of a system field, or key unchanged.
func RenameField(key string) string {
	if renamed, ok := SystemFields[key]; ok {
		return renamed
	}
	return key
}

// RecordID returns the identity of a raw record as text, checking both "id" and "_id".
func RecordID(record models.Record) string {
	for _, key := range []string{models.FieldID, "_id"} {
		if v, ok := record.Get(key); ok && !v.IsNull() && v.IsScalar() {
			return v.Text()
		}
	}
	return ""
}

// Normalize produces a flat record. Malformed timestamps become Null and are reported to
// collector; only a structural failure such as exceeding the flatten depth returns an error.
// The input record is not modified.
func (n *RecordNormalizer) Normalize(record models.Record, collector diagnostics.Collector) (models.FlatRecord, error) {
	if collector == nil {
		collector = diagnostics.Discard
	}
	recordID := RecordID(record)

	system := models.NewObject()
	var err error
	record.Range(func(key string, v models.Value) bool {
		if key == models.FieldFormValues {
			return true
		}
		err = n.flattener.FlattenInto(system, RenameField(key), v)
		return err == nil
	})
	if err != nil {
		return models.FlatRecord{}, err
	}

	for _, field := range TimestampFields {
		v, ok := system.Get(field)
		if !ok {
			continue
		}
		system.Set(field, n.parseTimestamp(recordID, field, v, collector))
	}

	out := system
	if formValues, ok := record.Get(models.FieldFormValues); ok {
		switch formValues.Kind() {
		case models.KindObject:
			flat, err := n.flattener.Flatten(formValues.Object())
			if err != nil {
				return models.FlatRecord{}, err
			}
			// form keys take precedence over system keys
			flat.Range(func(key string, v models.Value) bool {
				out.Set(key, v)
				return true
			})
		case models.KindNull:
			// same as missing
		default:
			collector.Warn(diagnostics.Warning{
				Code:     diagnostics.CodeInvalidRecordStructure,
				Stage:    stage,
				RecordID: recordID,
				Field:    models.FieldFormValues,
				Message:  fmt.Sprintf("form_values must be an object, got %s; ignoring it", formValues.Kind()),
			})
		}
	}

	n.applyFieldNormalizers(out)

	out.Set(models.FieldProcessedAt, models.String(FormatTimestamp(n.now())))
	out.Set(models.FieldBatchLabel, models.String(n.batchLabel))

	return models.FlatRecord{Object: out}, nil
}

// NormalizeAll normalizes each record. A record that fails is reported as a
// record_rejected warning and left out; the rest of the batch continues.
func (n *RecordNormalizer) NormalizeAll(records []models.Record, collector diagnostics.Collector) []models.FlatRecord {
	if collector == nil {
		collector = diagnostics.Discard
	}

	out := make([]models.FlatRecord, 0, len(records))
	for _, record := range records {
		flat, err := n.Normalize(record, collector)
		if err != nil {
			collector.Warn(diagnostics.Warning{
				Code:     diagnostics.CodeRecordRejected,
				Stage:    stage,
				RecordID: RecordID(record),
				Message:  err.Error(),
			})
			continue
		}
		out = append(out, flat)
	}
	return out
}

func (n *RecordNormalizer) parseTimestamp(recordID, field string, v models.Value, collector diagnostics.Collector) models.Value {
	if v.IsNull() {
		return v
	}

	t, ok := ParseTimestamp(v)
	if !ok {
		collector.Warn(diagnostics.Warning{
			Code:     diagnostics.CodeInvalidTimestamp,
			Stage:    stage,
			RecordID: recordID,
			Field:    field,
			Message:  fmt.Sprintf("could not parse %q as a timestamp", v.Text()),
		})
		return models.Null()
	}

	return models.String(FormatTimestamp(t))
}

func (n *RecordNormalizer) applyFieldNormalizers(out *models.Object) {
	for field, chain := range n.fieldNormalizers {
		v, ok := out.Get(field)
		if !ok {
			continue
		}
		if s, ok := v.AsString(); ok {
			out.Set(field, models.String(ApplyChain(s, chain...)))
		}
	}
}
