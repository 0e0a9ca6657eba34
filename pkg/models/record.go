package models

import (
	"fmt"
	"sort"
)

// System field names in their normalized form.
const (
	FieldID         = "id"
	FieldStatus     = "status"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
	FieldCreatedBy  = "created_by"
	FieldUpdatedBy  = "updated_by"
	FieldGeometry   = "geometry"
	FieldPhotos     = "photos"
	FieldSignatures = "signatures"
	FieldAudio      = "audio"
	FieldVideo      = "video"
	FieldNotes      = "notes"
	FieldFormValues = "form_values"

	FieldProcessedAt = "_processed_at"
	FieldBatchLabel  = "_batch_label"
)

// Record is a raw, possibly nested survey entry as delivered by a Source.
type Record struct {
	*Object
}

func NewRecord() Record {
	return Record{Object: NewObject()}
}

// RecordFrom wraps a Go map. Keys are inserted sorted.
func RecordFrom(m map[string]any) (Record, error) {
	obj, err := ObjectFrom(m)
	if err != nil {
		return Record{}, err
	}
	return Record{Object: obj}, nil
}

// MustRecord is RecordFrom for literals, mostly in tests.
func MustRecord(m map[string]any) Record {
	r, err := RecordFrom(m)
	if err != nil {
		panic(err)
	}
	return r
}

// RecordFromValue accepts only object values.
func RecordFromValue(v Value) (Record, error) {
	if v.Kind() != KindObject {
		return Record{}, fmt.Errorf("record must be an object, got %s", v.Kind())
	}
	return Record{Object: v.Object()}, nil
}

func ParseRecord(data []byte) (Record, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return Record{}, err
	}
	return RecordFromValue(v)
}

func (r Record) Value() Value {
	return ObjectValue(r.Object)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// FlatRecord holds only scalar leaves.
type FlatRecord struct {
	*Object
}

func NewFlatRecord() FlatRecord {
	return FlatRecord{Object: NewObject()}
}

// FlatRecordFrom wraps an object after checking every value is a scalar.
func FlatRecordFrom(obj *Object) (FlatRecord, error) {
	var (
		bad   string
		found bool
	)
	obj.Range(func(key string, v Value) bool {
		if !v.IsScalar() {
			bad, found = key, true
			return false
		}
		return true
	})
	if found {
		return FlatRecord{}, fmt.Errorf("field %q is not a scalar", bad)
	}
	return FlatRecord{Object: obj}, nil
}

func (r *FlatRecord) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	if v.Kind() != KindObject {
		return fmt.Errorf("flat record must be an object, got %s", v.Kind())
	}
	parsed, err := FlatRecordFrom(v.Object())
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Columns returns the sorted union of keys across records.
func Columns(records []FlatRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		r.Range(func(key string, _ Value) bool {
			seen[key] = struct{}{}
			return true
		})
	}

	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}
