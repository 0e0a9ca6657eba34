package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"time"
)

type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// MaxConversionDepth bounds FromAny so self-referencing Go values fail instead of recursing forever.
const MaxConversionDepth = 1024

// Value is a tagged variant holding any record content. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	num   string
	s     string
	items []Value
	obj   *Object
}

func Null() Value {
	return Value{kind: KindNull}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a float64. Numbers compare and print by their canonical decimal text, so 1
// and 1.0 are the same value.
func Number(n float64) Value {
	v := Value{kind: KindNumber, n: n}
	if !math.IsNaN(n) && !math.IsInf(n, 0) {
		v.num = FormatNumber(n)
	}
	return v
}

func Int(i int64) Value {
	return Value{kind: KindNumber, n: float64(i), num: strconv.FormatInt(i, 10)}
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

func ObjectValue(obj *Object) Value {
	if obj == nil {
		obj = NewObject()
	}
	return Value{kind: KindObject, obj: obj}
}

func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// IsScalar reports whether the value is a leaf (null, bool, number or string).
func (v Value) IsScalar() bool {
	switch v.Kind() {
	case KindArray, KindObject:
		return false
	default:
		return true
	}
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.Kind() == KindBool
}

// AsNumber returns the nearest float64, which is inexact for integers beyond 2^53.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.Kind() == KindNumber
}

// NumberText returns the exact canonical decimal text of a number value.
func (v Value) NumberText() (string, bool) {
	return v.num, v.Kind() == KindNumber
}

func (v Value) AsString() (string, bool) {
	return v.s, v.Kind() == KindString
}

// Items returns the elements of an array value, nil for other kinds.
func (v Value) Items() []Value {
	if v.Kind() != KindArray {
		return nil
	}
	return v.items
}

// Object returns the mapping of an object value, nil for other kinds.
func (v Value) Object() *Object {
	if v.Kind() != KindObject {
		return nil
	}
	return v.obj
}

// Text renders the value for tabular output. Null renders as the empty string and
// containers render as compact JSON.
func (v Value) Text() string {
	switch v.Kind() {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.num == "" {
			return FormatNumber(v.n)
		}
		return v.num
	case KindString:
		return v.s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func (v Value) String() string {
	return v.Text()
}

// Equal reports deep equality. Object comparison ignores key order.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}

	switch v.Kind() {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		if v.num == "" || other.num == "" {
			return v.n == other.n
		}
		return v.num == other.num
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if v.obj.Len() != other.obj.Len() {
			return false
		}
		for _, key := range v.obj.Keys() {
			a, _ := v.obj.Get(key)
			b, ok := other.obj.Get(key)
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}

	return false
}

// Interface converts the value back to plain Go types: nil, bool, float64, string,
// []any and map[string]any.
func (v Value) Interface() any {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.obj.ToMap()
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if v.num == "" {
			return nil, fmt.Errorf("unsupported number %v", v.n)
		}
		return []byte(v.num), nil
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return v.obj.MarshalJSON()
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON decodes a JSON document into a Value, keeping object keys in document order.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after JSON value")
	}

	return v, nil
}

// DecodeJSON reads the next JSON value from the decoder. The decoder should have UseNumber set.
func DecodeJSON(dec *json.Decoder) (Value, error) {
	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ObjectValue(obj), nil
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(items...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return ParseNumber(t.String())
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	}

	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// FromAny converts decoded Go data into a Value. Keys of Go maps have no document
// order, so they are inserted sorted.
func FromAny(input any) (Value, error) {
	return fromAny(input, 0)
}

func fromAny(input any, depth int) (Value, error) {
	if depth > MaxConversionDepth {
		return Value{}, fmt.Errorf("value nesting exceeds %d levels", MaxConversionDepth)
	}

	switch value := input.(type) {
	case nil:
		return Null(), nil
	case Value:
		return value, nil
	case *Object:
		return ObjectValue(value), nil
	case Record:
		return ObjectValue(value.Object), nil
	case FlatRecord:
		return ObjectValue(value.Object), nil
	case bool:
		return Bool(value), nil
	case string:
		return String(value), nil
	case json.Number:
		return ParseNumber(value.String())
	case float64:
		return Number(value), nil
	case float32:
		return Number(float64(value)), nil
	case int:
		return Int(int64(value)), nil
	case int8:
		return Int(int64(value)), nil
	case int16:
		return Int(int64(value)), nil
	case int32:
		return Int(int64(value)), nil
	case int64:
		return Int(value), nil
	case uint:
		return ParseNumber(strconv.FormatUint(uint64(value), 10))
	case uint8:
		return Int(int64(value)), nil
	case uint16:
		return Int(int64(value)), nil
	case uint32:
		return Int(int64(value)), nil
	case uint64:
		return ParseNumber(strconv.FormatUint(value, 10))
	case time.Time:
		return String(value.UTC().Format(time.RFC3339Nano)), nil
	case []any:
		items := make([]Value, 0, len(value))
		for _, item := range value {
			v, err := fromAny(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]any:
		obj := NewObject()
		for _, key := range sortedKeys(value) {
			v, err := fromAny(value[key], depth+1)
			if err != nil {
				return Value{}, err
			}
			obj.Set(key, v)
		}
		return ObjectValue(obj), nil
	}

	// typed slices and maps such as []string or map[string]string
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := fromAny(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return fromAny(m, depth)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromAny(rv.Elem().Interface(), depth+1)
	}

	return Value{}, fmt.Errorf("unsupported value type %T", input)
}

// MustFromAny is FromAny for literals known to be convertible, mostly in tests.
func MustFromAny(input any) Value {
	v, err := FromAny(input)
	if err != nil {
		panic(err)
	}
	return v
}
