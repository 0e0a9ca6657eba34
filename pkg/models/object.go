package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Object is a string-keyed mapping that remembers insertion order. Setting an existing
// key replaces its value in place. Read methods are safe on a nil *Object.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// ObjectFrom builds an Object from a Go map, inserting keys in sorted order.
func ObjectFrom(m map[string]any) (*Object, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.Object(), nil
}

func (o *Object) Set(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) SortedKeys() []string {
	keys := o.Keys()
	sort.Strings(keys)
	return keys
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Clone copies the top level. Nested values are shared; stages never mutate them.
func (o *Object) Clone() *Object {
	out := NewObject()
	o.Range(func(key string, v Value) bool {
		out.Set(key, v)
		return true
	})
	return out
}

func (o *Object) ToMap() map[string]any {
	out := make(map[string]any, o.Len())
	o.Range(func(key string, v Value) bool {
		out[key] = v.Interface()
		return true
	})
	return out
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var rangeErr error
	o.Range(func(key string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		keyJSON, err := json.Marshal(key)
		if err != nil {
			rangeErr = err
			return false
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		valueJSON, err := v.MarshalJSON()
		if err != nil {
			rangeErr = fmt.Errorf("field %q: %w", key, err)
			return false
		}
		buf.Write(valueJSON)
		return true
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	if v.Kind() != KindObject {
		return fmt.Errorf("expected a JSON object, got %s", v.Kind())
	}
	*o = *v.Object()
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
