// Package flatten collapses nested mappings and sequences into a single-level mapping of
// scalar leaves.
//
// Keys are built by joining path segments with a separator:
//
//	{"a": {"b": 1}}     -> {"a_b": 1}
//	{"a": [1, 2]}       -> {"a_0": 1, "a_1": 2}
//	{"a": [{"b": true}]} -> {"a_0_b": true}
//
// Empty mappings and sequences contribute no keys. When two paths produce the same flat
// key the value written last in document order wins. The input mapping counts as level 1
// and each nested container adds a level; a container deeper than the max depth fails the
// whole call with a depth_exceeded error and no partial output.
package flatten

import (
	"strconv"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	DefaultSeparator = "_"
	DefaultMaxDepth  = 32
)

type Flattener struct {
	separator string
	maxDepth  int
}

func NewFlattener(separator string, maxDepth int) (*Flattener, error) {
	if maxDepth < 1 {
		return nil, errors.InvalidConfiguration("max depth must be at least 1, got %d", maxDepth).AddStage("flatten")
	}
	return &Flattener{separator: separator, maxDepth: maxDepth}, nil
}

// Default uses the "_" separator and a max depth of 32.
func Default() *Flattener {
	return &Flattener{separator: DefaultSeparator, maxDepth: DefaultMaxDepth}
}

// Flatten is a convenience for Default().Flatten(value).
func Flatten(value *models.Object) (*models.Object, error) {
	return Default().Flatten(value)
}

func (f *Flattener) Separator() string {
	return f.separator
}

func (f *Flattener) MaxDepth() int {
	return f.maxDepth
}

func (f *Flattener) Flatten(value *models.Object) (*models.Object, error) {
	out := models.NewObject()
	if err := f.flattenObject(out, "", value, 1); err != nil {
		return nil, err
	}
	return out, nil
}

// FlattenInto writes v into out under key, expanding containers below it. v is treated as
// an entry of a level 1 mapping. out may be partially written when an error is returned.
func (f *Flattener) FlattenInto(out *models.Object, key string, v models.Value) error {
	return f.flattenValue(out, key, v, 1)
}

func (f *Flattener) flattenValue(out *models.Object, key string, v models.Value, level int) error {
	switch v.Kind() {
	case models.KindObject:
		return f.flattenObject(out, key, v.Object(), level+1)
	case models.KindArray:
		return f.flattenArray(out, key, v.Items(), level+1)
	default:
		out.Set(key, v)
		return nil
	}
}

func (f *Flattener) flattenObject(out *models.Object, prefix string, obj *models.Object, level int) error {
	if level > f.maxDepth {
		return errors.DepthExceeded(f.maxDepth).AddStage("flatten").AddField(prefix)
	}

	var err error
	obj.Range(func(key string, v models.Value) bool {
		err = f.flattenValue(out, f.join(prefix, key), v, level)
		return err == nil
	})
	return err
}

func (f *Flattener) flattenArray(out *models.Object, prefix string, items []models.Value, level int) error {
	if level > f.maxDepth {
		return errors.DepthExceeded(f.maxDepth).AddStage("flatten").AddField(prefix)
	}

	for i, item := range items {
		if err := f.flattenValue(out, f.join(prefix, strconv.Itoa(i)), item, level); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flattener) join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + f.separator + key
}
