// Package query filters and sorts flat records in memory.
package query

import (
	"sort"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not_contains"
)

var operators = []Operator{
	OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpIn, OpContains, OpNotContains,
}

// Condition is a single field test. For OpIn, Value must be an array.
type Condition struct {
	Field string       `json:"field" validate:"required"`
	Op    Operator     `json:"op" validate:"required"`
	Value models.Value `json:"value"`
}

func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimSpace(s))
	if !ectolinq.Contains(operators, op) {
		return "", errors.InvalidConfiguration("unknown operator %q", s).AddStage("query")
	}
	return op, nil
}

// Filter keeps the records matching field op value, in order. A record missing the field
// only matches != and not_contains.
func Filter(records []models.FlatRecord, field string, op Operator, value models.Value) ([]models.FlatRecord, error) {
	return Where(records, Condition{Field: field, Op: op, Value: value})
}

// Where keeps records matching every condition.
func Where(records []models.FlatRecord, conditions ...Condition) ([]models.FlatRecord, error) {
	for _, c := range conditions {
		if !ectolinq.Contains(operators, c.Op) {
			return nil, errors.InvalidConfiguration("unknown operator %q", c.Op).AddStage("query").AddField(c.Field)
		}
		if c.Op == OpIn && c.Value.Kind() != models.KindArray {
			return nil, errors.InvalidConfiguration("operator 'in' needs an array value").AddStage("query").AddField(c.Field)
		}
	}

	out := make([]models.FlatRecord, 0, len(records))
	for _, record := range records {
		if ectolinq.All(conditions, func(c Condition) bool { return c.Matches(record) }) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (c Condition) Matches(record models.FlatRecord) bool {
	v, ok := record.Get(c.Field)
	if !ok || v.IsNull() {
		switch c.Op {
		case OpNotEqual:
			return !c.Value.IsNull()
		case OpNotContains:
			return true
		case OpEqual:
			return ok && c.Value.IsNull()
		}
		return false
	}

	switch c.Op {
	case OpEqual:
		return v.Equal(c.Value)
	case OpNotEqual:
		return !v.Equal(c.Value)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		cmp, ok := Compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGreater:
			return cmp > 0
		case OpLess:
			return cmp < 0
		case OpGreaterEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	case OpIn:
		return ectolinq.Any(c.Value.Items(), func(item models.Value) bool { return v.Equal(item) })
	case OpContains, OpNotContains:
		s, isString := v.AsString()
		needle, needleIsString := c.Value.AsString()
		if !isString || !needleIsString {
			return c.Op == OpNotContains
		}
		return strings.Contains(s, needle) == (c.Op == OpContains)
	}
	return false
}

// Compare orders two scalars of compatible kinds. Numbers compare numerically, strings
// that both parse as timestamps compare as instants, other strings compare
// case-sensitively. ok is false when the kinds cannot be ordered.
func Compare(a, b models.Value) (int, bool) {
	return compare(a, b, false)
}

func compare(a, b models.Value, foldCase bool) (int, bool) {
	switch {
	case a.Kind() == models.KindNumber && b.Kind() == models.KindNumber:
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return compareOrdered(x, y), true
	case a.Kind() == models.KindString && b.Kind() == models.KindString:
		if ta, ok := normalizers.ParseTimestamp(a); ok && isISO(a) {
			if tb, ok := normalizers.ParseTimestamp(b); ok && isISO(b) {
				return ta.Compare(tb), true
			}
		}
		x, _ := a.AsString()
		y, _ := b.AsString()
		if foldCase {
			x, y = strings.ToLower(x), strings.ToLower(y)
		}
		return strings.Compare(x, y), true
	case a.Kind() == models.KindBool && b.Kind() == models.KindBool:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		return compareOrdered(boolRank(x), boolRank(y)), true
	}
	return 0, false
}

// isISO excludes digit-only strings, which would otherwise read as epoch milliseconds.
func isISO(v models.Value) bool {
	s, _ := v.AsString()
	return strings.ContainsAny(s, "-:T")
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Sort returns a stably sorted copy. Strings compare case-insensitively and nulls or missing
// values sort last in either direction.
func Sort(records []models.FlatRecord, field string, descending bool) []models.FlatRecord {
	out := make([]models.FlatRecord, len(records))
	copy(out, records)

	key := func(r models.FlatRecord) (models.Value, bool) {
		v, ok := r.Get(field)
		return v, ok && !v.IsNull()
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, aok := key(out[i])
		b, bok := key(out[j])
		if !aok || !bok {
			return aok && !bok
		}
		cmp, ok := compare(a, b, true)
		if !ok {
			// mixed kinds group by kind name
			cmp = strings.Compare(string(a.Kind()), string(b.Kind()))
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}
