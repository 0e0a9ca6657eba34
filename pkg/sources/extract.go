package sources

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Extractor finds the record array inside a fetched document with a JMESPath expression.
type Extractor struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewExtractor() *Extractor {
	return &Extractor{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Validate checks that an expression compiles.
func (e *Extractor) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := e.getOrCompile(expression)
	return err
}

// Extract returns the items of the array selected by expression. When the expression selects
// nothing and the document itself is an array, the root array is used. Objects that come
// straight from the document keep their key order.
func (e *Extractor) Extract(document models.Value, expression string) ([]models.Value, error) {
	if expression == "" {
		return rootItems(document)
	}

	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid records path %q: %w", expression, err)
	}

	m := &mirror{objects: make(map[uintptr]*models.Object)}
	result, err := compiled.Search(m.toGeneric(document))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate records path %q: %w", expression, err)
	}

	items, ok := result.([]any)
	if !ok {
		if result == nil {
			return rootItems(document)
		}
		return nil, fmt.Errorf("records path %q selected a %T, not an array", expression, result)
	}

	out := make([]models.Value, 0, len(items))
	for _, item := range items {
		v, err := m.fromGeneric(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func rootItems(document models.Value) ([]models.Value, error) {
	if document.Kind() != models.KindArray {
		return nil, fmt.Errorf("document is a %s and no records path matched", document.Kind())
	}
	return document.Items(), nil
}

func (e *Extractor) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	if compiled, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}

// mirror converts a document to the plain maps jmespath walks and remembers which map came
// from which ordered object, so selected records come back in document order.
type mirror struct {
	objects map[uintptr]*models.Object
}

func (m *mirror) toGeneric(v models.Value) any {
	switch v.Kind() {
	case models.KindObject:
		obj := v.Object()
		out := make(map[string]any, obj.Len())
		obj.Range(func(key string, child models.Value) bool {
			out[key] = m.toGeneric(child)
			return true
		})
		m.objects[reflect.ValueOf(out).Pointer()] = obj
		return out
	case models.KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = m.toGeneric(item)
		}
		return out
	default:
		return v.Interface()
	}
}

func (m *mirror) fromGeneric(x any) (models.Value, error) {
	if generic, ok := x.(map[string]any); ok {
		if obj, found := m.objects[reflect.ValueOf(generic).Pointer()]; found {
			return models.ObjectValue(obj), nil
		}
	}
	return models.FromAny(x)
}
