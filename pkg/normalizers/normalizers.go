// Package normalizers turns raw survey records into flat records and holds the named string
// normalizers that can be applied to individual flat fields afterwards.
package normalizers

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Ramsey-B/fern/pkg/errors"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", strings.ToLower)
	Register("uppercase", strings.ToUpper)
	Register("trim", strings.TrimSpace)
	Register("nemail", NormalizeEmail)
	Register("nphone", DigitsOnly)
	Register("digits_only", DigitsOnly)
	Register("remove_whitespace", RemoveWhitespace)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("remove_punctuation", RemovePunctuation)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names lists registered normalizers, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyChain applies normalizers in order. Unknown names are skipped; use ParseFieldNormalizers
// to reject them up front.
func ApplyChain(value string, names ...string) string {
	result := value
	for _, name := range names {
		if fn, ok := registry[name]; ok {
			result = fn(result)
		}
	}
	return result
}

// ParseFieldNormalizers reads "field=name1|name2" pairs and checks every name is registered.
func ParseFieldNormalizers(pairs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		field, chain, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" || strings.TrimSpace(chain) == "" {
			return nil, errors.InvalidConfiguration("field normalizer %q must look like field=name1|name2", pair).AddStage("normalize")
		}

		for _, name := range strings.Split(chain, "|") {
			name = strings.TrimSpace(name)
			if _, ok := Get(name); !ok {
				return nil, errors.InvalidConfiguration("unknown normalizer %q", name).AddStage("normalize").AddField(field)
			}
			out[field] = append(out[field], name)
		}
	}
	return out, nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func RemoveWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CollapseWhitespace trims and folds runs of whitespace into one space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func RemovePunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
}
