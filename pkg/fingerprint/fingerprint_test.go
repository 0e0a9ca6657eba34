package fingerprint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{16}$`)

func record(t *testing.T, doc string) models.Record {
	t.Helper()
	r, err := models.ParseRecord([]byte(doc))
	require.NoError(t, err)
	return r
}

func TestDigest(t *testing.T) {
	t.Run("fixed length hex", func(t *testing.T) {
		h := Digest(record(t, `{"id":"1"}`))
		assert.Len(t, string(h), Size)
		assert.Regexp(t, hexDigest, string(h))
	})

	t.Run("key order does not matter", func(t *testing.T) {
		a := record(t, `{"id":"1","form_values":{"x":1,"y":[1,{"p":true,"q":null}]}}`)
		b := record(t, `{"form_values":{"y":[1,{"q":null,"p":true}],"x":1},"id":"1"}`)
		assert.Equal(t, Digest(a), Digest(b))
	})

	t.Run("equivalent numbers hash the same", func(t *testing.T) {
		assert.Equal(t, Digest(record(t, `{"n":1}`)), Digest(record(t, `{"n":1.0}`)))
		assert.Equal(t, Digest(record(t, `{"n":100}`)), Digest(record(t, `{"n":1e2}`)))
	})

	t.Run("integers beyond float precision hash apart", func(t *testing.T) {
		assert.NotEqual(t, Digest(record(t, `{"n":9007199254740992}`)), Digest(record(t, `{"n":9007199254740993}`)))
		assert.Equal(t, Digest(record(t, `{"n":9007199254740993}`)), Digest(record(t, `{"n":9007199254740993.0}`)))
	})

	t.Run("types are tagged", func(t *testing.T) {
		assert.NotEqual(t, Digest(record(t, `{"v":1}`)), Digest(record(t, `{"v":"1"}`)))
		assert.NotEqual(t, Digest(record(t, `{"v":true}`)), Digest(record(t, `{"v":"true"}`)))
		assert.NotEqual(t, Digest(record(t, `{"v":null}`)), Digest(record(t, `{"v":""}`)))
		assert.NotEqual(t, Digest(record(t, `{"v":[]}`)), Digest(record(t, `{"v":{}}`)))
	})

	t.Run("array order matters", func(t *testing.T) {
		assert.NotEqual(t, Digest(record(t, `{"v":[1,2]}`)), Digest(record(t, `{"v":[2,1]}`)))
	})

	t.Run("adjacent strings do not run together", func(t *testing.T) {
		assert.NotEqual(t, Digest(record(t, `{"v":["ab","c"]}`)), Digest(record(t, `{"v":["a","bc"]}`)))
		assert.NotEqual(t, Digest(record(t, `{"ab":"c"}`)), Digest(record(t, `{"a":"bc"}`)))
	})

	t.Run("any single field change changes the hash", func(t *testing.T) {
		base := `{"id":"1","status":"open","form_values":{"count":3,"tags":["a","b"],"site":{"name":"North"}}}`
		mutations := []string{
			`{"id":"2","status":"open","form_values":{"count":3,"tags":["a","b"],"site":{"name":"North"}}}`,
			`{"id":"1","status":"done","form_values":{"count":3,"tags":["a","b"],"site":{"name":"North"}}}`,
			`{"id":"1","status":"open","form_values":{"count":4,"tags":["a","b"],"site":{"name":"North"}}}`,
			`{"id":"1","status":"open","form_values":{"count":3,"tags":["a"],"site":{"name":"North"}}}`,
			`{"id":"1","status":"open","form_values":{"count":3,"tags":["a","b"],"site":{"name":"South"}}}`,
			`{"id":"1","status":"open","form_values":{"count":3,"tags":["a","b"],"site":{"name":"North"},"extra":null}}`,
		}

		seen := map[ContentHash]string{Digest(record(t, base)): base}
		for _, m := range mutations {
			h := Digest(record(t, m))
			_, dup := seen[h]
			assert.False(t, dup, "collision for %s", m)
			seen[h] = m
		}
	})

	t.Run("does not modify the record", func(t *testing.T) {
		r := record(t, `{"b":1,"a":2}`)
		_ = Digest(r)
		assert.Equal(t, []string{"b", "a"}, r.Keys())
	})
}

func TestDigestExcluding(t *testing.T) {
	a := record(t, `{"id":"1","_processed_at":"x","form_values":{"notes":"a","v":1}}`)
	b := record(t, `{"id":"1","_processed_at":"y","form_values":{"notes":"b","v":1}}`)

	exclude := map[string]bool{"_processed_at": true, "form_values.notes": true}
	assert.Equal(t, DigestExcluding(a.Value(), exclude), DigestExcluding(b.Value(), exclude))
	assert.NotEqual(t, Digest(a), Digest(b))

	t.Run("excluding a parent excludes its children", func(t *testing.T) {
		exclude := map[string]bool{"_processed_at": true, "form_values": true}
		assert.Equal(t, DigestExcluding(a.Value(), exclude), DigestExcluding(b.Value(), exclude))
	})
}

func TestDigestJSON(t *testing.T) {
	h, err := DigestJSON([]byte(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, Digest(record(t, `{"a":1,"b":2}`)), h)

	_, err = DigestJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	v := models.MustFromAny(map[string]any{"b": []any{1, "x"}, "a": nil})
	assert.Equal(t, `{2:s1:ans1:b[2:d1:1s1:x`, string(Canonical(v)))
}

func TestHasChanged(t *testing.T) {
	assert.False(t, HasChanged("abc", "abc"))
	assert.True(t, HasChanged("", "abc"))
	assert.True(t, HasChanged("abc", "abd"))
}
