package merging

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func records(t *testing.T, doc string) []models.Record {
	t.Helper()
	v, err := models.ParseJSON([]byte(doc))
	require.NoError(t, err)

	var out []models.Record
	for _, item := range v.Items() {
		r, err := models.RecordFromValue(item)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func field(r models.Record, key string) string {
	v, _ := r.Get(key)
	return v.Text()
}

func newCollector() *diagnostics.Diagnostics {
	return diagnostics.New(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestMerge(t *testing.T) {
	t.Run("newest update wins", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":1},
			{"id":"1","updated_at":"2024-02-01T00:00:00Z","v":2}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "2024-02-01T00:00:00Z", field(out[0], "updated_at"))
		assert.Equal(t, "2", field(out[0], "v"))
	})

	t.Run("older record later in the input loses", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-02-01T00:00:00Z","v":2},
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":1}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		assert.Equal(t, "2", field(out[0], "v"))
	})

	t.Run("ties go to the last record", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":"first"},
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":"second"}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		assert.Equal(t, "second", field(out[0], "v"))
	})

	t.Run("timestamps compare as instants", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-01-01T00:30:00Z","v":"utc"},
			{"id":"1","updated_at":"2024-01-01T01:00:00+02:00","v":"offset"}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		assert.Equal(t, "utc", field(out[0], "v"))
	})

	t.Run("epoch and iso mix", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"1706745600000","v":"epoch"},
			{"id":"1","updated_at":"2024-01-15T00:00:00Z","v":"iso"}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		assert.Equal(t, "epoch", field(out[0], "v"))
	})

	t.Run("first seen order", func(t *testing.T) {
		in := records(t, `[
			{"id":"b","updated_at":"2024-01-01T00:00:00Z"},
			{"id":"a","updated_at":"2024-01-01T00:00:00Z"},
			{"id":"b","updated_at":"2024-03-01T00:00:00Z"},
			{"id":"c"}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, []string{"b", "a", "c"}, []string{field(out[0], "id"), field(out[1], "id"), field(out[2], "id")})
		assert.Equal(t, "2024-03-01T00:00:00Z", field(out[0], "updated_at"))
	})

	t.Run("missing identity is excluded with a warning", func(t *testing.T) {
		in := records(t, `[
			{"v":1},
			{"id":null},
			{"id":""},
			{"id":{"nested":true}},
			{"id":"ok"}
		]`)
		collector := newCollector()

		out, err := Merge(in, "id", collector)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "ok", field(out[0], "id"))
		assert.Equal(t, map[diagnostics.Code]int{diagnostics.CodeMissingIdentity: 4}, collector.CountByCode())
	})

	t.Run("number and string identities stay apart", func(t *testing.T) {
		out, err := Merge(records(t, `[{"id":1},{"id":"1"}]`), "id", nil)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("integer identities beyond float precision stay apart", func(t *testing.T) {
		out, err := Merge(records(t, `[{"id":9007199254740992},{"id":9007199254740993}]`), "id", nil)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "9007199254740992", field(out[0], "id"))
		assert.Equal(t, "9007199254740993", field(out[1], "id"))
	})

	t.Run("reserved marker fallback", func(t *testing.T) {
		in := records(t, `[
			{"_id":"1","_updated_at":"2024-05-01T00:00:00Z","v":"new"},
			{"_id":"1","_updated_at":"2024-04-01T00:00:00Z","v":"old"}
		]`)

		out, err := Merge(in, "id", nil)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "new", field(out[0], "v"))
	})

	t.Run("unparsable updated_at ranks lowest", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":"parsed"},
			{"id":"1","updated_at":"garbage","v":"garbage"},
			{"id":"1","v":"missing"}
		]`)
		collector := newCollector()

		out, err := Merge(in, "id", collector)
		require.NoError(t, err)
		assert.Equal(t, "parsed", field(out[0], "v"))
		assert.Equal(t, map[diagnostics.Code]int{diagnostics.CodeInvalidTimestamp: 1}, collector.CountByCode())
	})

	t.Run("blank updated_at ranks lowest with a warning", func(t *testing.T) {
		in := records(t, `[
			{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":"parsed"},
			{"id":"1","updated_at":"  ","v":"blank"},
			{"id":"1","updated_at":null,"v":"null"}
		]`)
		collector := newCollector()

		out, err := Merge(in, "id", collector)
		require.NoError(t, err)
		assert.Equal(t, "parsed", field(out[0], "v"))
		assert.Equal(t, map[diagnostics.Code]int{diagnostics.CodeInvalidTimestamp: 1}, collector.CountByCode())
	})

	t.Run("custom identity field", func(t *testing.T) {
		out, err := Merge(records(t, `[{"code":"x","v":1},{"code":"x","v":2}]`), "code", nil)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "2", field(out[0], "v"))
	})

	t.Run("empty identity field", func(t *testing.T) {
		_, err := Merge(nil, "", nil)
		assert.ErrorIs(t, err, fernerrors.ErrInvalidConfiguration)
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := Merge(nil, "id", nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("input is untouched", func(t *testing.T) {
		in := records(t, `[{"id":"1","v":1},{"id":"1","v":2}]`)
		_, err := Merge(in, "id", nil)
		require.NoError(t, err)
		assert.Len(t, in, 2)
		assert.Equal(t, "1", field(in[0], "v"))
	})
}

func TestMergeSnapshots(t *testing.T) {
	d, err := NewDeduplicator(DefaultIdentityField)
	require.NoError(t, err)

	first := records(t, `[{"id":"1","updated_at":"2024-01-01T00:00:00Z","v":"a"},{"id":"2","updated_at":"2024-01-01T00:00:00Z"}]`)
	second := records(t, `[{"id":"1","updated_at":"2024-01-02T00:00:00Z","v":"b"},{"id":"3"}]`)

	out := d.MergeSnapshots(nil, first, second)
	require.Len(t, out, 3)
	assert.Equal(t, "b", field(out[0], "v"))
	assert.Equal(t, "2", field(out[1], "id"))
	assert.Equal(t, "3", field(out[2], "id"))
}

func TestIdentity(t *testing.T) {
	d, err := NewDeduplicator(DefaultIdentityField)
	require.NoError(t, err)

	in := records(t, `[{"id":7},{"_id":"x"},{"id":""},{"name":"none"}]`)

	id, ok := d.Identity(in[0])
	assert.True(t, ok)
	assert.Equal(t, "7", id)

	id, ok = d.Identity(in[1])
	assert.True(t, ok)
	assert.Equal(t, "x", id)

	_, ok = d.Identity(in[2])
	assert.False(t, ok)

	_, ok = d.Identity(in[3])
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	d, err := NewDeduplicator(DefaultIdentityField)
	require.NoError(t, err)

	in := records(t, `[{"id":1},{"id":"1"},{"name":"none"}]`)

	key, id, ok := d.Key(in[0])
	assert.True(t, ok)
	assert.Equal(t, "number:1", key)
	assert.Equal(t, "1", id)

	key, id, ok = d.Key(in[1])
	assert.True(t, ok)
	assert.Equal(t, "string:1", key)
	assert.Equal(t, "1", id)

	_, _, ok = d.Key(in[2])
	assert.False(t, ok)
}
