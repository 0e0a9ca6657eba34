package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/sources"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	config := DefaultConfig()
	config.Now = func() time.Time { return fixedNow }
	return config
}

func batch(t *testing.T, label, doc string) *sources.Batch {
	t.Helper()
	b, err := sources.DecodeBatch([]byte(doc), label, sources.Options{}, nil)
	require.NoError(t, err)
	return b
}

func text(t *testing.T, r models.FlatRecord, key string) string {
	t.Helper()
	v, ok := r.Get(key)
	require.True(t, ok, "missing key %s", key)
	return v.Text()
}

func TestRun(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	input := batch(t, "inspections", `[
		{"_id":"1","_updated_at":"2024-01-01T00:00:00Z","form_values":{"site":{"name":"Old"}}},
		{"_id":"2","_updated_at":"1704153600000","_status":"done","form_values":{"photos":[{"id":"p1"}]}},
		{"_id":"1","_updated_at":"2024-01-03T00:00:00Z","form_values":{"site":{"name":"New"}}},
		{"form_values":{"orphan":true}},
		{"_id":"3","_created_at":"yesterday"}
	]`)

	result, err := p.Run(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "inspections", result.BatchLabel)
	assert.Equal(t, 5, result.InputCount)
	require.Len(t, result.Flat, 3)
	assert.Equal(t, "1", text(t, result.Flat[0], "id"))
	assert.Equal(t, "New", text(t, result.Flat[0], "site_name"))
	assert.Equal(t, "2024-01-02T00:00:00Z", text(t, result.Flat[1], "updated_at"))
	assert.Equal(t, "inspections", text(t, result.Flat[2], models.FieldBatchLabel))
	assert.Equal(t, "2024-03-01T12:00:00Z", text(t, result.Flat[2], models.FieldProcessedAt))
	assert.Equal(t, fixedNow, result.GeneratedAt)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, sinks.Entry{ID: "1", Key: "string:1", Hash: fingerprint.Digest(result.Records[0])}, result.Entries[0])

	assert.Equal(t, 1, result.PageCount())
	assert.Contains(t, result.Columns, "site_name")
	assert.Equal(t, "batch_label", result.Mapping[models.FieldBatchLabel])
	assert.Equal(t, 3, result.Summary.TotalRecords)
	assert.Equal(t, 1, result.Summary.RecordsWithPhotos)

	codes := make([]diagnostics.Code, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []diagnostics.Code{diagnostics.CodeMissingIdentity, diagnostics.CodeInvalidTimestamp}, codes)
}

func TestRunReplaysSourceWarnings(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"id":"1"}, 5]`))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, diagnostics.CodeInvalidRecordStructure, result.Warnings[0].Code)
	assert.Equal(t, "source", result.Warnings[0].Stage)
}

func TestRunEmpty(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Flat)
	assert.Equal(t, [][]models.FlatRecord{}, result.Pages)
	assert.Empty(t, result.Warnings)
}

func TestRunPaginates(t *testing.T) {
	config := testConfig()
	config.PageSize = 2
	p, err := New(config, silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"id":"1"},{"id":"2"},{"id":"3"}]`))
	require.NoError(t, err)
	require.Equal(t, 2, result.PageCount())
	assert.Len(t, result.Pages[0], 2)
	assert.Len(t, result.Pages[1], 1)
	assert.Equal(t, "3", text(t, result.Pages[1][0], "id"))
}

func TestRunRejectsDeepRecords(t *testing.T) {
	config := testConfig()
	config.MaxDepth = 2
	p, err := New(config, silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"id":"1","form_values":{"a":{"b":{"c":1}}}},{"id":"2"}]`))
	require.NoError(t, err)
	require.Len(t, result.Flat, 1)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "2", text(t, result.Flat[0], "id"))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, diagnostics.CodeRecordRejected, result.Warnings[0].Code)
}

func TestRunFieldOverridesAndNormalizers(t *testing.T) {
	config := testConfig()
	config.FieldNameOverrides = map[string]string{"email": "Email Address"}
	config.FieldNormalizers = map[string][]string{"email": {"trim", "lowercase"}}
	p, err := New(config, silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"id":"1","form_values":{"email":" A@B.COM "}}]`))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", text(t, result.Flat[0], "email"))
	assert.Equal(t, "Email Address", result.Mapping["email"])
}

type fakeHashStore struct {
	stored map[string]fingerprint.ContentHash
	err    error
	label  string
}

func (s *fakeHashStore) Load(_ context.Context, label string, keys []string) (map[string]fingerprint.ContentHash, error) {
	s.label = label
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]fingerprint.ContentHash)
	for _, key := range keys {
		if h, ok := s.stored[key]; ok {
			out[key] = h
		}
	}
	return out, nil
}

func TestRunChangedOnly(t *testing.T) {
	doc := `[{"id":"1","form_values":{"a":1}},{"id":"2","form_values":{"a":2}}]`

	first, err := New(testConfig(), silentLogger)
	require.NoError(t, err)
	previous, err := first.Run(context.Background(), batch(t, "x", doc))
	require.NoError(t, err)

	store := &fakeHashStore{stored: map[string]fingerprint.ContentHash{
		"string:1": previous.Entries[0].Hash,
		"string:2": "0000000000000000",
	}}

	config := testConfig()
	config.ChangedOnly = true
	p, err := New(config, silentLogger, WithHashStore(store))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", doc))
	require.NoError(t, err)
	assert.Equal(t, "x", store.label)
	assert.Equal(t, 1, result.Unchanged)
	require.Len(t, result.Flat, 1)
	assert.Equal(t, "2", text(t, result.Flat[0], "id"))
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "string:2", result.Entries[0].Key)

	t.Run("a stored text id does not match a numeric one", func(t *testing.T) {
		store := &fakeHashStore{stored: map[string]fingerprint.ContentHash{}}
		numeric := `[{"id":1,"form_values":{"a":1}}]`
		seed, err := first.Run(context.Background(), batch(t, "x", numeric))
		require.NoError(t, err)
		store.stored["string:1"] = seed.Entries[0].Hash

		p, err := New(config, silentLogger, WithHashStore(store))
		require.NoError(t, err)
		result, err := p.Run(context.Background(), batch(t, "x", numeric))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Unchanged)
		require.Len(t, result.Flat, 1)
	})

	t.Run("hash store errors fail the run", func(t *testing.T) {
		p, err := New(config, silentLogger, WithHashStore(&fakeHashStore{err: errors.New("redis down")}))
		require.NoError(t, err)
		_, err = p.Run(context.Background(), batch(t, "x", doc))
		assert.ErrorContains(t, err, "redis down")
	})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"page size", func(c *Config) { c.PageSize = 0 }},
		{"max depth", func(c *Config) { c.MaxDepth = 0 }},
		{"identity field", func(c *Config) { c.IdentityField = "" }},
		{"unknown normalizer", func(c *Config) { c.FieldNormalizers = map[string][]string{"a": {"nope"}} }},
		{"changed only without store", func(c *Config) { c.ChangedOnly = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.modify(&config)
			_, err := New(config, silentLogger)
			assert.ErrorIs(t, err, fernerrors.ErrInvalidConfiguration)
		})
	}
}

func TestResultExport(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "survey", `[{"id":"1"},{"id":"2"}]`))
	require.NoError(t, err)

	export := result.Export()
	assert.Equal(t, result.RunID, export.Metadata.RunID)
	assert.Equal(t, "survey", export.Metadata.BatchLabel)
	assert.Equal(t, 2, export.Metadata.RecordCount)
	assert.Equal(t, result.Entries[1], export.Entry(0, 1))
	assert.Equal(t, "2", export.Entry(0, 1).ID)

	t.Run("entries follow page boundaries", func(t *testing.T) {
		config := testConfig()
		config.PageSize = 2
		p, err := New(config, silentLogger)
		require.NoError(t, err)

		result, err := p.Run(context.Background(), batch(t, "survey", `[{"id":"1"},{"id":"2"},{"id":"3"}]`))
		require.NoError(t, err)

		export := result.Export()
		require.Len(t, export.Entries, 2)
		assert.Len(t, export.Entries[0], 2)
		assert.Equal(t, "3", export.Entry(1, 0).ID)
		assert.Equal(t, sinks.Entry{}, export.Entry(1, 1))
	})
}

func TestRunKeepsIdentityTypesApart(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[
		{"id":1,"form_values":{"v":"number"}},
		{"id":"1","form_values":{"v":"text"}}
	]`))
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "number:1", result.Entries[0].Key)
	assert.Equal(t, "string:1", result.Entries[1].Key)
	assert.Equal(t, fingerprint.Digest(result.Records[0]), result.Entries[0].Hash)
	assert.Equal(t, fingerprint.Digest(result.Records[1]), result.Entries[1].Hash)
	assert.NotEqual(t, result.Entries[0].Hash, result.Entries[1].Hash)
}

func TestRunFormFieldDoesNotShadowIdentity(t *testing.T) {
	p, err := New(testConfig(), silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"_id":"rec-1","form_values":{"id":"asset-9"}}]`))
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, "asset-9", text(t, result.Flat[0], "id"))
	entry := result.Export().Entry(0, 0)
	assert.Equal(t, "rec-1", entry.ID)
	assert.Equal(t, fingerprint.Digest(result.Records[0]), entry.Hash)
}

func TestRunOverridesRawSystemFieldNames(t *testing.T) {
	config := testConfig()
	config.FieldNameOverrides = map[string]string{"_status": "State", "_id": "Record", "id": "Identifier"}
	p, err := New(config, silentLogger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), batch(t, "x", `[{"_id":"1","_status":"done"}]`))
	require.NoError(t, err)
	assert.Equal(t, "State", result.Mapping["status"])
	assert.Equal(t, "Identifier", result.Mapping["id"])
	assert.NotContains(t, result.Mapping, "_status")
}
