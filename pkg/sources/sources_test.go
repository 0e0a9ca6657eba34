package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtract(t *testing.T) {
	parse := func(t *testing.T, doc string) models.Value {
		t.Helper()
		v, err := models.ParseJSON([]byte(doc))
		require.NoError(t, err)
		return v
	}

	t.Run("selects the array and keeps key order", func(t *testing.T) {
		items, err := NewExtractor().Extract(parse(t, `{"records":[{"z":1,"a":2,"m":3}]}`), "records")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, []string{"z", "a", "m"}, items[0].Object().Keys())
	})

	t.Run("nested path with a filter", func(t *testing.T) {
		doc := parse(t, `{"data":{"rows":[{"id":"1","status":"open"},{"id":"2","status":"closed"}]}}`)
		items, err := NewExtractor().Extract(doc, "data.rows[?status=='open']")
		require.NoError(t, err)
		require.Len(t, items, 1)
		id, _ := items[0].Object().Get("id")
		assert.Equal(t, "1", id.Text())
	})

	t.Run("falls back to a root array", func(t *testing.T) {
		items, err := NewExtractor().Extract(parse(t, `[{"id":"1"},{"id":"2"}]`), "records")
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("empty expression needs a root array", func(t *testing.T) {
		_, err := NewExtractor().Extract(parse(t, `{"records":[]}`), "")
		assert.Error(t, err)
	})

	t.Run("non array selection", func(t *testing.T) {
		_, err := NewExtractor().Extract(parse(t, `{"records":{"id":"1"}}`), "records")
		assert.Error(t, err)
	})

	t.Run("invalid expression", func(t *testing.T) {
		assert.Error(t, NewExtractor().Validate("records[?"))
	})

	t.Run("projected objects are rebuilt", func(t *testing.T) {
		items, err := NewExtractor().Extract(parse(t, `{"records":[{"id":"1","x":2}]}`), "records[].{id: id}")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, []string{"id"}, items[0].Object().Keys())
	})
}

func TestValidateRecord(t *testing.T) {
	record, err := models.ParseRecord([]byte(`{"_id":"1","status":null}`))
	require.NoError(t, err)

	collector := diagnostics.New(nil)
	assert.True(t, ValidateRecord(record, collector, "id"))
	assert.Zero(t, collector.Len())

	assert.False(t, ValidateRecord(record, collector, "id", "status", "form_values"))
	warnings := collector.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, diagnostics.CodeInvalidRecordStructure, warnings[0].Code)
	assert.Equal(t, "status", warnings[0].Field)
	assert.Equal(t, "1", warnings[0].RecordID)
	assert.Equal(t, "form_values", warnings[1].Field)

	assert.True(t, ValidateRecord(record, nil))
}

func TestJSONFileSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/one.json", `{"records":[{"id":"1"},{"id":"2"}]}`)
	writeFile(t, dir, "b/nested/two.json", `[{"id":"3"},"not a record",{"name":"no id"}]`)
	writeFile(t, dir, "notes.txt", `ignored`)

	source, err := NewJSONFileSource(filepath.Join(dir, "**", "*.json"), Options{
		RecordsPath:    "records",
		RequiredFields: []string{"id"},
	}, silentLogger)
	require.NoError(t, err)

	batch, err := source.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TypeJSONFile, batch.Label)
	require.Equal(t, 4, batch.Len())
	assert.Equal(t, "1", recordID(batch.Records[0]))
	assert.Equal(t, "3", recordID(batch.Records[2]))

	require.Len(t, batch.Warnings, 2)
	assert.Contains(t, batch.Warnings[0].Message, "two.json item 1")
	assert.Equal(t, "id", batch.Warnings[1].Field)
}

func TestJSONFileSourceErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewJSONFileSource("", Options{}, silentLogger)
	assert.Error(t, err)

	_, err = NewJSONFileSource(filepath.Join(dir, "*.json"), Options{RecordsPath: "records[?"}, silentLogger)
	assert.Error(t, err)

	source, err := NewJSONFileSource(filepath.Join(dir, "*.json"), Options{Label: "x"}, silentLogger)
	require.NoError(t, err)
	_, err = source.Fetch(context.Background())
	assert.ErrorContains(t, err, "no files match")

	writeFile(t, dir, "bad.json", `{"records":`)
	_, err = source.Fetch(context.Background())
	assert.ErrorContains(t, err, "failed to parse")
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"1","form_values":{"a":1}},{"id":"2"}]}`))
	}))
	defer server.Close()

	t.Run("fetches and extracts", func(t *testing.T) {
		source, err := NewHTTPSource(server.URL, map[string]string{"X-Api-Key": "secret"}, time.Second, Options{
			Label:       "inspections",
			RecordsPath: "records",
		}, silentLogger)
		require.NoError(t, err)

		batch, err := source.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "inspections", batch.Label)
		assert.Equal(t, 2, batch.Len())
		assert.Empty(t, batch.Warnings)
	})

	t.Run("non 2xx status fails", func(t *testing.T) {
		source, err := NewHTTPSource(server.URL, nil, 0, Options{RecordsPath: "records"}, silentLogger)
		require.NoError(t, err)

		_, err = source.Fetch(context.Background())
		assert.ErrorContains(t, err, "401")
	})

	t.Run("url is required", func(t *testing.T) {
		_, err := NewHTTPSource("", nil, 0, Options{}, silentLogger)
		assert.Error(t, err)
	})
}

func TestDecodeBatch(t *testing.T) {
	batch, err := DecodeBatch([]byte(`[{"id":"1"},42]`), "inline", Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "inline", batch.Label)
	assert.Equal(t, 1, batch.Len())
	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, diagnostics.CodeInvalidRecordStructure, batch.Warnings[0].Code)

	_, err = DecodeBatch([]byte(`nope`), "inline", Options{}, nil)
	assert.Error(t, err)
}

type fakeBatchReader struct {
	messages []*kafka.ReceivedMessage
	err      error
}

func (r *fakeBatchReader) ReadBatch(_ context.Context) ([]*kafka.ReceivedMessage, error) {
	return r.messages, r.err
}

func (r *fakeBatchReader) Topic() string {
	return "fern-raw-records"
}

func TestKafkaSource(t *testing.T) {
	t.Run("one record per message", func(t *testing.T) {
		reader := &fakeBatchReader{messages: []*kafka.ReceivedMessage{
			{Topic: "fern-raw-records", Offset: 0, Value: []byte(`{"id":"1"}`)},
			{Topic: "fern-raw-records", Offset: 1, Value: []byte(`not json`)},
			{Topic: "fern-raw-records", Offset: 2, Value: []byte(`[1]`)},
			{Topic: "fern-raw-records", Offset: 3, Value: []byte(`{"id":"2"}`)},
		}}

		batch, err := NewKafkaSource(reader, Options{}, silentLogger).Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fern-raw-records", batch.Label)
		assert.Equal(t, 2, batch.Len())
		require.Len(t, batch.Warnings, 2)
		assert.Contains(t, batch.Warnings[0].Message, "offset 1")
	})

	t.Run("read errors fail the fetch", func(t *testing.T) {
		reader := &fakeBatchReader{err: errors.New("broker down")}
		_, err := NewKafkaSource(reader, Options{}, silentLogger).Fetch(context.Background())
		assert.ErrorContains(t, err, "broker down")
	})
}

func recordID(record models.Record) string {
	v, _ := record.Get("id")
	return v.Text()
}
