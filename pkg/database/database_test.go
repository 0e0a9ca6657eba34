package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func openSQLite(t *testing.T) *DatabaseInstance {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "fern.db"),
		MaxOpenConns: 1,
	}, silentLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func migrateSQLite(t *testing.T, db *DatabaseInstance) {
	t.Helper()
	service := NewMigrator(silentLogger, MigrationConfig{
		Dir: filepath.Join("..", "..", "migrations", "sqlite"),
	})
	require.NoError(t, service.Apply(db))
}

func TestFlavorFor(t *testing.T) {
	tests := []struct {
		driver   string
		expected sqlbuilder.Flavor
	}{
		{DriverPostgres, sqlbuilder.PostgreSQL},
		{DriverMySQL, sqlbuilder.MySQL},
		{DriverSQLite, sqlbuilder.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			flavor, err := FlavorFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, flavor)
		})
	}

	_, err := FlavorFor("oracle")
	assert.Error(t, err)
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, silentLogger)
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverSQLite}, silentLogger)
	assert.Error(t, err)
}

func TestOnConflictUpdate(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		query, args := NewInsertBuilder(sqlbuilder.PostgreSQL).
			InsertInto("fern_records").
			Cols("record_id", "content_hash").
			Values("1", "abc").
			OnConflictUpdate([]string{"record_id"}, []string{"content_hash"}).
			Build()

		assert.Contains(t, query, "INSERT INTO fern_records (record_id, content_hash) VALUES ($1, $2)")
		assert.Contains(t, query, "ON CONFLICT (record_id) DO UPDATE SET content_hash = EXCLUDED.content_hash")
		assert.Equal(t, []interface{}{"1", "abc"}, args)
	})

	t.Run("mysql", func(t *testing.T) {
		query, _ := NewInsertBuilder(sqlbuilder.MySQL).
			InsertInto("fern_records").
			Cols("record_id", "content_hash").
			Values("1", "abc").
			OnConflictUpdate([]string{"record_id"}, []string{"content_hash"}).
			Build()

		assert.Contains(t, query, "VALUES (?, ?)")
		assert.Contains(t, query, "ON DUPLICATE KEY UPDATE content_hash = VALUES(content_hash)")
		assert.NotContains(t, query, "ON CONFLICT")
	})
}

func TestJSONB(t *testing.T) {
	value, err := NewJSONB(map[string]any{"a": 1.0}).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, value)

	var fromBytes JSONB[map[string]any]
	require.NoError(t, fromBytes.Scan([]byte(`{"b":"x"}`)))
	assert.Equal(t, map[string]any{"b": "x"}, fromBytes.GetValue())

	var fromString JSONB[map[string]any]
	require.NoError(t, fromString.Scan(`{"c":true}`))
	assert.Equal(t, map[string]any{"c": true}, fromString.GetValue())

	var bad JSONB[map[string]any]
	assert.Error(t, bad.Scan(42))
}

type row struct {
	RecordID    string                `db:"record_id"`
	ContentHash string                `db:"content_hash"`
	Data        JSONB[map[string]any] `db:"data"`
}

func TestSQLiteUpsertAndMigrations(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	migrateSQLite(t, db)

	// a second run has nothing to apply
	migrateSQLite(t, db)

	upsert := func(hash string) {
		query, args := NewInsertBuilder(db.Flavor()).
			InsertInto("fern_records").
			Cols("batch_label", "record_id", "content_hash", "data", "exported_at").
			Values("survey", "1", hash, NewJSONB(map[string]any{"hash": hash}), time.Now().UTC().Format(time.RFC3339)).
			OnConflictUpdate([]string{"batch_label", "record_id"}, []string{"content_hash", "data", "exported_at"}).
			Build()
		_, err := db.ExecContext(ctx, query, args...)
		require.NoError(t, err)
	}

	upsert("first")
	upsert("second")

	var rows []row
	require.NoError(t, db.SelectContext(ctx, &rows, "SELECT record_id, content_hash, data FROM fern_records"))
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].ContentHash)
	assert.Equal(t, "second", rows[0].Data.GetValue()["hash"])
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	migrateSQLite(t, db)

	insert := "INSERT INTO fern_records (batch_label, record_id, content_hash, data, exported_at) VALUES (?, ?, 'h', '{}', 'now')"

	t.Run("rolls back on error", func(t *testing.T) {
		failure := errors.New("boom")
		err := db.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.ExecContext(ctx, insert, "b", "rolled-back")
			require.NoError(t, err)
			return failure
		})
		assert.ErrorIs(t, err, failure)

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM fern_records WHERE record_id = 'rolled-back'"))
		assert.Zero(t, count)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
				_, _ = tx.ExecContext(ctx, insert, "b", "panicked")
				panic("boom")
			})
		})

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM fern_records WHERE record_id = 'panicked'"))
		assert.Zero(t, count)
	})

	t.Run("commits on success", func(t *testing.T) {
		err := db.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			_, err := tx.ExecContext(ctx, insert, "b", "kept")
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM fern_records WHERE record_id = 'kept'"))
		assert.Equal(t, 1, count)
	})
}

func TestMigrateMissingFolder(t *testing.T) {
	db := openSQLite(t)
	service := NewMigrator(silentLogger, MigrationConfig{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, service.Apply(db))
}

func TestLatestVersion(t *testing.T) {
	latest, err := latestVersion(filepath.Join("..", "..", "migrations", "postgres"))
	require.NoError(t, err)
	assert.Equal(t, uint(1), latest)

	_, err = latestVersion(t.TempDir())
	assert.Error(t, err)
}
