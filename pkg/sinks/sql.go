package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/paging"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultSQLTable = "fern_records"

	// rows per statement, well under the postgres bind parameter limit
	sqlStatementRows = 1000
)

var (
	sqlColumns       = []string{"batch_label", "record_id", "content_hash", "data", "exported_at"}
	sqlConflictKey   = []string{"batch_label", "record_id"}
	sqlUpdateColumns = []string{"content_hash", "data", "exported_at"}
)

// SQLSink upserts every record into one table keyed by (batch_label, record_id), where
// record_id holds the typed identity key. Each page is written in its own transaction.
type SQLSink struct {
	db     database.DB
	table  string
	logger ectologger.Logger
}

func NewSQLSink(db database.DB, table string, logger ectologger.Logger) *SQLSink {
	if table == "" {
		table = DefaultSQLTable
	}
	return &SQLSink{db: db, table: table, logger: logger}
}

func (s *SQLSink) Name() string {
	return TargetSQL
}

func (s *SQLSink) Export(ctx context.Context, export Export) error {
	ctx, span := tracing.StartSpan(ctx, "sinks.SQLSink.Export")
	defer span.End()

	written := 0
	for i, page := range export.Pages {
		rows, err := paging.Paginate(s.rows(export, i, page), sqlStatementRows)
		if err != nil {
			return err
		}

		err = s.db.RunInTx(ctx, func(ctx context.Context, tx database.Tx) error {
			for _, chunk := range rows {
				n, err := s.upsert(ctx, tx, export, chunk)
				if err != nil {
					return err
				}
				written += n
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write page %d of %d to %s: %w", i+1, len(export.Pages), s.table, err)
		}
	}

	s.logger.WithContext(ctx).Debugf("Upserted %d records into %s", written, s.table)
	return nil
}

type sqlRow struct {
	entry  Entry
	record models.FlatRecord
}

func (s *SQLSink) rows(export Export, page int, records []models.FlatRecord) []sqlRow {
	out := make([]sqlRow, len(records))
	for i, record := range records {
		out[i] = sqlRow{entry: export.Entry(page, i), record: record}
	}
	return out
}

// upsert writes rows keyed by the typed identity key.
func (s *SQLSink) upsert(ctx context.Context, tx database.Tx, export Export, rows []sqlRow) (int, error) {
	flavor := s.db.Flavor()
	builder := database.NewInsertBuilder(flavor).
		InsertInto(s.table).
		Cols(sqlColumns...)

	count := 0
	for _, row := range rows {
		if row.entry.Key == "" {
			s.logger.WithContext(ctx).Warnf("Skipping record without identity in %s export", s.table)
			continue
		}
		builder.Values(
			export.Metadata.BatchLabel,
			row.entry.Key,
			string(row.entry.Hash),
			database.NewJSONB(row.record),
			exportedAt(flavor, export.Metadata.GeneratedAt),
		)
		count++
	}
	if count == 0 {
		return 0, nil
	}

	query, args := builder.OnConflictUpdate(sqlConflictKey, sqlUpdateColumns).Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

// sqlite stores timestamps as text.
func exportedAt(flavor sqlbuilder.Flavor, t time.Time) any {
	if flavor == sqlbuilder.SQLite {
		return t.UTC().Format(time.RFC3339)
	}
	return t.UTC()
}
