package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Excluded refers to the value proposed for column in an upsert.
func Excluded(flavor sqlbuilder.Flavor, column string) string {
	if flavor == sqlbuilder.MySQL {
		return fmt.Sprintf("VALUES(%s)", column)
	}
	return fmt.Sprintf("EXCLUDED.%s", column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
	flavor sqlbuilder.Flavor
}

func NewInsertBuilder(flavor sqlbuilder.Flavor) *InsertBuilder {
	return &InsertBuilder{
		InsertBuilder: flavor.NewInsertBuilder(),
		flavor:        flavor,
	}
}

func (b *InsertBuilder) InsertInto(table string) *InsertBuilder {
	b.InsertBuilder.InsertInto(table)
	return b
}

func (b *InsertBuilder) Cols(col ...string) *InsertBuilder {
	b.InsertBuilder.Cols(col...)
	return b
}

func (b *InsertBuilder) Values(value ...interface{}) *InsertBuilder {
	b.InsertBuilder.Values(value...)
	return b
}

// OnConflictUpdate turns the insert into an upsert keyed on conflictColumns that overwrites
// updateColumns with the incoming values.
func (b *InsertBuilder) OnConflictUpdate(conflictColumns []string, updateColumns []string) *InsertBuilder {
	assignments := make([]string, 0, len(updateColumns))
	for _, col := range updateColumns {
		assignments = append(assignments, fmt.Sprintf("%s = %s", col, Excluded(b.flavor, col)))
	}

	if b.flavor == sqlbuilder.MySQL {
		b.SQL("ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", "))
		return b
	}

	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictColumns, ", "), strings.Join(assignments, ", ")))
	return b
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder(flavor sqlbuilder.Flavor) *SelectBuilder {
	return &SelectBuilder{flavor.NewSelectBuilder()}
}

type DeleteBuilder struct {
	*sqlbuilder.DeleteBuilder
}

func NewDeleteBuilder(flavor sqlbuilder.Flavor) *DeleteBuilder {
	return &DeleteBuilder{flavor.NewDeleteBuilder()}
}
