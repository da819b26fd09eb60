package pgmeta

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows is a hand-written pgx.Rows fake over in-memory records, used in
// place of a mocking library since the ecosystem has no pgx-native mock in
// this tree.
type fakeRows struct {
	records [][]interface{}
	pos     int
}

func (f *fakeRows) Next() bool {
	f.pos++
	return f.pos <= len(f.records)
}

func (f *fakeRows) Scan(dest ...interface{}) error {
	row := f.records[f.pos-1]
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *int:
			*ptr = row[i].(int)
		}
	}
	return nil
}

func (f *fakeRows) Err() error                                      { return nil }
func (f *fakeRows) Close()                                          {}
func (f *fakeRows) CommandTag() pgx.CommandTag                      { return pgx.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgx.FieldDescription       { return nil }
func (f *fakeRows) Values() ([]interface{}, error)                  { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                             { return nil }
func (f *fakeRows) Conn() *pgx.Conn                                  { return nil }

// fakeQuerier dispatches canned result sets keyed by a substring of the SQL.
type fakeQuerier struct {
	responses map[string]*fakeRows
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...interface{}) (pgx.Rows, error) {
	for key, rows := range q.responses {
		if containsSQL(sql, key) {
			return &fakeRows{records: rows.records}, nil
		}
	}
	return &fakeRows{}, nil
}

func containsSQL(sql, marker string) bool {
	for i := 0; i+len(marker) <= len(sql); i++ {
		if sql[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}

func TestGetTableInfo(t *testing.T) {
	q := &fakeQuerier{responses: map[string]*fakeRows{
		"information_schema.columns": {records: [][]interface{}{
			{"id", "integer", "NO", 1},
			{"order_id", "integer", "YES", 2},
		}},
		"idx.indisprimary": {records: [][]interface{}{
			{"id"},
		}},
		"FOREIGN KEY": {records: [][]interface{}{
			{"fk_orders_order_id", "order_id", "public", "orders", "id", 1},
		}},
	}}

	insp := NewInspector(q)
	info, err := insp.GetTableInfo(context.Background(), "public", "line_items")
	require.NoError(t, err)

	assert.Equal(t, "public.line_items", info.QualifiedName())
	assert.Equal(t, []string{"id"}, info.PrimaryKey)
	require.Len(t, info.Columns, 2)
	assert.True(t, info.Columns[0].IsPrimaryKey)
	assert.False(t, info.Columns[1].IsPrimaryKey)

	require.Len(t, info.ForeignKeys, 1)
	fk := info.ForeignKeys[0]
	assert.Equal(t, "orders", fk.ReferencedTable)
	assert.Equal(t, []string{"order_id"}, fk.ColumnNames)
	assert.Equal(t, []string{"id"}, fk.ReferencedColumns)
}
