package writers

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/walknode"
	"github.com/stretchr/testify/assert"
)

func fakeTable() pgmeta.TableInfo {
	return pgmeta.TableInfo{
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Columns: []pgmeta.ColumnInfo{
			{Name: "id", IsPrimaryKey: true},
			{Name: "user_id"},
		},
	}
}

func fakeNode() walknode.DataNode {
	return walknode.DataNode{Table: "orders", Ctid: "(0,1)", TableOID: "16400"}
}

func TestTupleInClause(t *testing.T) {
	clause, args := tupleInClause([]string{"a", "b"}, [][]interface{}{{1, "x"}, {2, "y"}})
	assert.Equal(t, `("a", "b") IN (($1, $2), ($3, $4))`, clause)
	assert.Equal(t, []interface{}{1, "x", 2, "y"}, args)
}

func TestTupleKeyDistinguishesTuples(t *testing.T) {
	a := tupleKey([]interface{}{1, "x"})
	b := tupleKey([]interface{}{1, "y"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, tupleKey([]interface{}{1, "x"}))
}

func TestOnConflictClause(t *testing.T) {
	clause, err := onConflictClause(fakeTable())
	assert.NoError(t, err)
	assert.Equal(t, `ON CONFLICT ("id") DO UPDATE SET ("user_id") = (EXCLUDED."user_id")`, clause)
}

func TestOnConflictClauseRequiresPrimaryKey(t *testing.T) {
	_, err := onConflictClause(pgmeta.TableInfo{Name: "logs"})
	assert.Error(t, err)
}
