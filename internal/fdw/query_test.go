package fdw

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSingleRowCopy(t *testing.T) {
	table := pgmeta.TableInfo{
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Columns: []pgmeta.ColumnInfo{
			{Name: "id", IsPrimaryKey: true},
			{Name: "user_id"},
			{Name: "total"},
		},
	}

	query, err := BuildSingleRowCopy("public", "pgrelay_remote", table, "(0,5)", "16400")
	require.NoError(t, err)

	assert.Contains(t, query, `INSERT INTO "public"."orders"`)
	assert.Contains(t, query, `FROM "pgrelay_remote"."orders"`)
	assert.Contains(t, query, `ctid = '(0,5)'`)
	assert.Contains(t, query, `tableoid = '16400'::oid`)
	assert.Contains(t, query, `ON CONFLICT ("id") DO UPDATE SET ("user_id", "total") = (EXCLUDED."user_id", EXCLUDED."total")`)
}

func TestBuildSingleRowCopyRequiresPrimaryKey(t *testing.T) {
	table := pgmeta.TableInfo{Name: "logs"}
	_, err := BuildSingleRowCopy("public", "pgrelay_remote", table, "(0,1)", "1")
	assert.Error(t, err)
}
