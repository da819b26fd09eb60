package cmd

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/stretchr/testify/assert"
)

func TestCloneSchemaCommandStructure(t *testing.T) {
	assert.NotNil(t, cloneSchemaCmd)
	assert.Equal(t, "clone-schema", cloneSchemaCmd.Use)
	assert.NotNil(t, cloneSchemaCmd.RunE)
}

func TestCloneSchemaIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "clone-schema" {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func TestCreateTableDDL(t *testing.T) {
	info := pgmeta.TableInfo{
		Name: "orders",
		Columns: []pgmeta.ColumnInfo{
			{Name: "id", DataType: "integer", IsNullable: false},
			{Name: "customer_id", DataType: "integer", IsNullable: true},
		},
		PrimaryKey: []string{"id"},
	}

	stmt := createTableDDL("public", info)

	assert.Contains(t, stmt, `CREATE TABLE IF NOT EXISTS "public"."orders"`)
	assert.Contains(t, stmt, `"id" integer NOT NULL`)
	assert.Contains(t, stmt, `"customer_id" integer`)
	assert.NotContains(t, stmt, `"customer_id" integer NOT NULL`)
	assert.Contains(t, stmt, `PRIMARY KEY ("id")`)
}

func TestCreateTableDDLWithoutPrimaryKey(t *testing.T) {
	info := pgmeta.TableInfo{
		Name: "audit_log",
		Columns: []pgmeta.ColumnInfo{
			{Name: "message", DataType: "text", IsNullable: true},
		},
	}

	stmt := createTableDDL("public", info)
	assert.NotContains(t, stmt, "PRIMARY KEY")
}

func TestAddForeignKeyDDL(t *testing.T) {
	info := pgmeta.TableInfo{Name: "orders"}
	fk := pgmeta.ForeignKey{
		ConstraintName:    "orders_customer_fk",
		ColumnNames:       []string{"customer_id"},
		ReferencedTable:   "customers",
		ReferencedColumns: []string{"id"},
	}

	stmt := addForeignKeyDDL("public", info, fk)

	assert.Contains(t, stmt, `ALTER TABLE "public"."orders"`)
	assert.Contains(t, stmt, `ADD CONSTRAINT "orders_customer_fk"`)
	assert.Contains(t, stmt, `FOREIGN KEY ("customer_id")`)
	assert.Contains(t, stmt, `REFERENCES "public"."customers" ("id")`)
}

func TestAddForeignKeyDDLComposite(t *testing.T) {
	info := pgmeta.TableInfo{Name: "order_items"}
	fk := pgmeta.ForeignKey{
		ConstraintName:    "order_items_order_fk",
		ColumnNames:       []string{"order_id", "order_version"},
		ReferencedTable:   "orders",
		ReferencedColumns: []string{"id", "version"},
	}

	stmt := addForeignKeyDDL("public", info, fk)
	assert.Contains(t, stmt, `FOREIGN KEY ("order_id", "order_version")`)
	assert.Contains(t, stmt, `REFERENCES "public"."orders" ("id", "version")`)
}
