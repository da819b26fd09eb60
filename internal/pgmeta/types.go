// Package pgmeta introspects PostgreSQL schemas for foreign-key relationships,
// primary keys, and columns.
package pgmeta

// TableInfo describes a single table's identity and key structure.
type TableInfo struct {
	Schema      string
	Name        string
	Columns     []ColumnInfo
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// QualifiedName returns "schema.table".
func (t TableInfo) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name         string
	DataType     string
	IsNullable   bool
	Position     int
	IsPrimaryKey bool
}

// ForeignKey describes one foreign key constraint. A composite key lists all
// of its columns in ColumnNames/ReferencedColumns, in constraint order.
type ForeignKey struct {
	ConstraintName     string
	Table               string
	ColumnNames         []string
	ReferencedSchema    string
	ReferencedTable     string
	ReferencedColumns   []string
}
