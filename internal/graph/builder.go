package graph

import (
	"sort"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
)

// BuildFromTables applies the construction rule of §3 to a set of introspected
// tables: for each FK T(cols)→U(ref_cols), always emit T→U; emit U→T too, but
// only when cols equals T's primary key (the one-to-one case). Tables are
// visited in name order and each table's FKs in slice order, so the edge
// insertion order does not depend on the order of tables. The caller is
// expected to take Bidirectional() afterward, which is why the one-to-one
// case double-adding the reverse edge is harmless — edges are a set.
func BuildFromTables(tables []pgmeta.TableInfo) *TableGraph {
	g := New()

	pkByTable := make(map[string][]string, len(tables))
	for _, t := range tables {
		pkByTable[t.Name] = t.PrimaryKey
	}

	ordered := append([]pgmeta.TableInfo(nil), tables...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	for _, t := range ordered {
		for _, fk := range t.ForeignKeys {
			childToParent := RelationEdge{
				SourceTable: t.Name,
				TargetTable: fk.ReferencedTable,
				SourceKey:   fk.ColumnNames,
				TargetKey:   fk.ReferencedColumns,
			}
			g.AddEdge(childToParent)

			if isOneToOne(pkByTable[t.Name], fk.ColumnNames) {
				g.AddEdge(childToParent.Inverse())
			}
		}
	}

	return g
}

// isOneToOne reports whether fkCols is exactly the table's primary key,
// order-insensitive (a FK column list may be declared in a different column
// order than the PK it shadows).
func isOneToOne(primaryKey, fkCols []string) bool {
	if len(primaryKey) == 0 || len(primaryKey) != len(fkCols) {
		return false
	}
	pkSet := make(map[string]bool, len(primaryKey))
	for _, c := range primaryKey {
		pkSet[c] = true
	}
	for _, c := range fkCols {
		if !pkSet[c] {
			return false
		}
	}
	return true
}
