package graph

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFromTablesOneToMany(t *testing.T) {
	tables := []pgmeta.TableInfo{
		{Name: "users", PrimaryKey: []string{"id"}},
		{
			Name:       "orders",
			PrimaryKey: []string{"id"},
			ForeignKeys: []pgmeta.ForeignKey{
				{Table: "orders", ColumnNames: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
			},
		},
	}

	g := BuildFromTables(tables)

	edges := g.Edges("orders")
	require.Len(t, edges, 1)
	assert.Equal(t, "users", edges[0].TargetTable)

	// one-to-many: no reverse edge on the forward graph alone.
	assert.Empty(t, g.Edges("users"))

	// Bidirectional() recovers the reverse direction via inversion.
	bi := g.Bidirectional()
	usersEdges := bi.Edges("users")
	require.Len(t, usersEdges, 1)
	assert.Equal(t, "orders", usersEdges[0].TargetTable)
}

func TestBuildFromTablesOneToOne(t *testing.T) {
	tables := []pgmeta.TableInfo{
		{Name: "people", PrimaryKey: []string{"id"}},
		{
			Name:       "profiles",
			PrimaryKey: []string{"id"},
			ForeignKeys: []pgmeta.ForeignKey{
				{Table: "profiles", ColumnNames: []string{"id"}, ReferencedTable: "people", ReferencedColumns: []string{"id"}},
			},
		},
	}

	g := BuildFromTables(tables)

	// one-to-one: both directions present on the forward graph already.
	assert.Len(t, g.Edges("profiles"), 1)
	assert.Len(t, g.Edges("people"), 1)
}

func TestRemoveIncomingDropsSelfLoopsAndParents(t *testing.T) {
	g := New()
	g.AddEdge(RelationEdge{SourceTable: "employees", TargetTable: "employees", SourceKey: []string{"manager_id"}, TargetKey: []string{"id"}})
	g.AddEdge(RelationEdge{SourceTable: "departments", TargetTable: "employees", SourceKey: []string{"lead_id"}, TargetKey: []string{"id"}})

	g.RemoveIncoming("employees")

	assert.Empty(t, g.Edges("employees"))
	assert.Empty(t, g.Edges("departments"))
}

func TestRemoveOutgoing(t *testing.T) {
	g := New()
	g.AddEdge(RelationEdge{SourceTable: "orders", TargetTable: "users", SourceKey: []string{"user_id"}, TargetKey: []string{"id"}})

	g.RemoveOutgoing("orders")

	assert.Empty(t, g.Edges("orders"))
}

func TestMergeDeduplicatesByIdentity(t *testing.T) {
	a := New()
	a.AddEdge(RelationEdge{SourceTable: "a", TargetTable: "b", SourceKey: []string{"b_id"}, TargetKey: []string{"id"}})

	b := New()
	b.AddEdge(RelationEdge{SourceTable: "a", TargetTable: "b", SourceKey: []string{"b_id"}, TargetKey: []string{"id"}})
	b.AddEdge(RelationEdge{SourceTable: "a", TargetTable: "c", SourceKey: []string{"c_id"}, TargetKey: []string{"id"}})

	a.Merge(b)

	assert.Len(t, a.Edges("a"), 2)
}

func TestNeighborhoodDistanceOne(t *testing.T) {
	g := New()
	g.AddEdge(RelationEdge{SourceTable: "a", TargetTable: "b", SourceKey: []string{"b_id"}, TargetKey: []string{"id"}})
	g.AddEdge(RelationEdge{SourceTable: "b", TargetTable: "c", SourceKey: []string{"c_id"}, TargetKey: []string{"id"}})

	n := g.Neighborhood("a", 1)

	assert.Len(t, n.Edges("a"), 1)
	assert.Empty(t, n.Edges("b"))
}
