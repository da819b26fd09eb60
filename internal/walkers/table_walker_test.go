package walkers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
)

// fakeEdgeWriter records every call it receives, and reports one new row per
// edge the first time that edge is seen — enough to exercise the
// stack-driven termination in deepCopy without a real database.
type fakeEdgeWriter struct {
	seeded    []string
	edgesSeen map[string]bool
	calls     []string
}

func newFakeEdgeWriter() *fakeEdgeWriter {
	return &fakeEdgeWriter{edgesSeen: make(map[string]bool)}
}

func (f *fakeEdgeWriter) Begin(ctx context.Context) error    { return nil }
func (f *fakeEdgeWriter) Commit(ctx context.Context) error   { return nil }
func (f *fakeEdgeWriter) Rollback(ctx context.Context) error { return nil }

func (f *fakeEdgeWriter) WriteTableWhere(ctx context.Context, table pgmeta.TableInfo, where string) error {
	f.seeded = append(f.seeded, table.Name)
	f.calls = append(f.calls, "seed:"+table.Name)
	return nil
}

func (f *fakeEdgeWriter) WriteEdge(ctx context.Context, edge graph.RelationEdge, targetTable pgmeta.TableInfo) (int, error) {
	key := edge.SourceTable + "->" + edge.TargetTable
	f.calls = append(f.calls, "edge:"+key)
	if f.edgesSeen[key] {
		return 0, nil
	}
	f.edgesSeen[key] = true
	return 1, nil
}

func testTables() map[string]pgmeta.TableInfo {
	return map[string]pgmeta.TableInfo{
		"customers":  {Name: "customers", PrimaryKey: []string{"id"}},
		"orders":     {Name: "orders", PrimaryKey: []string{"id"}, ForeignKeys: []pgmeta.ForeignKey{{Table: "orders", ColumnNames: []string{"customer_id"}, ReferencedTable: "customers", ReferencedColumns: []string{"id"}}}},
		"line_items": {Name: "line_items", PrimaryKey: []string{"id"}, ForeignKeys: []pgmeta.ForeignKey{{Table: "line_items", ColumnNames: []string{"order_id"}, ReferencedTable: "orders", ReferencedColumns: []string{"id"}}}},
	}
}

func TestTableWalkerTwoPhase(t *testing.T) {
	ruleSet := &rules.RuleSet{
		SourceRules:    []rules.SourceRule{{Table: "orders", Where: "status = 'open'"}},
		DataGraphRules: map[string]rules.TableDataRules{},
	}
	writer := newFakeEdgeWriter()
	w := NewTableWalker(testTables(), ruleSet, writer)

	err := w.StartWalk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, writer.seeded)
	assert.True(t, writer.edgesSeen["orders->customers"], "phase A should reach the parent customers")
	assert.True(t, writer.edgesSeen["orders->line_items"], "phase B should reach the child line_items")
}

func TestTableWalkerUnknownSourceTable(t *testing.T) {
	ruleSet := &rules.RuleSet{SourceRules: []rules.SourceRule{{Table: "missing", Where: "true"}}}
	w := NewTableWalker(testTables(), ruleSet, newFakeEdgeWriter())

	err := w.StartWalk(context.Background())
	require.Error(t, err)
	var notFound *TableNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
