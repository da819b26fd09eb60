package walkers

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/stretchr/testify/assert"
)

func TestBuildStartQuery(t *testing.T) {
	q := buildStartQuery("orders", "status = 'open'")
	assert.Equal(t, `SELECT ctid, tableoid FROM "orders" WHERE status = 'open'`, q)
}

func TestBuildSuccessorQueryNoRules(t *testing.T) {
	edge := graph.RelationEdge{SourceTable: "orders", TargetTable: "line_items", SourceKey: []string{"id"}, TargetKey: []string{"order_id"}}
	q, args := buildSuccessorQuery(edge, map[string]rules.TableDataRules{})

	assert.Contains(t, q, `SELECT ctid, tableoid FROM "line_items"`)
	assert.Contains(t, q, `("order_id") = (SELECT "id" FROM "orders" WHERE ctid = $1::tid AND tableoid = $2::oid)`)
	assert.NotContains(t, q, "AND NOT")
	assert.Len(t, args, 2)
}

func TestBuildSuccessorQueryAppliesDataRules(t *testing.T) {
	edge := graph.RelationEdge{SourceTable: "orders", TargetTable: "line_items", SourceKey: []string{"id"}, TargetKey: []string{"order_id"}}
	dataRules := map[string]rules.TableDataRules{
		"line_items": {NoEnter: []rules.DataGraphRule{{Type: rules.NoEnter, Table: "line_items", Where: "void"}}},
		"orders":     {NoExit: []rules.DataGraphRule{{Type: rules.NoExit, Table: "orders", Where: "cancelled"}}},
	}

	q, _ := buildSuccessorQuery(edge, dataRules)
	assert.Contains(t, q, "AND NOT (void)")
	assert.Contains(t, q, "AND NOT EXISTS (SELECT 1 FROM orders WHERE ctid = $1::tid AND (cancelled))")
}
