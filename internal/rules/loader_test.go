package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSourceAndTraversalRules(t *testing.T) {
	doc := []byte(`{
		"source_rules": [{"table": "users", "where": "id = 1"}],
		"traversal_rules": [
			{"type": "no_exit", "values": [{"table": "users"}]},
			{"type": "no_enter", "values": [{"table": "orders", "where": "status = 'archived'"}]},
			{"type": "limit_distance", "values": [{"table": "audit_log", "max_distance": 2}]}
		]
	}`)

	rs, err := Load(doc)
	require.NoError(t, err)

	require.Len(t, rs.SourceRules, 1)
	assert.Equal(t, "users", rs.SourceRules[0].Table)

	require.Len(t, rs.TableGraphRules, 2)
	assert.Equal(t, NoExit, rs.TableGraphRules[0].Type)
	assert.Equal(t, LimitDistance, rs.TableGraphRules[1].Type)
	assert.Equal(t, 2, rs.TableGraphRules[1].MaxDistance)

	ordersRules, ok := rs.DataGraphRules["orders"]
	require.True(t, ok)
	require.Len(t, ordersRules.NoEnter, 1)
	assert.Equal(t, "status = 'archived'", ordersRules.NoEnter[0].Where)
}

func TestLoadRejectsLimitDistanceWithWhere(t *testing.T) {
	doc := []byte(`{
		"traversal_rules": [
			{"type": "limit_distance", "values": [{"table": "orders", "where": "1=1"}]}
		]
	}`)

	_, err := Load(doc)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateSourceTable(t *testing.T) {
	doc := []byte(`{
		"source_rules": [
			{"table": "users", "where": "id = 1"},
			{"table": "users", "where": "id = 2"}
		]
	}`)

	_, err := Load(doc)
	assert.Error(t, err)
}

func TestLoadRejectsUnexpectedKeys(t *testing.T) {
	doc := []byte(`{"source_rules": [{"table": "users", "where": "true", "extra": 1}]}`)

	_, err := Load(doc)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownRuleType(t *testing.T) {
	doc := []byte(`{"traversal_rules": [{"type": "no_op", "values": [{"table": "users"}]}]}`)

	_, err := Load(doc)
	assert.Error(t, err)
}
