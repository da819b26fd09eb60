package walkers

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

// buildStartQuery builds the source-rule seed query: every ctid/tableoid of
// table matching where.
func buildStartQuery(table, where string) string {
	return fmt.Sprintf(`SELECT ctid, tableoid FROM %s WHERE %s`, sqlident.QuoteIdentifier(table), where)
}

// buildSuccessorQuery builds the successor-discovery SELECT of §4.3.1's inner
// loop: find ctid/tableoid of rows in e.TargetTable whose TargetKey matches
// the SourceKey of the node at (ctid, tableoid), then applies the data-graph
// rule decorator chain. ctid and tableoid are bound as $1/$2.
func buildSuccessorQuery(e graph.RelationEdge, dataRules map[string]rules.TableDataRules) (string, []interface{}) {
	targetKeyCols := quoteJoin(e.TargetKey)
	sourceKeyCols := quoteJoin(e.SourceKey)

	query := fmt.Sprintf(
		`SELECT ctid, tableoid FROM %s WHERE (%s) = (SELECT %s FROM %s WHERE ctid = $1::tid AND tableoid = $2::oid)`,
		sqlident.QuoteIdentifier(e.TargetTable), targetKeyCols, sourceKeyCols, sqlident.QuoteIdentifier(e.SourceTable),
	)

	// $1/$2 are filled by the caller with the walking node's ctid/tableoid.
	predicates := rules.EnrichSuccessorQuery(dataRules, e, "$1")
	for _, p := range predicates {
		query += " AND " + p.SQL
	}

	return query, []interface{}{nil, nil}
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlident.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
