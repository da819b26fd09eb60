package fdw

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

// BuildSingleRowCopy builds the per-row upsert of §4.4.2: copy one physical
// row, identified by ctid and its remote-side tableoid, from the foreign
// schema into the target schema, upserting on the table's primary key so
// re-running is idempotent.
func BuildSingleRowCopy(targetSchema, remoteSchema string, table pgmeta.TableInfo, ctid, remoteTableoid string) (string, error) {
	if len(table.PrimaryKey) == 0 {
		return "", fmt.Errorf("table %s has no primary key; single-row upsert requires one", table.Name)
	}

	targetTbl := sqlident.QuoteQualified(targetSchema, table.Name)
	remoteTbl := sqlident.QuoteQualified(remoteSchema, table.Name)

	pkCols := quoteAll(table.PrimaryKey)
	updateCols := quoteAll(nonPKColumnNames(table))

	var conflictClause string
	if len(updateCols) == 0 {
		conflictClause = fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(pkCols, ", "))
	} else {
		excluded := make([]string, len(updateCols))
		for i, c := range updateCols {
			excluded[i] = "EXCLUDED." + c
		}
		conflictClause = fmt.Sprintf(
			"ON CONFLICT (%s) DO UPDATE SET (%s) = (%s)",
			strings.Join(pkCols, ", "), strings.Join(updateCols, ", "), strings.Join(excluded, ", "),
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s SELECT * FROM %s WHERE ctid = '%s' AND tableoid = '%s'::oid %s`,
		targetTbl, remoteTbl, ctid, remoteTableoid, conflictClause,
	)

	return query, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sqlident.QuoteIdentifier(n)
	}
	return out
}

func nonPKColumnNames(table pgmeta.TableInfo) []string {
	pk := make(map[string]bool, len(table.PrimaryKey))
	for _, c := range table.PrimaryKey {
		pk[c] = true
	}
	var out []string
	for _, c := range table.Columns {
		if !pk[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}
