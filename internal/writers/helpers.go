package writers

import (
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

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
