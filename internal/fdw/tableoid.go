package fdw

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BuildTableoidMap maps the relname of every foreign table imported into
// remoteSchema to that foreign table's own oid on the target, which is what
// ctid-qualified reads against the foreign table address. It reads only the
// target's catalogs (pg_class joined with pg_foreign_table); source-side
// tableoids are not consulted, and writers look entries up by the walked
// table's name.
func BuildTableoidMap(ctx context.Context, tx pgx.Tx, remoteSchema string) (map[string]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT c.relname, c.oid::text
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_foreign_table ft ON ft.ftrelid = c.oid
		WHERE n.nspname = $1
	`, remoteSchema)
	if err != nil {
		return nil, fmt.Errorf("query foreign table oids in %s: %w", remoteSchema, err)
	}
	defer rows.Close()

	tableoidMap := make(map[string]string)
	for rows.Next() {
		var relname, oid string
		if err := rows.Scan(&relname, &oid); err != nil {
			return nil, fmt.Errorf("scan foreign table oid: %w", err)
		}
		tableoidMap[relname] = oid
	}
	return tableoidMap, rows.Err()
}
