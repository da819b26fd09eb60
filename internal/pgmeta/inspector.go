package pgmeta

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the slice of *pgxpool.Pool (or a transaction) that Inspector
// needs. Narrowing to this interface lets tests supply a hand-written fake
// instead of a real connection.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Inspector introspects a PostgreSQL schema's tables, columns, primary keys,
// and foreign keys.
type Inspector struct {
	conn Querier
}

// NewInspector creates an Inspector bound to conn.
func NewInspector(conn Querier) *Inspector {
	return &Inspector{conn: conn}
}

// ListTables returns every base table in schema, ordered by name, excluding
// the excluded set.
func (i *Inspector) ListTables(ctx context.Context, schema string, excluded []string) ([]string, error) {
	query := `
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = $1
		ORDER BY tablename
	`
	rows, err := i.conn.Query(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	defer rows.Close()

	excludedSet := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		excludedSet[e] = true
	}

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if excludedSet[name] {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetTableInfo fetches columns, primary key, and foreign keys for one table.
func (i *Inspector) GetTableInfo(ctx context.Context, schema, table string) (*TableInfo, error) {
	info := &TableInfo{Schema: schema, Name: table}

	columns, err := i.getColumns(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s.%s: %w", schema, table, err)
	}
	info.Columns = columns

	pk, err := i.getPrimaryKey(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s.%s: %w", schema, table, err)
	}
	info.PrimaryKey = pk

	fks, err := i.getForeignKeys(ctx, schema, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s.%s: %w", schema, table, err)
	}
	info.ForeignKeys = fks

	pkSet := make(map[string]bool, len(pk))
	for _, c := range pk {
		pkSet[c] = true
	}
	for idx := range info.Columns {
		info.Columns[idx].IsPrimaryKey = pkSet[info.Columns[idx].Name]
	}

	return info, nil
}

func (i *Inspector) getColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	query := `
		SELECT
			column_name,
			CASE WHEN data_type = 'USER-DEFINED' THEN udt_name ELSE data_type END,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := i.conn.Query(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var isNullable string
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &col.Position); err != nil {
			return nil, err
		}
		col.IsNullable = isNullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// getPrimaryKey returns the primary key columns of schema.table, in key order.
func (i *Inspector) getPrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	query := `
		SELECT a.attname
		FROM pg_index idx
		JOIN pg_attribute a ON a.attrelid = idx.indrelid AND a.attnum = ANY(idx.indkey)
		JOIN pg_class c ON c.oid = idx.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND idx.indisprimary
		ORDER BY array_position(idx.indkey, a.attnum)
	`
	rows, err := i.conn.Query(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

// getForeignKeys returns the foreign key constraints declared on schema.table,
// grouping multi-column constraints into a single ForeignKey each.
func (i *Inspector) getForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	query := `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name,
			kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
			AND ccu.position_in_unique_constraint = kcu.position_in_unique_constraint
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`
	rows, err := i.conn.Query(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*ForeignKey)
	var order []string
	for rows.Next() {
		var constraintName, columnName, refSchema, refTable, refColumn string
		var position int
		if err := rows.Scan(&constraintName, &columnName, &refSchema, &refTable, &refColumn, &position); err != nil {
			return nil, err
		}
		fk, ok := byName[constraintName]
		if !ok {
			fk = &ForeignKey{
				ConstraintName:   constraintName,
				Table:            table,
				ReferencedSchema: refSchema,
				ReferencedTable:  refTable,
			}
			byName[constraintName] = fk
			order = append(order, constraintName)
		}
		fk.ColumnNames = append(fk.ColumnNames, columnName)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *byName[name])
	}
	return fks, nil
}

// GetAllTableInfo fetches TableInfo for every table in schema, excluding the
// excluded set.
func (i *Inspector) GetAllTableInfo(ctx context.Context, schema string, excluded []string) ([]TableInfo, error) {
	names, err := i.ListTables(ctx, schema, excluded)
	if err != nil {
		return nil, err
	}

	infos := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info, err := i.GetTableInfo(ctx, schema, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}
