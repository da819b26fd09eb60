package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

var (
	cloneSchemaName     string
	cloneSchemaSourceDB string
	cloneSchemaTargetDB string
)

var cloneSchemaCmd = &cobra.Command{
	Use:   "clone-schema",
	Short: "Clone a schema's tables and foreign keys from source to target",
	Long: `clone-schema introspects the source database's tables, columns,
primary keys, and foreign keys, then recreates them on the target: tables
and primary keys first, foreign keys in a second pass so forward-referencing
constraints between tables always resolve.`,
	RunE: runCloneSchema,
}

func init() {
	cloneSchemaCmd.Flags().StringVar(&cloneSchemaSourceDB, "source-db", "source", `configured database to read the schema from ("source" or "target")`)
	cloneSchemaCmd.MarkFlagRequired("source-db")
	cloneSchemaCmd.Flags().StringVar(&cloneSchemaTargetDB, "target-db", "target", `configured database to create the schema on ("source" or "target")`)
	cloneSchemaCmd.MarkFlagRequired("target-db")
	cloneSchemaCmd.Flags().StringVar(&cloneSchemaName, "schema", "", "schema name (defaults to the configured source/target schemas)")

	rootCmd.AddCommand(cloneSchemaCmd)
}

func runCloneSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	sourceDB, err := resolveDBConfig(cfg, cloneSchemaSourceDB)
	if err != nil {
		return err
	}
	targetDB, err := resolveDBConfig(cfg, cloneSchemaTargetDB)
	if err != nil {
		return err
	}

	sourceSchema := cfg.Schemas.Source
	targetSchema := cfg.Schemas.Target
	if cloneSchemaName != "" {
		sourceSchema = cloneSchemaName
		targetSchema = cloneSchemaName
	}

	ctx := context.Background()

	var tables map[string]pgmeta.TableInfo
	err = withDatabase(ctx, sourceDB, func(pool *pgxpool.Pool) error {
		var err error
		tables, err = tableInfoMap(ctx, pool, sourceSchema, cfg.Schemas.Excluded)
		return err
	})
	if err != nil {
		return fmt.Errorf("introspect source schema %q: %w", sourceSchema, err)
	}

	return withDatabase(ctx, targetDB, func(pool *pgxpool.Pool) error {
		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", sqlident.QuoteIdentifier(targetSchema))); err != nil {
			return fmt.Errorf("create target schema %q: %w", targetSchema, err)
		}

		for _, name := range sortedTableNames(tables) {
			stmt := createTableDDL(targetSchema, tables[name])
			log.Infow("creating table", "table", name)
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create table %s: %w", name, err)
			}
		}

		for _, name := range sortedTableNames(tables) {
			info := tables[name]
			for _, fk := range info.ForeignKeys {
				if _, ok := tables[fk.ReferencedTable]; !ok {
					continue // referenced table wasn't cloned (e.g. excluded schema)
				}
				stmt := addForeignKeyDDL(targetSchema, info, fk)
				log.Infow("adding foreign key", "table", name, "constraint", fk.ConstraintName)
				if _, err := pool.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("add foreign key %s on %s: %w", fk.ConstraintName, name, err)
				}
			}
		}

		return nil
	})
}

// createTableDDL renders a CREATE TABLE statement for info's columns and
// primary key. Foreign keys are added in a later pass via addForeignKeyDDL.
func createTableDDL(schema string, info pgmeta.TableInfo) string {
	var cols []string
	for _, c := range info.Columns {
		col := sqlident.QuoteIdentifier(c.Name) + " " + c.DataType
		if !c.IsNullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	if len(info.PrimaryKey) > 0 {
		pkCols := make([]string, len(info.PrimaryKey))
		for i, c := range info.PrimaryKey {
			pkCols[i] = sqlident.QuoteIdentifier(c)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pkCols, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		sqlident.QuoteQualified(schema, info.Name),
		strings.Join(cols, ",\n  "),
	)
}

// addForeignKeyDDL renders an ALTER TABLE ... ADD CONSTRAINT for one foreign key.
func addForeignKeyDDL(schema string, info pgmeta.TableInfo, fk pgmeta.ForeignKey) string {
	cols := make([]string, len(fk.ColumnNames))
	for i, c := range fk.ColumnNames {
		cols[i] = sqlident.QuoteIdentifier(c)
	}
	refCols := make([]string, len(fk.ReferencedColumns))
	for i, c := range fk.ReferencedColumns {
		refCols[i] = sqlident.QuoteIdentifier(c)
	}

	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		sqlident.QuoteQualified(schema, info.Name),
		sqlident.QuoteIdentifier(fk.ConstraintName),
		strings.Join(cols, ", "),
		sqlident.QuoteQualified(schema, fk.ReferencedTable),
		strings.Join(refCols, ", "),
	)
}
