package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

var (
	clearDataDB     string
	clearDataSchema string
)

var clearDataCmd = &cobra.Command{
	Use:   "clear-data",
	Short: "Truncate every table in a schema, leaving the schema's structure intact",
	Long: `clear-data truncates every table in the given schema (CASCADE, so
dependent tables are emptied together), without dropping any table,
sequence, or constraint.`,
	RunE: runClearData,
}

func init() {
	clearDataCmd.Flags().StringVar(&clearDataDB, "db", "", `which configured database to operate on ("source" or "target")`)
	clearDataCmd.MarkFlagRequired("db")
	clearDataCmd.Flags().StringVar(&clearDataSchema, "schema", "public", "schema whose tables to truncate")

	rootCmd.AddCommand(clearDataCmd)
}

func runClearData(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbCfg, err := resolveDBConfig(cfg, clearDataDB)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return withDatabase(ctx, dbCfg, func(pool *pgxpool.Pool) error {
		tables, err := tableInfoMap(ctx, pool, clearDataSchema, cfg.Schemas.Excluded)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			log.Infow("no tables to truncate", "schema", clearDataSchema)
			return nil
		}

		qualified := make([]string, 0, len(tables))
		for _, name := range sortedTableNames(tables) {
			qualified = append(qualified, sqlident.QuoteQualified(clearDataSchema, name))
		}

		log.Infow("truncating tables", "schema", clearDataSchema, "count", len(qualified))
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(qualified, ", "))
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("truncate schema %q: %w", clearDataSchema, err)
		}
		return nil
	})
}
