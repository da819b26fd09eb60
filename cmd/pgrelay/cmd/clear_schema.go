package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

var (
	clearSchemaDB     string
	clearSchemaSchema string
)

var clearSchemaCmd = &cobra.Command{
	Use:   "clear-schema",
	Short: "Drop and recreate a schema",
	Long: `clear-schema drops a schema (and everything in it) and recreates it
empty, on the configured database named by --db.`,
	RunE: runClearSchema,
}

func init() {
	clearSchemaCmd.Flags().StringVar(&clearSchemaDB, "db", "", `which configured database to operate on ("source" or "target")`)
	clearSchemaCmd.MarkFlagRequired("db")
	clearSchemaCmd.Flags().StringVar(&clearSchemaSchema, "schema", "public", "schema to drop and recreate")

	rootCmd.AddCommand(clearSchemaCmd)
}

func runClearSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbCfg, err := resolveDBConfig(cfg, clearSchemaDB)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return withDatabase(ctx, dbCfg, func(pool *pgxpool.Pool) error {
		schema := sqlident.QuoteIdentifier(clearSchemaSchema)
		log.Infow("dropping schema", "schema", clearSchemaSchema, "db", clearSchemaDB)
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			return fmt.Errorf("drop schema %q: %w", clearSchemaSchema, err)
		}
		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
			return fmt.Errorf("create schema %q: %w", clearSchemaSchema, err)
		}
		return nil
	})
}
