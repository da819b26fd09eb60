package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/logger"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
)

// loadConfig reads the active config file and applies the root command's
// persistent-flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.PoolSize)
	return cfg, nil
}

// newLogger builds a Logger from cfg's logging section.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return log, nil
}

// tableInfoMap introspects every table in schema (minus excluded) on conn,
// keyed by table name, as the walkers and estimator expect.
func tableInfoMap(ctx context.Context, conn pgmeta.Querier, schema string, excluded []string) (map[string]pgmeta.TableInfo, error) {
	inspector := pgmeta.NewInspector(conn)
	infos, err := inspector.GetAllTableInfo(ctx, schema, excluded)
	if err != nil {
		return nil, fmt.Errorf("introspect schema %q: %w", schema, err)
	}

	tables := make(map[string]pgmeta.TableInfo, len(infos))
	for _, info := range infos {
		tables[info.Name] = info
	}
	return tables, nil
}

// resolveDBConfig selects cfg.Source or cfg.Target by the literal values
// "source"/"target" a --db/--source-db/--target-db flag carries.
func resolveDBConfig(cfg *config.Config, which string) (config.DatabaseConfig, error) {
	switch which {
	case "source":
		return cfg.Source, nil
	case "target":
		return cfg.Target, nil
	default:
		return config.DatabaseConfig{}, fmt.Errorf("--db must be %q or %q, got %q", "source", "target", which)
	}
}

// withDatabase runs fn against a single pooled connection to the given
// database config, closing the pool afterward regardless of outcome.
func withDatabase(ctx context.Context, dbCfg config.DatabaseConfig, fn func(pool *pgxpool.Pool) error) error {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dbCfg.Database, err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", dbCfg.Database, err)
	}

	return fn(pool)
}
