// Package fdw brings up and tears down the postgres_fdw bridge a writer uses
// to read source rows from inside a target-side transaction, and builds the
// map from table name to the oid of its imported foreign table that writers
// key off of.
package fdw

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

const serverName = "remote_fdw"

// Session holds everything a writer needs to read source rows through the
// foreign schema, for the lifetime of one target-side transaction.
type Session struct {
	RemoteSchema  string
	TableoidMap   map[string]string // table name -> oid of its foreign table in RemoteSchema
}

// Bootstrap creates the extension, server, user mapping, and imported foreign
// schema inside tx, then builds the tableoid map. Everything it creates lives
// only inside tx and is dropped by Teardown on exit.
func Bootstrap(ctx context.Context, tx pgx.Tx, source config.DatabaseConfig, fdwCfg config.FDWConfig, schemas config.SchemaConfig) (*Session, error) {
	if _, err := tx.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS postgres_fdw`); err != nil {
		return nil, fmt.Errorf("create extension postgres_fdw: %w", err)
	}

	host := source.Host
	if fdwCfg.OverrideRemoteHost != "" {
		host = fdwCfg.OverrideRemoteHost
	}
	port := source.Port
	if fdwCfg.OverrideRemotePort != 0 {
		port = fdwCfg.OverrideRemotePort
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP SERVER IF EXISTS %s CASCADE`, serverName)); err != nil {
		return nil, fmt.Errorf("drop existing server %s: %w", serverName, err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE SERVER %s FOREIGN DATA WRAPPER postgres_fdw OPTIONS (host '%s', port '%d', dbname '%s')`,
		serverName, host, port, source.Database,
	)); err != nil {
		return nil, fmt.Errorf("create server %s: %w", serverName, err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE USER MAPPING FOR CURRENT_USER SERVER %s OPTIONS (user '%s', password '%s')`,
		serverName, source.User, source.Password,
	)); err != nil {
		return nil, fmt.Errorf("create user mapping for server %s: %w", serverName, err)
	}

	remoteSchema := sqlident.QuoteIdentifier(schemas.Remote)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, remoteSchema)); err != nil {
		return nil, fmt.Errorf("drop existing remote schema %s: %w", schemas.Remote, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %s`, remoteSchema)); err != nil {
		return nil, fmt.Errorf("create remote schema %s: %w", schemas.Remote, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`IMPORT FOREIGN SCHEMA %s FROM SERVER %s INTO %s`,
		sqlident.QuoteIdentifier(schemas.Source), serverName, remoteSchema,
	)); err != nil {
		return nil, fmt.Errorf("import foreign schema %s into %s: %w", schemas.Source, schemas.Remote, err)
	}

	tableoidMap, err := BuildTableoidMap(ctx, tx, schemas.Remote)
	if err != nil {
		return nil, err
	}

	return &Session{RemoteSchema: schemas.Remote, TableoidMap: tableoidMap}, nil
}

// Teardown drops the remote schema and server created by Bootstrap. It is
// safe to call even if Bootstrap partially failed.
func Teardown(ctx context.Context, tx pgx.Tx, schemas config.SchemaConfig) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, sqlident.QuoteIdentifier(schemas.Remote))); err != nil {
		return fmt.Errorf("drop remote schema %s: %w", schemas.Remote, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP SERVER IF EXISTS %s CASCADE`, serverName)); err != nil {
		return fmt.Errorf("drop server %s: %w", serverName, err)
	}
	return nil
}
