package writers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/dbconn"
	"github.com/dbsmedya/pgrelay/internal/fdw"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/walknode"
)

// SingleRowWriter copies one physical row per call, upserting through the
// FDW-imported foreign schema (§4.4.2).
type SingleRowWriter struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	txn     *dbconn.WriteTxn
	session *fdw.Session
}

// NewSingleRowWriter creates a SingleRowWriter bound to cfg, writing through pool.
func NewSingleRowWriter(cfg *config.Config, pool *pgxpool.Pool) *SingleRowWriter {
	return &SingleRowWriter{cfg: cfg, pool: pool}
}

// Begin opens the target write transaction and bootstraps the FDW bridge.
func (w *SingleRowWriter) Begin(ctx context.Context) error {
	txn, err := dbconn.BeginWrite(ctx, w.pool, "")
	if err != nil {
		return err
	}
	session, err := fdw.Bootstrap(ctx, txn.Tx(), w.cfg.Source, w.cfg.FDW, w.cfg.Schemas)
	if err != nil {
		_ = txn.Rollback(ctx)
		return fmt.Errorf("bootstrap FDW: %w", err)
	}
	w.txn = txn
	w.session = session
	return nil
}

// WriteRow upserts the physical row identified by node into the target
// schema, via the foreign schema.
func (w *SingleRowWriter) WriteRow(ctx context.Context, table pgmeta.TableInfo, node walknode.DataNode) error {
	remoteOID, ok := w.session.TableoidMap[node.Table]
	if !ok {
		return fmt.Errorf("no remote tableoid mapping for table %q", node.Table)
	}

	query, err := fdw.BuildSingleRowCopy(w.cfg.Schemas.Target, w.session.RemoteSchema, table, node.Ctid, remoteOID)
	if err != nil {
		return err
	}

	if _, err := w.txn.Tx().Exec(ctx, query); err != nil {
		return fmt.Errorf("copy row %s/%s: %w", node.Table, node.Ctid, err)
	}
	return nil
}

// Commit tears down the FDW bridge, then commits the write transaction.
func (w *SingleRowWriter) Commit(ctx context.Context) error {
	if err := fdw.Teardown(ctx, w.txn.Tx(), w.cfg.Schemas); err != nil {
		_ = w.txn.Rollback(ctx)
		return err
	}
	return w.txn.Commit(ctx)
}

// Rollback aborts the write transaction, dropping any FDW objects with it.
func (w *SingleRowWriter) Rollback(ctx context.Context) error {
	return w.txn.Rollback(ctx)
}
