package writers

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc/pool"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/dbconn"
	"github.com/dbsmedya/pgrelay/internal/fdw"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/walknode"
)

// ConcurrentWriter is the async FDW sink: each WriteRow call is scheduled as
// a background task against the same write transaction, joined before
// Commit tears down the FDW bridge. The target transaction runs at READ
// COMMITTED per §5, since background writers observe each other's commits
// within the same transaction as ordinary statement-level visibility.
type ConcurrentWriter struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	txn     *dbconn.WriteTxn
	session *fdw.Session

	tasks *pool.ErrorPool
	mu    sync.Mutex // serializes concurrent Exec calls against the one shared transaction
}

// NewConcurrentWriter creates a ConcurrentWriter bound to cfg, writing through pool.
func NewConcurrentWriter(cfg *config.Config, pool *pgxpool.Pool) *ConcurrentWriter {
	return &ConcurrentWriter{cfg: cfg, pool: pool}
}

// Begin opens the target write transaction and bootstraps the FDW bridge.
func (w *ConcurrentWriter) Begin(ctx context.Context) error {
	txn, err := dbconn.BeginWrite(ctx, w.pool, pgx.ReadCommitted)
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
	w.tasks = pool.New().WithErrors().WithContext(ctx)
	return nil
}

// WriteRow schedules the row copy as a background task and returns
// immediately; errors surface when Commit joins the task group.
func (w *ConcurrentWriter) WriteRow(ctx context.Context, table pgmeta.TableInfo, node walknode.DataNode) error {
	remoteOID, ok := w.session.TableoidMap[node.Table]
	if !ok {
		return fmt.Errorf("no remote tableoid mapping for table %q", node.Table)
	}
	query, err := fdw.BuildSingleRowCopy(w.cfg.Schemas.Target, w.session.RemoteSchema, table, node.Ctid, remoteOID)
	if err != nil {
		return err
	}

	w.tasks.Go(func(ctx context.Context) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, err := w.txn.Tx().Exec(ctx, query); err != nil {
			return fmt.Errorf("copy row %s/%s: %w", node.Table, node.Ctid, err)
		}
		return nil
	})
	return nil
}

// Commit awaits every outstanding background write, tears down the FDW
// bridge, then commits the write transaction. A failure in any background
// write aborts the commit.
func (w *ConcurrentWriter) Commit(ctx context.Context) error {
	if err := w.tasks.Wait(); err != nil {
		_ = w.txn.Rollback(ctx)
		return fmt.Errorf("background writes failed: %w", err)
	}
	if err := fdw.Teardown(ctx, w.txn.Tx(), w.cfg.Schemas); err != nil {
		_ = w.txn.Rollback(ctx)
		return err
	}
	return w.txn.Commit(ctx)
}

// Rollback aborts the write transaction without waiting for background
// tasks; their writes are against the same aborting transaction either way.
func (w *ConcurrentWriter) Rollback(ctx context.Context) error {
	return w.txn.Rollback(ctx)
}
