package dbconn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is a read-only REPEATABLE READ transaction pinned for the
// lifetime of one walk. Ctids and tableoids read through it resolve against
// a single consistent view of the source, per the snapshot-stability
// invariant.
type Snapshot struct {
	tx pgx.Tx
}

// BeginSnapshot opens a REPEATABLE READ read-only transaction on pool.
func BeginSnapshot(ctx context.Context, pool *pgxpool.Pool) (*Snapshot, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	return &Snapshot{tx: tx}, nil
}

// Tx exposes the underlying transaction for queries.
func (s *Snapshot) Tx() pgx.Tx {
	return s.tx
}

// Close rolls back the snapshot transaction. Since it is read-only there is
// nothing to commit; rollback always releases the snapshot cleanly.
func (s *Snapshot) Close(ctx context.Context) error {
	return s.tx.Rollback(ctx)
}

// WriteTxn is the target-side write transaction wrapping a whole copy phase.
// FDW objects created during Bootstrap live only inside this transaction.
type WriteTxn struct {
	tx pgx.Tx
}

// BeginWrite opens a write transaction on pool at the given isolation level
// (READ COMMITTED for the concurrent writer, default otherwise, per §5).
func BeginWrite(ctx context.Context, pool *pgxpool.Pool, isoLevel pgx.TxIsoLevel) (*WriteTxn, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel})
	if err != nil {
		return nil, fmt.Errorf("begin write transaction: %w", err)
	}
	return &WriteTxn{tx: tx}, nil
}

// Tx exposes the underlying transaction for queries.
func (w *WriteTxn) Tx() pgx.Tx {
	return w.tx
}

// Commit commits the write transaction.
func (w *WriteTxn) Commit(ctx context.Context) error {
	return w.tx.Commit(ctx)
}

// Rollback aborts the write transaction, dropping any FDW objects created
// inside it.
func (w *WriteTxn) Rollback(ctx context.Context) error {
	return w.tx.Rollback(ctx)
}
