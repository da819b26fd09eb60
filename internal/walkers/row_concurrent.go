package walkers

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc/pool"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/walknode"
	"github.com/dbsmedya/pgrelay/internal/writers"
)

// RowWalkerConcurrent is RowWalkerSync's structural twin, fanning
// successor-discovery queries out across a bounded pool of source
// connections instead of issuing them one at a time. The BFS loop itself
// stays sequential — only the per-node edge discovery within one dequeue is
// parallelized — so ordering of visits is non-deterministic but the visited
// set (walknode.NodeIdKeeper) still guarantees each row is emitted once.
//
// Every connection in the pool reads through the same exported snapshot as
// the primary connection (PG_EXPORT_SNAPSHOT / SET TRANSACTION SNAPSHOT), so
// concurrent reads still observe one consistent view of the source.
type RowWalkerConcurrent struct {
	sourcePool *pgxpool.Pool
	tables     map[string]pgmeta.TableInfo
	ruleSet    *rules.RuleSet
	writer     writers.RowWriter
	poolSize   int
	queueMu    sync.Mutex // serializes NodeQueue.Enqueue across concurrent discoverSuccessors calls
}

// NewRowWalkerConcurrent builds a concurrent row walker using poolSize
// source-side connections for successor discovery (CONNECTION_POOL_SIZE, §6).
func NewRowWalkerConcurrent(sourcePool *pgxpool.Pool, tables map[string]pgmeta.TableInfo, ruleSet *rules.RuleSet, writer writers.RowWriter, poolSize int) *RowWalkerConcurrent {
	if poolSize < 1 {
		poolSize = 1
	}
	return &RowWalkerConcurrent{sourcePool: sourcePool, tables: tables, ruleSet: ruleSet, writer: writer, poolSize: poolSize}
}

func (w *RowWalkerConcurrent) StartWalk(ctx context.Context) error {
	tableList := make([]pgmeta.TableInfo, 0, len(w.tables))
	for _, t := range w.tables {
		tableList = append(tableList, t)
	}
	g := graph.BuildFromTables(tableList).Bidirectional()
	g = rules.ApplyTableGraphRules(g, w.ruleSet)

	primary, err := w.sourcePool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin source snapshot: %w", err)
	}
	defer primary.Rollback(ctx)

	var snapshotID string
	if err := primary.QueryRow(ctx, "SELECT pg_export_snapshot()").Scan(&snapshotID); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	txChan, closeAll, err := w.openSnapshotPool(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("open snapshot connection pool: %w", err)
	}
	defer closeAll(ctx)

	if err := w.writer.Begin(ctx); err != nil {
		return fmt.Errorf("begin writer: %w", err)
	}

	visited := walknode.NewNodeIdKeeper()
	queue := walknode.NewNodeQueue()

	for _, sr := range w.ruleSet.SourceRules {
		if err := w.seed(ctx, primary, sr, queue, visited); err != nil {
			w.writer.Rollback(ctx)
			return fmt.Errorf("seed source rule on %q: %w", sr.Table, err)
		}
	}

	for !queue.Empty() {
		node, _ := queue.Dequeue()

		table, ok := w.tables[node.Table]
		if !ok {
			continue
		}
		if err := w.writer.WriteRow(ctx, table, node); err != nil {
			w.writer.Rollback(ctx)
			return fmt.Errorf("write row %s%s: %w", node.Table, node.Ctid, err)
		}

		edges := g.Edges(node.Table)
		fanOut := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
		for _, edge := range edges {
			edge := edge
			fanOut.Go(func(ctx context.Context) error {
				tx := <-txChan
				defer func() { txChan <- tx }()
				return w.discoverSuccessors(ctx, tx, edge, node, queue, visited)
			})
		}
		if err := fanOut.Wait(); err != nil {
			w.writer.Rollback(ctx)
			return fmt.Errorf("discover successors of %s%s: %w", node.Table, node.Ctid, err)
		}
	}

	if err := w.writer.Commit(ctx); err != nil {
		return fmt.Errorf("commit writer: %w", err)
	}
	return nil
}

// openSnapshotPool acquires w.poolSize connections from sourcePool, each
// pinned to a REPEATABLE READ READ ONLY transaction sharing snapshotID, and
// returns a channel usable as a mutual-exclusion pool of those transactions.
func (w *RowWalkerConcurrent) openSnapshotPool(ctx context.Context, snapshotID string) (chan pgx.Tx, func(context.Context), error) {
	txChan := make(chan pgx.Tx, w.poolSize)
	var opened []pgx.Tx

	closeAll := func(ctx context.Context) {
		for _, tx := range opened {
			_ = tx.Rollback(ctx)
		}
	}

	for i := 0; i < w.poolSize; i++ {
		tx, err := w.sourcePool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		if err != nil {
			closeAll(ctx)
			return nil, nil, err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET TRANSACTION SNAPSHOT '%s'", snapshotID)); err != nil {
			opened = append(opened, tx)
			closeAll(ctx)
			return nil, nil, fmt.Errorf("pin transaction to exported snapshot: %w", err)
		}
		opened = append(opened, tx)
		txChan <- tx
	}

	return txChan, closeAll, nil
}

func (w *RowWalkerConcurrent) seed(ctx context.Context, tx pgx.Tx, sr rules.SourceRule, queue *walknode.NodeQueue, visited *walknode.NodeIdKeeper) error {
	query := buildStartQuery(sr.Table, sr.Where)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ctid, tableoid string
		if err := rows.Scan(&ctid, &tableoid); err != nil {
			return err
		}
		node := walknode.DataNode{Table: sr.Table, Ctid: ctid, TableOID: tableoid}
		if visited.Add(node) {
			queue.Enqueue(node)
		}
	}
	return rows.Err()
}

func (w *RowWalkerConcurrent) discoverSuccessors(ctx context.Context, tx pgx.Tx, edge graph.RelationEdge, node walknode.DataNode, queue *walknode.NodeQueue, visited *walknode.NodeIdKeeper) error {
	query, _ := buildSuccessorQuery(edge, w.ruleSet.DataGraphRules)
	rows, err := tx.Query(ctx, query, node.Ctid, node.TableOID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var successors []walknode.DataNode
	for rows.Next() {
		var ctid, tableoid string
		if err := rows.Scan(&ctid, &tableoid); err != nil {
			return err
		}
		successors = append(successors, walknode.DataNode{Table: edge.TargetTable, Ctid: ctid, TableOID: tableoid})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// queue/visited are shared across concurrent discoverSuccessors calls;
	// NodeIdKeeper.Add is mutex-protected, but NodeQueue is not, so enqueues
	// are serialized here rather than in the queue itself.
	for _, s := range successors {
		if visited.Add(s) {
			w.enqueue(queue, s)
		}
	}
	return nil
}

func (w *RowWalkerConcurrent) enqueue(queue *walknode.NodeQueue, n walknode.DataNode) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	queue.Enqueue(n)
}
