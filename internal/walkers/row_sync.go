package walkers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/pgrelay/internal/dbconn"
	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/walknode"
	"github.com/dbsmedya/pgrelay/internal/writers"
)

// RowWalkerSync implements §4.3.1's row-BFS over a single source connection:
// seed nodes from the rule file's source_rules, then breadth-first discover
// successors along the bidirectional relation graph, writing each
// newly-visited row exactly once.
type RowWalkerSync struct {
	sourcePool *pgxpool.Pool
	tables     map[string]pgmeta.TableInfo
	ruleSet    *rules.RuleSet
	writer     writers.RowWriter
}

// NewRowWalkerSync builds a sync row walker over tables (keyed by table
// name), driven by ruleSet, emitting through writer.
func NewRowWalkerSync(sourcePool *pgxpool.Pool, tables map[string]pgmeta.TableInfo, ruleSet *rules.RuleSet, writer writers.RowWriter) *RowWalkerSync {
	return &RowWalkerSync{sourcePool: sourcePool, tables: tables, ruleSet: ruleSet, writer: writer}
}

// StartWalk runs the full walk: build the bidirectional relation graph,
// reshape it per the table-graph rules, open a snapshot, seed the queue from
// source_rules, then drain the BFS frontier until empty.
func (w *RowWalkerSync) StartWalk(ctx context.Context) error {
	tableList := make([]pgmeta.TableInfo, 0, len(w.tables))
	for _, t := range w.tables {
		tableList = append(tableList, t)
	}
	g := graph.BuildFromTables(tableList).Bidirectional()
	g = rules.ApplyTableGraphRules(g, w.ruleSet)

	snap, err := dbconn.BeginSnapshot(ctx, w.sourcePool)
	if err != nil {
		return fmt.Errorf("begin source snapshot: %w", err)
	}
	defer snap.Close(ctx)

	if err := w.writer.Begin(ctx); err != nil {
		return fmt.Errorf("begin writer: %w", err)
	}

	visited := walknode.NewNodeIdKeeper()
	queue := walknode.NewNodeQueue()

	for _, sr := range w.ruleSet.SourceRules {
		if err := w.seed(ctx, snap.Tx(), sr, queue, visited); err != nil {
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

		for _, edge := range g.Edges(node.Table) {
			if err := w.discoverSuccessors(ctx, snap.Tx(), edge, node, queue, visited); err != nil {
				w.writer.Rollback(ctx)
				return fmt.Errorf("discover successors %s->%s: %w", edge.SourceTable, edge.TargetTable, err)
			}
		}
	}

	if err := w.writer.Commit(ctx); err != nil {
		return fmt.Errorf("commit writer: %w", err)
	}
	return nil
}

func (w *RowWalkerSync) seed(ctx context.Context, tx pgx.Tx, sr rules.SourceRule, queue *walknode.NodeQueue, visited *walknode.NodeIdKeeper) error {
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

func (w *RowWalkerSync) discoverSuccessors(ctx context.Context, tx pgx.Tx, edge graph.RelationEdge, node walknode.DataNode, queue *walknode.NodeQueue, visited *walknode.NodeIdKeeper) error {
	query, _ := buildSuccessorQuery(edge, w.ruleSet.DataGraphRules)
	rows, err := tx.Query(ctx, query, node.Ctid, node.TableOID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ctid, tableoid string
		if err := rows.Scan(&ctid, &tableoid); err != nil {
			return err
		}
		successor := walknode.DataNode{Table: edge.TargetTable, Ctid: ctid, TableOID: tableoid}
		if visited.Add(successor) {
			queue.Enqueue(successor)
		}
	}
	return rows.Err()
}
