package walkers

import (
	"context"
	"fmt"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/writers"
)

// TableNotFoundError reports a source_rules table missing from the
// introspected schema.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q named in source_rules not found in schema", e.Table)
}

// TableWalker implements §4.3.2's edge-driven table-BFS: it walks the table
// graph rather than individual rows, driving an EdgeWriter in two DFS
// phases — parents first (so the children phase never points at a row
// that doesn't exist yet), then children.
type TableWalker struct {
	tables  map[string]pgmeta.TableInfo
	ruleSet *rules.RuleSet
	writer  writers.EdgeWriter
}

// NewTableWalker builds a table walker over tables (keyed by name), driven
// by ruleSet, emitting through writer.
func NewTableWalker(tables map[string]pgmeta.TableInfo, ruleSet *rules.RuleSet, writer writers.EdgeWriter) *TableWalker {
	return &TableWalker{tables: tables, ruleSet: ruleSet, writer: writer}
}

func (w *TableWalker) StartWalk(ctx context.Context) error {
	tableList := make([]pgmeta.TableInfo, 0, len(w.tables))
	for _, t := range w.tables {
		tableList = append(tableList, t)
	}
	g := graph.BuildFromTables(tableList).Bidirectional()
	g = rules.ApplyTableGraphRules(g, w.ruleSet)

	initialTables := make([]string, 0, len(w.ruleSet.SourceRules))
	for _, sr := range w.ruleSet.SourceRules {
		if _, ok := w.tables[sr.Table]; !ok {
			return &TableNotFoundError{Table: sr.Table}
		}
		initialTables = append(initialTables, sr.Table)
	}

	if err := w.writer.Begin(ctx); err != nil {
		return fmt.Errorf("begin writer: %w", err)
	}

	visitedTables, err := w.deepCopy(ctx, g.Inverse(), initialTables, false)
	if err != nil {
		w.writer.Rollback(ctx)
		return fmt.Errorf("phase A (parents): %w", err)
	}

	if _, err := w.deepCopy(ctx, g, visitedTables, true); err != nil {
		w.writer.Rollback(ctx)
		return fmt.Errorf("phase B (children): %w", err)
	}

	if err := w.writer.Commit(ctx); err != nil {
		return fmt.Errorf("commit writer: %w", err)
	}
	return nil
}

// deepCopy implements §4.3.2's deep_copy(G, initial, from_existing): seed
// each initial table (emitting a table+where pair when from_existing is
// false), then drain a stack of outgoing edges, pushing an edge's target's
// outgoing edges back on only when the writer reports progress.
//
// It returns the full set of tables visited, used as Phase B's starting set.
func (w *TableWalker) deepCopy(ctx context.Context, g *graph.TableGraph, initial []string, fromExisting bool) ([]string, error) {
	visited := make(map[string]bool)
	var stack []graph.RelationEdge

	for _, t := range initial {
		visited[t] = true
		if !fromExisting {
			table, ok := w.tables[t]
			if !ok {
				return nil, &TableNotFoundError{Table: t}
			}
			where := w.sourceWhere(t)
			if err := w.writer.WriteTableWhere(ctx, table, where); err != nil {
				return nil, fmt.Errorf("seed table %q: %w", t, err)
			}
		}
		stack = append(stack, g.Edges(t)...)
	}

	for len(stack) > 0 {
		edge := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		targetTable, ok := w.tables[edge.TargetTable]
		if !ok {
			return nil, &TableNotFoundError{Table: edge.TargetTable}
		}

		inserted, err := w.writer.WriteEdge(ctx, edge, targetTable)
		if err != nil {
			return nil, fmt.Errorf("copy edge %s->%s: %w", edge.SourceTable, edge.TargetTable, err)
		}
		visited[edge.TargetTable] = true

		if inserted > 0 {
			stack = append(stack, g.Edges(edge.TargetTable)...)
		}
	}

	out := make([]string, 0, len(visited))
	for t := range visited {
		out = append(out, t)
	}
	return out, nil
}

// sourceWhere returns the where clause the source_rules entry for t
// declared, or "true" if t has no such entry (reachable only as a parent,
// never itself a seed table).
func (w *TableWalker) sourceWhere(t string) string {
	for _, sr := range w.ruleSet.SourceRules {
		if sr.Table == t {
			return sr.Where
		}
	}
	return "true"
}
