// Package estimator computes the dry-run row-count and table-reachability
// report backing `clone-data --dry-run`.
package estimator

import (
	"context"
	"fmt"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

// TableEstimate is one reachable table's dry-run estimate.
type TableEstimate struct {
	Table       string
	SeedCount   int64 // rows matching a source_rules WHERE, if this table is a seed
	IsSeed      bool
	TotalCount  int64 // full table row count, an upper bound on what traversal could copy
}

// Plan is the full dry-run report: every seed table's matching row count,
// plus every table reachable from the seeds through the (rule-reshaped)
// bidirectional relation graph, with its upper-bound row count.
type Plan struct {
	Tables []TableEstimate
}

// Estimator counts rows against a single connection (typically the source
// snapshot), without writing anything.
type Estimator struct {
	conn pgmeta.Querier
}

// New creates an Estimator bound to conn.
func New(conn pgmeta.Querier) *Estimator {
	return &Estimator{conn: conn}
}

// Estimate builds the dry-run Plan for ruleSet over the given introspected
// tables (keyed by name): it resolves reachability via the same
// bidirectional-graph-plus-table-rules construction the row walkers use, so
// the reachable-table list here matches what an actual run would visit.
func (e *Estimator) Estimate(ctx context.Context, tables map[string]pgmeta.TableInfo, ruleSet *rules.RuleSet) (*Plan, error) {
	tableList := make([]pgmeta.TableInfo, 0, len(tables))
	for _, t := range tables {
		tableList = append(tableList, t)
	}
	g := graph.BuildFromTables(tableList).Bidirectional()
	g = rules.ApplyTableGraphRules(g, ruleSet)

	seeds := make(map[string]string) // table -> where
	for _, sr := range ruleSet.SourceRules {
		seeds[sr.Table] = sr.Where
	}

	reachable := reachableTables(g, ruleSet.SourceRuleTables())

	plan := &Plan{}
	for _, table := range reachable {
		info, ok := tables[table]
		if !ok {
			continue
		}
		est := TableEstimate{Table: table}

		total, err := e.countAll(ctx, info.Name)
		if err != nil {
			return nil, fmt.Errorf("count table %s: %w", table, err)
		}
		est.TotalCount = total

		if where, isSeed := seeds[table]; isSeed {
			est.IsSeed = true
			seedCount, err := e.countWhere(ctx, info.Name, where)
			if err != nil {
				return nil, fmt.Errorf("count seed rows of %s: %w", table, err)
			}
			est.SeedCount = seedCount
		}

		plan.Tables = append(plan.Tables, est)
	}

	return plan, nil
}

func (e *Estimator) countAll(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, sqlident.QuoteIdentifier(table))
	return e.scanCount(ctx, query)
}

func (e *Estimator) countWhere(ctx context.Context, table, where string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, sqlident.QuoteIdentifier(table), where)
	return e.scanCount(ctx, query)
}

func (e *Estimator) scanCount(ctx context.Context, query string) (int64, error) {
	rows, err := e.conn.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

// reachableTables runs a BFS over g from every seed table, returning every
// table visited (seeds included) in visitation order.
func reachableTables(g *graph.TableGraph, seeds []string) []string {
	visited := make(map[string]bool)
	var order []string
	queue := append([]string(nil), seeds...)
	for _, s := range seeds {
		visited[s] = true
	}

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		order = append(order, t)

		for _, edge := range g.Edges(t) {
			if !visited[edge.TargetTable] {
				visited[edge.TargetTable] = true
				queue = append(queue, edge.TargetTable)
			}
		}
	}
	return order
}
