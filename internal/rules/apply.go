package rules

import "github.com/dbsmedya/pgrelay/internal/graph"

// ApplyTableGraphRules applies rs's table-graph rules to g, in file order,
// per §4.2:
//
//   - no_enter(t): strip every incoming edge of t (including self-loops).
//   - no_exit(t): strip every outgoing edge of t.
//   - limit_distance(t, d): replace the working graph with the neighborhood
//     of t. The source this system is modeled on only ever inspects t's
//     immediate out-edges regardless of the configured distance — this is
//     reproduced faithfully here rather than "fixed": limit_distance always
//     behaves as distance 1. Callers that want true bounded-depth BFS should
//     call graph.TableGraph.Neighborhood directly instead of routing through
//     a rule file.
func ApplyTableGraphRules(g *graph.TableGraph, rs *RuleSet) *graph.TableGraph {
	current := g
	for _, rule := range rs.TableGraphRules {
		switch rule.Type {
		case NoEnter:
			current.RemoveIncoming(rule.Table)
		case NoExit:
			current.RemoveOutgoing(rule.Table)
		case LimitDistance:
			current = current.Neighborhood(rule.Table, 1)
		}
	}
	return current
}
