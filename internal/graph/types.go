// Package graph builds and reshapes the bidirectional relation graph that
// drives traversal: a directed multigraph of tables with edges carrying the
// foreign-key column tuples that connect them.
package graph

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// RelationEdge is one directed edge of the relation graph: rows in
// SourceTable reach rows in TargetTable by matching SourceKey columns against
// TargetKey columns, in order.
type RelationEdge struct {
	SourceTable string
	TargetTable string
	SourceKey   []string
	TargetKey   []string
}

// id returns the 4-tuple identity used to collapse duplicate edges, per the
// multigraph invariant.
func (e RelationEdge) id() string {
	return e.SourceTable + "|" + e.TargetTable + "|" + strings.Join(e.SourceKey, ",") + "|" + strings.Join(e.TargetKey, ",")
}

// Inverse swaps source and target, producing the reverse-direction edge.
func (e RelationEdge) Inverse() RelationEdge {
	return RelationEdge{
		SourceTable: e.TargetTable,
		TargetTable: e.SourceTable,
		SourceKey:   e.TargetKey,
		TargetKey:   e.SourceKey,
	}
}

// TableGraph is a directed multigraph over table names. It may contain
// cycles — self-references and mutual FKs are expected — so nothing in this
// package ever attempts a topological ordering.
type TableGraph struct {
	adjacency *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, RelationEdge]]
}

// New returns an empty TableGraph.
func New() *TableGraph {
	return &TableGraph{adjacency: orderedmap.NewOrderedMap[string, *orderedmap.OrderedMap[string, RelationEdge]]()}
}

// AddEdge inserts e, deduplicating against an existing edge with the same
// identity (source, target, source key, target key).
func (g *TableGraph) AddEdge(e RelationEdge) {
	edges, ok := g.adjacency.Get(e.SourceTable)
	if !ok {
		edges = orderedmap.NewOrderedMap[string, RelationEdge]()
		g.adjacency.Set(e.SourceTable, edges)
	}
	edges.Set(e.id(), e)
}

// Tables returns every table with at least one outgoing edge, in insertion order.
func (g *TableGraph) Tables() []string {
	return g.adjacency.Keys()
}

// Edges returns the outgoing edges of table, in adjacency-set iteration
// order (insertion order — deterministic, though callers must not read
// meaning into it beyond "documented and stable for a given build order").
func (g *TableGraph) Edges(table string) []RelationEdge {
	edges, ok := g.adjacency.Get(table)
	if !ok {
		return nil
	}
	out := make([]RelationEdge, 0, edges.Len())
	for el := edges.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// HasTable reports whether table has any outgoing edge recorded.
func (g *TableGraph) HasTable(table string) bool {
	_, ok := g.adjacency.Get(table)
	return ok
}

// Inverse returns a new graph with every edge reversed.
func (g *TableGraph) Inverse() *TableGraph {
	inv := New()
	for el := g.adjacency.Front(); el != nil; el = el.Next() {
		edges := el.Value
		for ee := edges.Front(); ee != nil; ee = ee.Next() {
			inv.AddEdge(ee.Value.Inverse())
		}
	}
	return inv
}

// Bidirectional returns G + G.Inverse(), the symmetric closure walkers
// traverse. Edges are a set, so a table whose FK is already one-to-one (and
// therefore already double-added per the construction rule) is unaffected.
func (g *TableGraph) Bidirectional() *TableGraph {
	merged := New()
	merged.Merge(g)
	merged.Merge(g.Inverse())
	return merged
}

// Merge deep-merges other into g using safe_merge semantics: adjacency sets
// union (edges are deduplicated by identity, so merging is simply re-adding).
func (g *TableGraph) Merge(other *TableGraph) {
	for el := other.adjacency.Front(); el != nil; el = el.Next() {
		edges := el.Value
		for ee := edges.Front(); ee != nil; ee = ee.Next() {
			g.AddEdge(ee.Value)
		}
	}
}

// RemoveIncoming deletes every edge whose TargetTable is t, including
// self-loops on t, by inverting, dropping t's adjacency, and inverting back.
// Grounds table-graph rule no_enter(t).
func (g *TableGraph) RemoveIncoming(t string) {
	inv := g.Inverse()
	inv.adjacency.Delete(t)
	*g = *inv.Inverse()
}

// RemoveOutgoing deletes every edge whose SourceTable is t.
// Grounds table-graph rule no_exit(t).
func (g *TableGraph) RemoveOutgoing(t string) {
	g.adjacency.Delete(t)
}

// Neighborhood returns the subgraph reachable from t within maxDistance hops
// over g's edges (BFS frontier expansion, distance 0 = t itself contributes
// no edges). rules.ApplyTableGraphRules calls it with maxDistance 1 for every
// limit_distance rule, whatever the rule's max_distance.
func (g *TableGraph) Neighborhood(t string, maxDistance int) *TableGraph {
	sub := New()
	if maxDistance <= 0 {
		return sub
	}
	frontier := []string{t}
	visited := map[string]bool{t: true}
	for d := 0; d < maxDistance && len(frontier) > 0; d++ {
		var next []string
		for _, table := range frontier {
			for _, e := range g.Edges(table) {
				sub.AddEdge(e)
				if !visited[e.TargetTable] {
					visited[e.TargetTable] = true
					next = append(next, e.TargetTable)
				}
			}
		}
		frontier = next
	}
	return sub
}
