package rules

import (
	"fmt"

	"github.com/dbsmedya/pgrelay/internal/graph"
)

// Predicate is one AND-ed fragment of a successor-discovery WHERE clause.
// EnrichSuccessorQuery fills only SQL, with the rule's where text spliced in;
// it never sets Args.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// EnrichSuccessorQuery is the "decorator chain" of §4.5: given the edge being
// walked, it returns the extra AND-ed predicates a no_enter rule on the
// target table or a no_exit rule on the source table contributes.
// ctidPlaceholder is the $N placeholder the base query already binds to the
// walking node's ctid (e.g. "$1") — the no_exit sub-select reuses it rather
// than adding a redundant new argument, since it's the same physical row
// identity either way (the sub-select is a redundant identity by design; see
// the source semantics this reproduces).
//
// Rule where-clauses are themselves raw SQL fragments from the rule file —
// carried over verbatim, since the source semantics being reproduced treats
// them as trusted operator input, not end-user input.
func EnrichSuccessorQuery(dataRules map[string]TableDataRules, edge graph.RelationEdge, ctidPlaceholder string) []Predicate {
	var predicates []Predicate

	if td, ok := dataRules[edge.TargetTable]; ok {
		for _, rule := range td.NoEnter {
			predicates = append(predicates, Predicate{SQL: fmt.Sprintf("NOT (%s)", rule.Where)})
		}
	}

	if td, ok := dataRules[edge.SourceTable]; ok {
		for _, rule := range td.NoExit {
			predicates = append(predicates, Predicate{
				SQL: fmt.Sprintf(
					"NOT EXISTS (SELECT 1 FROM %s WHERE ctid = %s::tid AND (%s))",
					edge.SourceTable, ctidPlaceholder, rule.Where,
				),
			})
		}
	}

	return predicates
}
