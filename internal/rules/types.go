// Package rules parses the declarative rule file (source rules, table-graph
// rules, data-graph rules) and applies them to the relation graph and to the
// successor-discovery queries the walkers issue.
package rules

// SourceRule seeds the walk: every row of Table matching Where becomes a
// start node.
type SourceRule struct {
	Table string
	Where string
}

// RuleType names the three traversal-rule kinds a values entry may declare.
type RuleType string

const (
	NoEnter       RuleType = "no_enter"
	NoExit        RuleType = "no_exit"
	LimitDistance RuleType = "limit_distance"
)

// TableGraphRule reshapes the relation graph itself, in the order the rule
// file lists it.
type TableGraphRule struct {
	Type        RuleType
	Table       string
	MaxDistance int // only meaningful when Type == LimitDistance
}

// DataGraphRule appends a row-level predicate to successor-discovery SELECTs.
// Type is restricted to NoEnter/NoExit; LimitDistance with a Where is rejected
// at load time.
type DataGraphRule struct {
	Type  RuleType
	Table string
	Where string
}

// TableDataRules groups the data-graph rules attached to one table.
type TableDataRules struct {
	NoEnter []DataGraphRule
	NoExit  []DataGraphRule
}

// RuleSet is the fully parsed, strongly-typed rule document.
type RuleSet struct {
	SourceRules     []SourceRule
	TableGraphRules []TableGraphRule
	DataGraphRules  map[string]TableDataRules // keyed by table name
}

// SourceRuleTables returns the ordered list of tables that seed the walk.
func (rs *RuleSet) SourceRuleTables() []string {
	tables := make([]string, len(rs.SourceRules))
	for i, r := range rs.SourceRules {
		tables[i] = r.Table
	}
	return tables
}
