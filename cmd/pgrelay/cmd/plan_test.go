package cmd

import (
	"bytes"
	"testing"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/stretchr/testify/assert"
)

func TestPlanCommandStructure(t *testing.T) {
	assert.NotNil(t, planCmd)
	assert.Equal(t, "plan", planCmd.Use)
	assert.NotEmpty(t, planCmd.Short)
	assert.NotEmpty(t, planCmd.Long)
	assert.NotNil(t, planCmd.RunE)
}

func TestPlanCommandFlags(t *testing.T) {
	flags := planCmd.Flags()

	sourceDBFlag := flags.Lookup("source-db")
	assert.NotNil(t, sourceDBFlag)
	assert.Equal(t, "source", sourceDBFlag.DefValue)

	rulePathFlag := flags.Lookup("rule-path")
	assert.NotNil(t, rulePathFlag)

	tableFlag := flags.Lookup("table")
	assert.NotNil(t, tableFlag)
}

func TestPlanIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "plan" {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func withCapturedOutput(t *testing.T, fn func()) string {
	t.Helper()
	original := outputWriter
	defer func() { outputWriter = original }()

	var buf bytes.Buffer
	outputWriter = &buf
	fn()
	return buf.String()
}

func TestPrintHeader(t *testing.T) {
	out := withCapturedOutput(t, func() {
		printHeader("Execution Plan")
	})
	assert.Contains(t, out, "Execution Plan")
}

func TestPrintSection(t *testing.T) {
	out := withCapturedOutput(t, func() {
		printSection("Source Rules")
	})
	assert.Contains(t, out, "[Source Rules]")
}

func TestPrintSideBySide(t *testing.T) {
	out := withCapturedOutput(t, func() {
		printSideBySide("a\nbb\nccc", []string{"x", "yy"}, 2)
	})

	lines := splitLines(out)
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "x")
	assert.Contains(t, lines[1], "yy")
	// third left line "ccc" has no corresponding right line.
	assert.Equal(t, "ccc", lines[2])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestPrintRelationTree(t *testing.T) {
	g := graph.New()
	g.AddEdge(graph.RelationEdge{
		SourceTable: "orders",
		SourceKey:   []string{"customer_id"},
		TargetTable: "customers",
		TargetKey:   []string{"id"},
	})
	ruleSet := &rules.RuleSet{
		SourceRules: []rules.SourceRule{{Table: "orders", Where: "id = 1"}},
	}

	out := withCapturedOutput(t, func() {
		err := printRelationTree(g, ruleSet)
		assert.NoError(t, err)
	})

	assert.Contains(t, out, "Relation Tree")
	assert.Contains(t, out, "Tables:")
	assert.Contains(t, out, "Source rules: 1")
}
