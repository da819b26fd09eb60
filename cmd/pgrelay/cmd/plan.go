package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgrelay/internal/estimator"
	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/mermaidascii"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
)

// outputWriter is used for printing output, can be overridden in tests.
var outputWriter io.Writer = os.Stdout

var (
	planSourceDB string
	planTables   []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relation graph and row estimate for a rule file",
	Long: `plan builds the (rule-reshaped, bidirectional) relation graph from
the source schema and a rule file, prints a visual tree using the bundled
mermaid-ascii renderer, and reports an estimated row count per reachable
table — without opening an FDW session or writing anything.`,
	RunE: runPlan,
}

var planRulePath string

func init() {
	planCmd.Flags().StringVar(&planSourceDB, "source-db", "source", `configured database to introspect ("source" or "target")`)
	planCmd.MarkFlagRequired("source-db")
	planCmd.Flags().StringVar(&planRulePath, "rule-path", "", "path to the JSON rule file")
	planCmd.MarkFlagRequired("rule-path")
	planCmd.Flags().StringSliceVar(&planTables, "table", nil, "restrict the printed tree to these tables (repeatable)")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbCfg, err := resolveDBConfig(cfg, planSourceDB)
	if err != nil {
		return err
	}

	ruleData, err := os.ReadFile(planRulePath)
	if err != nil {
		return fmt.Errorf("read rule file %q: %w", planRulePath, err)
	}
	ruleSet, err := rules.Load(ruleData)
	if err != nil {
		return fmt.Errorf("load rule file %q: %w", planRulePath, err)
	}

	ctx := context.Background()

	return withDatabase(ctx, dbCfg, func(pool *pgxpool.Pool) error {
		tables, err := tableInfoMap(ctx, pool, cfg.Schemas.Source, cfg.Schemas.Excluded)
		if err != nil {
			return err
		}
		if len(planTables) > 0 {
			tables = filterTables(tables, planTables)
		}

		for _, sr := range ruleSet.SourceRules {
			if _, ok := tables[sr.Table]; !ok {
				return fmt.Errorf("source_rules table %q not found in schema", sr.Table)
			}
		}

		tableList := make([]pgmeta.TableInfo, 0, len(tables))
		for _, t := range tables {
			tableList = append(tableList, t)
		}
		g := graph.BuildFromTables(tableList).Bidirectional()
		g = rules.ApplyTableGraphRules(g, ruleSet)

		if err := printRelationTree(g, ruleSet); err != nil {
			return fmt.Errorf("render tree: %w", err)
		}
		fmt.Fprintln(outputWriter)

		printHeader("Execution Plan")

		fmt.Fprintln(outputWriter)
		printSection("Source Rules")
		for _, sr := range ruleSet.SourceRules {
			fmt.Fprintf(outputWriter, "  • %s WHERE %s\n", sr.Table, sr.Where)
		}

		est := estimator.New(pool)
		plan, err := est.Estimate(ctx, tables, ruleSet)
		if err != nil {
			return fmt.Errorf("estimate: %w", err)
		}

		fmt.Fprintln(outputWriter)
		printSection("Row Estimate")
		for _, te := range plan.Tables {
			if te.IsSeed {
				fmt.Fprintf(outputWriter, "  [seed]     %-30s %10d matching rows (of %d total)\n", te.Table, te.SeedCount, te.TotalCount)
			} else {
				fmt.Fprintf(outputWriter, "  [reachable]%-30s %10s            %d total\n", " "+te.Table, "", te.TotalCount)
			}
		}

		return nil
	})
}

// printRelationTree generates mermaid syntax for g and renders it to ASCII
// art, side by side with a short summary column.
func printRelationTree(g *graph.TableGraph, ruleSet *rules.RuleSet) error {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, table := range g.Tables() {
		for _, edge := range g.Edges(table) {
			sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", sanitizeMermaidID(edge.SourceTable), strings.Join(edge.SourceKey, ","), sanitizeMermaidID(edge.TargetTable)))
		}
	}

	output, err := mermaidascii.RenderDiagram(sb.String(), nil)
	if err != nil {
		return err
	}

	summaryLines := []string{
		"[ Summary ]",
		strings.Repeat("-", 10),
		fmt.Sprintf("Tables:       %d", len(g.Tables())),
		fmt.Sprintf("Source rules: %d", len(ruleSet.SourceRules)),
		fmt.Sprintf("Table rules:  %d", len(ruleSet.TableGraphRules)),
	}

	fmt.Fprintln(outputWriter)
	printHeader("Relation Tree")
	fmt.Fprintln(outputWriter)
	printSideBySide(output, summaryLines, 4)
	return nil
}

func printHeader(title string) {
	width := len(title) + 4
	fmt.Fprintln(outputWriter, color.Bold.Sprint(strings.Repeat("=", width)))
	fmt.Fprintf(outputWriter, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(outputWriter, color.Bold.Sprint(strings.Repeat("=", width)))
}

func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", len(title)+2))
}

// printSideBySide prints two blocks of text side by side, padding is the
// minimum spaces between the two columns.
func printSideBySide(leftContent string, rightLines []string, padding int) {
	leftLines := strings.Split(strings.TrimRight(leftContent, "\n"), "\n")

	leftWidth := 0
	for _, line := range leftLines {
		if w := runewidth.StringWidth(line); w > leftWidth {
			leftWidth = w
		}
	}

	maxHeight := len(leftLines)
	if len(rightLines) > maxHeight {
		maxHeight = len(rightLines)
	}

	for i := 0; i < maxHeight; i++ {
		var leftPart, rightPart string
		if i < len(leftLines) {
			leftPart = leftLines[i]
		}
		if i < len(rightLines) {
			rightPart = rightLines[i]
		}

		fmt.Fprint(outputWriter, leftPart)
		if spaces := leftWidth - runewidth.StringWidth(leftPart) + padding; spaces > 0 && rightPart != "" {
			fmt.Fprint(outputWriter, strings.Repeat(" ", spaces))
		}
		fmt.Fprintln(outputWriter, rightPart)
	}
}
