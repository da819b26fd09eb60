package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgrelay/internal/mermaidascii"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
)

var (
	printSchemaDB     string
	printSchemaTables []string
	printSchemaOutput string
	printSchemaFormat string
)

var printSchemaCmd = &cobra.Command{
	Use:   "print-schema",
	Short: "Print the relation graph of a database's schema",
	Long: `print-schema introspects a database's tables and foreign keys and
renders the resulting relation graph, either as PlantUML class-diagram
syntax or as a Mermaid graph rendered to ASCII art for the terminal.`,
	RunE: runPrintSchema,
}

func init() {
	printSchemaCmd.Flags().StringVar(&printSchemaDB, "db", "", `which configured database to introspect ("source" or "target")`)
	printSchemaCmd.MarkFlagRequired("db")
	printSchemaCmd.Flags().StringSliceVar(&printSchemaTables, "table", nil, "restrict output to these tables (repeatable)")
	printSchemaCmd.Flags().StringVar(&printSchemaOutput, "output", "", "write output to this file instead of stdout")
	printSchemaCmd.Flags().StringVar(&printSchemaFormat, "format", "plantuml", "output format: plantuml or mermaid")

	rootCmd.AddCommand(printSchemaCmd)
}

func runPrintSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbCfg, err := resolveDBConfig(cfg, printSchemaDB)
	if err != nil {
		return err
	}

	if printSchemaFormat != "plantuml" && printSchemaFormat != "mermaid" {
		return fmt.Errorf("--format must be %q or %q, got %q", "plantuml", "mermaid", printSchemaFormat)
	}

	ctx := context.Background()
	var output string

	err = withDatabase(ctx, dbCfg, func(pool *pgxpool.Pool) error {
		tables, err := tableInfoMap(ctx, pool, cfg.Schemas.Source, cfg.Schemas.Excluded)
		if err != nil {
			return err
		}
		if len(printSchemaTables) > 0 {
			tables = filterTables(tables, printSchemaTables)
		}

		switch printSchemaFormat {
		case "plantuml":
			output = renderPlantUML(tables)
		case "mermaid":
			output, err = renderMermaidASCII(tables)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if printSchemaOutput != "" {
		return os.WriteFile(printSchemaOutput, []byte(output), 0644)
	}
	fmt.Println(output)
	return nil
}

// filterTables keeps only the named tables, plus trims their foreign keys
// down to those whose referenced table also survives the filter.
func filterTables(tables map[string]pgmeta.TableInfo, names []string) map[string]pgmeta.TableInfo {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	filtered := make(map[string]pgmeta.TableInfo, len(names))
	for name, info := range tables {
		if !keep[name] {
			continue
		}
		var fks []pgmeta.ForeignKey
		for _, fk := range info.ForeignKeys {
			if keep[fk.ReferencedTable] {
				fks = append(fks, fk)
			}
		}
		info.ForeignKeys = fks
		filtered[name] = info
	}
	return filtered
}

// renderPlantUML emits PlantUML class-diagram syntax: a class per table, an
// arrow per foreign key labeled with the participating key columns.
func renderPlantUML(tables map[string]pgmeta.TableInfo) string {
	var sb strings.Builder
	sb.WriteString("@startuml\n")

	for _, name := range sortedTableNames(tables) {
		sb.WriteString(fmt.Sprintf("class %s\n", name))
	}

	for _, name := range sortedTableNames(tables) {
		info := tables[name]
		for _, fk := range info.ForeignKeys {
			sb.WriteString(fmt.Sprintf(
				"%s \"%s\" --> \"%s\" %s\n",
				name, strings.Join(fk.ColumnNames, ","), strings.Join(fk.ReferencedColumns, ","), fk.ReferencedTable,
			))
		}
	}

	sb.WriteString("@enduml\n")
	return sb.String()
}

// renderMermaidASCII emits Mermaid graph syntax and pipes it through the
// bundled ASCII-art renderer for terminal display.
func renderMermaidASCII(tables map[string]pgmeta.TableInfo) (string, error) {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range sortedTableNames(tables) {
		info := tables[name]
		for _, fk := range info.ForeignKeys {
			sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", sanitizeMermaidID(name), strings.Join(fk.ColumnNames, ","), sanitizeMermaidID(fk.ReferencedTable)))
		}
	}

	return mermaidascii.RenderDiagram(sb.String(), nil)
}

func sanitizeMermaidID(table string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(table)
}

func sortedTableNames(tables map[string]pgmeta.TableInfo) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
