package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	poolSize  int
)

var rootCmd = &cobra.Command{
	Use:   "pgrelay",
	Short: "Referential-subset PostgreSQL database copier",
	Long: `pgrelay copies a referentially-consistent subset of one PostgreSQL
database into another, following foreign keys outward from a set of
operator-declared seed rows via postgres_fdw.

Features:
  - BFS traversal of the (possibly cyclic) foreign-key graph
  - Declarative rule files to seed and reshape the traversal
  - Row-level and table-level walkers, FDW-backed writers
  - Idempotent copies via ON CONFLICT DO UPDATE`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "pgrelay.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
	rootCmd.PersistentFlags().IntVar(&poolSize, "pool-size", 0,
		"Override the concurrent walker's connection pool size")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	PoolSize  int
}

// GetCLIOverrides returns the CLI flag override values.
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		PoolSize:  poolSize,
	}
}
