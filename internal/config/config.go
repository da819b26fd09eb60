// Package config provides configuration structures and loading for pgrelay.
package config

import "strconv"

// Config represents the complete application configuration.
type Config struct {
	Source      DatabaseConfig `yaml:"source" mapstructure:"source"`
	Target      DatabaseConfig `yaml:"target" mapstructure:"target"`
	Schemas     SchemaConfig   `yaml:"schemas" mapstructure:"schemas"`
	FDW         FDWConfig      `yaml:"fdw" mapstructure:"fdw"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Logging     LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	SSLMode            string `yaml:"sslmode" mapstructure:"sslmode"` // disable, prefer, require, verify-full
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// SchemaConfig names the schemas involved in a clone-data run.
//
// SOURCE_SCHEMA is imported via FDW into REMOTE_SCHEMA on the target; TARGET_SCHEMA
// is where rows actually land. EXCLUDED_SCHEMAS are skipped during introspection.
type SchemaConfig struct {
	Source   string   `yaml:"source" mapstructure:"source"`
	Target   string   `yaml:"target" mapstructure:"target"`
	Remote   string   `yaml:"remote" mapstructure:"remote"`
	Excluded []string `yaml:"excluded" mapstructure:"excluded"`
}

// FDWConfig controls how the target reaches the source via postgres_fdw.
type FDWConfig struct {
	OverrideRemoteHost string `yaml:"override_remote_host" mapstructure:"override_remote_host"`
	OverrideRemotePort int    `yaml:"override_remote_port" mapstructure:"override_remote_port"`
}

// ConcurrencyConfig controls the concurrent walker/writer's connection pool.
type ConcurrencyConfig struct {
	ConnectionPoolSize int `yaml:"connection_pool_size" mapstructure:"connection_pool_size"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format         string `yaml:"format" mapstructure:"format"` // json or text
	Output         string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
	QueriesLogFile string `yaml:"queries_log_file" mapstructure:"queries_log_file"`

	// WriterToFileLogFile is reserved for the not-yet-implemented TO_FILE
	// writer; no writer consumes it today.
	WriterToFileLogFile string `yaml:"writer_to_file_log_file" mapstructure:"writer_to_file_log_file"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               5432,
			SSLMode:            "prefer",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Target: DatabaseConfig{
			Port:               5432,
			SSLMode:            "prefer",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Schemas: SchemaConfig{
			Source: "public",
			Target: "public",
			Remote: "pgrelay_remote",
		},
		Concurrency: ConcurrencyConfig{
			ConnectionPoolSize: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DSN builds a postgresql:// connection string for a DatabaseConfig.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	return "postgresql://" + d.User + ":" + d.Password + "@" + d.Host + ":" + portString(d.Port) + "/" + d.Database + "?sslmode=" + sslmode
}

func portString(p int) string {
	if p == 0 {
		p = 5432
	}
	return strconv.Itoa(p)
}
