package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/viper"
)

// envVarPattern matches ${VAR} or $VAR in string config fields.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Load reads the YAML config at path, applies defaults, and substitutes
// environment variable references in string fields.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PGRELAY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	return LoadFromViper(v)
}

// LoadFromViper unmarshals a prepared viper instance into a Config, starting
// from DefaultConfig() so unset fields retain sane defaults.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

func substituteEnvVars(cfg *Config) {
	cfg.Source.Host = expandEnvVar(cfg.Source.Host)
	cfg.Source.User = expandEnvVar(cfg.Source.User)
	cfg.Source.Password = expandEnvVar(cfg.Source.Password)
	cfg.Source.Database = expandEnvVar(cfg.Source.Database)
	cfg.Target.Host = expandEnvVar(cfg.Target.Host)
	cfg.Target.User = expandEnvVar(cfg.Target.User)
	cfg.Target.Password = expandEnvVar(cfg.Target.Password)
	cfg.Target.Database = expandEnvVar(cfg.Target.Database)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
	cfg.FDW.OverrideRemoteHost = expandEnvVar(cfg.FDW.OverrideRemoteHost)
}

func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// ApplyOverrides merges CLI-flag overrides into the config. Zero values mean
// "not set on the CLI" and leave the config-file value untouched.
func (c *Config) ApplyOverrides(logLevel, logFormat string, poolSize int) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if poolSize > 0 {
		c.Concurrency.ConnectionPoolSize = poolSize
	}
}
