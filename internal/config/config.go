// Package config loads the migrate CLI configuration from a YAML file and
// MIGRATE_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aqasim81/embedmigrate/internal/database"
	"github.com/aqasim81/embedmigrate/internal/ledger"
)

// Default values for configuration fields.
const (
	DefaultMigrationsDir = "./migrations"
	DefaultTableName     = ledger.DefaultTable
	DefaultBusyTimeout   = database.DefaultBusyTimeout
	DefaultLogLevel      = "info"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL        string
	MigrationsDir      string
	TableName          string
	BusyTimeout        time.Duration
	JournalMode        string
	LogLevel           string
	DisallowOutOfOrder bool
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL        string `yaml:"database_url"`
	MigrationsDir      string `yaml:"migrations_dir"`
	TableName          string `yaml:"table_name"`
	BusyTimeout        string `yaml:"busy_timeout"`
	JournalMode        string `yaml:"journal_mode"`
	LogLevel           string `yaml:"log_level"`
	DisallowOutOfOrder bool   `yaml:"disallow_out_of_order"`
}

// envConfig mirrors Config for the environment. Pointer fields stay nil
// when the variable is unset so they do not clobber file values.
type envConfig struct {
	DatabaseURL        *string        `env:"DATABASE_URL"`
	MigrationsDir      *string        `env:"MIGRATIONS_DIR"`
	TableName          *string        `env:"TABLE_NAME"`
	BusyTimeout        *time.Duration `env:"BUSY_TIMEOUT"`
	JournalMode        *string        `env:"JOURNAL_MODE"`
	LogLevel           *string        `env:"LOG_LEVEL"`
	DisallowOutOfOrder bool           `env:"DISALLOW_OUT_OF_ORDER"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MIGRATE_"

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir: DefaultMigrationsDir,
		TableName:     DefaultTableName,
		BusyTimeout:   DefaultBusyTimeout,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.TableName != "" {
		cfg.TableName = raw.TableName
	}

	if raw.BusyTimeout != "" {
		d, err := time.ParseDuration(raw.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing busy_timeout %q: %w", raw.BusyTimeout, err)
		}

		cfg.BusyTimeout = d
	}

	if raw.JournalMode != "" {
		cfg.JournalMode = raw.JournalMode
	}

	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}

	cfg.DisallowOutOfOrder = raw.DisallowOutOfOrder

	return cfg, nil
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
func MergeEnv(cfg *Config) error {
	return MergeEnvFrom(cfg, nil)
}

// MergeEnvFrom is MergeEnv reading from environ instead of the process
// environment. A nil map means the process environment.
func MergeEnvFrom(cfg *Config, environ map[string]string) error {
	var e envConfig

	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if e.DatabaseURL != nil {
		cfg.DatabaseURL = *e.DatabaseURL
	}

	if e.MigrationsDir != nil {
		cfg.MigrationsDir = *e.MigrationsDir
	}

	if e.TableName != nil {
		cfg.TableName = *e.TableName
	}

	if e.BusyTimeout != nil {
		cfg.BusyTimeout = *e.BusyTimeout
	}

	if e.JournalMode != nil {
		cfg.JournalMode = *e.JournalMode
	}

	if e.LogLevel != nil {
		cfg.LogLevel = *e.LogLevel
	}

	// The variable can only tighten the file setting.
	cfg.DisallowOutOfOrder = cfg.DisallowOutOfOrder || e.DisallowOutOfOrder

	return nil
}
