// Package config loads livecoll configuration with viper.
//
// Precedence (lowest to highest): defaults < config file < LIVECOLL_* env
// vars. Nested keys map to env vars with "." replaced by "_", e.g.
// database.path -> LIVECOLL_DATABASE_PATH.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/schema"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "LIVECOLL"

// Config names a logical database and how to present it.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Description DescriptionConfig `mapstructure:"description"`
	Log         LogConfig         `mapstructure:"log"`

	// Schema is the compiled object schema. When nil, LoadSchema compiles
	// Database.SchemaPath.
	Schema *ir.Schema `mapstructure:"-"`
}

// DatabaseConfig selects the storage for a database.
type DatabaseConfig struct {
	// Path is the SQLite file. Empty means an in-memory database named by
	// InMemoryIdentifier.
	Path               string `mapstructure:"path"`
	InMemoryIdentifier string `mapstructure:"in_memory_identifier"`
	Driver             string `mapstructure:"driver"`
	SchemaPath         string `mapstructure:"schema_path"`
}

// DescriptionConfig bounds debug descriptions of collections.
type DescriptionConfig struct {
	MaxDepth    int `mapstructure:"max_depth"`
	MaxElements int `mapstructure:"max_elements"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")
	v.SetDefault("database.in_memory_identifier", "")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.schema_path", "")

	v.SetDefault("description.max_depth", 5)
	v.SetDefault("description.max_elements", 100)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Default returns the default configuration (before validation; callers
// still need a path or an in-memory identifier).
func Default() Config {
	cfg, err := LoadWithViper(NewViper())
	if err != nil {
		// defaults always unmarshal
		panic(err)
	}
	return *cfg
}

// InMemory returns a default configuration for a named in-memory database.
func InMemory(identifier string, s *ir.Schema) Config {
	cfg := Default()
	cfg.Database.Path = ""
	cfg.Database.InMemoryIdentifier = identifier
	cfg.Schema = s
	return cfg
}

// Load reads configuration from configFile (optional; format inferred from
// its extension: yaml, toml or json) merged with env overrides.
func Load(configFile string) (*Config, error) {
	v := NewViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// Validate checks that the configuration names exactly one database.
func (c *Config) Validate() error {
	if c.Database.Path == "" && c.Database.InMemoryIdentifier == "" {
		return errors.WithHint(
			errors.New("no database configured"),
			"set database.path (LIVECOLL_DATABASE_PATH) or database.in_memory_identifier")
	}
	if c.Database.Path != "" && c.Database.InMemoryIdentifier != "" {
		return errors.New("database.path and database.in_memory_identifier are mutually exclusive")
	}
	switch c.Database.Driver {
	case "", "sqlite3", "sqlite":
	default:
		return errors.Newf("unsupported database.driver %q (want sqlite3 or sqlite)", c.Database.Driver)
	}
	if c.Description.MaxDepth < 1 || c.Description.MaxElements < 1 {
		return errors.Newf("description limits must be positive (max_depth=%d, max_elements=%d)",
			c.Description.MaxDepth, c.Description.MaxElements)
	}
	return nil
}

// LoadSchema compiles Database.SchemaPath unless a schema is already set.
func (c *Config) LoadSchema() error {
	if c.Schema != nil {
		return nil
	}
	if c.Database.SchemaPath == "" {
		return errors.WithHint(errors.New("no object schema configured"),
			"set database.schema_path to a CUE schema file")
	}
	s, err := schema.CompileFile(c.Database.SchemaPath)
	if err != nil {
		return err
	}
	c.Schema = s
	return nil
}

// IsInMemory reports whether the database has no backing file.
func (c Config) IsInMemory() bool {
	return c.Database.Path == ""
}

// Identity names the logical database. Connections whose configurations
// share an identity share one engine instance.
func (c Config) Identity() string {
	if c.IsInMemory() {
		return "mem:" + c.Database.InMemoryIdentifier
	}
	if abs, err := filepath.Abs(c.Database.Path); err == nil {
		return "file:" + abs
	}
	return "file:" + c.Database.Path
}

// String renders the configuration for logs.
func (c Config) String() string {
	return fmt.Sprintf("%s (driver=%s)", c.Identity(), c.Database.Driver)
}
