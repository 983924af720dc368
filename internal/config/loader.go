// Package config loads and validates the .stratadb.yml project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/strata-db/stratadb/pkg/engine"
	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

// FileName is the project configuration file looked up in the work dir.
const FileName = ".stratadb.yml"

// Config is the full project configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Debug    DebugConfig    `yaml:"debug"`
}

// DatabaseConfig selects the dialect, DSN, connection strategy and pool
// sizes.
type DatabaseConfig struct {
	Dialect      string `yaml:"dialect"`
	DSN          string `yaml:"dsn"`
	Strategy     string `yaml:"strategy"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// EngineConfig bounds the engine caches.
type EngineConfig struct {
	PlanCache     int `yaml:"plan_cache"`
	TemplateCache int `yaml:"template_cache"`
}

// DebugConfig selects the debug output level: off, sql, or trace.
type DebugConfig struct {
	Level string `yaml:"level"`
}

// Loader reads the configuration from a working directory.
type Loader struct {
	workDir  string
	filePath string
}

// NewLoader creates a loader rooted at workDir.
func NewLoader(workDir string) *Loader {
	return &Loader{
		workDir:  workDir,
		filePath: filepath.Join(workDir, FileName),
	}
}

// Load reads, parses and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", l.filePath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or unknown values.
func (c *Config) Validate() error {
	if c.Database.Dialect == "" {
		return fmt.Errorf("config: database.dialect is required")
	}
	if _, err := dialect.Get(c.Database.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := engine.ParseStrategy(c.Database.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Debug.Level {
	case "", "off", "sql", "trace":
	default:
		return fmt.Errorf("config: unknown debug level %q", c.Debug.Level)
	}
	return nil
}

// DebugLevel maps the configured level string onto the engine's levels.
func (c *Config) DebugLevel() engine.DebugLevel {
	switch c.Debug.Level {
	case "sql":
		return engine.DebugSQL
	case "trace":
		return engine.DebugTrace
	}
	return engine.DebugOff
}

// NewEngine builds an engine from the configuration.
func (c *Config) NewEngine() (*engine.Engine, error) {
	d, err := dialect.Get(c.Database.Dialect)
	if err != nil {
		return nil, err
	}
	strategy, err := engine.ParseStrategy(c.Database.Strategy)
	if err != nil {
		return nil, err
	}
	eng := engine.New(d, engine.Options{
		DSN:               c.Database.DSN,
		Strategy:          strategy,
		PlanCacheSize:     c.Engine.PlanCache,
		TemplateCacheSize: c.Engine.TemplateCache,
		MaxOpenConns:      c.Database.MaxOpenConns,
		MaxIdleConns:      c.Database.MaxIdleConns,
	})
	if lvl := c.DebugLevel(); lvl != engine.DebugOff {
		eng.WithDebug(lvl)
	}
	return eng, nil
}
