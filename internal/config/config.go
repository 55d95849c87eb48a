package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source and target type tags.
const (
	TypeObjectStore = "object-store"
	TypeSQL         = "sql"
	TypeColumnar    = "columnar"
)

// Source categories dispatched by the extractor factory.
const (
	CategoryAllPriceDepth   = "AllPriceDepth"
	CategoryXbondCfetsDeal  = "XbondCfetsDeal"
	CategoryBondFutureQuote = "BondFutureQuote"
)

// SourceConfig describes one data source. Type selects the capability
// (object store vs SQL), Category selects the concrete extractor, and
// Properties carries the type-specific bag.
type SourceConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Category   string            `yaml:"category"`
	Properties map[string]string `yaml:"properties"`
}

// TargetConfig describes one load target.
type TargetConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Properties map[string]string `yaml:"properties"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" (default) or "json"
}

// Config is the frozen run configuration. It is loaded once before the
// run and shared read-only across every component via the day context.
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
	Targets []TargetConfig `yaml:"targets"`
	Logging LoggingConfig  `yaml:"logging"`
	WorkDir string         `yaml:"work_dir"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the per-source and per-target required properties.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: no sources defined")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: no targets defined")
	}
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("config: source %d has no name", i)
		}
		if s.Type == "" || s.Category == "" {
			return fmt.Errorf("config: source %s needs both type and category", s.Name)
		}
		switch s.Type {
		case TypeObjectStore:
			for _, key := range []string{"endpoint", "bucket", "region"} {
				if s.Properties[key] == "" {
					return fmt.Errorf("config: object-store source %s missing %s", s.Name, key)
				}
			}
			// Anonymous mode is permitted, but half a credential pair is not.
			ak, sk := s.Properties["access_key"], s.Properties["secret_key"]
			if (ak == "") != (sk == "") {
				return fmt.Errorf("config: object-store source %s must set both credentials or neither", s.Name)
			}
		case TypeSQL:
			for _, key := range []string{"db.url", "db.user", "db.password", "sql.template"} {
				if s.Properties[key] == "" {
					return fmt.Errorf("config: sql source %s missing %s", s.Name, key)
				}
			}
		default:
			return fmt.Errorf("config: source %s has unknown type %q", s.Name, s.Type)
		}
	}
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: target %d has no name", i)
		}
		if t.Type != TypeColumnar {
			return fmt.Errorf("config: target %s has unknown type %q", t.Name, t.Type)
		}
		if t.Properties["url"] == "" {
			return fmt.Errorf("config: columnar target %s missing url", t.Name)
		}
	}
	return nil
}

// Property reads a typed bag entry with a default.
func (s SourceConfig) Property(key, def string) string {
	if v, ok := s.Properties[key]; ok && v != "" {
		return v
	}
	return def
}

// IntProperty reads an integer bag entry with a default.
func (s SourceConfig) IntProperty(key string, def int) int {
	v, ok := s.Properties[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Property reads a typed bag entry with a default.
func (t TargetConfig) Property(key, def string) string {
	if v, ok := t.Properties[key]; ok && v != "" {
		return v
	}
	return def
}
