// Package config provides configuration file support for savify.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/webhook"
)

// Index drivers.
const (
	IndexDriverSQLite = "sqlite"
	IndexDriverJSON   = "json"
)

// Config represents the savify configuration stored in .savify/config.yaml.
type Config struct {
	DefaultLine string        `yaml:"default_line,omitempty"`
	Index       IndexConfig   `yaml:"index"`
	Author      AuthorConfig  `yaml:"author,omitempty"`
	Remote      *model.Remote `yaml:"remote,omitempty"`
	Logging     LoggingConfig `yaml:"logging"`
	// Hooks receive every mutation as a JSON POST. Edit the file to manage
	// them; they are not reachable through Get and Set.
	Hooks []webhook.Hook `yaml:"hooks,omitempty"`
}

// IndexConfig selects the index store backend.
type IndexConfig struct {
	Driver string `yaml:"driver"`
}

// AuthorConfig overrides the commit author. Empty fields fall back to the
// user's global git identity.
type AuthorConfig struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Index: IndexConfig{Driver: IndexDriverSQLite},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Path returns the config file location for a workspace root.
func Path(root string) string {
	return filepath.Join(root, ".savify", "config.yaml")
}

// Load loads configuration from .savify/config.yaml.
// Returns default config if file doesn't exist.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(root))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to .savify/config.yaml.
func Save(root string, cfg *Config) error {
	cfgPath := Path(root)

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Index.Driver {
	case IndexDriverSQLite, IndexDriverJSON:
	default:
		return fmt.Errorf("index.driver must be %q or %q, got %q", IndexDriverSQLite, IndexDriverJSON, c.Index.Driver)
	}
	for i, h := range c.Hooks {
		if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("hooks[%d].url must be an http or https url, got %q", i, h.URL)
		}
	}
	return nil
}

// Keys lists the keys accepted by Get and Set.
var Keys = []string{
	"default_line",
	"index.driver",
	"author.name",
	"author.email",
	"remote.name",
	"remote.url",
	"logging.level",
	"logging.format",
}

// Get returns the string value of a dotted key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "default_line":
		return c.DefaultLine, nil
	case "index.driver":
		return c.Index.Driver, nil
	case "author.name":
		return c.Author.Name, nil
	case "author.email":
		return c.Author.Email, nil
	case "remote.name":
		if c.Remote == nil {
			return "", nil
		}
		return c.Remote.Name, nil
	case "remote.url":
		if c.Remote == nil {
			return "", nil
		}
		return c.Remote.URL, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	}
	return "", fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
}

// Set assigns a dotted key from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "default_line":
		c.DefaultLine = value
	case "index.driver":
		prev := c.Index.Driver
		c.Index.Driver = value
		if err := c.Validate(); err != nil {
			c.Index.Driver = prev
			return err
		}
	case "author.name":
		c.Author.Name = value
	case "author.email":
		c.Author.Email = value
	case "remote.name":
		if c.Remote == nil {
			c.Remote = &model.Remote{}
		}
		c.Remote.Name = value
	case "remote.url":
		if c.Remote == nil {
			c.Remote = &model.Remote{}
		}
		c.Remote.URL = value
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	default:
		return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}
