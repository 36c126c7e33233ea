// Package config loads and validates tokenforge configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Version      int                `yaml:"version"`
	Sources      []Source           `yaml:"sources"`
	Output       OutputConfig       `yaml:"output"`
	Dependencies DependenciesConfig `yaml:"dependencies,omitempty"`
	Transforms   []string           `yaml:"transforms,omitempty"`
	Formatters   []string           `yaml:"formatters,omitempty"`
	Watch        WatchConfig        `yaml:"watch,omitempty"`
	Events       EventsConfig       `yaml:"events,omitempty"`
	Metrics      MetricsConfig      `yaml:"metrics,omitempty"`
}

// Source declares one logical token source: glob patterns over the
// filesystem or an inline virtual document.
type Source struct {
	Name        string            `yaml:"name"`
	Patterns    []string          `yaml:"patterns,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"`
	Layer       string            `yaml:"layer,omitempty"`
	Virtual     map[string]string `yaml:"virtual,omitempty"` // uri -> inline content
}

// OutputConfig controls where generated artifacts are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean,omitempty"`
}

// DependenciesConfig controls the dependency cache and diff strategy.
type DependenciesConfig struct {
	CacheDir string         `yaml:"cache_dir,omitempty"`
	Strategy StrategyConfig `yaml:"strategy,omitempty"`
}

// StrategyConfig selects a diff strategy by name with free-form options.
// Option validation belongs to the strategy implementation and fails fast.
type StrategyConfig struct {
	Name    string         `yaml:"name,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// WatchConfig tunes the watch loop.
type WatchConfig struct {
	Debounce        time.Duration `yaml:"debounce,omitempty"`
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"` // 0 disables periodic full rebuilds
}

// EventsConfig configures stage event persistence and publishing.
type EventsConfig struct {
	StorePath string     `yaml:"store_path,omitempty"` // SQLite file, empty disables persistence
	NATS      NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig configures the optional stage-event publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig toggles the prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in unset fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./dist"
	}
	if c.Dependencies.CacheDir == "" {
		c.Dependencies.CacheDir = ".tokenforge-cache"
	}
	if c.Dependencies.Strategy.Name == "" {
		c.Dependencies.Strategy.Name = "snapshot"
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 250 * time.Millisecond
	}
	if c.Events.NATS.Enabled && c.Events.NATS.Subject == "" {
		c.Events.NATS.Subject = "tokenforge.build.events"
	}
	for i := range c.Sources {
		if c.Sources[i].ContentType == "" {
			c.Sources[i].ContentType = "application/json"
		}
	}
}

// Validate checks structural invariants. Strategy options are validated by
// the strategy constructor so unknown names and malformed options fail
// before any build runs.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if len(s.Patterns) == 0 && len(s.Virtual) == 0 {
			return fmt.Errorf("source %q declares neither patterns nor virtual documents", s.Name)
		}
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if c.Watch.RebuildInterval < 0 {
		return fmt.Errorf("watch.rebuild_interval must not be negative")
	}
	if c.Events.NATS.Enabled && c.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required when the NATS publisher is enabled")
	}
	return nil
}
