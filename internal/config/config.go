// Package config loads the promptpilot configuration from YAML with
// environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"promptpilot/internal/agent"
	"promptpilot/internal/logging"
)

// Config holds all promptpilot configuration.
type Config struct {
	Name string `yaml:"name"`

	// Provider selects the primary and optional fallback LLM backends.
	Provider ProviderConfig `yaml:"provider"`

	// Agent holds the pipeline tunables.
	Agent agent.Config `yaml:"agent"`

	// Logging configures the category log sink.
	Logging LoggingConfig `yaml:"logging"`
}

// ProviderConfig configures an LLM backend.
type ProviderConfig struct {
	Provider string `yaml:"provider"` // openai, gemini, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`

	// Fallback, when set, is the backend recovery may switch to.
	Fallback *FallbackConfig `yaml:"fallback,omitempty"`
}

// FallbackConfig configures the secondary backend.
type FallbackConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// LoggingConfig configures category logging.
type LoggingConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Dir        string   `yaml:"dir"`
	Level      string   `yaml:"level"`
	JSONFormat bool     `yaml:"json_format"`
	Categories []string `yaml:"categories"` // empty = all
}

// Options converts the YAML shape into logging.Options.
func (lc LoggingConfig) Options() logging.Options {
	opts := logging.Options{
		Enabled:    lc.Enabled,
		Dir:        lc.Dir,
		Level:      lc.Level,
		JSONFormat: lc.JSONFormat,
	}
	if len(lc.Categories) > 0 {
		opts.Categories = make(map[string]bool, len(lc.Categories))
		for _, c := range lc.Categories {
			opts.Categories[c] = true
		}
	}
	return opts
}

// DefaultConfig returns the working defaults: mock provider, every
// pipeline feature on, logging off.
func DefaultConfig() *Config {
	return &Config{
		Name: "promptpilot",
		Provider: ProviderConfig{
			Provider: "mock",
		},
		Agent: agent.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the conventional config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "promptpilot.yaml"
	}
	return filepath.Join(home, ".promptpilot", "config.yaml")
}

// Load reads the config at path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.validate()
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides layers PILOT_* and provider key variables over the
// file contents.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("PILOT_PROVIDER"); p != "" {
		c.Provider.Provider = p
	}
	if m := os.Getenv("PILOT_MODEL"); m != "" {
		c.Provider.Model = m
	}
	if u := os.Getenv("PILOT_BASE_URL"); u != "" {
		c.Provider.BaseURL = u
	}
	if d := os.Getenv("PILOT_LOG_DIR"); d != "" {
		c.Logging.Enabled = true
		c.Logging.Dir = d
	}

	switch c.Provider.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Provider.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Provider.APIKey = key
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider.Provider {
	case "openai", "gemini", "mock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Provider)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be > 0, got %d", c.Agent.TimeoutMs)
	}
	return nil
}
