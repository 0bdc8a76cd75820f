// Package config loads dialectic configuration from
// .dialectic/config.json with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dialectic/internal/types"
)

// Config holds all dialectic configuration.
type Config struct {
	// Workspace is the project root everything else resolves under.
	Workspace string `json:"workspace,omitempty"`

	// DatabasePath is the SQLite file holding job rows and documents.
	DatabasePath string `json:"database_path,omitempty"`

	// StorePath is the root directory for contribution content.
	StorePath string `json:"store_path,omitempty"`

	// Concurrency bounds how many jobs run at once.
	Concurrency int `json:"concurrency,omitempty"`

	// DebugMode enables debug-level entries in the category logs.
	DebugMode bool `json:"debug_mode,omitempty"`

	// Providers holds per-provider credentials and endpoints.
	Providers map[string]ProviderConfig `json:"providers,omitempty"`

	// Models maps a model slug to its provider identity and token
	// limits. Slugs are the names jobs carry; the provider only ever
	// sees the APIIdentifier.
	Models map[string]types.ModelConfig `json:"models,omitempty"`
}

// ProviderConfig configures one provider endpoint.
type ProviderConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// RequestTimeout returns the provider timeout as a duration.
func (p ProviderConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// DefaultPath returns the default path to .dialectic/config.json.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".dialectic", "config.json")
	}
	return filepath.Join(cwd, ".dialectic", "config.json")
}

// Load reads configuration from path, applying defaults and
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workspace:    ".",
		DatabasePath: filepath.Join(".dialectic", "dialectic.db"),
		StorePath:    filepath.Join(".dialectic", "artifacts"),
		Concurrency:  4,
		Providers:    map[string]ProviderConfig{},
		Models:       map[string]types.ModelConfig{},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Workspace == "" {
		c.Workspace = def.Workspace
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.StorePath == "" {
		c.StorePath = def.StorePath
	}
	if c.Concurrency < 1 {
		c.Concurrency = def.Concurrency
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	if c.Models == nil {
		c.Models = map[string]types.ModelConfig{}
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setKey := func(provider, env string) {
		if key := os.Getenv(env); key != "" {
			p := c.Providers[provider]
			p.APIKey = key
			c.Providers[provider] = p
		}
	}
	setKey("openai", "OPENAI_API_KEY")
	setKey("anthropic", "ANTHROPIC_API_KEY")
	setKey("google", "GEMINI_API_KEY")

	if path := os.Getenv("DIALECTIC_DB"); path != "" {
		c.DatabasePath = path
	}
	if path := os.Getenv("DIALECTIC_STORE"); path != "" {
		c.StorePath = path
	}
}

// Model resolves a model slug to its configuration.
func (c *Config) Model(slug string) (types.ModelConfig, error) {
	model, ok := c.Models[slug]
	if !ok {
		return types.ModelConfig{}, fmt.Errorf("model %q not configured", slug)
	}
	if model.ContextWindowTokens <= 0 {
		return types.ModelConfig{}, fmt.Errorf("model %q has no context window configured", slug)
	}
	return model, nil
}

// Provider resolves a provider name to its configuration.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}
