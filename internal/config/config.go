// Package config holds all caremind configuration. Config files are YAML;
// a handful of CAREMIND_* environment variables override file values so
// deployments can tune without editing files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all caremind configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning-service client
	Client ClientConfig `yaml:"client"`

	// Relevance ranking and context composition
	Ranking RankingConfig `yaml:"ranking"`

	// Session lifecycle thresholds
	Session SessionConfig `yaml:"session"`

	// Memory synchronization
	Sync SyncConfig `yaml:"sync"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the external conversational-reasoning service.
type ClientConfig struct {
	Provider string `yaml:"provider"` // "genai" or "mock"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"` // usually injected via CAREMIND_API_KEY
	AgentID  string `yaml:"agent_id"`
	SenderID string `yaml:"sender_id"`
	Timeout  string `yaml:"timeout"`

	// FallbackReply is substituted when the upstream send itself fails.
	FallbackReply string `yaml:"fallback_reply"`
}

// ParseTimeout returns the client timeout, defaulting to 60s.
func (c ClientConfig) ParseTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string          `yaml:"level"` // debug, info, warn, error
	Development bool            `yaml:"development"`
	Categories  map[string]bool `yaml:"categories"` // nil = all enabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "caremind",
		Version: "1.0.0",

		Client: ClientConfig{
			Provider:      "genai",
			Model:         "gemini-2.0-flash",
			AgentID:       "care-companion",
			SenderID:      "caremind-engine",
			Timeout:       "60s",
			FallbackReply: "I'm having trouble reaching my reasoning service right now. Could you repeat that in a moment?",
		},

		Ranking: DefaultRankingConfig(),
		Session: DefaultSessionConfig(),
		Sync:    DefaultSyncConfig(),

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, layering it over defaults and then applying
// environment overrides. A missing file is not an error: defaults plus env
// overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be >= 1, got %d", c.Sync.Workers)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be >= 1, got %d", c.Sync.MaxAttempts)
	}
	if c.Ranking.MaxRelevantTurns < 1 {
		return fmt.Errorf("ranking.max_relevant_turns must be >= 1, got %d", c.Ranking.MaxRelevantTurns)
	}
	if c.Ranking.RecencyWindow < 1 {
		return fmt.Errorf("ranking.recency_window must be >= 1, got %d", c.Ranking.RecencyWindow)
	}
	return nil
}

// applyEnvOverrides layers CAREMIND_* environment variables on top of the
// loaded file. Only a curated set is supported; everything else belongs in
// the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CAREMIND_API_KEY"); v != "" {
		c.Client.APIKey = v
	}
	if v := os.Getenv("CAREMIND_MODEL"); v != "" {
		c.Client.Model = v
	}
	if v := os.Getenv("CAREMIND_PROVIDER"); v != "" {
		c.Client.Provider = v
	}
	if v := os.Getenv("CAREMIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CAREMIND_SYNC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.Workers = n
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
