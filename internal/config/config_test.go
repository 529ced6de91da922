package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "caremind", cfg.Name)
	assert.Equal(t, "genai", cfg.Client.Provider)
	assert.NotEmpty(t, cfg.Client.FallbackReply)

	assert.Equal(t, 5, cfg.Sync.Workers)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Sync.ParseBaseDelay())
	assert.Equal(t, 30*time.Second, cfg.Sync.ParseDeadline())

	assert.Equal(t, 5, cfg.Ranking.RecencyWindow)
	assert.Equal(t, 10, cfg.Ranking.MaxRelevantTurns)

	assert.Equal(t, 50, cfg.Session.ArchivalTriggerTurns)
	assert.Equal(t, 2*time.Hour, cfg.Session.ParseLongRunningAfter())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sync, cfg.Sync)
}

func TestLoad_FileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caremind.yaml")
	content := `
name: caremind-test
client:
  provider: mock
sync:
  workers: 2
  base_delay: 50ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "caremind-test", cfg.Name)
	assert.Equal(t, "mock", cfg.Client.Provider)
	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.ParseBaseDelay())

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 10, cfg.Ranking.MaxRelevantTurns)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caremind.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAREMIND_API_KEY", "test-key")
	t.Setenv("CAREMIND_PROVIDER", "mock")
	t.Setenv("CAREMIND_SYNC_WORKERS", "9")
	t.Setenv("CAREMIND_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Client.APIKey)
	assert.Equal(t, "mock", cfg.Client.Provider)
	assert.Equal(t, 9, cfg.Sync.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_RejectBadWorkerCount(t *testing.T) {
	t.Setenv("CAREMIND_SYNC_WORKERS", "zero")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Sync.Workers)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Sync.Workers = 0 }},
		{"zero attempts", func(c *Config) { c.Sync.MaxAttempts = 0 }},
		{"zero relevant turns", func(c *Config) { c.Ranking.MaxRelevantTurns = 0 }},
		{"zero recency window", func(c *Config) { c.Ranking.RecencyWindow = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseDuration_Fallbacks(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, time.Second, parseDuration("garbage", time.Second))
	assert.Equal(t, 150*time.Millisecond, parseDuration("150ms", time.Second))
}
