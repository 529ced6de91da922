package config

import "time"

// SyncConfig configures the memory synchronization coordinator.
type SyncConfig struct {
	// Workers bounds how many block writes run in parallel.
	Workers int `yaml:"workers"`

	// MaxAttempts is the total tries per block write (first attempt + retries).
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay seeds the exponential backoff: baseDelay * 2^(attempt-1).
	BaseDelay string `yaml:"base_delay"`

	// Deadline bounds one whole coordinator run. Tasks still outstanding at
	// the deadline are counted failed without being cancelled.
	Deadline string `yaml:"deadline"`

	// SummaryCadence updates the rolling summary every Nth turn (high-quality
	// turns update it regardless of cadence).
	SummaryCadence int `yaml:"summary_cadence"`

	// BlockSizeLimit bounds the rendered byte size of any one memory block.
	BlockSizeLimit int `yaml:"block_size_limit"`
}

// ParseBaseDelay returns the backoff seed, defaulting to 200ms.
func (c SyncConfig) ParseBaseDelay() time.Duration {
	return parseDuration(c.BaseDelay, 200*time.Millisecond)
}

// ParseDeadline returns the coordinator deadline, defaulting to 30s.
func (c SyncConfig) ParseDeadline() time.Duration {
	return parseDuration(c.Deadline, 30*time.Second)
}

// DefaultSyncConfig returns sensible defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Workers:        5,
		MaxAttempts:    3,
		BaseDelay:      "200ms",
		Deadline:       "30s",
		SummaryCadence: 3,
		BlockSizeLimit: 8192,
	}
}
