package config

import "time"

// SessionConfig configures lifecycle boundary checks. All three thresholds
// feed advisory flags only; they never force a transition.
type SessionConfig struct {
	// ArchivalTriggerTurns sets the archivalRequired flag once a session's
	// turn count reaches it.
	ArchivalTriggerTurns int `yaml:"archival_trigger_turns"`

	// LongRunningAfter sets the longRunning flag once a session's elapsed
	// time exceeds it.
	LongRunningAfter string `yaml:"long_running_after"`

	// QualityIssueThreshold sets the qualityIssues flag when the running
	// overall quality drops below it.
	QualityIssueThreshold float64 `yaml:"quality_issue_threshold"`
}

// ParseLongRunningAfter returns the long-running threshold, defaulting to 2h.
func (c SessionConfig) ParseLongRunningAfter() time.Duration {
	return parseDuration(c.LongRunningAfter, 2*time.Hour)
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ArchivalTriggerTurns:  50,
		LongRunningAfter:      "2h",
		QualityIssueThreshold: 0.6,
	}
}
