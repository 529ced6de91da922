package config

// RankingConfig configures relevance ranking and context composition.
// The per-strategy weights and keyword vocabularies are compatibility
// constants owned by the ranking package, not configuration.
type RankingConfig struct {
	// RecencyWindow is how many of the most recent turns receive a recency
	// score at all.
	RecencyWindow int `yaml:"recency_window"`

	// MaxRelevantTurns caps how many historical turns are selected for one
	// enrichment bundle.
	MaxRelevantTurns int `yaml:"max_relevant_turns"`
}

// DefaultRankingConfig returns sensible defaults.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		RecencyWindow:    5,
		MaxRelevantTurns: 10,
	}
}
