package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityMetricsRecord(t *testing.T) {
	var m QualityMetrics

	m.Record(&QualityMetadata{Quality: 0.8, ContextRelevance: 0.6})
	m.Record(&QualityMetadata{Quality: 0.4, ContextRelevance: 0.2})

	assert.Equal(t, 2, m.RatedTurns)
	assert.InDelta(t, 0.6, m.OverallQuality, 0.001)
	assert.InDelta(t, 0.4, m.AvgContextRelevance, 0.001)

	// nil metadata is a no-op, not a zero sample.
	m.Record(nil)
	assert.Equal(t, 2, m.RatedTurns)
	assert.InDelta(t, 0.6, m.OverallQuality, 0.001)
}

func TestHighQualityNilSafe(t *testing.T) {
	var q *QualityMetadata
	assert.False(t, q.HighQuality())
	assert.False(t, (&QualityMetadata{Quality: 0.79}).HighQuality())
	assert.True(t, (&QualityMetadata{Quality: 0.8}).HighQuality())
}

func TestTurnCompleted(t *testing.T) {
	turn := Turn{SessionID: "s1", Number: 1, UserMessage: "hello"}
	assert.False(t, turn.Completed())

	turn.AgentResponse = "hi there"
	assert.False(t, turn.Completed(), "quality metadata is part of completion")

	turn.Quality = &QualityMetadata{Quality: 0.5}
	assert.True(t, turn.Completed())
}

func TestIllegalTransitionMessage(t *testing.T) {
	err := NewIllegalTransition(StatusEnded, StatusActive)
	assert.Contains(t, err.Error(), "ENDED -> ACTIVE")
}
