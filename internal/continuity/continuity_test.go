package continuity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremind/internal/types"
)

func summary(id string, quality float64, topics ...string) types.SessionSummary {
	return types.SessionSummary{
		SessionID:          id,
		EndedAt:            time.Now(),
		Duration:           10 * time.Minute,
		TotalTurns:         6,
		Topics:             topics,
		ResolutionAchieved: quality > 0.7,
		Quality:            quality,
	}
}

func TestAppendAggregates(t *testing.T) {
	s := NewStore()

	s.Append("user-1", summary("sess-1", 0.8, "headache"))
	s.Append("user-1", summary("sess-2", 0.6, "sleep"))

	rec, err := s.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SessionCount)
	assert.InDelta(t, 0.7, rec.AverageQuality, 0.001)
	require.Len(t, rec.Sessions, 2)
	assert.Equal(t, "sess-1", rec.Sessions[0].SessionID)
}

func TestGet_UnknownUser(t *testing.T) {
	s := NewStore()

	_, err := s.Get("nobody")
	var ve *types.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append("user-1", summary("sess-1", 0.8, "headache"))

	rec, err := s.Get("user-1")
	require.NoError(t, err)
	rec.Sessions[0].SessionID = "mutated"

	fresh, err := s.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", fresh.Sessions[0].SessionID)
}

func TestAppend_IgnoresEmptyUser(t *testing.T) {
	s := NewStore()
	s.Append("", summary("sess-1", 0.8))

	_, err := s.Get("")
	assert.Error(t, err)
}

func TestGreeting(t *testing.T) {
	s := NewStore()

	assert.Empty(t, s.Greeting("nobody"))

	s.Append("user-1", summary("sess-1", 0.9, "headache", "sleep"))
	greeting := s.Greeting("user-1")

	assert.Contains(t, greeting, "PRIOR_SESSIONS: 1")
	assert.Contains(t, greeting, "AVG_QUALITY: 0.90")
	assert.Contains(t, greeting, "LAST_TOPICS: headache, sleep")
	assert.Contains(t, greeting, "LAST_RESOLVED: true")
}
