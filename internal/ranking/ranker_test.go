package ranking

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremind/internal/config"
	"caremind/internal/types"
)

func makeTurn(number int, user, agent, topic string) types.Turn {
	return types.Turn{
		SessionID:     "s1",
		Number:        number,
		UserMessage:   user,
		AgentResponse: agent,
		TopicTag:      topic,
		Timestamp:     time.Now(),
	}
}

func TestEnrich_EmptyHistorySentinel(t *testing.T) {
	r := NewRanker(config.DefaultRankingConfig())

	result := r.Enrich(nil, "I have a headache", 1)

	assert.Equal(t, 0.8, result.Confidence, "empty history must return the fixed 0.8 sentinel")
	assert.Empty(t, result.SelectedTurnNumbers)
	assert.Contains(t, result.ComposedText, "CURRENT MESSAGE: I have a headache")
	assert.Contains(t, result.Reasoning, "session start")
}

func TestEnrich_FailureSentinel(t *testing.T) {
	orig := extractMessageKeywords
	extractMessageKeywords = func(string) map[string]bool { panic("induced") }
	defer func() { extractMessageKeywords = orig }()

	r := NewRanker(config.DefaultRankingConfig())
	turns := []types.Turn{makeTurn(1, "hello", "hi there", "")}

	result := r.Enrich(turns, "anything", 2)

	assert.Equal(t, 0.3, result.Confidence, "internal failure must return the fixed 0.3 sentinel")
	assert.Empty(t, result.SelectedTurnNumbers)
	assert.Equal(t, "enrichment failed", result.Reasoning)
}

func TestEnrich_SelectedTurnsChronological(t *testing.T) {
	r := NewRanker(config.DefaultRankingConfig())

	// Turn 2 should outscore turn 5 on topic overlap, but selection must
	// come back in chronological order regardless of ranking order.
	turns := []types.Turn{
		makeTurn(1, "my headaches started last week", "tell me more about the headaches", "headache"),
		makeTurn(2, "the headache pain is worst in the mornings", "morning headaches can have several causes", "headache"),
		makeTurn(3, "unrelated chatter about weekend plans", "sounds fun", ""),
		makeTurn(4, "also my sleep has been poor", "poor sleep often worsens headaches", "sleep"),
		makeTurn(5, "what should I do", "let's review options", ""),
	}

	result := r.Enrich(turns, "the headache is back this morning, worse than before", 6)

	require.NotEmpty(t, result.SelectedTurnNumbers)
	for i := 1; i < len(result.SelectedTurnNumbers); i++ {
		assert.Less(t, result.SelectedTurnNumbers[i-1], result.SelectedTurnNumbers[i],
			"selected turns must be sorted by turn number")
	}
}

func TestEnrich_MaxRelevantTurnsCap(t *testing.T) {
	cfg := config.DefaultRankingConfig()
	cfg.MaxRelevantTurns = 3
	r := NewRanker(cfg)

	var turns []types.Turn
	for i := 1; i <= 10; i++ {
		turns = append(turns, makeTurn(i, fmt.Sprintf("headache update %d", i), "noted", "headache"))
	}

	result := r.Enrich(turns, "about my headache", 11)
	assert.LessOrEqual(t, len(result.SelectedTurnNumbers), 3)
}

func TestEnrich_ConfidenceCapped(t *testing.T) {
	r := NewRanker(config.DefaultRankingConfig())
	turns := []types.Turn{
		makeTurn(1, "severe headache and nausea today", "that combination deserves attention", "headache"),
	}

	result := r.Enrich(turns, "the headache and nausea again", 2)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestRecencyScore_WindowAndFloor(t *testing.T) {
	cfg := config.DefaultRankingConfig()
	r := NewRanker(cfg)

	tests := []struct {
		name     string
		turnNum  int
		current  int
		expected float64
	}{
		{"immediately previous turn", 9, 10, 0.9},
		{"three back", 7, 10, 0.7},
		{"window edge", 5, 10, 0.5},
		{"outside window", 4, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.recencyScore(makeTurn(tt.turnNum, "x", "y", ""), tt.current)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestTopicScore_TagBoost(t *testing.T) {
	turn := makeTurn(1, "about migraines", "migraines discussed", "migraine")

	without := topicScore(makeTurn(1, "about migraines", "migraines discussed", ""),
		"tell me about diet", extractKeywords("tell me about diet"))
	with := topicScore(turn, "my migraine is back", extractKeywords("my migraine is back"))

	assert.Greater(t, with, without, "literal topic tag match must add the boost")
	assert.LessOrEqual(t, with, 1.0)
}

func TestFollowUpScore(t *testing.T) {
	turn := makeTurn(4, "x", "y", "")

	assert.Zero(t, followUpScore(turn, 5, 0), "no indicators means no follow-up signal")

	recent := followUpScore(makeTurn(4, "x", "y", ""), 5, 1)
	distant := followUpScore(makeTurn(1, "x", "y", ""), 5, 1)
	assert.Greater(t, recent, distant, "follow-up prefers recent turns")
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("The headaches are much worse in the mornings!")
	want := map[string]bool{
		"headaches": true,
		"worse":     true,
		"mornings":  true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keyword mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectSignals(t *testing.T) {
	assert.Equal(t, "headache", DetectTopic("this headache will not quit"))
	assert.Equal(t, "", DetectTopic("nothing clinical here at all"))
	assert.Equal(t, "worried", DetectEmotion("I'm worried it is serious"))
	assert.Equal(t, "", DetectEmotion("all fine"))
}

func TestCompose_Sections(t *testing.T) {
	r := NewRanker(config.DefaultRankingConfig())
	turns := []types.Turn{
		makeTurn(1, "I'm worried about my headache", "I understand, let's look at the headache", "headache"),
	}

	result := r.Enrich(turns, "the headache is back and I'm worried", 2)

	for _, section := range []string{
		"CURRENT MESSAGE:", "RELEVANT HISTORY:", "TOPIC SUMMARY:",
		"MEDICAL TERMS:", "EMOTIONAL CONTEXT:", "CONVERSATION FLOW:",
		"CONTEXT CONFIDENCE:", "REASONING:",
	} {
		assert.Contains(t, result.ComposedText, section)
	}
	assert.Contains(t, result.ComposedText, "headache")
	assert.Contains(t, result.ComposedText, "worried")
}

func TestDigest_TruncatesOnRuneBoundary(t *testing.T) {
	// One leading ASCII byte pushes the 3-byte runes off the limit, so a
	// byte-index cut would land mid-rune.
	text := "a" + strings.Repeat("疼", 60)

	got := digest(text)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), digestLimit+len("..."))
}

func TestDigest_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "mild headache", digest("mild headache"))
	assert.Equal(t, "(pending)", digest(""))
	assert.Equal(t, "line one line two", digest("line one\nline two"))
}
