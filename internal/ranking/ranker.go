// Package ranking selects which prior turns in a session are relevant to a
// new message and composes them into one enrichment bundle for the external
// reasoning service.
//
// Scoring is weighted lexical overlap across five independent strategies;
// there is deliberately no semantic/embedding component. A turn's final
// score is the maximum of its weighted strategy scores.
package ranking

import (
	"sort"
	"strings"

	"caremind/internal/config"
	"caremind/internal/logging"
	"caremind/internal/types"
)

// Strategy weights. Applied to each strategy score before the per-turn max
// is taken. Compatibility constants; do not tune.
const (
	weightRecency   = 1.0
	weightTopic     = 0.8
	weightMedical   = 0.9
	weightEmotional = 0.7
	weightFollowUp  = 0.95
)

// Topic-tag literal match bonus on the topic-overlap strategy.
const topicTagBoost = 0.3

// Sentinel confidences. These are fixed protocol values, not estimates:
// consumers distinguish the "no history yet" and "enrichment failed" paths
// by exactly these numbers.
const (
	emptyHistoryConfidence = 0.8
	failureConfidence      = 0.3
)

// scoredTurn pairs a historical turn with its final relevance score.
type scoredTurn struct {
	turn  types.Turn
	score float64
}

// Ranker scores and selects historical turns.
type Ranker struct {
	cfg config.RankingConfig
}

// NewRanker creates a Ranker with the given config.
func NewRanker(cfg config.RankingConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Enrich ranks the session's history against the new message and composes
// the enrichment bundle. It never returns an error: the empty-history and
// internal-failure paths produce fixed fallback bundles instead, because a
// missing enrichment must never block a turn.
func (r *Ranker) Enrich(turns []types.Turn, message string, currentTurn int) (result types.ContextEnrichmentResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ContextWarn("enrichment panicked, using fallback bundle: %v", rec)
			result = types.ContextEnrichmentResult{
				SelectedTurnNumbers: []int{},
				Confidence:          failureConfidence,
				ComposedText:        composeFallback(message),
				Reasoning:           "enrichment failed",
			}
		}
	}()

	if len(turns) == 0 {
		return types.ContextEnrichmentResult{
			SelectedTurnNumbers: []int{},
			Confidence:          emptyHistoryConfidence,
			ComposedText:        composeSessionStart(message),
			Reasoning:           "session start: no prior turns",
		}
	}

	selected := r.rank(turns, message, currentTurn)

	var sum float64
	numbers := make([]int, 0, len(selected))
	for _, st := range selected {
		sum += st.score
		numbers = append(numbers, st.turn.Number)
	}
	mean := 0.0
	if len(selected) > 0 {
		mean = sum / float64(len(selected))
	}
	confidence := mean
	if confidence > 1.0 {
		confidence = 1.0
	}

	composed := compose(message, selected, confidence)
	logging.ContextDebug("turn %d: selected %d/%d turns, mean score %.3f",
		currentTurn, len(selected), len(turns), mean)

	return types.ContextEnrichmentResult{
		SelectedTurnNumbers: numbers,
		Confidence:          confidence,
		ComposedText:        composed,
		Reasoning:           reasoning(len(selected), mean),
	}
}

// rank scores every past turn, keeps the top MaxRelevantTurns by score, and
// re-sorts the survivors chronologically. Selection order is irrelevant to
// downstream consumers; only turn order matters.
func (r *Ranker) rank(turns []types.Turn, message string, currentTurn int) []scoredTurn {
	msgKeywords := extractMessageKeywords(message)
	msgLower := strings.ToLower(message)
	msgMedical := presentTerms(msgLower, medicalKeywords)
	msgEmotional := presentTerms(msgLower, emotionalKeywords)
	followUps := countIndicators(msgLower)

	scored := make([]scoredTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Number >= currentTurn {
			continue
		}
		s := r.scoreTurn(turn, currentTurn, msgLower, msgKeywords, msgMedical, msgEmotional, followUps)
		scored = append(scored, scoredTurn{turn: turn, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > r.cfg.MaxRelevantTurns {
		scored = scored[:r.cfg.MaxRelevantTurns]
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].turn.Number < scored[j].turn.Number
	})
	return scored
}

// scoreTurn computes the five weighted strategy scores and returns their max.
func (r *Ranker) scoreTurn(turn types.Turn, currentTurn int, msgLower string, msgKeywords map[string]bool, msgMedical, msgEmotional []string, followUps int) float64 {
	best := weightRecency * r.recencyScore(turn, currentTurn)

	if s := weightTopic * topicScore(turn, msgLower, msgKeywords); s > best {
		best = s
	}
	if s := weightMedical * overlapScore(turn, msgMedical); s > best {
		best = s
	}
	if s := weightEmotional * overlapScore(turn, msgEmotional); s > best {
		best = s
	}
	if s := weightFollowUp * followUpScore(turn, currentTurn, followUps); s > best {
		best = s
	}
	return best
}

// recencyScore rewards the most recent RecencyWindow turns with a linear
// decay floored at 0.1. Turns outside the window score zero here (another
// strategy may still select them).
func (r *Ranker) recencyScore(turn types.Turn, currentTurn int) float64 {
	distance := currentTurn - turn.Number
	if distance > r.cfg.RecencyWindow {
		return 0
	}
	s := 1.0 - 0.1*float64(distance)
	if s < 0.1 {
		return 0.1
	}
	return s
}

// topicScore is the Jaccard similarity of the message's and turn's keyword
// sets, boosted when the turn's topic tag literally appears in the message.
func topicScore(turn types.Turn, msgLower string, msgKeywords map[string]bool) float64 {
	turnKeywords := extractKeywords(turn.UserMessage + " " + turn.AgentResponse)
	s := jaccard(msgKeywords, turnKeywords)
	if turn.TopicTag != "" && strings.Contains(msgLower, strings.ToLower(turn.TopicTag)) {
		s += topicTagBoost
	}
	if s > 1.0 {
		return 1.0
	}
	return s
}

// overlapScore is the fraction of vocabulary terms present in the message
// that also appear in the turn. Zero when the message carries none.
func overlapScore(turn types.Turn, msgTerms []string) float64 {
	if len(msgTerms) == 0 {
		return 0
	}
	turnText := strings.ToLower(turn.UserMessage + " " + turn.AgentResponse)
	shared := 0
	for _, term := range msgTerms {
		if strings.Contains(turnText, term) {
			shared++
		}
	}
	return float64(shared) / float64(len(msgTerms))
}

// followUpScore is nonzero only when the message carries a follow-up
// indicator. It combines indicator count with a 1/distance recency term so
// "as you said earlier" points at recent turns first.
func followUpScore(turn types.Turn, currentTurn, indicators int) float64 {
	if indicators == 0 {
		return 0
	}
	distance := currentTurn - turn.Number
	if distance < 1 {
		distance = 1
	}
	indicatorPart := float64(indicators) * 0.25
	if indicatorPart > 1.0 {
		indicatorPart = 1.0
	}
	s := 0.5*indicatorPart + 0.5*(1.0/float64(distance))
	if s > 1.0 {
		return 1.0
	}
	return s
}

// extractMessageKeywords is a seam for tests that need to exercise the
// enrichment failure path.
var extractMessageKeywords = extractKeywords

// extractKeywords lowercases, strips punctuation, drops short words and stop
// words, and returns the remaining word set.
func extractKeywords(text string) map[string]bool {
	keywords := make(map[string]bool)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(word) <= 2 || stopWords[word] {
			continue
		}
		keywords[word] = true
	}
	return keywords
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// presentTerms returns the vocabulary terms that occur in the text.
func presentTerms(textLower string, vocab []string) []string {
	var present []string
	for _, term := range vocab {
		if strings.Contains(textLower, term) {
			present = append(present, term)
		}
	}
	return present
}

func countIndicators(msgLower string) int {
	count := 0
	for _, ind := range followUpIndicators {
		if strings.Contains(msgLower, ind) {
			count++
		}
	}
	return count
}
