// Package analyzer implements the keyword/regex response-quality analyzer.
// Analyze is a pure function: same inputs, same QualityMetadata, no network
// and no shared state. The heuristics are intentionally simple lexical
// checks; the vocabularies and thresholds are compatibility constants.
package analyzer

import (
	"regexp"
	"strings"

	"caremind/internal/types"
)

var (
	empathyMarkers = []string{
		"i understand", "that sounds", "i'm sorry", "it's understandable",
		"it makes sense", "thank you for sharing", "you're not alone",
	}
	hedgingMarkers = []string{
		"may", "might", "could", "consider", "typically", "often",
		"in some cases", "consult", "talk to your doctor",
	}
	overclaimMarkers = []string{
		"always works", "guaranteed", "cure", "never fails", "100%",
		"definitely will",
	}
	positiveWords = []string{
		"better", "improve", "good", "great", "relief", "progress",
		"helpful", "glad", "hope",
	}
	negativeWords = []string{
		"worse", "bad", "severe", "serious", "risk", "danger",
		"unfortunately", "concern",
	}
	topicTerms = []string{
		"headache", "sleep", "medication", "pain", "stress", "diet",
		"exercise", "appointment", "test", "symptom", "treatment",
	}
	emotionalUserTerms = []string{
		"worried", "anxious", "scared", "afraid", "stressed", "upset",
		"overwhelmed", "nervous", "concerned",
	}

	questionRe   = regexp.MustCompile(`\?`)
	adviceRe     = regexp.MustCompile(`(?i)\b(you (should|could|can|may want to)|try to|it helps to)\b`)
	disclaimerRe = regexp.MustCompile(`(?i)\b(not a (doctor|substitute)|seek (medical|professional)|consult)\b`)
	followUpRe   = regexp.MustCompile(`(?i)\b(follow up|let me know|check back|keep track|monitor)\b`)
)

// Analyzer is the default ResponseAnalyzer implementation.
type Analyzer struct{}

// New creates the default analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze scores one completed exchange.
func (a *Analyzer) Analyze(agentResponse, userMessage, enrichedContext string) types.QualityMetadata {
	respLower := strings.ToLower(agentResponse)
	userLower := strings.ToLower(userMessage)

	contextRelevance := overlapFraction(respLower, significantWords(enrichedContext))
	addressedConcern := overlapFraction(respLower, significantWords(userMessage)) >= 0.3

	medicalAccuracy := 0.7
	if containsAny(respLower, hedgingMarkers) {
		medicalAccuracy += 0.2
	}
	if containsAny(respLower, overclaimMarkers) {
		medicalAccuracy -= 0.4
	}
	medicalAccuracy = clamp(medicalAccuracy)

	emotional := 0.5
	userEmotional := containsAny(userLower, emotionalUserTerms)
	hasEmpathy := containsAny(respLower, empathyMarkers)
	switch {
	case userEmotional && hasEmpathy:
		emotional = 0.9
	case userEmotional && !hasEmpathy:
		emotional = 0.3
	case hasEmpathy:
		emotional = 0.7
	}

	sentiment := "neutral"
	pos := countAny(respLower, positiveWords)
	neg := countAny(respLower, negativeWords)
	if pos > neg {
		sentiment = "positive"
	} else if neg > pos {
		sentiment = "negative"
	}

	var patterns []string
	if questionRe.MatchString(agentResponse) {
		patterns = append(patterns, "question")
	}
	if adviceRe.MatchString(agentResponse) {
		patterns = append(patterns, "advice")
	}
	if disclaimerRe.MatchString(agentResponse) {
		patterns = append(patterns, "disclaimer")
	}
	if hasEmpathy {
		patterns = append(patterns, "empathy")
	}

	var topics []string
	combined := respLower + " " + userLower
	for _, t := range topicTerms {
		if strings.Contains(combined, t) {
			topics = append(topics, t)
		}
	}

	quality := clamp(0.35*contextRelevance + 0.25*medicalAccuracy + 0.2*emotional + lengthBonus(agentResponse))
	confidence := clamp(0.5 + 0.5*contextRelevance)

	return types.QualityMetadata{
		Quality:                  quality,
		ContextRelevance:         clamp(contextRelevance),
		Confidence:               confidence,
		MedicalAccuracy:          medicalAccuracy,
		EmotionalAppropriateness: emotional,
		Sentiment:                sentiment,
		Topics:                   topics,
		Patterns:                 patterns,
		AddressedConcern:         addressedConcern,
		RequiresFollowUp:         followUpRe.MatchString(agentResponse) || questionRe.MatchString(agentResponse),
	}
}

// lengthBonus rewards substantive responses up to a cap. One-liners score
// nothing; walls of text gain no extra credit.
func lengthBonus(response string) float64 {
	words := len(strings.Fields(response))
	switch {
	case words < 5:
		return 0
	case words < 20:
		return 0.1
	default:
		return 0.2
	}
}

func significantWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:()\"'")
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// overlapFraction is the fraction of words that appear in the text.
func overlapFraction(textLower string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(textLower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func containsAny(textLower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(textLower, t) {
			return true
		}
	}
	return false
}

func countAny(textLower string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(textLower, t)
	}
	return n
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
