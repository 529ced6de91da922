package ranking

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Composition renders the enrichment bundle as plain labeled text. The
// reasoning service parses these sections by convention, so labels and
// ordering are fixed.

const digestLimit = 120

// compose renders the message plus the five labeled sections, the confidence
// value, and the reasoning line.
func compose(message string, selected []scoredTurn, confidence float64) string {
	var sb strings.Builder

	sb.WriteString("CURRENT MESSAGE: ")
	sb.WriteString(message)
	sb.WriteString("\n")

	sb.WriteString("RELEVANT HISTORY:\n")
	if len(selected) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, st := range selected {
		sb.WriteString(fmt.Sprintf("  TURN_%d: USER: %s -> AGENT: %s\n",
			st.turn.Number, digest(st.turn.UserMessage), digest(st.turn.AgentResponse)))
	}

	sb.WriteString("TOPIC SUMMARY: ")
	sb.WriteString(topicSummary(selected))
	sb.WriteString("\n")

	sb.WriteString("MEDICAL TERMS: ")
	sb.WriteString(termSummary(message, selected, medicalKeywords))
	sb.WriteString("\n")

	sb.WriteString("EMOTIONAL CONTEXT: ")
	sb.WriteString(termSummary(message, selected, emotionalKeywords))
	sb.WriteString("\n")

	sb.WriteString("CONVERSATION FLOW: ")
	sb.WriteString(flowDescription(selected))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("CONTEXT CONFIDENCE: %.2f\n", confidence))
	sb.WriteString("REASONING: ")
	sb.WriteString(reasoning(len(selected), confidence))
	sb.WriteString("\n")

	return sb.String()
}

// composeSessionStart is the fixed bundle for a session with no history yet.
func composeSessionStart(message string) string {
	var sb strings.Builder
	sb.WriteString("CURRENT MESSAGE: ")
	sb.WriteString(message)
	sb.WriteString("\n")
	sb.WriteString("RELEVANT HISTORY:\n  (none)\n")
	sb.WriteString("TOPIC SUMMARY: (session start)\n")
	sb.WriteString("MEDICAL TERMS: (none yet)\n")
	sb.WriteString("EMOTIONAL CONTEXT: (none yet)\n")
	sb.WriteString("CONVERSATION FLOW: session start\n")
	sb.WriteString(fmt.Sprintf("CONTEXT CONFIDENCE: %.2f\n", emptyHistoryConfidence))
	sb.WriteString("REASONING: session start: no prior turns\n")
	return sb.String()
}

// composeFallback is the fixed bundle used when enrichment itself failed.
func composeFallback(message string) string {
	var sb strings.Builder
	sb.WriteString("CURRENT MESSAGE: ")
	sb.WriteString(message)
	sb.WriteString("\n")
	sb.WriteString("RELEVANT HISTORY:\n  (unavailable)\n")
	sb.WriteString("TOPIC SUMMARY: (unavailable)\n")
	sb.WriteString("MEDICAL TERMS: (unavailable)\n")
	sb.WriteString("EMOTIONAL CONTEXT: (unavailable)\n")
	sb.WriteString("CONVERSATION FLOW: (unavailable)\n")
	sb.WriteString(fmt.Sprintf("CONTEXT CONFIDENCE: %.2f\n", failureConfidence))
	sb.WriteString("REASONING: enrichment failed\n")
	return sb.String()
}

func reasoning(count int, mean float64) string {
	return fmt.Sprintf("selected %d turn(s), mean score %.2f", count, mean)
}

// digest trims text to a single-line excerpt for history rendering. The cut
// lands on a rune boundary so truncation never emits invalid UTF-8.
func digest(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > digestLimit {
		cut := digestLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut] + "..."
	}
	if text == "" {
		return "(pending)"
	}
	return text
}

// Digest exposes the single-line excerpt rule for other packages that render
// turns (the memory-block writers use the same truncation).
func Digest(text string) string { return digest(text) }

func topicSummary(selected []scoredTurn) string {
	seen := make(map[string]bool)
	var topics []string
	for _, st := range selected {
		tag := st.turn.TopicTag
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		topics = append(topics, tag)
	}
	if len(topics) == 0 {
		return "(none)"
	}
	sort.Strings(topics)
	return strings.Join(topics, ", ")
}

// termSummary lists the vocabulary terms present in the message or any
// selected turn.
func termSummary(message string, selected []scoredTurn, vocab []string) string {
	var all strings.Builder
	all.WriteString(strings.ToLower(message))
	for _, st := range selected {
		all.WriteString(" ")
		all.WriteString(strings.ToLower(st.turn.UserMessage))
		all.WriteString(" ")
		all.WriteString(strings.ToLower(st.turn.AgentResponse))
	}
	terms := presentTerms(all.String(), vocab)
	if len(terms) == 0 {
		return "(none)"
	}
	return strings.Join(terms, ", ")
}

// flowDescription summarizes the shape of the selected history.
func flowDescription(selected []scoredTurn) string {
	if len(selected) == 0 {
		return "no relevant prior turns"
	}
	first := selected[0].turn.Number
	last := selected[len(selected)-1].turn.Number
	if first == last {
		return fmt.Sprintf("1 relevant turn (turn %d)", first)
	}
	return fmt.Sprintf("%d relevant turns spanning turn %d to turn %d", len(selected), first, last)
}
