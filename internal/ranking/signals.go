package ranking

import "strings"

// Turn-tagging signals derived from the same fixed vocabularies the scoring
// strategies use, so tags and scores can never disagree about what counts as
// a medical or emotional term.

// DetectTopic returns the first medical vocabulary term present in the
// message, or "" when none is.
func DetectTopic(message string) string {
	lower := strings.ToLower(message)
	for _, term := range medicalKeywords {
		if strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}

// DetectEmotion returns the first emotional vocabulary term present in the
// message, or "" when none is.
func DetectEmotion(message string) string {
	lower := strings.ToLower(message)
	for _, term := range emotionalKeywords {
		if strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}
