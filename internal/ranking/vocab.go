package ranking

// Fixed vocabularies for the lexical scoring strategies. These are
// compatibility constants: downstream quality expectations are calibrated
// against exactly these sets, so additions or removals change behavior.

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true,
	"how": true, "man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "did": true,
	"its": true, "let": true, "she": true, "too": true, "use": true,
	"that": true, "with": true, "have": true, "this": true, "will": true,
	"your": true, "from": true, "they": true, "know": true, "want": true,
	"been": true, "good": true, "much": true, "some": true, "time": true,
	"very": true, "when": true, "come": true, "here": true, "just": true,
	"like": true, "long": true, "make": true, "many": true, "more": true,
	"only": true, "over": true, "such": true, "take": true, "than": true,
	"them": true, "well": true, "were": true, "what": true, "about": true,
	"there": true, "their": true, "would": true, "could": true, "should": true,
}

var medicalKeywords = []string{
	"pain", "headache", "headaches", "fever", "nausea", "dizzy", "dizziness",
	"fatigue", "tired", "cough", "symptom", "symptoms", "medication",
	"medicine", "dose", "dosage", "prescription", "doctor", "appointment",
	"diagnosis", "treatment", "therapy", "blood", "pressure", "heart",
	"chest", "breathing", "sleep", "insomnia", "migraine", "allergy",
	"allergies", "rash", "swelling", "injury", "chronic", "acute",
	"test", "tests", "scan", "results", "specialist", "hospital",
	"morning", "mornings", "evening", "night",
}

var emotionalKeywords = []string{
	"worried", "worry", "anxious", "anxiety", "scared", "afraid", "fear",
	"stressed", "stress", "frustrated", "frustrating", "upset", "sad",
	"depressed", "overwhelmed", "nervous", "concerned", "concern",
	"hopeful", "hope", "relieved", "relief", "calm", "better", "worse",
	"confused", "uncertain", "alone", "lonely", "angry", "panic",
}

var followUpIndicators = []string{
	"earlier", "before", "previously", "last time", "you said", "you mentioned",
	"we discussed", "we talked", "again", "still", "follow up", "followup",
	"as i said", "as i mentioned", "remember", "back to",
}
