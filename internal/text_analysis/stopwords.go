package text_analysis //nolint:revive // var-naming: using underscores for domain clarity

// stopWords is the fixed common-word list. Membership is part of the ranking
// behaviour; do not extend it.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {}, "day": {},
	"get": {}, "has": {}, "him": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "boy": {}, "did": {},
	"man": {}, "oil": {}, "sit": {}, "try": {}, "use": {}, "she": {}, "put": {}, "end": {},
	"why": {}, "let": {}, "ask": {}, "run": {}, "own": {}, "say": {}, "too": {}, "any": {},
	"set": {}, "off": {}, "far": {}, "sea": {}, "eye": {}, "yet": {}, "eat": {}, "air": {},
	"son": {}, "car": {}, "bed": {}, "top": {}, "red": {}, "dog": {}, "hot": {}, "sun": {},
	"cup": {}, "fun": {}, "ten": {}, "big": {}, "yes": {},
}

// IsStopWord reports whether word is in the common-word list.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
