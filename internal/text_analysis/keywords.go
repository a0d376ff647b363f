package text_analysis //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"
	"unicode"
)

const (
	// MaxKeywords bounds the keyword list kept per entry.
	MaxKeywords = 10
	// minKeywordLength is exclusive: tokens must be longer than this.
	minKeywordLength = 3
)

// ExtractKeywords lowercases text, replaces every character outside
// [a-z0-9_] and whitespace with a space, and keeps tokens longer than three
// characters that are not stop words. Order of first appearance is kept,
// duplicates are dropped and the result is capped at MaxKeywords.
func ExtractKeywords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if isWordChar(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	seen := make(map[string]struct{})
	keywords := make([]string, 0, MaxKeywords)

	for _, word := range strings.Fields(cleaned) {
		if len(word) <= minKeywordLength || IsStopWord(word) {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywords {
			break
		}
	}

	return keywords
}

// isWordChar matches the ASCII word class [A-Za-z0-9_].
func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// KeywordOverlap returns |query ∩ entry| / max(|query|, 1).
func KeywordOverlap(query, entry []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(entry))
	for _, k := range entry {
		set[k] = struct{}{}
	}
	matches := 0
	for _, k := range query {
		if _, ok := set[k]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}
