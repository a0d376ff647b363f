package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lewisedginton/contextmemory/internal/text_analysis"
)

const (
	flowWindow       = 10
	maxRecentTopics  = 5
	minTopicLength   = 4
	patternMinLength = 5
	dominanceRatio   = 1.5
)

// analyzeFlow collects topic words from the last ten messages and, once the
// history is longer than five messages, classifies who is driving it.
func analyzeFlow(history []Message) ConversationFlow {
	flow := ConversationFlow{
		TotalMessages: len(history),
		RecentTopics:  []string{},
		Pattern:       PatternLinear,
		Engagement:    LevelMedium,
	}

	recent := history
	if len(recent) > flowWindow {
		recent = recent[len(recent)-flowWindow:]
	}

	seen := make(map[string]struct{})
	for _, msg := range recent {
		for _, word := range strings.Fields(strings.ToLower(msg.Text)) {
			word = trimPunct(word)
			if utf8.RuneCountInString(word) <= minTopicLength || text_analysis.IsStopWord(word) {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			if len(flow.RecentTopics) < maxRecentTopics {
				flow.RecentTopics = append(flow.RecentTopics, word)
			}
		}
	}

	if len(history) <= patternMinLength {
		return flow
	}

	var users, bots int
	for _, msg := range history {
		switch msg.Sender {
		case SenderUser:
			users++
		case SenderBot:
			bots++
		}
	}

	switch {
	case float64(users) > float64(bots)*dominanceRatio:
		flow.Pattern = PatternUserDominant
		flow.Engagement = LevelHigh
	case float64(bots) > float64(users)*dominanceRatio:
		flow.Pattern = PatternBotDominant
		flow.Engagement = LevelLow
	}

	return flow
}

func trimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
