package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"
)

// Context sizes and relevance factors reported by analyzeRequirements.
const (
	SizeSmall  = "small"
	SizeNormal = "normal"
	SizeLarge  = "large"

	FactorHistorical = "historical"
	FactorBackground = "background"

	requirementsType = "general"
)

const (
	highComplexityWords     = 50
	highComplexityQuestions = 2
	lowComplexityWords      = 10
	// CompressionThreshold is the encoded base-context size above which the
	// context should be compressed.
	CompressionThreshold = 10000
)

// analyzeRequirements reads the message for length, questions and cue words.
// baseSize is the encoded size of the base context.
func analyzeRequirements(message string, baseSize int) Requirements {
	req := Requirements{
		Type:                 requirementsType,
		Complexity:           LevelMedium,
		ContextSize:          SizeNormal,
		RelevanceFactors:     []string{},
		PersonalizationLevel: LevelMedium,
	}

	words := len(strings.Fields(message))
	questions := strings.Count(message, "?")

	switch {
	case words > highComplexityWords || questions > highComplexityQuestions:
		req.Complexity = LevelHigh
		req.ContextSize = SizeLarge
	case words < lowComplexityWords:
		req.Complexity = LevelLow
		req.ContextSize = SizeSmall
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "remember") || strings.Contains(lower, "previous") {
		req.RelevanceFactors = append(req.RelevanceFactors, FactorHistorical)
		req.PersonalizationLevel = LevelHigh
	}
	if strings.Contains(lower, "context") || strings.Contains(lower, "background") {
		req.RelevanceFactors = append(req.RelevanceFactors, FactorBackground)
		req.ContextSize = SizeLarge
	}

	if baseSize > CompressionThreshold {
		req.OptimizationNeeded = true
		req.CompressionRequired = true
	}

	return req
}
