// Package scoring holds the ranking formulas of the context store: the
// insertion-time importance prior and the per-query relevance, recency and
// access scores, combined into one weighted rank.
package scoring

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lewisedginton/contextmemory/internal/text_analysis"
)

// Weights of the combined rank. They sum to 1.
type Weights struct {
	Relevance  float64
	Importance float64
	Recency    float64
	Access     float64
}

// DefaultWeights is the rank used for both retrieval and eviction.
var DefaultWeights = Weights{
	Relevance:  0.4,
	Importance: 0.3,
	Recency:    0.2,
	Access:     0.1,
}

// Scores are the four per-entry components feeding the combined rank.
type Scores struct {
	Relevance  float64 `json:"relevance"`
	Importance float64 `json:"importance"`
	Recency    float64 `json:"recency"`
	Access     float64 `json:"access"`
}

// Combined returns the weighted sum of all four scores.
func (w Weights) Combined(s Scores) float64 {
	return s.Relevance*w.Relevance +
		s.Importance*w.Importance +
		s.Recency*w.Recency +
		s.Access*w.Access
}

// Eviction ranks an entry when there is no live query: relevance counts as 0
// and the remaining weights are left as they are.
func (w Weights) Eviction(s Scores) float64 {
	s.Relevance = 0
	return w.Combined(s)
}

const (
	longContentRunes    = 200
	longContentBonus    = 0.1
	criticalBonus       = 0.2
	preferenceBonus     = 0.15
	freshDayBonus       = 0.1
	freshWeekBonus      = 0.05
	relevanceKeywordsW  = 0.4
	relevanceEmbeddingW = 0.6
	recencyDecayHours   = 24.0
)

// ImportanceInput carries what the importance prior is computed from.
type ImportanceInput struct {
	// Base is the caller supplied prior, 0.5 when unspecified.
	Base float64
	// TypeWeight is the weight of the entry's context type.
	TypeWeight float64
	// Text is the payload text. Content bonuses only apply when IsText is set.
	Text   string
	IsText bool
	// Age is how old the payload already is at insertion.
	Age time.Duration
}

// Importance computes the static prior of an entry:
//
//	base*type_weight
//	  + 0.1  if the text is longer than 200 characters
//	  + 0.2  if it contains "important" or "critical"
//	  + 0.15 if it contains "preference" or "like"
//	  + 0.1  if younger than a day, 0.05 if younger than a week
//
// clamped to [0, 1]. Structured payloads only get base*type_weight.
func Importance(in ImportanceInput) float64 {
	score := in.Base * in.TypeWeight

	if in.IsText {
		if utf8.RuneCountInString(in.Text) > longContentRunes {
			score += longContentBonus
		}
		if strings.Contains(in.Text, "important") || strings.Contains(in.Text, "critical") {
			score += criticalBonus
		}
		if strings.Contains(in.Text, "preference") || strings.Contains(in.Text, "like") {
			score += preferenceBonus
		}

		switch days := in.Age.Hours() / 24; {
		case days < 1:
			score += freshDayBonus
		case days < 7:
			score += freshWeekBonus
		}
	}

	return Clamp01(score)
}

// Relevance blends keyword overlap (0.4) with embedding cosine (0.6), clamped to [0, 1].
func Relevance(queryKeywords, entryKeywords []string, query, entry text_analysis.Embedding) float64 {
	overlap := text_analysis.KeywordOverlap(queryKeywords, entryKeywords)
	cosine := text_analysis.CosineSimilarity(entry, query)
	return Clamp01(overlap*relevanceKeywordsW + cosine*relevanceEmbeddingW)
}

// Recency decays exponentially with age: exp(-hours/24). Future timestamps count as age 0.
func Recency(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Hours() / recencyDecayHours)
}

// Access averages the recency of the last access with log10(count+1),
// clamped to [0, 1] so heavily used entries cannot outweigh the other terms.
func Access(accessCount int, sinceLastAccess time.Duration) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	frequency := math.Log10(float64(accessCount) + 1)
	return Clamp01((Recency(sinceLastAccess) + frequency) / 2)
}

// Clamp01 limits v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
