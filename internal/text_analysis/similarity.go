package text_analysis //nolint:revive // var-naming: using underscores for domain clarity

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is all zeros.
func CosineSimilarity(a, b Embedding) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
