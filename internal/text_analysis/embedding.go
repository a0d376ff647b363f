// Package text_analysis turns free text into the two signals the context store
// ranks on: a bounded keyword list and a fixed-length hash-bucket embedding.
// Both are deterministic and need no external model.
package text_analysis //nolint:revive // var-naming: using underscores for domain clarity

import (
	"math"
	"strings"
	"unicode/utf16"
)

// EmbeddingDimensions is the length of every embedding vector.
const EmbeddingDimensions = 50

// Embedding is an L2-normalised hash-bucket vector, or all zeros when the
// source text carried no tokens.
type Embedding [EmbeddingDimensions]float32

// IsZero reports whether every component is zero.
func (e Embedding) IsZero() bool {
	for _, v := range e {
		if v != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of the vector.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Slice returns a copy of the vector as a slice.
func (e Embedding) Slice() []float32 {
	out := make([]float32, EmbeddingDimensions)
	copy(out, e[:])
	return out
}

// Embed lowercases text, splits it on whitespace and adds 1/(i+1) into the
// bucket picked by the i-th token's hash, then L2-normalises the result.
// Earlier tokens weigh more.
func Embed(text string) Embedding {
	var acc [EmbeddingDimensions]float64

	for i, token := range strings.Fields(strings.ToLower(text)) {
		acc[bucket(token)] += 1 / float64(i+1)
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}

	var out Embedding
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// bucket maps a token to an embedding index. The hash is the classic
// `h = h*31 + c` over UTF-16 code units, wrapped to a signed 32-bit integer,
// then made non-negative. Keeping this exact keeps stored embeddings
// comparable with snapshots written by earlier versions.
func bucket(token string) int {
	return int(tokenHash(token) % EmbeddingDimensions)
}

func tokenHash(token string) int64 {
	var h int32
	for _, cu := range utf16.Encode([]rune(token)) {
		h = h*31 + int32(cu)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
