package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"slices"
	"time"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/internal/text_analysis"
)

// entry is the stored form. It never leaves the store; callers get views.
type entry struct {
	ID           string                  `json:"id"`
	Data         Payload                 `json:"data"`
	Type         ContextType             `json:"type"`
	Importance   float64                 `json:"importance"`
	CreatedAt    time.Time               `json:"created_at"`
	AccessCount  int                     `json:"access_count"`
	LastAccessed time.Time               `json:"last_accessed"`
	Keywords     []string                `json:"keywords"`
	Embedding    text_analysis.Embedding `json:"embedding"`
}

// view copies e into a caller-owned EntryView.
func (e *entry) view() EntryView {
	return EntryView{
		ID:           e.ID,
		Data:         e.Data.clone(),
		Type:         e.Type,
		Importance:   e.Importance,
		CreatedAt:    e.CreatedAt,
		AccessCount:  e.AccessCount,
		LastAccessed: e.LastAccessed,
		Keywords:     slices.Clone(e.Keywords),
		Embedding:    e.Embedding,
	}
}

// touch records one retrieval of the entry.
func (e *entry) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}

// baseScores are the query-independent components at now.
func (e *entry) baseScores(now time.Time) scoring.Scores {
	return scoring.Scores{
		Importance: e.Importance,
		Recency:    scoring.Recency(now.Sub(e.CreatedAt)),
		Access:     scoring.Access(e.AccessCount, now.Sub(e.LastAccessed)),
	}
}
