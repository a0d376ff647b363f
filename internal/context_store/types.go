// Package context_store is a bounded, score-ranked memory of conversational
// context. Entries are inserted with an importance prior, retrieved by a blend
// of relevance, importance, recency and access frequency, and evicted in
// batches when the store outgrows its capacity. Snapshots persist through a
// storage_manager.FileProvider.
package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/internal/text_analysis"
)

// ContextType is the category of a stored entry. It fixes the weight applied
// to the importance prior at insertion.
type ContextType string

const (
	UserPreference   ContextType = "user_preference"
	ImportantFact    ContextType = "important_fact"
	TaskContext      ContextType = "task_context"
	ConversationFlow ContextType = "conversation_flow"
	DomainKnowledge  ContextType = "domain_knowledge"
	GeneralContext   ContextType = "general_context"
)

// ContextTypes lists every category in weight order.
var ContextTypes = []ContextType{
	UserPreference,
	ImportantFact,
	TaskContext,
	ConversationFlow,
	DomainKnowledge,
	GeneralContext,
}

var typeWeights = map[ContextType]float64{
	UserPreference:   0.9,
	ImportantFact:    0.8,
	TaskContext:      0.7,
	ConversationFlow: 0.6,
	DomainKnowledge:  0.5,
	GeneralContext:   0.3,
}

// Weight returns the type weight. Unknown types weigh as GeneralContext.
func (t ContextType) Weight() float64 {
	if w, ok := typeWeights[t]; ok {
		return w
	}
	return typeWeights[GeneralContext]
}

// Valid reports whether t is one of the known categories.
func (t ContextType) Valid() bool {
	_, ok := typeWeights[t]
	return ok
}

// ParseContextType accepts the category names case-insensitively.
func ParseContextType(s string) (ContextType, error) {
	t := ContextType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown context type %q", s)
	}
	return t, nil
}

// EntryView is a caller-owned copy of a stored entry. Scores and Combined
// are filled by ranked reads; Similarity only by Similar.
type EntryView struct {
	ID           string                  `json:"id"`
	Data         Payload                 `json:"data"`
	Type         ContextType             `json:"type"`
	Importance   float64                 `json:"importance"`
	CreatedAt    time.Time               `json:"created_at"`
	AccessCount  int                     `json:"access_count"`
	LastAccessed time.Time               `json:"last_accessed"`
	Keywords     []string                `json:"keywords"`
	Embedding    text_analysis.Embedding `json:"-"`

	Scores     scoring.Scores `json:"scores"`
	Combined   float64        `json:"combined,omitempty"`
	Similarity float64        `json:"similarity,omitempty"`
}

// Stats summarises the store.
type Stats struct {
	Total         int                 `json:"total"`
	MaxEntries    int                 `json:"max_entries"`
	AvgImportance float64             `json:"avg_importance"`
	Utilization   float64             `json:"utilization"`
	CountsByType  map[ContextType]int `json:"counts_by_type"`
}
