// Package context_builder assembles the enhanced context handed to prompt
// assembly: ranked memory from a context_store, conversation flow, domain
// detection, user preferences and a coarse complexity estimate.
package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"time"

	"github.com/lewisedginton/contextmemory/internal/context_store"
)

// Message senders recognised by the flow analysis.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Conversation patterns.
const (
	PatternLinear       = "linear"
	PatternUserDominant = "user_dominant"
	PatternBotDominant  = "bot_dominant"
)

// Levels used for engagement, complexity and personalisation.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Message is one turn of the conversation history.
type Message struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// BuildRequest is the input to Builder.Build.
type BuildRequest struct {
	Message     string         `json:"message"`
	History     []Message      `json:"history"`
	UserContext map[string]any `json:"user_context"`
	// Platform defaults to "unknown".
	Platform string `json:"platform"`
}

// ConversationFlow describes the recent shape of the conversation.
type ConversationFlow struct {
	TotalMessages int      `json:"total_messages"`
	RecentTopics  []string `json:"recent_topics"`
	Pattern       string   `json:"pattern"`
	Engagement    string   `json:"engagement"`
}

// DomainContext lists the domains the message and retrieved knowledge touch.
type DomainContext struct {
	DetectedDomains   []string                  `json:"detected_domains"`
	Confidence        float64                   `json:"confidence"`
	RelevantKnowledge []context_store.EntryView `json:"relevant_knowledge"`
}

// Requirements is a heuristic reading of what the message needs from memory.
type Requirements struct {
	Type                 string   `json:"type"`
	Complexity           string   `json:"complexity"`
	ContextSize          string   `json:"context_size"`
	RelevanceFactors     []string `json:"relevance_factors"`
	OptimizationNeeded   bool     `json:"optimization_needed"`
	CompressionRequired  bool     `json:"compression_required"`
	PersonalizationLevel string   `json:"personalization_level"`
}

// EnhancedContext is the assembled context for one message.
type EnhancedContext struct {
	MessageHistory []Message      `json:"message_history"`
	UserContext    map[string]any `json:"user_context"`
	Timestamp      time.Time      `json:"timestamp"`
	Platform       string         `json:"platform"`

	SemanticContext []context_store.EntryView `json:"semantic_context"`
	SimilarContext  []context_store.EntryView `json:"similar_context,omitempty"`
	RecentContext   []context_store.EntryView `json:"recent_context"`

	ConversationFlow ConversationFlow `json:"conversation_flow"`
	UserPreferences  map[string]any   `json:"user_preferences"`
	DomainContext    DomainContext    `json:"domain_context"`
	Requirements     Requirements     `json:"requirements"`

	Complexity       float64 `json:"complexity"`
	TotalContextSize int     `json:"total_context_size"`
}
