package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/lewisedginton/contextmemory/internal/context_store"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultPlatform      = "unknown"
	DefaultSemanticLimit = 5
	DefaultSimilarCount  = 3
	DefaultMinSimilarity = 0.7
	DefaultRecentWindow  = time.Hour
	DefaultRecentLimit   = 10
)

// Memory is the part of a context_store.Store the builder reads.
type Memory interface {
	Retrieve(ctx context.Context, query string, opts ...context_store.RetrieveOption) []context_store.EntryView
	Similar(text string, k int, minSimilarity float64) []context_store.EntryView
	Recent(window time.Duration, limit int) []context_store.EntryView
}

// Config holds configuration for a Builder.
type Config struct {
	Memory Memory
	// Preferences is optional; without it preferences are always empty.
	Preferences PreferenceProvider
	Logger      logger.Logger

	SemanticLimit int
	SimilarCount  int
	MinSimilarity float64
	RecentWindow  time.Duration
	RecentLimit   int
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Builder assembles enhanced contexts.
type Builder struct {
	cfg Config
	log logger.Logger
}

// New creates a builder.
func New(cfg Config) *Builder {
	if cfg.Memory == nil {
		panic("memory cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.SemanticLimit <= 0 {
		cfg.SemanticLimit = DefaultSemanticLimit
	}
	if cfg.SimilarCount <= 0 {
		cfg.SimilarCount = DefaultSimilarCount
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Builder{cfg: cfg, log: cfg.Logger}
}

type baseContext struct {
	MessageHistory []Message      `json:"message_history"`
	UserContext    map[string]any `json:"user_context"`
	Timestamp      time.Time      `json:"timestamp"`
	Platform       string         `json:"platform"`
}

// Build assembles the enhanced context for req.Message. Retrieving semantic
// context updates access statistics of the returned entries.
func (b *Builder) Build(ctx context.Context, req BuildRequest) EnhancedContext {
	log := logger.GetLoggerFromContext(ctx, b.log)

	base := baseContext{
		MessageHistory: req.History,
		UserContext:    req.UserContext,
		Timestamp:      b.cfg.Clock().UTC(),
		Platform:       req.Platform,
	}
	if base.MessageHistory == nil {
		base.MessageHistory = []Message{}
	}
	if base.UserContext == nil {
		base.UserContext = map[string]any{}
	}
	if base.Platform == "" {
		base.Platform = DefaultPlatform
	}

	baseSize := 0
	if encoded, err := json.Marshal(base); err != nil {
		log.Warn("Failed to measure base context", logger.ErrorField(err))
	} else {
		baseSize = len(encoded)
	}

	semantic := b.cfg.Memory.Retrieve(ctx, req.Message, context_store.WithLimit(b.cfg.SemanticLimit))
	requirements := analyzeRequirements(req.Message, baseSize)

	out := EnhancedContext{
		MessageHistory:   base.MessageHistory,
		UserContext:      base.UserContext,
		Timestamp:        base.Timestamp,
		Platform:         base.Platform,
		SemanticContext:  semantic,
		RecentContext:    b.cfg.Memory.Recent(b.cfg.RecentWindow, b.cfg.RecentLimit),
		ConversationFlow: analyzeFlow(base.MessageHistory),
		UserPreferences:  b.preferences(ctx, log),
		DomainContext:    detectDomains(req.Message, semantic),
		Requirements:     requirements,
	}
	if requirements.Complexity == LevelHigh {
		out.SimilarContext = b.cfg.Memory.Similar(req.Message, b.cfg.SimilarCount, b.cfg.MinSimilarity)
	}
	out.Complexity = complexity(out)
	out.TotalContextSize = totalSize(out.MessageHistory, semantic)

	log.Debug("Built enhanced context",
		logger.IntField("semantic", len(out.SemanticContext)),
		logger.IntField("similar", len(out.SimilarContext)),
		logger.IntField("recent", len(out.RecentContext)),
		logger.Float64Field("complexity", out.Complexity),
		logger.IntField("total_size", out.TotalContextSize))

	return out
}

func (b *Builder) preferences(ctx context.Context, log logger.Logger) map[string]any {
	if b.cfg.Preferences == nil {
		return map[string]any{}
	}
	prefs, err := b.cfg.Preferences.UserPreferences(ctx)
	if err != nil {
		log.Warn("Failed to load user preferences", logger.ErrorField(err))
		return map[string]any{}
	}
	if prefs == nil {
		return map[string]any{}
	}
	return prefs
}

// complexity adds a bonus for each of a long history, a rich user context,
// plenty of semantic context and more than one domain.
func complexity(c EnhancedContext) float64 {
	var score float64
	if len(c.MessageHistory) > 10 {
		score += 0.3
	}
	if len(c.UserContext) > 5 {
		score += 0.2
	}
	if len(c.SemanticContext) > 3 {
		score += 0.3
	}
	if len(c.DomainContext.DetectedDomains) > 1 {
		score += 0.2
	}
	return min(score, 1.0)
}

// totalSize is the character count of the history plus the size of every
// retrieved payload.
func totalSize(history []Message, semantic []context_store.EntryView) int {
	size := 0
	for _, msg := range history {
		size += utf8.RuneCountInString(msg.Text)
	}
	for _, v := range semantic {
		size += v.Data.Size()
	}
	return size
}
