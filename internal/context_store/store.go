package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/internal/text_analysis"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultName               = "default"
	DefaultSnapshotKey        = "semantic_memory.json"
	DefaultMaxEntries         = 1000
	DefaultLimit              = 10
	DefaultMinImportance      = 0.3
	DefaultRelevanceThreshold = 0.3
	DefaultEvictionFraction   = 0.2
)

// similarScanLimit is the store size up to which Similar compares every
// entry instead of walking the HNSW graph.
const similarScanLimit = 256

// Config holds configuration for a Store.
type Config struct {
	// Name labels logs and metrics.
	Name string
	// FileProvider persists snapshots. Nil keeps the store in memory only.
	FileProvider storage_manager.FileProvider
	Logger       logger.Logger
	// Metrics is optional.
	Metrics *Metrics

	SnapshotKey string
	MaxEntries  int
	// DefaultLimit caps Retrieve and Peek results when no limit is given.
	DefaultLimit int
	// MinImportance is the default importance floor. Zero selects 0.3; pass
	// WithMinImportance(0) to a single call to disable the floor.
	MinImportance float64
	// RelevanceThreshold is the relevance a result must exceed.
	RelevanceThreshold float64
	// EvictionFraction of the store is shed per eviction pass.
	EvictionFraction float64
	// DisableAutoPersist stops Insert and Clear from saving.
	DisableAutoPersist bool
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.SnapshotKey == "" {
		c.SnapshotKey = DefaultSnapshotKey
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MinImportance <= 0 {
		c.MinImportance = DefaultMinImportance
	}
	if c.RelevanceThreshold <= 0 {
		c.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if c.EvictionFraction <= 0 || c.EvictionFraction > 1 {
		c.EvictionFraction = DefaultEvictionFraction
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Store is a bounded, ranked memory of context entries. It is safe for
// concurrent use; Retrieve mutates access statistics and so takes the same
// exclusive lock as Insert.
type Store struct {
	cfg Config
	log logger.Logger

	mu         sync.Mutex
	entries    map[string]*entry
	importance map[string]float64
	index      *similarityIndex
	version    uint64

	saveMu       sync.Mutex
	savedVersion uint64
}

// New creates an empty store. It does not read storage; see Open.
func New(cfg Config) *Store {
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	cfg = cfg.withDefaults()

	return &Store{
		cfg:        cfg,
		log:        cfg.Logger.WithFields(logger.StoreField(cfg.Name)),
		entries:    make(map[string]*entry),
		importance: make(map[string]float64),
		index:      newSimilarityIndex(),
	}
}

// Open creates a store and loads its snapshot. Load failures are logged
// and the store starts empty.
func Open(ctx context.Context, cfg Config) *Store {
	s := New(cfg)
	_ = s.Load(ctx)
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.cfg.Name
}

// MaxEntries returns the capacity bound.
func (s *Store) MaxEntries() int {
	return s.cfg.MaxEntries
}

func (s *Store) now() time.Time {
	return s.cfg.Clock()
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.importance = make(map[string]float64)
	s.index = newSimilarityIndex()
	s.version++
}

// Insert stores data and returns the new entry's id. It computes importance,
// keywords and embedding, evicts if the store went over capacity, and saves
// the snapshot unless auto-persist is disabled. Save failures are logged.
func (s *Store) Insert(ctx context.Context, data Payload, opts ...InsertOption) string {
	o := insertOptions{importance: DefaultBaseImportance, ctxType: GeneralContext}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.ctxType.Valid() {
		s.log.Warn("Unknown context type, storing as general",
			logger.StringField("type", string(o.ctxType)))
		o.ctxType = GeneralContext
	}

	now := time.UnixMilli(s.now().UnixMilli()).UTC()
	observedAt := o.observedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	data = data.clone()
	text := data.analysisText()
	e := &entry{
		Data: data,
		Type: o.ctxType,
		Importance: scoring.Importance(scoring.ImportanceInput{
			Base:       o.importance,
			TypeWeight: o.ctxType.Weight(),
			Text:       text,
			IsText:     data.IsText(),
			Age:        now.Sub(observedAt),
		}),
		CreatedAt:    now,
		LastAccessed: now,
		Keywords:     text_analysis.ExtractKeywords(text),
		Embedding:    text_analysis.Embed(text),
	}

	s.mu.Lock()
	for attempt := 0; ; attempt++ {
		e.ID = deriveID(now, data, attempt)
		if _, taken := s.entries[e.ID]; !taken {
			break
		}
	}
	s.entries[e.ID] = e
	s.importance[e.ID] = e.Importance
	s.index.add(e.ID, e.Embedding)
	s.version++
	evicted := s.evictLocked(now)
	size := len(s.entries)
	s.mu.Unlock()

	s.cfg.Metrics.inserted(s.cfg.Name, e.Type)
	s.cfg.Metrics.size(s.cfg.Name, size)
	s.log.Debug("Stored context entry",
		logger.EntryIDField(e.ID),
		logger.StringField("type", string(e.Type)),
		logger.Float64Field("importance", e.Importance),
		logger.IntField("keywords", len(e.Keywords)),
		logger.IntField("evicted", len(evicted)))

	s.autoPersist(ctx)
	return e.ID
}

type rankedEntry struct {
	e        *entry
	scores   scoring.Scores
	combined float64
}

// rankLocked scores every entry against query and returns the top results.
func (s *Store) rankLocked(query string, o retrieveOptions, now time.Time) []rankedEntry {
	queryKeywords := text_analysis.ExtractKeywords(query)
	queryEmbedding := text_analysis.Embed(query)

	var ranked []rankedEntry
	for _, e := range s.entries {
		if e.Importance < o.minImportance {
			continue
		}
		sc := e.baseScores(now)
		sc.Relevance = scoring.Relevance(queryKeywords, e.Keywords, queryEmbedding, e.Embedding)
		if sc.Relevance <= s.cfg.RelevanceThreshold {
			continue
		}
		ranked = append(ranked, rankedEntry{e: e, scores: sc, combined: scoring.DefaultWeights.Combined(sc)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.combined != b.combined {
			return a.combined > b.combined
		}
		if !a.e.CreatedAt.Equal(b.e.CreatedAt) {
			return a.e.CreatedAt.After(b.e.CreatedAt)
		}
		return a.e.ID < b.e.ID
	})

	if len(ranked) > o.limit {
		ranked = ranked[:o.limit]
	}
	return ranked
}

func (s *Store) retrieveOptions(opts []RetrieveOption) retrieveOptions {
	o := retrieveOptions{limit: s.cfg.DefaultLimit, minImportance: s.cfg.MinImportance}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Retrieve returns the entries most relevant to query, best first. Entries
// under the importance floor or at or below the relevance threshold are
// skipped. Every returned entry has its access count incremented and its
// last access set to now; the returned views show the updated counters
// with the scores computed before the update.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) []EntryView {
	o := s.retrieveOptions(opts)
	start := time.Now()

	s.mu.Lock()
	now := s.now()
	ranked := s.rankLocked(query, o, now)
	views := make([]EntryView, 0, len(ranked))
	for _, r := range ranked {
		r.e.touch(now)
		v := r.e.view()
		v.Scores = r.scores
		v.Combined = r.combined
		views = append(views, v)
	}
	if len(ranked) > 0 {
		s.version++
	}
	s.mu.Unlock()

	s.cfg.Metrics.retrieved(s.cfg.Name, "retrieve", len(views), time.Since(start))
	logger.GetLoggerFromContext(ctx, s.log).Debug("Retrieved context",
		logger.IntField("results", len(views)),
		logger.IntField("limit", o.limit),
		logger.Float64Field("min_importance", o.minImportance))

	return views
}

// Peek ranks like Retrieve without touching access statistics.
func (s *Store) Peek(ctx context.Context, query string, opts ...RetrieveOption) []EntryView {
	o := s.retrieveOptions(opts)
	start := time.Now()

	s.mu.Lock()
	ranked := s.rankLocked(query, o, s.now())
	views := make([]EntryView, 0, len(ranked))
	for _, r := range ranked {
		v := r.e.view()
		v.Scores = r.scores
		v.Combined = r.combined
		views = append(views, v)
	}
	s.mu.Unlock()

	s.cfg.Metrics.retrieved(s.cfg.Name, "peek", len(views), time.Since(start))
	return views
}

// Get returns the entry with id without touching it.
func (s *Store) Get(id string) (EntryView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return EntryView{}, false
	}
	return e.view(), true
}

// Similar returns up to k entries whose embedding cosine with text's
// embedding is at least minSimilarity, most similar first. It does not
// touch access statistics.
func (s *Store) Similar(text string, k int, minSimilarity float64) []EntryView {
	query := text_analysis.Embed(text)
	if k <= 0 || query.IsZero() {
		return []EntryView{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > similarScanLimit {
		var candidates []*entry
		for _, id := range s.index.nearest(query, max(4*k, 32)) {
			if e, ok := s.entries[id]; ok {
				candidates = append(candidates, e)
			}
		}
		// The graph is approximate; fewer than k hits means it may have
		// missed qualifying entries, so the exact scan decides.
		if views := rankSimilar(query, candidates, k, minSimilarity); len(views) >= k {
			return views
		}
	}

	candidates := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, e)
	}
	return rankSimilar(query, candidates, k, minSimilarity)
}

// rankSimilar keeps candidates at or above minSimilarity, most similar
// first, ties by id, at most k.
func rankSimilar(query text_analysis.Embedding, candidates []*entry, k int, minSimilarity float64) []EntryView {
	views := make([]EntryView, 0, k)
	for _, e := range candidates {
		if e.Embedding.IsZero() {
			continue
		}
		sim := text_analysis.CosineSimilarity(query, e.Embedding)
		if sim < minSimilarity {
			continue
		}
		v := e.view()
		v.Similarity = sim
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Similarity != views[j].Similarity {
			return views[i].Similarity > views[j].Similarity
		}
		return views[i].ID < views[j].ID
	})
	if len(views) > k {
		views = views[:k]
	}
	return views
}

// Recent returns entries created within window of now, newest first.
func (s *Store) Recent(window time.Duration, limit int) []EntryView {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	var recent []*entry
	for _, e := range s.entries {
		if !e.CreatedAt.Before(cutoff) {
			recent = append(recent, e)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		}
		return recent[i].ID < recent[j].ID
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}

	views := make([]EntryView, 0, len(recent))
	for _, e := range recent {
		views = append(views, e.view())
	}
	return views
}

// Clear removes every entry and saves the empty store unless auto-persist
// is disabled.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	removed := len(s.entries)
	s.entries = make(map[string]*entry)
	s.importance = make(map[string]float64)
	s.index.rebuild(s.entries)
	s.version++
	s.mu.Unlock()

	s.cfg.Metrics.size(s.cfg.Name, 0)
	s.log.Info("Cleared context store", logger.IntField("removed", removed))
	s.autoPersist(ctx)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats summarises the store. It does not modify anything.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Total:        len(s.entries),
		MaxEntries:   s.cfg.MaxEntries,
		Utilization:  float64(len(s.entries)) / float64(s.cfg.MaxEntries),
		CountsByType: make(map[ContextType]int, len(ContextTypes)),
	}
	for _, t := range ContextTypes {
		stats.CountsByType[t] = 0
	}
	for _, e := range s.entries {
		stats.CountsByType[e.Type]++
	}

	if len(s.importance) > 0 {
		ids := make([]string, 0, len(s.importance))
		for id := range s.importance {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var sum float64
		for _, id := range ids {
			sum += s.importance[id]
		}
		stats.AvgImportance = sum / float64(len(ids))
	}
	return stats
}
