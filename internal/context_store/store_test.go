package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/internal/text_analysis"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func newTestStore(t *testing.T, clock *fakeClock, mutate ...func(*Config)) *Store {
	t.Helper()
	cfg := Config{
		Logger:       newTestLogger(),
		FileProvider: storage_manager.NewMemoryFileProvider(),
		Clock:        clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

func TestInsertAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	id := store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference), WithImportance(0.5))
	store.Insert(ctx, Text("Quarterly revenue figures were shared yesterday"), WithType(ImportantFact))

	results := store.Retrieve(ctx, "dark mode preference")
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 0.55, results[0].Importance, 1e-9)
	assert.Equal(t, UserPreference, results[0].Type)
	assert.Equal(t, []string{"prefer", "dark", "mode"}, results[0].Keywords)
	assert.Greater(t, results[0].Scores.Relevance, 0.3)

	overlap := text_analysis.KeywordOverlap(text_analysis.ExtractKeywords("dark mode preference"), results[0].Keywords)
	assert.GreaterOrEqual(t, overlap, 2.0/3.0-1e-9)
}

func TestInsert_EntryInvariants(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	long := "important critical preference like "
	for i := 0; i < 30; i++ {
		long += fmt.Sprintf("word%d ", i)
	}

	inputs := []Payload{
		Text(""),
		Text("short"),
		Text(long),
		Structured(map[string]any{"domain": "health", "note": "important"}),
	}
	for _, p := range inputs {
		id := store.Insert(ctx, p, WithType(UserPreference), WithImportance(1))
		v, ok := store.Get(id)
		require.True(t, ok)

		assert.GreaterOrEqual(t, v.Importance, 0.0)
		assert.LessOrEqual(t, v.Importance, 1.0)
		assert.LessOrEqual(t, len(v.Keywords), text_analysis.MaxKeywords)
		if !v.Embedding.IsZero() {
			assert.InDelta(t, 1.0, v.Embedding.Norm(), 1e-5)
		}
		assert.Equal(t, 0, v.AccessCount)
		assert.True(t, v.CreatedAt.Equal(v.LastAccessed))
		assert.Equal(t, clock.Now().UnixMilli(), v.CreatedAt.UnixMilli())
	}
}

func TestInsert_StructuredPayloadHasNoTextSignal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	id := store.Insert(ctx, Structured(map[string]any{"domain": "technology", "summary": "important dark mode"}),
		WithType(DomainKnowledge))

	v, ok := store.Get(id)
	require.True(t, ok)
	assert.Empty(t, v.Keywords)
	assert.True(t, v.Embedding.IsZero())
	assert.InDelta(t, 0.25, v.Importance, 1e-9)
	assert.Equal(t, KindStructured, v.Data.Kind())

	assert.Empty(t, store.Retrieve(ctx, "important dark mode", WithMinImportance(0)))
}

func TestInsert_ObservedAtDrivesFreshnessBonus(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	fresh := store.Insert(ctx, Text("meeting notes"), WithType(TaskContext))
	days := store.Insert(ctx, Text("meeting notes"), WithType(TaskContext), WithObservedAt(clock.Now().Add(-72*time.Hour)))
	old := store.Insert(ctx, Text("meeting notes"), WithType(TaskContext), WithObservedAt(clock.Now().Add(-30*24*time.Hour)))

	get := func(id string) float64 {
		v, ok := store.Get(id)
		require.True(t, ok)
		return v.Importance
	}
	assert.InDelta(t, 0.45, get(fresh), 1e-9)
	assert.InDelta(t, 0.40, get(days), 1e-9)
	assert.InDelta(t, 0.35, get(old), 1e-9)

	record := Structured(map[string]any{"title": "meeting notes"})
	plain := store.Insert(ctx, record, WithType(TaskContext))
	dated := store.Insert(ctx, record, WithType(TaskContext), WithObservedAt(clock.Now().Add(-30*24*time.Hour)))
	assert.InDelta(t, 0.35, get(plain), 1e-9)
	assert.InDelta(t, get(plain), get(dated), 1e-9)
}

func TestInsert_UnknownTypeStoredAsGeneral(t *testing.T) {
	store := newTestStore(t, newFakeClock())

	id := store.Insert(context.Background(), Text("hello"), WithType("gossip"))
	v, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, GeneralContext, v.Type)
}

func TestInsert_IDsAreUnique(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	a := store.Insert(ctx, Text("same content"))
	b := store.Insert(ctx, Text("same content"))
	clock.Advance(time.Second)
	c := store.Insert(ctx, Text("same content"))

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, deriveID(clock.Now().Add(-time.Second).Truncate(time.Millisecond), Text("same content"), 0), a)
}

func TestRetrieve_AccessSideEffect(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	id := store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))
	other := store.Insert(ctx, Text("Grocery list: apples, flour, cinnamon"), WithType(TaskContext))

	clock.Advance(time.Hour)
	first := store.Retrieve(ctx, "dark mode preference", WithLimit(5))
	require.Len(t, first, 1)
	assert.Equal(t, 1, first[0].AccessCount)
	assert.True(t, clock.Now().Equal(first[0].LastAccessed))

	clock.Advance(time.Hour)
	second := store.Retrieve(ctx, "dark mode preference", WithLimit(5))
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].AccessCount)
	assert.True(t, clock.Now().Equal(second[0].LastAccessed))

	untouched, ok := store.Get(other)
	require.True(t, ok)
	assert.Equal(t, 0, untouched.AccessCount)

	stored, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, stored.AccessCount)
}

func TestPeek_DoesNotTouch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	id := store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))

	peeked := store.Peek(ctx, "dark mode preference")
	require.Len(t, peeked, 1)
	assert.Equal(t, id, peeked[0].ID)
	assert.Equal(t, 0, peeked[0].AccessCount)

	retrieved := store.Retrieve(ctx, "dark mode preference")
	require.Len(t, retrieved, 1)
	assert.Equal(t, peeked[0].Scores, retrieved[0].Scores)
	assert.Equal(t, peeked[0].Combined, retrieved[0].Combined)
}

func TestRetrieve_Filtering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	// general_context text: 0.5*0.3 + 0.1 freshness = 0.25, under the floor.
	low := store.Insert(ctx, Text("dark mode settings"), WithType(GeneralContext))
	high := store.Insert(ctx, Text("dark mode settings"), WithType(UserPreference))
	store.Insert(ctx, Text("Banana bread needs ripe bananas"), WithType(UserPreference))

	results := store.Retrieve(ctx, "dark mode settings")
	require.Len(t, results, 1)
	assert.Equal(t, high, results[0].ID)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Importance, DefaultMinImportance)
		assert.Greater(t, r.Scores.Relevance, DefaultRelevanceThreshold)
	}

	withoutFloor := store.Peek(ctx, "dark mode settings", WithMinImportance(0))
	ids := []string{}
	for _, r := range withoutFloor {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{low, high}, ids)

	assert.Empty(t, store.Retrieve(ctx, ""))
	assert.Empty(t, store.Retrieve(ctx, "zebra"))
}

func TestRetrieve_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	for i := 0; i < 8; i++ {
		store.Insert(ctx, Text(fmt.Sprintf("project deadline review %d", i)), WithType(TaskContext))
		clock.Advance(time.Minute)
	}
	important := store.Insert(ctx, Text("project deadline review"), WithType(ImportantFact), WithImportance(1))

	results := store.Retrieve(ctx, "project deadline review", WithLimit(3))
	require.Len(t, results, 3)
	assert.Equal(t, important, results[0].ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Combined, results[i].Combined)
	}
	for _, r := range results {
		assert.InDelta(t, scoring.DefaultWeights.Combined(r.Scores), r.Combined, 1e-12)
	}
}

func TestInsert_CapacityInvariant(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock, func(c *Config) { c.MaxEntries = 10 })

	for i := 0; i < 37; i++ {
		store.Insert(ctx, Text(fmt.Sprintf("note number %d about topic%d", i, i%4)), WithType(ContextTypes[i%len(ContextTypes)]))
		clock.Advance(time.Minute)
		assert.LessOrEqual(t, store.Len(), 10)
	}
}

func TestInsert_EvictionRemovesLowestRanked(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock, func(c *Config) { c.MaxEntries = 10 })

	var ids []string
	for i := 0; i < 10; i++ {
		typ := UserPreference
		if i == 3 || i == 6 {
			typ = GeneralContext
		}
		ids = append(ids, store.Insert(ctx, Text(fmt.Sprintf("memo %d", i)), WithType(typ)))
	}
	require.Equal(t, 10, store.Len())

	clock.Advance(time.Minute)
	before := map[string]EntryView{}
	for _, id := range ids {
		v, _ := store.Get(id)
		before[id] = v
	}

	store.Insert(ctx, Text("memo 10"), WithType(UserPreference))

	// max(floor(11*0.2), 11-10) = 2 removed.
	assert.Equal(t, 9, store.Len())
	_, ok := store.Get(ids[3])
	assert.False(t, ok)
	_, ok = store.Get(ids[6])
	assert.False(t, ok)

	now := clock.Now()
	score := func(v EntryView) float64 {
		return scoring.DefaultWeights.Eviction(scoring.Scores{
			Importance: v.Importance,
			Recency:    scoring.Recency(now.Sub(v.CreatedAt)),
			Access:     scoring.Access(v.AccessCount, now.Sub(v.LastAccessed)),
		})
	}
	var removed, kept []float64
	for id, v := range before {
		if _, ok := store.Get(id); ok {
			kept = append(kept, score(v))
		} else {
			removed = append(removed, score(v))
		}
	}
	for _, r := range removed {
		for _, k := range kept {
			assert.LessOrEqual(t, r, k)
		}
	}
}

func TestEvictionCount(t *testing.T) {
	tests := []struct {
		n, max int
		want   int
	}{
		{10, 10, 0},
		{11, 10, 2},
		{1001, 1000, 200},
		{3, 2, 1},
		{50, 10, 40},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d_over_%d", tc.n, tc.max), func(t *testing.T) {
			assert.Equal(t, tc.want, evictionCount(tc.n, tc.max, DefaultEvictionFraction))
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock(), func(c *Config) { c.MaxEntries = 20 })

	empty := store.Stats()
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0.0, empty.AvgImportance)
	assert.Len(t, empty.CountsByType, len(ContextTypes))

	store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))
	store.Insert(ctx, Structured(map[string]any{"domain": "health"}), WithType(DomainKnowledge))

	stats := store.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 20, stats.MaxEntries)
	assert.InDelta(t, 0.1, stats.Utilization, 1e-12)
	assert.InDelta(t, (0.55+0.25)/2, stats.AvgImportance, 1e-9)
	assert.Equal(t, 1, stats.CountsByType[UserPreference])
	assert.Equal(t, 1, stats.CountsByType[DomainKnowledge])
	assert.Equal(t, 0, stats.CountsByType[TaskContext])

	assert.Equal(t, stats, store.Stats())
}

func TestSimilar(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	match := store.Insert(ctx, Text("dark mode theme settings"), WithType(UserPreference))
	store.Insert(ctx, Text("banana bread recipe with walnuts"))
	store.Insert(ctx, Structured(map[string]any{"k": "v"}))

	results := store.Similar("dark mode theme settings", 3, 0.7)
	require.Len(t, results, 1)
	assert.Equal(t, match, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.Equal(t, 0, results[0].AccessCount)

	assert.Empty(t, store.Similar("", 3, 0))
	assert.Empty(t, store.Similar("dark mode", 0, 0))
}

func TestSimilar_LargeStoreUsesIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock(), func(c *Config) {
		c.DisableAutoPersist = true
		c.MaxEntries = 2000
	})

	for i := 0; i < similarScanLimit+50; i++ {
		store.Insert(ctx, Text(fmt.Sprintf("filler%d entry%d text%d", i, i*7, i*13)))
	}
	target := store.Insert(ctx, Text("quantum chromodynamics lecture notes"))

	results := store.Similar("quantum chromodynamics lecture notes", 1, 0.99)
	require.Len(t, results, 1)
	assert.Equal(t, target, results[0].ID)
}

func TestSimilar_FullStoreOfSimilarEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock(), func(c *Config) {
		c.DisableAutoPersist = true
	})

	for i := 0; i < DefaultMaxEntries-1; i++ {
		store.Insert(ctx, Text(fmt.Sprintf("note number%d about topic%d", i, i%7)))
	}
	target := store.Insert(ctx, Text("deployment runs every friday at noon"))
	require.Equal(t, DefaultMaxEntries, store.Len())

	results := store.Similar("deployment runs every friday at noon", 3, 0.7)
	require.NotEmpty(t, results)
	assert.Equal(t, target, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.7)
	}
}

func TestSimilar_MatchesExactScan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock(), func(c *Config) {
		c.DisableAutoPersist = true
	})

	vocab := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliet", "kilo", "lima"}
	for i := 0; i < 600; i++ {
		store.Insert(ctx, Text(fmt.Sprintf("%s %s %s",
			vocab[i%len(vocab)], vocab[(i/3)%len(vocab)], vocab[(i/7)%len(vocab)])))
	}

	query := "alpha delta golf"
	got := store.Similar(query, 1000, 0.5)

	q := text_analysis.Embed(query)
	want := 0
	for _, e := range store.entries {
		if !e.Embedding.IsZero() && text_analysis.CosineSimilarity(q, e.Embedding) >= 0.5 {
			want++
		}
	}
	assert.Len(t, got, want)
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, clock)

	old := store.Insert(ctx, Text("old note"))
	clock.Advance(2 * time.Hour)
	a := store.Insert(ctx, Text("first recent"))
	clock.Advance(time.Minute)
	b := store.Insert(ctx, Text("second recent"))

	recent := store.Recent(time.Hour, 10)
	require.Len(t, recent, 2)
	assert.Equal(t, b, recent[0].ID)
	assert.Equal(t, a, recent[1].ID)

	assert.Len(t, store.Recent(time.Hour, 1), 1)
	assert.Len(t, store.Recent(3*time.Hour, 0), 3)
	_, ok := store.Get(old)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	provider := storage_manager.NewMemoryFileProvider()
	store := newTestStore(t, newFakeClock(), func(c *Config) { c.FileProvider = provider })

	store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))
	store.Clear(ctx)

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.Similar("I prefer dark mode", 3, 0))

	reopened := Open(ctx, Config{Logger: newTestLogger(), FileProvider: provider})
	assert.Equal(t, 0, reopened.Len())
}

func TestEntryViewsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock())

	fields := map[string]any{"domain": "health", "tags": []any{"a"}}
	id := store.Insert(ctx, Structured(fields), WithType(DomainKnowledge))
	fields["domain"] = "mutated"

	v, ok := store.Get(id)
	require.True(t, ok)
	got := v.Data.Fields()
	assert.Equal(t, "health", got["domain"])

	got["domain"] = "changed"
	got["tags"].([]any)[0] = "z"
	again, _ := store.Get(id)
	assert.Equal(t, "health", again.Data.Fields()["domain"])
	assert.Equal(t, []any{"a"}, again.Data.Fields()["tags"])
}

type failingProvider struct {
	*storage_manager.MemoryFileProvider
}

func (failingProvider) Write(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestInsert_PersistenceFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics()
	store := newTestStore(t, newFakeClock(), func(c *Config) {
		c.FileProvider = failingProvider{storage_manager.NewMemoryFileProvider()}
		c.Metrics = metrics
	})

	id := store.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, store.Len())
	assert.Error(t, store.Save(ctx))
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newFakeClock(), func(c *Config) { c.MaxEntries = 50 })

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				store.Insert(ctx, Text(fmt.Sprintf("worker%d item%d shared topic", w, i)), WithType(TaskContext))
				store.Retrieve(ctx, "shared topic", WithLimit(3))
				_ = store.Stats()
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 50)
}
