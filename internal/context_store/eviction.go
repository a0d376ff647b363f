package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"math"
	"sort"
	"time"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

type evictionCandidate struct {
	e     *entry
	score float64
}

// evictionCount is how many entries a store of n entries sheds: the
// configured fraction, and never fewer than needed to get back to max.
func evictionCount(n, maxEntries int, fraction float64) int {
	if n <= maxEntries {
		return 0
	}
	count := int(math.Floor(float64(n) * fraction))
	if over := n - maxEntries; count < over {
		count = over
	}
	return min(count, n)
}

// evictLocked removes the lowest ranked entries once the store is over
// capacity. Ranking has no query, so relevance counts as zero. Ties go to
// the older entry, then the smaller id. Returns the removed ids.
func (s *Store) evictLocked(now time.Time) []string {
	count := evictionCount(len(s.entries), s.cfg.MaxEntries, s.cfg.EvictionFraction)
	if count == 0 {
		return nil
	}

	candidates := make([]evictionCandidate, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, evictionCandidate{
			e:     e,
			score: scoring.DefaultWeights.Eviction(e.baseScores(now)),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if !a.e.CreatedAt.Equal(b.e.CreatedAt) {
			return a.e.CreatedAt.Before(b.e.CreatedAt)
		}
		return a.e.ID < b.e.ID
	})

	removed := make([]string, 0, count)
	for _, c := range candidates[:count] {
		delete(s.entries, c.e.ID)
		delete(s.importance, c.e.ID)
		removed = append(removed, c.e.ID)
	}
	s.index.rebuild(s.entries)

	s.log.Info("Evicted context entries",
		logger.IntField("evicted", len(removed)),
		logger.IntField("remaining", len(s.entries)),
		logger.Float64Field("cutoff_score", candidates[count-1].score))
	s.cfg.Metrics.evicted(s.cfg.Name, len(removed))

	return removed
}
