package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lewisedginton/contextmemory/internal/scoring"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/internal/text_analysis"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

const snapshotVersion = 1

// snapshot is the persisted form of a store.
type snapshot struct {
	Version         int                `json:"version"`
	SavedAt         time.Time          `json:"saved_at"`
	Entries         []*entry           `json:"entries"`
	ImportanceIndex map[string]float64 `json:"importance_index"`
}

// Save writes the current state to the snapshot key. Without a FileProvider
// it is a no-op.
func (s *Store) Save(ctx context.Context) error {
	if s.cfg.FileProvider == nil {
		return nil
	}
	if err := s.persist(ctx); err != nil {
		return fmt.Errorf("failed to save %s: %w", s.cfg.SnapshotKey, err)
	}
	return nil
}

// Load replaces the in-memory state with the stored snapshot. A missing
// snapshot leaves the store empty and is not an error. Any other failure is
// logged, leaves the store empty and is returned.
func (s *Store) Load(ctx context.Context) error {
	if s.cfg.FileProvider == nil {
		return nil
	}

	data, err := s.cfg.FileProvider.Read(ctx, s.cfg.SnapshotKey)
	if errors.Is(err, storage_manager.ErrNotFound) {
		s.log.Debug("No stored snapshot, starting empty", logger.KeyField(s.cfg.SnapshotKey))
		s.reset()
		s.cfg.Metrics.size(s.cfg.Name, 0)
		return nil
	}
	if err != nil {
		return s.loadFailed(fmt.Errorf("failed to read snapshot: %w", err))
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return s.loadFailed(fmt.Errorf("failed to decode snapshot: %w", err))
	}
	if snap.Version > snapshotVersion {
		return s.loadFailed(fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, snapshotVersion))
	}

	now := s.now()
	s.mu.Lock()
	s.entries = make(map[string]*entry, len(snap.Entries))
	s.importance = make(map[string]float64, len(snap.Entries))
	dropped := 0
	for _, e := range snap.Entries {
		if e == nil || e.ID == "" {
			dropped++
			continue
		}
		if _, dup := s.entries[e.ID]; dup {
			dropped++
			continue
		}
		sanitizeEntry(e)
		s.entries[e.ID] = e
		s.importance[e.ID] = e.Importance
	}
	s.index.rebuild(s.entries)
	s.evictLocked(now)
	s.version++
	loaded := len(s.entries)
	s.mu.Unlock()

	s.cfg.Metrics.size(s.cfg.Name, loaded)
	s.log.Info("Loaded context snapshot",
		logger.KeyField(s.cfg.SnapshotKey),
		logger.IntField("entries", loaded),
		logger.IntField("dropped", dropped))

	return nil
}

func (s *Store) loadFailed(err error) error {
	s.reset()
	s.cfg.Metrics.size(s.cfg.Name, 0)
	s.cfg.Metrics.persistFailed(s.cfg.Name, "load")
	s.log.Error("Failed to load context snapshot, starting empty",
		logger.KeyField(s.cfg.SnapshotKey),
		logger.ErrorField(err))
	return err
}

// sanitizeEntry restores the entry invariants on data read from storage.
func sanitizeEntry(e *entry) {
	e.Importance = scoring.Clamp01(e.Importance)
	if e.AccessCount < 0 {
		e.AccessCount = 0
	}
	e.Keywords = dedupeKeywords(e.Keywords)
	if n := e.Embedding.Norm(); !e.Embedding.IsZero() && (n < 0.999 || n > 1.001) {
		e.Embedding = text_analysis.Embed(e.Data.analysisText())
	}
}

// dedupeKeywords keeps the first occurrence of each keyword, up to
// MaxKeywords, and never returns nil.
func dedupeKeywords(keywords []string) []string {
	out := make([]string, 0, min(len(keywords), text_analysis.MaxKeywords))
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == text_analysis.MaxKeywords {
			break
		}
	}
	return out
}

// persist marshals the state under mu and writes it outside mu. saveMu
// orders writers so an older snapshot never overwrites a newer one.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	version := s.version
	snap := snapshot{
		Version:         snapshotVersion,
		SavedAt:         s.now(),
		Entries:         make([]*entry, 0, len(s.entries)),
		ImportanceIndex: make(map[string]float64, len(s.importance)),
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, e)
	}
	for id, v := range s.importance {
		snap.ImportanceIndex[id] = v
	}
	sort.Slice(snap.Entries, func(i, j int) bool {
		a, b := snap.Entries[i], snap.Entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	data, err := json.Marshal(snap)
	s.mu.Unlock()

	if err != nil {
		s.cfg.Metrics.persistFailed(s.cfg.Name, "save")
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if version < s.savedVersion {
		return nil
	}
	if err := s.cfg.FileProvider.Write(ctx, s.cfg.SnapshotKey, data); err != nil {
		s.cfg.Metrics.persistFailed(s.cfg.Name, "save")
		return err
	}
	s.savedVersion = version

	s.log.Debug("Saved context snapshot",
		logger.KeyField(s.cfg.SnapshotKey),
		logger.IntField("entries", len(snap.Entries)),
		logger.IntField("bytes", len(data)))
	return nil
}

// autoPersist saves after a mutation when enabled. Failures are logged only.
func (s *Store) autoPersist(ctx context.Context) {
	if s.cfg.FileProvider == nil || s.cfg.DisableAutoPersist {
		return
	}
	if err := s.persist(ctx); err != nil {
		s.log.Warn("Failed to persist context snapshot",
			logger.KeyField(s.cfg.SnapshotKey),
			logger.ErrorField(err))
	}
}
