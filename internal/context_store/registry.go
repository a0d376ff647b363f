package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

const sessionsPrefix = "sessions"

// Registry hands out one independent Store per session. Each session's
// snapshot lives under its own prefix of a shared FileProvider.
type Registry struct {
	template Config
	provider storage_manager.FileProvider

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a registry. template configures every store it opens;
// its FileProvider is the shared root and its Name is replaced by the session id.
func NewRegistry(template Config) *Registry {
	if template.Logger == nil {
		panic("logger cannot be nil")
	}
	return &Registry{
		template: template,
		provider: template.FileProvider,
		stores:   make(map[string]*Store),
	}
}

func validateSessionID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("session id cannot be empty")
	case strings.ContainsAny(id, `/\`), strings.Contains(id, ".."):
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// Get returns the session's store, opening it from storage on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[sessionID]; ok {
		return s, nil
	}

	cfg := r.template
	cfg.Name = sessionID
	if r.provider != nil {
		cfg.FileProvider = storage_manager.NewPrefixedFileProvider(r.provider, sessionsPrefix+"/"+sessionID)
	}
	s := Open(ctx, cfg)
	r.stores[sessionID] = s

	r.template.Logger.Debug("Opened session store",
		logger.StringField("session_id", sessionID),
		logger.IntField("entries", s.Len()))
	return s, nil
}

// Sessions returns the ids of the open stores, sorted.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Release saves a session's store and forgets it.
func (r *Registry) Release(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	s, ok := r.stores[sessionID]
	delete(r.stores, sessionID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Save(ctx)
}

// SaveAll saves every open store and reports all failures together.
func (r *Registry) SaveAll(ctx context.Context) error {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	var result error
	for _, s := range stores {
		if err := s.Save(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("session %s: %w", s.Name(), err))
		}
	}
	return result
}

// StoredSessions lists the sessions that have a snapshot in storage.
func (r *Registry) StoredSessions(ctx context.Context) ([]string, error) {
	if r.provider == nil {
		return []string{}, nil
	}
	key := r.template.withDefaults().SnapshotKey

	paths, err := r.provider.List(ctx, sessionsPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := []string{}
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, sessionsPrefix+"/")
		if !ok {
			continue
		}
		id, file, ok := strings.Cut(rest, "/")
		if ok && file == key {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
