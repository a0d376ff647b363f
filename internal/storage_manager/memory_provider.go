package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryFileProvider keeps blobs in process memory. It backs tests and
// ephemeral stores that do not need to survive a restart.
type MemoryFileProvider struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryFileProvider creates an empty in-memory provider.
func NewMemoryFileProvider() *MemoryFileProvider {
	return &MemoryFileProvider{files: make(map[string][]byte)}
}

// Read returns a copy of the stored blob.
func (p *MemoryFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, ok := p.files[path]
	if !ok {
		return nil, notFound(path)
	}
	return slices.Clone(data), nil
}

// Write stores a copy of data under path.
func (p *MemoryFileProvider) Write(ctx context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.files[path] = slices.Clone(data)
	return nil
}

// Exists reports whether path is stored.
func (p *MemoryFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.files[path]
	return ok, nil
}

// Delete removes path.
func (p *MemoryFileProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.files, path)
	return nil
}

// List returns the sorted paths starting with prefix.
func (p *MemoryFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := []string{}
	for path := range p.files {
		if strings.HasPrefix(path, prefix) {
			result = append(result, path)
		}
	}
	slices.Sort(result)
	return result, nil
}
