package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lewisedginton/contextmemory/internal/storage_manager"
)

// DefaultPreferencesKey is where FilePreferences keeps the preference map.
const DefaultPreferencesKey = "user_preferences.json"

// PreferenceProvider supplies the user's stored preferences.
type PreferenceProvider interface {
	UserPreferences(ctx context.Context) (map[string]any, error)
}

// StaticPreferences is a fixed preference map.
type StaticPreferences map[string]any

// UserPreferences returns a copy of the map.
func (p StaticPreferences) UserPreferences(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

// FilePreferences reads a JSON object from a FileProvider.
type FilePreferences struct {
	provider storage_manager.FileProvider
	key      string
}

// NewFilePreferences returns preferences stored under key, or under
// DefaultPreferencesKey when key is empty.
func NewFilePreferences(provider storage_manager.FileProvider, key string) *FilePreferences {
	if key == "" {
		key = DefaultPreferencesKey
	}
	return &FilePreferences{provider: provider, key: key}
}

// UserPreferences returns an empty map when nothing has been stored.
func (p *FilePreferences) UserPreferences(ctx context.Context) (map[string]any, error) {
	data, err := p.provider.Read(ctx, p.key)
	if err != nil {
		if errors.Is(err, storage_manager.ErrNotFound) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs := map[string]any{}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	if prefs == nil {
		prefs = map[string]any{}
	}
	return prefs, nil
}

// SetUserPreferences replaces the stored preferences.
func (p *FilePreferences) SetUserPreferences(ctx context.Context, prefs map[string]any) error {
	if prefs == nil {
		prefs = map[string]any{}
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := p.provider.Write(ctx, p.key, data); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
