package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/contextmemory/internal/storage_manager"
)

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	root := storage_manager.NewMemoryFileProvider()
	registry := NewRegistry(Config{Logger: newTestLogger(), FileProvider: root, Clock: newFakeClock().Now})

	alice, err := registry.Get(ctx, "alice")
	require.NoError(t, err)
	bob, err := registry.Get(ctx, "bob")
	require.NoError(t, err)

	alice.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))

	assert.Equal(t, 1, alice.Len())
	assert.Equal(t, 0, bob.Len())
	assert.Equal(t, "alice", alice.Name())

	same, err := registry.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, alice, same)

	exists, err := root.Exists(ctx, "sessions/alice/"+DefaultSnapshotKey)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{"alice", "bob"}, registry.Sessions())
}

func TestRegistry_ReopensFromStorage(t *testing.T) {
	ctx := context.Background()
	root := storage_manager.NewMemoryFileProvider()
	cfg := Config{Logger: newTestLogger(), FileProvider: root, DisableAutoPersist: true}

	first := NewRegistry(cfg)
	s, err := first.Get(ctx, "alice")
	require.NoError(t, err)
	s.Insert(ctx, Text("I prefer dark mode"), WithType(UserPreference))
	other, err := first.Get(ctx, "carol")
	require.NoError(t, err)
	other.Insert(ctx, Text("carol's note"))
	require.NoError(t, first.SaveAll(ctx))
	require.NoError(t, first.Release(ctx, "carol"))
	assert.Equal(t, []string{"alice"}, first.Sessions())

	second := NewRegistry(cfg)
	stored, err := second.StoredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, stored)

	reopened, err := second.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestRegistry_RejectsBadSessionIDs(t *testing.T) {
	registry := NewRegistry(Config{Logger: newTestLogger()})

	for _, id := range []string{"", "../etc", "a/b", `a\b`} {
		_, err := registry.Get(context.Background(), id)
		assert.Error(t, err, id)
	}
}

func TestRegistry_WithoutStorage(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(Config{Logger: newTestLogger()})

	s, err := registry.Get(ctx, "ephemeral")
	require.NoError(t, err)
	s.Insert(ctx, Text("kept in memory"))
	require.NoError(t, registry.SaveAll(ctx))

	stored, err := registry.StoredSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
