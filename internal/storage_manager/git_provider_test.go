package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestGitFileProvider_NewGitFileProvider(t *testing.T) {
	t.Run("fails with empty path", func(t *testing.T) {
		_, err := NewGitFileProvider(GitProviderOptions{})
		if err == nil {
			t.Error("expected error for empty path")
		}
	})

	t.Run("fails when repo doesn't exist and InitIfMissing is false", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "nonexistent")

		_, err := NewGitFileProvider(GitProviderOptions{Path: repoPath})
		if err == nil {
			t.Error("expected error when repo doesn't exist")
		}
	})

	t.Run("creates repo when InitIfMissing is true", func(t *testing.T) {
		repoPath := filepath.Join(t.TempDir(), "newrepo")

		provider, err := NewGitFileProvider(GitProviderOptions{
			Path:          repoPath,
			InitIfMissing: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.authorName != "contextmem" {
			t.Errorf("expected default author, got %q", provider.authorName)
		}

		if _, err := os.Stat(filepath.Join(repoPath, ".git")); os.IsNotExist(err) {
			t.Error("expected .git directory to exist")
		}
	})

	t.Run("opens existing repo", func(t *testing.T) {
		tmpDir := t.TempDir()
		if _, err := git.PlainInit(tmpDir, false); err != nil {
			t.Fatalf("failed to init test repo: %v", err)
		}

		if _, err := NewGitFileProvider(GitProviderOptions{Path: tmpDir}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGitFileProvider_WriteCommits(t *testing.T) {
	provider := createTestGitProvider(t)
	ctx := context.Background()

	if err := provider.Write(ctx, "memory/semantic_memory.json", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	commit := headCommit(t, provider)
	if commit.Message != "contextmem: write memory/semantic_memory.json" {
		t.Errorf("unexpected commit message %q", commit.Message)
	}
	if commit.Author.Name != "Test User" {
		t.Errorf("unexpected author %q", commit.Author.Name)
	}

	t.Run("unchanged content adds no revision", func(t *testing.T) {
		before := headCommit(t, provider).Hash

		if err := provider.Write(ctx, "memory/semantic_memory.json", []byte(`{"version":1}`)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		if after := headCommit(t, provider).Hash; after != before {
			t.Errorf("expected HEAD to stay at %s, got %s", before, after)
		}
	})

	t.Run("revisions are listed newest first", func(t *testing.T) {
		if err := provider.Write(ctx, "memory/semantic_memory.json", []byte(`{"version":2}`)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		revisions, err := provider.Revisions(ctx, "memory/semantic_memory.json", 0)
		if err != nil {
			t.Fatalf("Revisions failed: %v", err)
		}
		if len(revisions) != 2 {
			t.Fatalf("expected 2 revisions, got %d", len(revisions))
		}
		if revisions[0].Hash != headCommit(t, provider).Hash.String() {
			t.Error("expected newest revision first")
		}

		limited, err := provider.Revisions(ctx, "memory/semantic_memory.json", 1)
		if err != nil {
			t.Fatalf("Revisions failed: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})
}

func TestGitFileProvider_ReadMissing(t *testing.T) {
	provider := createTestGitProvider(t)

	_, err := provider.Read(context.Background(), "nonexistent.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGitFileProvider_Delete(t *testing.T) {
	provider := createTestGitProvider(t)
	ctx := context.Background()

	t.Run("delete creates commit", func(t *testing.T) {
		if err := provider.Write(ctx, "delete-commit.json", []byte("{}")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := provider.Delete(ctx, "delete-commit.json"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		exists, err := provider.Exists(ctx, "delete-commit.json")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("expected file to be deleted")
		}

		if msg := headCommit(t, provider).Message; msg != "contextmem: delete delete-commit.json" {
			t.Errorf("unexpected commit message %q", msg)
		}
	})

	t.Run("delete untracked file", func(t *testing.T) {
		untracked := filepath.Join(provider.repoPath, "untracked.json")
		if err := os.WriteFile(untracked, []byte("{}"), 0o600); err != nil {
			t.Fatalf("failed to write untracked file: %v", err)
		}

		if err := provider.Delete(ctx, "untracked.json"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := os.Stat(untracked); !os.IsNotExist(err) {
			t.Error("expected untracked file to be removed")
		}
	})

	t.Run("delete nonexistent file is idempotent", func(t *testing.T) {
		if err := provider.Delete(ctx, "never-existed.json"); err != nil {
			t.Errorf("Delete should not error for nonexistent file: %v", err)
		}
	})
}

func TestGitFileProvider_ListSkipsGitDir(t *testing.T) {
	provider := createTestGitProvider(t)
	ctx := context.Background()

	_ = provider.Write(ctx, "root1.json", []byte("1"))
	_ = provider.Write(ctx, "sub/file.json", []byte("2"))

	files, err := provider.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d: %v", len(files), files)
	}
}

func TestGitFileProvider_ConcurrentWrites(t *testing.T) {
	provider := createTestGitProvider(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			path := filepath.Join("sessions", string(rune('a'+n))+".json")
			if err := provider.Write(ctx, path, []byte("{}")); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	files, err := provider.List(ctx, "sessions/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 10 {
		t.Errorf("expected 10 files, got %d", len(files))
	}
}

// createTestGitProvider creates a GitFileProvider in a temporary directory for testing.
func createTestGitProvider(t *testing.T) *GitFileProvider {
	t.Helper()

	provider, err := NewGitFileProvider(GitProviderOptions{
		Path:          t.TempDir(),
		AuthorName:    "Test User",
		AuthorEmail:   "test@example.com",
		InitIfMissing: true,
	})
	if err != nil {
		t.Fatalf("failed to create test provider: %v", err)
	}

	return provider
}

func headCommit(t *testing.T, provider *GitFileProvider) *object.Commit {
	t.Helper()

	ref, err := provider.repo.Head()
	if err != nil {
		t.Fatalf("failed to get HEAD: %v", err)
	}
	commit, err := provider.repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("failed to get commit: %v", err)
	}
	return commit
}
