package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitFileProvider stores blobs in the working tree of a git repository and
// commits every write and delete, so each persisted snapshot has a revision.
type GitFileProvider struct {
	repoPath    string
	repo        *git.Repository
	authorName  string
	authorEmail string
	mu          sync.Mutex
}

// GitProviderOptions holds options for creating a GitFileProvider.
type GitProviderOptions struct {
	// Path is the path to the git repository.
	Path string
	// AuthorName is the name used for commits.
	AuthorName string
	// AuthorEmail is the email used for commits.
	AuthorEmail string
	// InitIfMissing initializes a new repo if the path doesn't contain one.
	InitIfMissing bool
}

// NewGitFileProvider opens (or initialises) the repository at opts.Path.
func NewGitFileProvider(opts GitProviderOptions) (*GitFileProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	authorName := opts.AuthorName
	if authorName == "" {
		authorName = "contextmem"
	}
	authorEmail := opts.AuthorEmail
	if authorEmail == "" {
		authorEmail = "contextmem@localhost"
	}

	repo, err := git.PlainOpen(opts.Path)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) || !opts.InitIfMissing {
			return nil, fmt.Errorf("failed to open git repository: %w", err)
		}
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
		repo, err = git.PlainInit(opts.Path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repository: %w", err)
		}
	}

	return &GitFileProvider{
		repoPath:    opts.Path,
		repo:        repo,
		authorName:  authorName,
		authorEmail: authorEmail,
	}, nil
}

// Read reads a file from the git working tree.
func (p *GitFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.repoPath, path)) //nolint:gosec // G304: Path is constructed from trusted repoPath
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write writes data to a file and commits the change.
func (p *GitFileProvider) Write(ctx context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writeFileAtomic(filepath.Join(p.repoPath, path), data); err != nil {
		return err
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("failed to stage file: %w", err)
	}

	return p.commit(worktree, fmt.Sprintf("contextmem: write %s", path))
}

// Exists checks if a file exists in the working tree.
func (p *GitFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return fileExists(filepath.Join(p.repoPath, path))
}

// Delete removes a file and commits the deletion.
func (p *GitFileProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := fileExists(filepath.Join(p.repoPath, path))
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	// Remove deletes the file and stages the deletion.
	if _, err := worktree.Remove(filepath.ToSlash(path)); err != nil {
		if rmErr := os.Remove(filepath.Join(p.repoPath, path)); rmErr != nil {
			return fmt.Errorf("failed to remove file: %w", rmErr)
		}
		// Untracked file: nothing to commit.
		return nil
	}

	return p.commit(worktree, fmt.Sprintf("contextmem: delete %s", path))
}

func (p *GitFileProvider) commit(worktree *git.Worktree, msg string) error {
	_, err := worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.authorName,
			Email: p.authorEmail,
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		// Same bytes as the last revision.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// List returns files matching a prefix in the working tree.
func (p *GitFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	return walkFiles(p.repoPath, prefix, map[string]bool{".git": true})
}

// Revisions returns the commits that touched path, newest first. A limit of
// zero or less returns all of them.
func (p *GitFileProvider) Revisions(ctx context.Context, path string, limit int) ([]Revision, error) {
	slashPath := filepath.ToSlash(path)
	iter, err := p.repo.Log(&git.LogOptions{FileName: &slashPath})
	if err != nil {
		return nil, fmt.Errorf("failed to read log for %s: %w", path, err)
	}
	defer iter.Close()

	var revisions []Revision
	for limit <= 0 || len(revisions) < limit {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk log for %s: %w", path, err)
		}
		revisions = append(revisions, Revision{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
	}
	return revisions, nil
}

// Revision is one commit that changed a stored blob.
type Revision struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}
