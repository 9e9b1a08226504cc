package workspace

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-git/v5"
)

// GitReader reads file contents from the HEAD commit of a local repository.
// Uncommitted changes in the working tree are not visible.
type GitReader struct {
	repo *git.Repository
}

// NewGitReader opens the repository at dir.
func NewGitReader(dir string) (*GitReader, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	return &GitReader{repo: repo}, nil
}

// Read returns the content of file p at HEAD. p is relative to the repository root.
func (r *GitReader) Read(_ context.Context, p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}

	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	file, err := commit.File(clean)
	if err != nil {
		return "", fmt.Errorf("failed to find %s at HEAD: %w", clean, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", clean, err)
	}
	return content, nil
}

var _ Reader = (*GitReader)(nil)
