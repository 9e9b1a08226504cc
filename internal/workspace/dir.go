package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirReader reads files from a working tree on local disk.
type DirReader struct {
	root string
}

// DirEntry describes one item returned by List.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size,omitempty"`
}

// NewDirReader returns a reader confined to root. An empty root means the
// current working directory.
func NewDirReader(root string) (*DirReader, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", root, err)
	}
	return &DirReader{root: abs}, nil
}

// Root returns the absolute root directory.
func (r *DirReader) Root() string {
	return r.root
}

// resolve maps path onto the root and rejects anything that escapes it.
func (r *DirReader) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return abs, nil
}

// Read returns the content of the file at path.
func (r *DirReader) Read(_ context.Context, path string) (string, error) {
	abs, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

// List returns the entries of the directory at path, the root when empty.
func (r *DirReader) List(_ context.Context, path string) ([]DirEntry, error) {
	if path == "" {
		path = r.root
	}
	abs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	items := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		item := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			item.Size = info.Size()
		}
		items = append(items, item)
	}
	return items, nil
}

var _ Reader = (*DirReader)(nil)
