package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"

	"github.com/easeaico/bug-triage-agent/internal/metrics"
)

// ErrCorrupt marks a backing file whose content could not be decoded.
var ErrCorrupt = errors.New("corrupt fix memory file")

// ErrInvalidText is returned by Add for text or solutions that are not valid
// UTF-8, which JSON encoding would silently rewrite.
var ErrInvalidText = errors.New("fix memory text is not valid UTF-8")

// corruptSuffix is appended to a backing file that failed to load so the
// next write does not overwrite it.
const corruptSuffix = ".corrupt"

// defaultFileMode applies to a backing file that did not exist before.
const defaultFileMode fs.FileMode = 0o644

// FileStore implements Store on top of a single JSON file.
// The whole collection is held in memory and the file is rewritten on every Add.
// A single mutex serializes Add and Search.
type FileStore struct {
	mu       sync.Mutex
	path     string
	embedder Embedder
	entries  []Entry
	// blocked is set when an unloadable file could not be moved aside;
	// writing would overwrite it.
	blocked error
}

// NewFileStore creates a FileStore backed by path.
// It never fails: a missing file yields an empty store, and a file that cannot be
// read or decoded is moved aside to path+".corrupt" before starting empty. If
// it cannot be moved, the store stays empty and refuses to write.
func NewFileStore(ctx context.Context, path string, embedder Embedder) *FileStore {
	s := &FileStore{path: path, embedder: embedder}

	entries, err := LoadEntries(path)
	if err != nil {
		log := clog.FromContext(ctx)
		log.Warnf("Fix memory %s could not be loaded, starting empty: %v", path, err)
		metrics.RecordMemoryRecovery()

		if mvErr := os.Rename(path, path+corruptSuffix); mvErr != nil {
			log.Errorf("Failed to move unloadable fix memory aside, writes disabled: %v", mvErr)
			s.blocked = fmt.Errorf("fix memory %s was not loaded: %w", path, err)
		} else {
			log.Warnf("Unloadable fix memory preserved at %s", path+corruptSuffix)
		}
		entries = nil
	}

	s.entries = entries
	metrics.SetMemoryEntries(len(entries))
	return s
}

// LoadEntries reads the entries persisted at path.
// A missing file is not an error and yields no entries.
// Undecodable content is reported as an error wrapping ErrCorrupt.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fix memory: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return entries, nil
}

// Add embeds text and appends a new entry, then rewrites the backing file.
// If the write fails the entry is not kept, so memory and disk never diverge.
func (s *FileStore) Add(ctx context.Context, text string, solution map[string]string) error {
	if !validUTF8(text, solution) {
		return ErrInvalidText
	}
	if s.blocked != nil {
		return s.blocked
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed bug text: %w", err)
	}
	if len(vector) == 0 {
		return errors.New("failed to embed bug text: empty embedding")
	}

	entry := Entry{Text: text, Solution: maps.Clone(solution), Embedding: slices.Clone(vector)}
	if entry.Solution == nil {
		entry.Solution = map[string]string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 && len(s.entries[0].Embedding) != len(vector) {
		return fmt.Errorf("%w: store holds %d dimensions, got %d", ErrDimensionMismatch, len(s.entries[0].Embedding), len(vector))
	}

	// The capped slice forces append to copy, so snapshots held by
	// concurrent searches are never written to.
	next := append(s.entries[:len(s.entries):len(s.entries)], entry)
	if err := s.persist(next); err != nil {
		return err
	}
	s.entries = next

	metrics.SetMemoryEntries(len(next))
	return nil
}

// Search returns at most topK entries most similar to text.
func (s *FileStore) Search(ctx context.Context, text string, topK int) ([]Entry, error) {
	matches, err := s.Rank(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	return entriesOf(matches), nil
}

// Rank returns at most topK entries most similar to text, with their scores.
// An empty store returns no matches without embedding the query.
func (s *FileStore) Rank(ctx context.Context, text string, topK int) ([]Match, error) {
	s.mu.Lock()
	snapshot := s.entries
	s.mu.Unlock()

	if len(snapshot) == 0 || topK <= 0 {
		return nil, nil
	}

	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return rank(snapshot, query, topK), nil
}

// Len returns the number of stored entries.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Close implements Store. The file store holds no open resources.
func (s *FileStore) Close() error {
	return nil
}

// persist writes entries to a temporary file next to the backing file and
// renames it into place.
func (s *FileStore) persist(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode fix memory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary fix memory file: %w", err)
	}
	defer os.Remove(tmp.Name())

	mode := defaultFileMode
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set fix memory permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write fix memory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync fix memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close fix memory: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace fix memory: %w", err)
	}
	return nil
}

func validUTF8(text string, solution map[string]string) bool {
	if !utf8.ValidString(text) {
		return false
	}
	for k, v := range solution {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return false
		}
	}
	return true
}

var _ Store = (*FileStore)(nil)
