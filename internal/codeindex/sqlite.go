// Package codeindex keeps a searchable index of learned source files.
// Each file's content is embedded and ranked against free-text queries to
// suggest which files a bug report is about.
package codeindex

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	_ "modernc.org/sqlite"

	"github.com/easeaico/bug-triage-agent/internal/memory"
)

// DefaultTopK is the number of files Query returns when asked for fewer than one.
const DefaultTopK = 3

// maxEmbedRunes bounds the amount of file content sent to the embedder.
const maxEmbedRunes = 8000

// Index implements the code index using SQLite.
// Vector similarity search is performed in application memory using cosine similarity.
type Index struct {
	db       *sql.DB
	embedder memory.Embedder
}

// Open creates an Index stored at dbPath and makes sure its schema exists.
// The path should be a file path (e.g., "./code.db") or ":memory:" for an in-memory database.
func Open(ctx context.Context, dbPath string, embedder memory.Embedder) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database only lives as long as its single connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx := &Index{db: db, embedder: embedder}
	if err := idx.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS code_snippets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			embedding BLOB,
			learned_at TEXT DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := idx.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Learn embeds content and stores it under file, replacing earlier content.
func (idx *Index) Learn(ctx context.Context, file, content string) error {
	vector, err := idx.embedder.Embed(ctx, truncateRunes(content, maxEmbedRunes))
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", file, err)
	}

	query := `
		INSERT INTO code_snippets (file, content, embedding)
		VALUES (?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			learned_at = CURRENT_TIMESTAMP
	`

	if _, err := idx.db.ExecContext(ctx, query, file, content, encodeVector(vector)); err != nil {
		return fmt.Errorf("failed to save snippet: %w", err)
	}
	return nil
}

// scoredFile is an internal type for sorting files by similarity score.
type scoredFile struct {
	file  string
	score float64
}

// Query returns up to topK learned files ranked by similarity to text.
// Ties keep the order in which files were first learned.
func (idx *Index) Query(ctx context.Context, text string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT file, embedding
		FROM code_snippets
		WHERE embedding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	type stored struct {
		file   string
		vector []float32
	}
	var all []stored
	for rows.Next() {
		var file string
		var blob []byte
		if err := rows.Scan(&file, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		all = append(all, stored{file: file, vector: decodeVector(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snippets: %w", err)
	}

	if len(all) == 0 {
		return nil, nil
	}

	queryVector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := make([]scoredFile, len(all))
	for i, s := range all {
		results[i] = scoredFile{file: s.file, score: memory.CosineSimilarity(queryVector, s.vector)}
	}
	slices.SortStableFunc(results, func(a, b scoredFile) int {
		return cmp.Compare(b.score, a.score)
	})

	files := make([]string, 0, min(topK, len(results)))
	for _, r := range results[:min(topK, len(results))] {
		files = append(files, r.file)
	}
	return files, nil
}

// Files returns every learned file and its content.
func (idx *Index) Files(ctx context.Context) (map[string]string, error) {
	rows, err := idx.db.QueryContext(ctx, `SELECT file, content FROM code_snippets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	files := make(map[string]string)
	for rows.Next() {
		var file, content string
		if err := rows.Scan(&file, &content); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		files[file] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snippets: %w", err)
	}
	return files, nil
}

// Close releases the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// truncateRunes cuts s to at most n runes without splitting multi-byte characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

// encodeVector converts a float32 slice to a byte slice for storage.
// Each float32 is encoded as 4 bytes in little-endian format.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts a byte slice back to a float32 slice.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
