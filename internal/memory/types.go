// Package memory provides the fix memory: a persisted collection of past bug
// reports, their embeddings and the patches generated for them, queryable by
// semantic similarity.
package memory

// Entry is one remembered bug and the fix produced for it.
// Entries are immutable once added to a store.
type Entry struct {
	// Text is the canonical bug text the entry was stored under.
	Text string `json:"text"`
	// Solution maps file paths to patch text.
	Solution map[string]string `json:"solution"`
	// Embedding is the vector computed from Text at insertion time.
	Embedding []float32 `json:"embedding"`
}

// Match is an entry together with its similarity to a query.
// Scores are computed per query and never persisted.
type Match struct {
	Entry
	Score float64
}

// entriesOf drops the scores from a ranked result.
func entriesOf(matches []Match) []Entry {
	entries := make([]Entry, len(matches))
	for i, m := range matches {
		entries[i] = m.Entry
	}
	return entries
}
