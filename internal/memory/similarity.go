package memory

import (
	"cmp"
	"maps"
	"math"
	"slices"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// The result is in range [-1, 1], where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite direction.
// Vectors of different length, zero-norm vectors and NaN results score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}

// rank scores every entry against query and returns copies of the topK best.
// The sort is stable so equal scores keep insertion order.
func rank(entries []Entry, query []float32, topK int) []Match {
	if topK <= 0 || len(entries) == 0 {
		return nil
	}

	matches := make([]Match, len(entries))
	for i, e := range entries {
		matches[i] = Match{Entry: e, Score: CosineSimilarity(query, e.Embedding)}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	matches = matches[:min(topK, len(matches))]
	for i := range matches {
		matches[i].Solution = maps.Clone(matches[i].Solution)
		matches[i].Embedding = slices.Clone(matches[i].Embedding)
	}
	return matches
}
