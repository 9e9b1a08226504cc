package memory

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "scaled", a: []float32{1, 2, 3}, b: []float32{2, 4, 6}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 1}, b: []float32{-1, -1}, want: -1},
		{name: "zero query", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "zero stored", a: []float32{1, 1}, b: []float32{0, 0}, want: 0},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
		{name: "nan component", a: []float32{float32(math.NaN()), 1}, b: []float32{1, 1}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRank(t *testing.T) {
	entries := []Entry{
		{Text: "far", Embedding: []float32{0, 1}},
		{Text: "tie-1", Embedding: []float32{1, 1}},
		{Text: "near", Embedding: []float32{1, 0}},
		{Text: "tie-2", Embedding: []float32{2, 2}},
		{Text: "degenerate", Embedding: []float32{0, 0}},
	}

	got := rank(entries, []float32{1, 0}, len(entries))

	want := []string{"near", "tie-1", "tie-2", "far", "degenerate"}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.Text != want[i] {
			t.Errorf("position %d: got %q, want %q", i, m.Text, want[i])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Errorf("scores not descending at %d: %v < %v", i, got[i-1].Score, got[i].Score)
		}
	}
}

func TestRank_Bounds(t *testing.T) {
	entries := []Entry{{Text: "a", Embedding: []float32{1}}}

	if got := rank(entries, []float32{1}, 0); len(got) != 0 {
		t.Errorf("expected no matches for topK 0, got %d", len(got))
	}
	if got := rank(nil, []float32{1}, 3); len(got) != 0 {
		t.Errorf("expected no matches for no entries, got %d", len(got))
	}
	if got := rank(entries, []float32{1}, 5); len(got) != 1 {
		t.Errorf("expected 1 match, got %d", len(got))
	}
}
