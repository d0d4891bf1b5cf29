package textutil

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdenticalText(t *testing.T) {
	a := NewFingerprint("binary search trees and balanced rotations")
	b := NewFingerprint("binary search trees and balanced rotations")
	if sim := CosineSimilarity(a, b); math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("similarity = %v, want 1.0", sim)
	}
}

func TestCosineSimilarityDisjointText(t *testing.T) {
	a := NewFingerprint("sorting algorithms quicksort heapsort")
	b := NewFingerprint("network protocols routing congestion")
	if sim := CosineSimilarity(a, b); sim != 0 {
		t.Fatalf("similarity = %v, want 0", sim)
	}
}

func TestCosineSimilarityNilFingerprints(t *testing.T) {
	a := NewFingerprint("slides about compilers")
	if sim := CosineSimilarity(a, nil); sim != 0 {
		t.Fatalf("similarity with nil = %v, want 0", sim)
	}
	if fp := NewFingerprint("a b !!"); fp != nil {
		t.Fatalf("expected nil fingerprint for short-token text, got %d tokens", fp.TokenCount())
	}
}

func TestNearDuplicate(t *testing.T) {
	tests := []struct {
		name      string
		a, b      string
		threshold float64
		want      bool
	}{
		{"same slide with ocr noise", "Lecture 4: Graph Traversal BFS DFS", "Lecture 4 Graph Traversal BFS DFS!", 0.9, true},
		{"different slides", "Lecture 4: Graph Traversal", "Lecture 5: Shortest Paths Dijkstra", 0.9, false},
		{"both blank", "", "   ", 0.9, false},
		{"one blank", "", "Lecture 4: Graph Traversal", 0.9, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NearDuplicate(tc.a, tc.b, tc.threshold); got != tc.want {
				t.Fatalf("NearDuplicate(%q, %q, %v) = %v, want %v", tc.a, tc.b, tc.threshold, got, tc.want)
			}
		})
	}
}

func TestTokenizeFiltersShortTokens(t *testing.T) {
	tokens := Tokenize("An O(n) scan of the hash table")
	want := []string{"scan", "the", "hash", "table"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", tokens, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(`Intro to OS: Processes/Threads?`); got != "Intro to OS- Processes-Threads" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
	if got := SanitizeFileName("  "); got != "" {
		t.Fatalf("SanitizeFileName blank = %q", got)
	}
}
