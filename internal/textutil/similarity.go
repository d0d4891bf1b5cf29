package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// NearDuplicate reports whether two texts read as the same content at
// the given similarity threshold. Texts with no usable tokens are never
// duplicates: a text-free frame can still mark a distinct scene.
func NearDuplicate(a, b string, threshold float64) bool {
	fpA := NewFingerprint(a)
	fpB := NewFingerprint(b)
	if fpA == nil || fpB == nil {
		return false
	}
	return CosineSimilarity(fpA, fpB) >= threshold
}
