// Package matching implements the case-matching pipeline: image feature
// extraction, pairwise similarity scoring and match resolution between
// missing-child and found-child reports.
package matching

import "math"

// Similarity returns the rescaled cosine similarity of two feature vectors
// on a [0,1] scale: (cosine+1)/2, so orthogonal vectors score 0.5 and
// opposite vectors score 0. Empty vectors, length mismatches and all-zero
// vectors score 0 rather than erroring; fallback fingerprints and real
// embeddings routinely meet in the same comparison loop.
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against floating point drift pushing cosine outside [-1,1].
	if cosine > 1 {
		cosine = 1
	} else if cosine < -1 {
		cosine = -1
	}

	return (cosine + 1) / 2
}

// Confidence converts an engine score in [0,1] to the 0-100 scale used by
// persisted matches and the configured threshold.
func Confidence(score float64) float64 {
	return score * 100
}
