// Package similarity implements exact brute-force relevance scoring between a
// query embedding and a snapshot of stored embeddings, plus Maximal Marginal
// Relevance (MMR) re-ranking for diversity-aware top-N selection.
//
// Scoring is O(N·D) over the full matrix. This is intentional: corpora are
// expected to stay small enough that an approximate index would add
// complexity without paying for itself. The limit is one of scale, not
// correctness.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a query vector's length differs from
// the dimension of the matrix being scored.
var ErrDimensionMismatch = errors.New("similarity: dimension mismatch")

// Score pairs a matrix row index with its relevance to a query.
type Score struct {
	// Row is the index into the snapshot matrix.
	Row int

	// Relevance is the cosine similarity between the query and the row,
	// in [-1, 1].
	Relevance float32
}

// Cosine returns the cosine similarity between a and b, in [-1, 1].
// A zero-norm vector has similarity 0 to everything; mismatched lengths
// also yield 0 rather than panicking.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
	// Rounding can push the quotient marginally outside [-1, 1].
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// Scores computes the relevance of every row in matrix against query.
// The result has one entry per row, in row order. The query length must
// match the matrix dimension.
func Scores(query []float32, matrix [][]float32) ([]Score, error) {
	if len(matrix) > 0 && len(query) != len(matrix[0]) {
		return nil, fmt.Errorf("%w: query has %d dimensions, matrix has %d", ErrDimensionMismatch, len(query), len(matrix[0]))
	}
	scores := make([]Score, len(matrix))
	for i, row := range matrix {
		scores[i] = Score{Row: i, Relevance: Cosine(query, row)}
	}
	return scores, nil
}

// SortByRelevance orders scores by descending relevance, breaking exact ties
// by ascending row index so ranking is deterministic. Sorting is in place and
// the same slice is returned for convenience.
func SortByRelevance(scores []Score) []Score {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Relevance != scores[j].Relevance {
			return scores[i].Relevance > scores[j].Relevance
		}
		return scores[i].Row < scores[j].Row
	})
	return scores
}
