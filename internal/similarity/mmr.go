package similarity

import "math"

// DefaultLambda is the default balance between relevance and diversity.
// Values near 1 favor relevance; values near 0 favor diversity.
const DefaultLambda = 0.7

// poolFactor bounds the MMR candidate pool relative to n when the caller
// does not set an explicit pool size.
const poolFactor = 5

// SelectMMR picks up to n row indices from candidates using Maximal Marginal
// Relevance: each pick maximizes
//
//	lambda*relevance - (1-lambda)*maxSim(candidate, selected)
//
// where maxSim is the highest cosine similarity between the candidate's
// embedding and any already-selected embedding (0 when nothing is selected
// yet). matrix supplies the embeddings referenced by candidate row indices.
//
// Only the poolSize most relevant candidates are considered; poolSize <= 0
// defaults to 5*n. lambda is clamped to [0, 1]; lambda=1 reduces to pure
// relevance ranking, lambda=0 to greedy farthest-from-selected. Exact score
// ties are broken by lower redundancy penalty, then relevance rank, then row
// order, so selection is deterministic and a redundant near-duplicate never
// displaces an equally-scored distinct candidate. n <= 0 selects nothing.
func SelectMMR(candidates []Score, matrix [][]float32, n int, lambda float64, poolSize int) []int {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	if poolSize <= 0 {
		poolSize = poolFactor * n
	}

	pool := make([]Score, len(candidates))
	copy(pool, candidates)
	SortByRelevance(pool)
	if len(pool) > poolSize {
		pool = pool[:poolSize]
	}

	selected := make([]int, 0, min(n, len(pool)))
	remaining := pool

	for len(selected) < n && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		bestPenalty := math.Inf(1)
		for i, c := range remaining {
			var penalty float64
			if lambda < 1 && len(selected) > 0 {
				penalty = float64(maxSimTo(matrix, c.Row, selected))
			}
			score := lambda*float64(c.Relevance) - (1-lambda)*penalty
			// On exact score ties the less redundant candidate wins; among
			// equally redundant candidates the earlier (higher-relevance)
			// one stands.
			if score > bestScore || (score == bestScore && penalty < bestPenalty) {
				bestScore = score
				bestPenalty = penalty
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx].Row)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// maxSimTo returns the highest cosine similarity between matrix[row] and any
// of the selected rows.
func maxSimTo(matrix [][]float32, row int, selected []int) float32 {
	var maxSim float32 = -1
	for _, s := range selected {
		if sim := Cosine(matrix[row], matrix[s]); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}
