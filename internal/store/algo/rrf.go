package algo

import "sort"

// FuseRRF combines a vector-search ranked list and a full-text ranked list
// via Reciprocal Rank Fusion, per spec.md §4.1:
//
//	score(d) = w_v / (k + rank_v) + (1 - w_v) / (k + rank_fts)
//
// Both input lists are assumed already ordered best-first (rank 1 = index
// 0). A document present in only one list is scored using only that list's
// term. Results are ordered best-first, ties broken by id ascending.
func FuseRRF(vectorRanked, ftsRanked []string, weightVector float64, k int) []ScoredID {
	scores := make(map[string]float64)

	for rank, id := range vectorRanked {
		scores[id] += weightVector / float64(k+rank+1)
	}
	for rank, id := range ftsRanked {
		scores[id] += (1 - weightVector) / float64(k+rank+1)
	}

	out := make([]ScoredID, 0, len(scores))
	for id, score := range scores {
		out = append(out, ScoredID{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
