// Package fusion combines ranked result lists from heterogeneous retrieval
// signals using Reciprocal Rank Fusion. RRF is rank-based: the incoming
// scores only establish order, and the fused score is comparable to nothing
// but other fused scores.
package fusion

import "sort"

// DefaultK is the RRF constant from the original paper.
const DefaultK = 60

// Ranked is one item of a ranked list: an identity key and the score that
// produced its rank in that list.
type Ranked struct {
	Key   string
	Score float64
}

// RRF fuses lists into one ranking. Each item contributes 1/(k+rank+1)
// with rank 0-based within its list; contributions for the same key sum
// across lists. Output is sorted by fused score descending, ties broken
// by key for determinism.
func RRF(lists [][]Ranked, k int) []Ranked {
	if k <= 0 {
		k = DefaultK
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, item := range list {
			scores[item.Key] += 1.0 / float64(k+rank+1)
		}
	}

	fused := make([]Ranked, 0, len(scores))
	for key, score := range scores {
		fused = append(fused, Ranked{Key: key, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Key < fused[j].Key
	})
	return fused
}
