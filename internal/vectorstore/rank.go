package vectorstore

import (
	"cmp"
	"slices"
)

// topK ranks candidates by descending score. Ties keep insertion order.
func topK(hits []Scored, k int) []Scored {
	slices.SortStableFunc(hits, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
