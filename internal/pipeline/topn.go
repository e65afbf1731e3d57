package pipeline

import "container/heap"

type seqRanked struct {
	Ranked
	seq int
}

// minHeap orders by score ascending; among equal scores the later
// discovery is smaller so it is evicted first.
type minHeap []seqRanked

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].seq > h[j].seq
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(seqRanked)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopN returns the n highest-scoring items, score descending. Equal scores
// keep their input order.
func TopN(items []Ranked, n int) []Ranked {
	if n <= 0 {
		return []Ranked{}
	}

	h := make(minHeap, 0, n+1)
	for i, it := range items {
		heap.Push(&h, seqRanked{Ranked: it, seq: i})
		if h.Len() > n {
			heap.Pop(&h)
		}
	}

	out := make([]Ranked, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(seqRanked).Ranked
	}
	return out
}
