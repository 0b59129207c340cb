package collector

import "container/heap"

// ScoredDoc is one entry of a top-K result.
type ScoredDoc struct {
	Score   float32    `json:"score"`
	Address DocAddress `json:"address"`
}

// TopK keeps the K best hits: higher scores first, ties broken by the
// smaller address. Range and term queries score every hit 1.0, so their
// top-K is the first K documents in address order.
type TopK struct {
	limit int
	h     scoredDocHeap
}

func NewTopK(limit int) *TopK {
	if limit < 0 {
		limit = 0
	}
	return &TopK{limit: limit, h: make(scoredDocHeap, 0, min(limit, 1024))}
}

func (t *TopK) Collect(addr DocAddress, score float32) {
	if t.limit == 0 {
		return
	}
	doc := ScoredDoc{Score: score, Address: addr}
	if t.h.Len() < t.limit {
		heap.Push(&t.h, doc)
		return
	}
	if worse(t.h[0], doc) {
		t.h[0] = doc
		heap.Fix(&t.h, 0)
	}
}

// Finish returns the kept hits, best first.
func (t *TopK) Finish() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

// worse reports whether a ranks below b.
func worse(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return b.Address.Less(a.Address)
}

// scoredDocHeap keeps the worst kept hit at the root.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
