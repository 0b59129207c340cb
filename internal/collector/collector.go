// Package collector aggregates the hits of a search into a result. A
// collector sees every matching document once, in segment order and then
// ascending doc id order.
package collector

import "fmt"

// DocAddress identifies a document inside a snapshot: the ordinal of its
// segment and its segment-local id.
type DocAddress struct {
	Segment uint32 `json:"segment"`
	Doc     uint32 `json:"doc"`
}

// Less orders addresses by segment, then doc.
func (a DocAddress) Less(b DocAddress) bool {
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Doc < b.Doc
}

func (a DocAddress) String() string { return fmt.Sprintf("%d/%d", a.Segment, a.Doc) }

// Collector receives hits and produces a result of type T. Finish is called
// once, only when the whole search succeeded.
type Collector[T any] interface {
	Collect(addr DocAddress, score float32)
	Finish() T
}

// Count counts hits.
type Count struct {
	n int
}

func NewCount() *Count { return &Count{} }

func (c *Count) Collect(DocAddress, float32) { c.n++ }
func (c *Count) Finish() int { return c.n }
