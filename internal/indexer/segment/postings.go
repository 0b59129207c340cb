package segment

import (
	"container/heap"
	"context"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

// CheckInterval is how many documents an iterator visits between checks of
// its context.
const CheckInterval = 4096

// DefaultMergeFanIn is the largest number of postings lists merged through
// the heap. Wider ranges are unioned into one bitmap before iteration.
const DefaultMergeFanIn = 64

// DocIterator yields ascending, distinct segment-local doc ids. It is pull
// based: a caller may stop calling Next at any point. Err reports why Next
// returned false early.
type DocIterator interface {
	Next() bool
	Doc() uint32
	Err() error
}

type cancelCheck struct {
	ctx context.Context
	n   uint32
}

func (c *cancelCheck) tick() error {
	c.n++
	if c.n%CheckInterval == 0 {
		return c.ctx.Err()
	}
	return nil
}

type emptyIterator struct{}

func (emptyIterator) Next() bool { return false }
func (emptyIterator) Doc() uint32 { return 0 }
func (emptyIterator) Err() error { return nil }

// Empty returns an iterator with no documents.
func Empty() DocIterator { return emptyIterator{} }

type bitmapIterator struct {
	it    roaring.IntPeekable
	check cancelCheck
	doc   uint32
	err   error
}

// NewBitmapIterator iterates the documents of bm in ascending order.
func NewBitmapIterator(ctx context.Context, bm *roaring.Bitmap) DocIterator {
	return &bitmapIterator{it: bm.Iterator(), check: cancelCheck{ctx: ctx}}
}

func (b *bitmapIterator) Next() bool {
	if b.err != nil || !b.it.HasNext() {
		return false
	}
	if err := b.check.tick(); err != nil {
		b.err = err
		return false
	}
	b.doc = b.it.Next()
	return true
}

func (b *bitmapIterator) Doc() uint32 { return b.doc }
func (b *bitmapIterator) Err() error { return b.err }

type cursor struct {
	it  roaring.IntPeekable
	doc uint32
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].doc < h[j].doc }
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// mergeIterator k-way merges postings lists by doc id. A document present
// in several lists is yielded once.
type mergeIterator struct {
	h       cursorHeap
	check   cancelCheck
	doc     uint32
	started bool
	err     error
}

func newMergeIterator(ctx context.Context, lists []*roaring.Bitmap) *mergeIterator {
	m := &mergeIterator{check: cancelCheck{ctx: ctx}}
	m.h = make(cursorHeap, 0, len(lists))
	for _, bm := range lists {
		it := bm.Iterator()
		if !it.HasNext() {
			continue
		}
		m.h = append(m.h, &cursor{it: it, doc: it.Next()})
	}
	heap.Init(&m.h)
	return m
}

func (m *mergeIterator) Next() bool {
	if m.err != nil {
		return false
	}
	for len(m.h) > 0 {
		c := m.h[0]
		doc := c.doc
		if c.it.HasNext() {
			c.doc = c.it.Next()
			heap.Fix(&m.h, 0)
		} else {
			heap.Pop(&m.h)
		}
		if m.started && doc == m.doc {
			continue
		}
		if err := m.check.tick(); err != nil {
			m.err = err
			return false
		}
		m.doc = doc
		m.started = true
		return true
	}
	return false
}

func (m *mergeIterator) Doc() uint32 { return m.doc }
func (m *mergeIterator) Err() error { return m.err }

// PostingsResolver turns dictionary ranges into document streams.
type PostingsResolver struct {
	r          io.ReaderAt
	base       int64
	size       int64
	mergeFanIn int
}

// Collect returns the union of the postings of every entry in rng. The
// whole span is fetched with a single read.
func (p *PostingsResolver) Collect(ctx context.Context, d *Dictionary, rng DictRange) (DocIterator, error) {
	if rng.Empty() {
		return Empty(), nil
	}
	if rng.Len() > p.mergeFanIn {
		union, err := p.Bitmap(ctx, d, rng)
		if err != nil {
			return nil, err
		}
		return NewBitmapIterator(ctx, union), nil
	}
	lists := make([]*roaring.Bitmap, 0, rng.Len())
	err := p.each(ctx, d, rng, func(bm *roaring.Bitmap) {
		lists = append(lists, bm)
	})
	if err != nil {
		return nil, err
	}
	if len(lists) == 1 {
		return NewBitmapIterator(ctx, lists[0]), nil
	}
	return newMergeIterator(ctx, lists), nil
}

// Bitmap returns the postings of rng as a single bitmap.
func (p *PostingsResolver) Bitmap(ctx context.Context, d *Dictionary, rng DictRange) (*roaring.Bitmap, error) {
	out := roaring.New()
	if rng.Empty() {
		return out, nil
	}
	if err := p.each(ctx, d, rng, func(bm *roaring.Bitmap) { out.Or(bm) }); err != nil {
		return nil, err
	}
	return out, nil
}

// each decodes the postings of every entry of rng in dictionary order.
func (p *PostingsResolver) each(ctx context.Context, d *Dictionary, rng DictRange, fn func(*roaring.Bitmap)) error {
	if rng.Start < 0 || rng.End > d.Len() {
		return fmt.Errorf("dictionary range [%d, %d) outside %d entries", rng.Start, rng.End, d.Len())
	}
	start, end := d.span(rng)
	if start < 0 || end > p.size {
		return corrupt("postings span [%d, %d) outside section of %d bytes", start, end, p.size)
	}
	buf := make([]byte, end-start)
	if _, err := p.r.ReadAt(buf, p.base+start); err != nil {
		return fmt.Errorf("reading postings: %w", err)
	}
	check := cancelCheck{ctx: ctx}
	for i := rng.Start; i < rng.End; i++ {
		if err := check.tick(); err != nil {
			return err
		}
		e := d.Entry(i)
		off := e.PostOffset - start
		bm := roaring.New()
		if err := bm.UnmarshalBinary(buf[off : off+int64(e.PostLen)]); err != nil {
			return corrupt("postings of entry %d of field %d: %v", i, d.Field(), err)
		}
		if bm.GetCardinality() != uint64(e.DocFreq) {
			return corrupt("postings of entry %d of field %d hold %d docs, dictionary says %d",
				i, d.Field(), bm.GetCardinality(), e.DocFreq)
		}
		fn(bm)
	}
	return nil
}
