package collector

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// DocSet gathers every hit into one bitmap per segment.
type DocSet struct {
	segments map[uint32]*roaring.Bitmap
}

func NewDocSet() *DocSet {
	return &DocSet{segments: make(map[uint32]*roaring.Bitmap)}
}

func (d *DocSet) Collect(addr DocAddress, _ float32) {
	bm, ok := d.segments[addr.Segment]
	if !ok {
		bm = roaring.New()
		d.segments[addr.Segment] = bm
	}
	bm.Add(addr.Doc)
}

func (d *DocSet) Finish() *DocSetResult {
	for _, bm := range d.segments {
		bm.RunOptimize()
	}
	return &DocSetResult{segments: d.segments}
}

// DocSetResult is the set of matching addresses.
type DocSetResult struct {
	segments map[uint32]*roaring.Bitmap
}

func (r *DocSetResult) Len() uint64 {
	var n uint64
	for _, bm := range r.segments {
		n += bm.GetCardinality()
	}
	return n
}

func (r *DocSetResult) Contains(addr DocAddress) bool {
	bm, ok := r.segments[addr.Segment]
	return ok && bm.Contains(addr.Doc)
}

// Segment returns the hits of one segment; nil when it had none.
func (r *DocSetResult) Segment(ord uint32) *roaring.Bitmap { return r.segments[ord] }

// Addresses lists every hit in address order.
func (r *DocSetResult) Addresses() []DocAddress {
	ords := make([]uint32, 0, len(r.segments))
	for ord := range r.segments {
		ords = append(ords, ord)
	}
	sort.Slice(ords, func(i, j int) bool { return ords[i] < ords[j] })
	out := make([]DocAddress, 0, r.Len())
	for _, ord := range ords {
		it := r.segments[ord].Iterator()
		for it.HasNext() {
			out = append(out, DocAddress{Segment: ord, Doc: it.Next()})
		}
	}
	return out
}

// Equal reports whether both results hold the same addresses.
func (r *DocSetResult) Equal(other *DocSetResult) bool {
	if r.Len() != other.Len() {
		return false
	}
	for ord, bm := range r.segments {
		if bm.IsEmpty() {
			continue
		}
		o, ok := other.segments[ord]
		if !ok || !bm.Equals(o) {
			return false
		}
	}
	return true
}
