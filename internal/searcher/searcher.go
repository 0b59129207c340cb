// Package searcher runs queries against an immutable snapshot of the index.
package searcher

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// unscored is the score every hit of a filter-style query receives.
const unscored float32 = 1.0

// Snapshot is the set of segments visible to a search. It never changes
// after construction; a commit publishes a new Snapshot instead. Any number
// of searches may share one Snapshot.
type Snapshot struct {
	schema     *schema.Schema
	generation uint64
	segments   []*segment.Reader
	numDocs    uint64
}

func NewSnapshot(s *schema.Schema, generation uint64, segments []*segment.Reader) *Snapshot {
	snap := &Snapshot{
		schema:     s,
		generation: generation,
		segments:   append([]*segment.Reader(nil), segments...),
	}
	for _, seg := range snap.segments {
		snap.numDocs += uint64(seg.DocCount())
	}
	return snap
}

func (s *Snapshot) Schema() *schema.Schema { return s.schema }

// Generation increases with every commit that produced this snapshot.
func (s *Snapshot) Generation() uint64 { return s.generation }

func (s *Snapshot) NumDocs() uint64 { return s.numDocs }

func (s *Snapshot) SegmentCount() int { return len(s.segments) }

// Segment returns the reader with the given ordinal.
func (s *Snapshot) Segment(ord uint32) (*segment.Reader, bool) {
	if int(ord) >= len(s.segments) {
		return nil, false
	}
	return s.segments[ord], true
}

// Doc returns the stored fields of the document at addr.
func (s *Snapshot) Doc(addr collector.DocAddress) (schema.Document, error) {
	seg, ok := s.Segment(addr.Segment)
	if !ok {
		return schema.Document{}, fmt.Errorf("segment %d: %w", addr.Segment, apperrors.ErrDocNotFound)
	}
	return seg.Doc(addr.Doc)
}

// Search runs q over every segment of snap in order and feeds the hits to
// c. On any error the collector is abandoned and the zero T is returned.
func Search[T any](ctx context.Context, snap *Snapshot, q query.Query, c collector.Collector[T]) (T, error) {
	var zero T
	for ord, seg := range snap.segments {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		it, err := q.Iterator(ctx, seg)
		if err != nil {
			return zero, fmt.Errorf("searching segment %s: %w", seg.Name(), err)
		}
		for it.Next() {
			c.Collect(collector.DocAddress{Segment: uint32(ord), Doc: it.Doc()}, unscored)
		}
		if err := it.Err(); err != nil {
			return zero, fmt.Errorf("searching segment %s: %w", seg.Name(), err)
		}
	}
	return c.Finish(), nil
}
