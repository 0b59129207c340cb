package query

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/RoaringBitmap/roaring/v2"
)

// Occur says how a clause of a BooleanQuery contributes.
type Occur int

const (
	Must Occur = iota
	Should
	MustNot
)

// Clause is one sub-query of a BooleanQuery.
type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses per segment: all Must clauses intersect,
// Should clauses union (and are required when there is no Must clause),
// MustNot clauses are removed. A query with only MustNot clauses matches
// every other document.
type BooleanQuery struct {
	clauses []Clause
}

func NewBooleanQuery(clauses ...Clause) *BooleanQuery {
	return &BooleanQuery{clauses: append([]Clause(nil), clauses...)}
}

func (q *BooleanQuery) Clauses() []Clause { return q.clauses }

func (q *BooleanQuery) Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error) {
	var must, should *roaring.Bitmap
	excluded := roaring.New()
	for _, c := range q.clauses {
		bm, err := materialize(ctx, c.Query, seg)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case Must:
			if must == nil {
				must = bm
			} else {
				must.And(bm)
			}
		case Should:
			if should == nil {
				should = bm
			} else {
				should.Or(bm)
			}
		case MustNot:
			excluded.Or(bm)
		}
	}

	var result *roaring.Bitmap
	switch {
	case must != nil:
		result = must
	case should != nil:
		result = should
	default:
		result = roaring.New()
		result.AddRange(0, uint64(seg.DocCount()))
	}
	result.AndNot(excluded)
	return segment.NewBitmapIterator(ctx, result), nil
}

func materialize(ctx context.Context, q Query, seg *segment.Reader) (*roaring.Bitmap, error) {
	it, err := q.Iterator(ctx, seg)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	for it.Next() {
		bm.Add(it.Doc())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

func (q *BooleanQuery) String() string {
	parts := make([]string, 0, len(q.clauses))
	for _, c := range q.clauses {
		switch c.Occur {
		case Must:
			parts = append(parts, "+"+c.Query.String())
		case MustNot:
			parts = append(parts, "-"+c.Query.String())
		default:
			parts = append(parts, c.Query.String())
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}
