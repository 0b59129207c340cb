package query

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// InvertedRangeQuery resolves the bounds against the term dictionary and
// merges the postings of every term in range.
type InvertedRangeQuery struct {
	field        schema.Field
	name         string
	lower, upper term.Bound
}

func NewInvertedRangeQuery(s *schema.Schema, field schema.Field, lower, upper term.Bound) (*InvertedRangeQuery, error) {
	entry, err := fieldEntry(s, field)
	if err != nil {
		return nil, err
	}
	if !entry.Options.Has(schema.Indexed) {
		return nil, apperrors.SchemaMismatchf("inverted range on field %q requires INDEXED", entry.Name)
	}
	if err := checkBounds(entry, field, lower, upper); err != nil {
		return nil, err
	}
	return &InvertedRangeQuery{field: field, name: entry.Name, lower: lower, upper: upper}, nil
}

func (q *InvertedRangeQuery) Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error) {
	dict := seg.Dictionary(q.field)
	if dict == nil {
		return segment.Empty(), nil
	}
	return seg.Postings().Collect(ctx, dict, dict.ResolveRange(q.lower, q.upper))
}

func (q *InvertedRangeQuery) Field() schema.Field { return q.field }

func (q *InvertedRangeQuery) String() string {
	return formatRange(q.name, q.lower, q.upper) + "@" + StrategyInverted.String()
}

// ColumnarRangeQuery scans the FAST column of the field and keeps documents
// with a value inside the bounds.
type ColumnarRangeQuery struct {
	field        schema.Field
	name         string
	typ          schema.FieldType
	lower, upper term.Bound
	sortable     term.SortableRange
	skipIndex    bool
}

type ColumnarOption func(*ColumnarRangeQuery)

// WithSkipIndex toggles use of the block min/max index. It is on by default.
func WithSkipIndex(enabled bool) ColumnarOption {
	return func(q *ColumnarRangeQuery) { q.skipIndex = enabled }
}

func NewColumnarRangeQuery(s *schema.Schema, field schema.Field, lower, upper term.Bound, opts ...ColumnarOption) (*ColumnarRangeQuery, error) {
	entry, err := fieldEntry(s, field)
	if err != nil {
		return nil, err
	}
	if !entry.Options.Has(schema.Fast) {
		return nil, apperrors.SchemaMismatchf("columnar range on field %q requires FAST", entry.Name)
	}
	if err := checkBounds(entry, field, lower, upper); err != nil {
		return nil, err
	}
	q := &ColumnarRangeQuery{
		field:     field,
		name:      entry.Name,
		typ:       entry.Type,
		lower:     lower,
		upper:     upper,
		skipIndex: true,
	}
	if entry.Type.Numeric() {
		if q.sortable, err = term.NormalizeSortable(lower, upper); err != nil {
			return nil, apperrors.SchemaMismatchf("field %q: %v", entry.Name, err)
		}
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *ColumnarRangeQuery) Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error) {
	if q.typ == schema.Bytes {
		col := seg.BytesColumn(q.field)
		if col == nil {
			return segment.Empty(), nil
		}
		return col.ScanRange(ctx, q.lower, q.upper), nil
	}
	col := seg.NumericColumn(q.field)
	if col == nil {
		return segment.Empty(), nil
	}
	return col.ScanRange(ctx, q.sortable, q.skipIndex), nil
}

func (q *ColumnarRangeQuery) Field() schema.Field { return q.field }

func (q *ColumnarRangeQuery) String() string {
	return formatRange(q.name, q.lower, q.upper) + "@" + StrategyColumnar.String()
}
