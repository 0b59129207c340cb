package query

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// TermQuery matches documents holding exactly one term. INDEXED fields use
// a dictionary lookup; FAST-only fields fall back to a point scan.
type TermQuery struct {
	name     string
	term     term.Term
	empty    bool
	columnar Query
}

// NewTermQuery builds a point query. Text terms are analyzed the way
// indexing analyzes them, so "Prometheus" finds the stemmed token.
func NewTermQuery(s *schema.Schema, t term.Term) (*TermQuery, error) {
	entry, err := fieldEntry(s, t.Field())
	if err != nil {
		return nil, err
	}
	if t.Type() != entry.Type {
		return nil, apperrors.SchemaMismatchf("field %q is %s, term is %s", entry.Name, entry.Type, t.Type())
	}
	q := &TermQuery{name: entry.Name, term: t}
	if entry.Type == schema.Text {
		word, _ := t.AsText()
		normalized, ok := tokenizer.Default().Normalize(word)
		q.term = term.FromText(t.Field(), normalized)
		q.empty = !ok
	}
	switch {
	case entry.Options.Has(schema.Indexed):
	case entry.Options.Has(schema.Fast):
		q.columnar, err = NewColumnarRangeQuery(s, t.Field(), term.Included(t), term.Included(t))
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.SchemaMismatchf("term query on field %q requires INDEXED or FAST", entry.Name)
	}
	return q, nil
}

func (q *TermQuery) Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error) {
	if q.empty {
		return segment.Empty(), nil
	}
	if q.columnar != nil {
		return q.columnar.Iterator(ctx, seg)
	}
	dict := seg.Dictionary(q.term.Field())
	if dict == nil {
		return segment.Empty(), nil
	}
	i, ok := dict.Lookup(q.term)
	if !ok {
		return segment.Empty(), nil
	}
	return seg.Postings().Collect(ctx, dict, segment.DictRange{Field: q.term.Field(), Start: i, End: i + 1})
}

func (q *TermQuery) Term() term.Term { return q.term }

func (q *TermQuery) String() string {
	return q.name + ":" + formatTerm(q.term)
}

// AllQuery matches every document of every segment.
type AllQuery struct{}

func (AllQuery) Iterator(ctx context.Context, seg *segment.Reader) (DocIterator, error) {
	return &allIterator{n: seg.DocCount(), ctx: ctx}, nil
}

func (AllQuery) String() string { return "*" }

type allIterator struct {
	ctx  context.Context
	n    uint32
	next uint32
	doc  uint32
	err  error
}

func (a *allIterator) Next() bool {
	if a.err != nil || a.next >= a.n {
		return false
	}
	if a.next%segment.CheckInterval == segment.CheckInterval-1 {
		if err := a.ctx.Err(); err != nil {
			a.err = err
			return false
		}
	}
	a.doc = a.next
	a.next++
	return true
}

func (a *allIterator) Doc() uint32 { return a.doc }
func (a *allIterator) Err() error { return a.err }
