package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type corpus struct {
	schema *schema.Schema
	ts     schema.Field
	delta  schema.Field
	price  schema.Field
	key    schema.Field
	title  schema.Field
}

func newCorpus() corpus {
	b := schema.NewBuilder()
	c := corpus{
		ts:    b.AddU64Field("timestamp", schema.Indexed|schema.Fast|schema.Stored),
		delta: b.AddI64Field("delta", schema.Indexed|schema.Fast),
		price: b.AddF64Field("price", schema.Indexed|schema.Fast),
		key:   b.AddBytesField("key", schema.Indexed|schema.Fast),
		title: b.AddTextField("title", schema.TEXT|schema.Stored),
	}
	c.schema = b.MustBuild()
	return c
}

func openSegment(t testing.TB, s *schema.Schema, docs []schema.Document, opts segment.Options) *segment.Reader {
	t.Helper()
	m := index.NewMemoryIndex(s)
	for _, doc := range docs {
		_, err := m.AddDocument(doc)
		require.NoError(t, err)
	}
	var buf bytes.Buffer
	_, err := segment.Encode(&buf, m.Snapshot(), segment.CompressionNone)
	require.NoError(t, err)
	r, err := segment.OpenBytes(buf.Bytes(), "query-test", opts)
	require.NoError(t, err)
	return r
}

func collect(t testing.TB, q Query, seg *segment.Reader) []uint32 {
	t.Helper()
	it, err := q.Iterator(context.Background(), seg)
	require.NoError(t, err)
	var out []uint32
	for it.Next() {
		out = append(out, it.Doc())
	}
	require.NoError(t, it.Err())
	return out
}

// randomDoc gives every numeric field zero to three values drawn from a
// small domain so that terms repeat across documents.
func (c corpus) randomDoc(rng *rand.Rand) schema.Document {
	var d schema.Document
	for n := rng.IntN(4); n > 0; n-- {
		d.AddU64(c.ts, rng.Uint64N(200))
	}
	for n := rng.IntN(4); n > 0; n-- {
		d.AddI64(c.delta, rng.Int64N(200)-100)
	}
	for n := rng.IntN(4); n > 0; n-- {
		d.AddF64(c.price, float64(rng.IntN(400)-200)/4)
	}
	for n := rng.IntN(3); n > 0; n-- {
		d.AddBytes(c.key, []byte(fmt.Sprintf("k%02d", rng.IntN(40))))
	}
	return d
}

func (c corpus) randomTerm(rng *rand.Rand, field schema.Field) term.Term {
	switch field {
	case c.ts:
		return term.FromU64(field, rng.Uint64N(220))
	case c.delta:
		return term.FromI64(field, rng.Int64N(220)-110)
	case c.price:
		return term.FromF64(field, float64(rng.IntN(440)-220)/4)
	default:
		return term.FromBytes(field, []byte(fmt.Sprintf("k%02d", rng.IntN(44))))
	}
}

func randomBound(rng *rand.Rand, t term.Term) term.Bound {
	switch rng.IntN(5) {
	case 0:
		return term.Unbounded()
	case 1, 2:
		return term.Included(t)
	default:
		return term.Excluded(t)
	}
}

// matches is the brute force reference: a document matches when any of its
// values for field lies inside the bounds.
func matches(doc schema.Document, field schema.Field, typ schema.FieldType, lower, upper term.Bound) bool {
	for _, v := range doc.Get(field) {
		t, err := term.Encode(field, typ, v)
		if err != nil {
			panic(err)
		}
		if lower.AboveLower(t.Bytes()) && upper.BelowUpper(t.Bytes()) {
			return true
		}
	}
	return false
}

func TestStrategiesAgreeOnRandomCorpora(t *testing.T) {
	c := newCorpus()
	fields := []schema.Field{c.ts, c.delta, c.price, c.key}
	for seed := uint64(1); seed <= 6; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		var segments []*segment.Reader
		var docs [][]schema.Document
		for s := 0; s < 1+rng.IntN(3); s++ {
			segDocs := make([]schema.Document, 1+rng.IntN(700))
			for i := range segDocs {
				segDocs[i] = c.randomDoc(rng)
			}
			opts := segment.DefaultOptions()
			opts.ColumnBlockSize = uint32(16 << rng.IntN(4))
			opts.MergeFanIn = 1 + rng.IntN(80)
			segments = append(segments, openSegment(t, c.schema, segDocs, opts))
			docs = append(docs, segDocs)
		}

		for trial := 0; trial < 60; trial++ {
			field := fields[rng.IntN(len(fields))]
			typ := c.schema.Entry(field).Type
			lower := randomBound(rng, c.randomTerm(rng, field))
			upper := randomBound(rng, c.randomTerm(rng, field))

			inverted, err := NewRangeQuery(c.schema, field, lower, upper, StrategyInverted)
			require.NoError(t, err)
			skipping, err := NewRangeQuery(c.schema, field, lower, upper, StrategyColumnar, WithSkipIndex(true))
			require.NoError(t, err)
			scanning, err := NewRangeQuery(c.schema, field, lower, upper, StrategyColumnar, WithSkipIndex(false))
			require.NoError(t, err)

			for i, seg := range segments {
				var want []uint32
				for doc, d := range docs[i] {
					if matches(d, field, typ, lower, upper) {
						want = append(want, uint32(doc))
					}
				}
				name := fmt.Sprintf("seed %d trial %d segment %d %s", seed, trial, i, inverted)
				assert.Equal(t, want, collect(t, inverted, seg), name)
				assert.Equal(t, want, collect(t, skipping, seg), name)
				assert.Equal(t, want, collect(t, scanning, seg), name)
			}
		}
	}
}

func TestBytesPointAndRange(t *testing.T) {
	b := schema.NewBuilder()
	raw := b.AddBytesField("bytes", schema.Indexed|schema.Fast|schema.Stored)
	s := b.MustBuild()
	docs := make([]schema.Document, 3)
	value := func(i int) []byte { return []byte(fmt.Sprintf("Some bytes here %d", i)) }
	for i := range docs {
		docs[i].AddBytes(raw, value(i))
	}
	seg := openSegment(t, s, docs, segment.DefaultOptions())

	for i := 0; i < 2; i++ {
		q, err := NewTermQuery(s, term.FromBytes(raw, value(i)))
		require.NoError(t, err)
		assert.Equal(t, []uint32{uint32(i)}, collect(t, q, seg))
	}

	for _, strategy := range []Strategy{StrategyInverted, StrategyColumnar} {
		q, err := NewRangeQuery(s, raw,
			term.Included(term.FromBytes(raw, value(0))), term.Excluded(term.FromBytes(raw, value(2))), strategy)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1}, collect(t, q, seg), strategy.String())
	}
}

func TestNegativeZeroMatchesZeroRange(t *testing.T) {
	c := newCorpus()
	docs := make([]schema.Document, 3)
	docs[0].AddF64(c.price, math.Copysign(0, -1))
	docs[1].AddF64(c.price, 0)
	docs[2].AddF64(c.price, 0.25)
	seg := openSegment(t, c.schema, docs, segment.DefaultOptions())
	zero := term.FromF64(c.price, 0)

	for _, strategy := range []Strategy{StrategyInverted, StrategyColumnar} {
		q, err := NewRangeQuery(c.schema, c.price, term.Included(zero), term.Included(zero), strategy)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1}, collect(t, q, seg), strategy.String())
	}
}

func TestRangeInclusivity(t *testing.T) {
	c := newCorpus()
	docs := make([]schema.Document, 5)
	for i := range docs {
		docs[i].AddU64(c.ts, uint64(10*i))
	}
	seg := openSegment(t, c.schema, docs, segment.DefaultOptions())
	u := func(v uint64) term.Term { return term.FromU64(c.ts, v) }

	tests := []struct {
		name         string
		lower, upper term.Bound
		want         []uint32
	}{
		{"included both", term.Included(u(10)), term.Included(u(30)), []uint32{1, 2, 3}},
		{"excluded upper", term.Included(u(10)), term.Excluded(u(30)), []uint32{1, 2}},
		{"excluded lower", term.Excluded(u(10)), term.Included(u(30)), []uint32{2, 3}},
		{"point", term.Included(u(20)), term.Included(u(20)), []uint32{2}},
		{"excluded point", term.Excluded(u(20)), term.Included(u(20)), nil},
		{"inverted bounds", term.Included(u(30)), term.Included(u(10)), nil},
		{"unbounded lower", term.Unbounded(), term.Excluded(u(20)), []uint32{0, 1}},
		{"unbounded upper", term.Excluded(u(20)), term.Unbounded(), []uint32{3, 4}},
		{"unbounded", term.Unbounded(), term.Unbounded(), []uint32{0, 1, 2, 3, 4}},
		{"outside", term.Included(u(41)), term.Unbounded(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, strategy := range []Strategy{StrategyInverted, StrategyColumnar} {
				q, err := NewRangeQuery(c.schema, c.ts, tt.lower, tt.upper, strategy)
				require.NoError(t, err)
				assert.Equal(t, tt.want, collect(t, q, seg), strategy.String())
			}
		})
	}
}

func TestMultivaluedDocumentMatchesOnce(t *testing.T) {
	c := newCorpus()
	docs := make([]schema.Document, 2)
	docs[0].AddText(c.title, "Frankenstein")
	docs[0].AddText(c.title, "The Modern Prometheus")
	docs[0].AddU64(c.ts, 5)
	docs[0].AddU64(c.ts, 7)
	docs[1].AddText(c.title, "Of Mice and Men")
	docs[1].AddU64(c.ts, 100)
	seg := openSegment(t, c.schema, docs, segment.DefaultOptions())

	for _, word := range []string{"Frankenstein", "prometheus"} {
		q, err := NewTermQuery(c.schema, term.FromText(c.title, word))
		require.NoError(t, err)
		assert.Equal(t, []uint32{0}, collect(t, q, seg), word)
	}

	stop, err := NewTermQuery(c.schema, term.FromText(c.title, "the"))
	require.NoError(t, err)
	assert.Empty(t, collect(t, stop, seg))

	for _, strategy := range []Strategy{StrategyInverted, StrategyColumnar} {
		q, err := NewRangeQuery(c.schema, c.ts, term.Included(term.FromU64(c.ts, 0)), term.Included(term.FromU64(c.ts, 10)), strategy)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0}, collect(t, q, seg), strategy.String())
	}
}

func TestTermQueryOnFastOnlyField(t *testing.T) {
	b := schema.NewBuilder()
	year := b.AddI64Field("year", schema.Fast)
	s := b.MustBuild()
	docs := make([]schema.Document, 3)
	docs[0].AddI64(year, -5)
	docs[1].AddI64(year, 1818)
	docs[2].AddI64(year, -5)
	seg := openSegment(t, s, docs, segment.DefaultOptions())

	q, err := NewTermQuery(s, term.FromI64(year, -5))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2}, collect(t, q, seg))
}

func TestQueriesRejectSchemaMismatch(t *testing.T) {
	c := newCorpus()
	b := schema.NewBuilder()
	stored := b.AddU64Field("stored", schema.Stored)
	bare := b.MustBuild()

	tests := []struct {
		name string
		err  error
		fn   func() error
	}{
		{"wrong bound type", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewRangeQuery(c.schema, c.ts, term.Included(term.FromI64(c.ts, 1)), term.Unbounded(), StrategyAuto)
			return err
		}},
		{"bound on other field", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewRangeQuery(c.schema, c.ts, term.Unbounded(), term.Included(term.FromU64(c.delta, 1)), StrategyAuto)
			return err
		}},
		{"columnar on text", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewColumnarRangeQuery(c.schema, c.title, term.Unbounded(), term.Unbounded())
			return err
		}},
		{"neither indexed nor fast", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewRangeQuery(bare, stored, term.Unbounded(), term.Unbounded(), StrategyAuto)
			return err
		}},
		{"inverted on unindexed", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewInvertedRangeQuery(bare, stored, term.Unbounded(), term.Unbounded())
			return err
		}},
		{"term on unindexed", apperrors.ErrSchemaMismatch, func() error {
			_, err := NewTermQuery(bare, term.FromU64(stored, 1))
			return err
		}},
		{"unknown field", apperrors.ErrFieldNotFound, func() error {
			_, err := NewRangeQuery(c.schema, schema.Field(99), term.Unbounded(), term.Unbounded(), StrategyAuto)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), err.Error())
		})
	}
}

func TestAutoStrategyPrefersInvertedIndex(t *testing.T) {
	c := newCorpus()
	q, err := NewRangeQuery(c.schema, c.ts, term.Unbounded(), term.Unbounded(), StrategyAuto)
	require.NoError(t, err)
	assert.IsType(t, &InvertedRangeQuery{}, q)

	b := schema.NewBuilder()
	fast := b.AddU64Field("fast", schema.Fast)
	s := b.MustBuild()
	q, err = NewRangeQuery(s, fast, term.Unbounded(), term.Unbounded(), StrategyAuto)
	require.NoError(t, err)
	assert.IsType(t, &ColumnarRangeQuery{}, q)
}

func TestQueryString(t *testing.T) {
	c := newCorpus()
	q, err := NewRangeQuery(c.schema, c.ts, term.Included(term.FromU64(c.ts, 1)), term.Excluded(term.FromU64(c.ts, 9)), StrategyInverted)
	require.NoError(t, err)
	assert.Equal(t, "timestamp:[1 TO 9}@inverted", q.String())

	q, err = NewRangeQuery(c.schema, c.price, term.Excluded(term.FromF64(c.price, -1.5)), term.Unbounded(), StrategyColumnar)
	require.NoError(t, err)
	assert.Equal(t, "price:{-1.5 TO *]@columnar", q.String())

	tq, err := NewTermQuery(c.schema, term.FromBytes(c.key, []byte("k01")))
	require.NoError(t, err)
	assert.Equal(t, `key:"k01"`, tq.String())
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": StrategyAuto, "AUTO": StrategyAuto, "inverted": StrategyInverted, "fast": StrategyColumnar, "columnar": StrategyColumnar} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrategy("bitmap")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestAllQueryAndCancellation(t *testing.T) {
	c := newCorpus()
	docs := make([]schema.Document, 2*segment.CheckInterval)
	seg := openSegment(t, c.schema, docs, segment.DefaultOptions())
	assert.Len(t, collect(t, AllQuery{}, seg), len(docs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it, err := AllQuery{}.Iterator(ctx, seg)
	require.NoError(t, err)
	n := 0
	for it.Next() {
		n++
	}
	assert.True(t, errors.Is(it.Err(), context.Canceled))
	assert.Equal(t, segment.CheckInterval-1, n)
}

func TestBooleanQueryCombinesClauses(t *testing.T) {
	c := newCorpus()
	docs := make([]schema.Document, 6)
	for i := range docs {
		docs[i].AddU64(c.ts, uint64(i))
		docs[i].AddI64(c.delta, int64(i%2))
	}
	seg := openSegment(t, c.schema, docs, segment.DefaultOptions())
	tsRange := func(lo, hi uint64) Query {
		q, err := NewRangeQuery(c.schema, c.ts, term.Included(term.FromU64(c.ts, lo)), term.Included(term.FromU64(c.ts, hi)), StrategyAuto)
		require.NoError(t, err)
		return q
	}
	odd, err := NewTermQuery(c.schema, term.FromI64(c.delta, 1))
	require.NoError(t, err)

	tests := []struct {
		name    string
		clauses []Clause
		want    []uint32
	}{
		{"and", []Clause{{Must, tsRange(1, 4)}, {Must, odd}}, []uint32{1, 3}},
		{"or", []Clause{{Should, tsRange(0, 1)}, {Should, tsRange(4, 5)}}, []uint32{0, 1, 4, 5}},
		{"and not", []Clause{{Must, tsRange(0, 5)}, {MustNot, odd}}, []uint32{0, 2, 4}},
		{"only not", []Clause{{MustNot, tsRange(1, 4)}}, []uint32{0, 5}},
		{"should ignored next to must", []Clause{{Must, tsRange(2, 2)}, {Should, tsRange(5, 5)}}, []uint32{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, NewBooleanQuery(tt.clauses...), seg))
		})
	}
	assert.Equal(t, "(+timestamp:[1 TO 4]@inverted -delta:1)",
		NewBooleanQuery(Clause{Must, tsRange(1, 4)}, Clause{MustNot, odd}).String())
}
