package segment

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
)

// DefaultColumnBlockSize is the number of documents summarised by one entry
// of the min/max skip index.
const DefaultColumnBlockSize = 1024

const bytesColumnKind = schema.Bytes

type blockStat struct {
	min, max uint64
	empty    bool
}

// NumericColumn holds the FAST values of a numeric field in sortable form,
// so comparisons agree with the term dictionary.
type NumericColumn struct {
	field     schema.Field
	typ       schema.FieldType
	docCount  uint32
	offsets   []uint32 // nil when every doc has exactly one value
	values    []uint64
	blockSize uint32
	blocks    []blockStat
}

func (c *NumericColumn) Field() schema.Field { return c.field }
func (c *NumericColumn) Type() schema.FieldType { return c.typ }
func (c *NumericColumn) DocCount() uint32 { return c.docCount }

// Values returns the sortable values of doc. The slice must not be modified.
func (c *NumericColumn) Values(doc uint32) []uint64 {
	if doc >= c.docCount {
		return nil
	}
	if c.offsets == nil {
		return c.values[doc : doc+1]
	}
	return c.values[c.offsets[doc]:c.offsets[doc+1]]
}

// ValueAt decodes the first value of doc.
func (c *NumericColumn) ValueAt(doc uint32) (schema.Value, bool) {
	vals := c.Values(doc)
	if len(vals) == 0 {
		return schema.Value{}, false
	}
	return term.SortableToValue(c.typ, vals[0]), true
}

func (c *NumericColumn) buildSkipIndex(blockSize uint32) {
	if blockSize == 0 {
		return
	}
	c.blockSize = blockSize
	n := (c.docCount + blockSize - 1) / blockSize
	c.blocks = make([]blockStat, n)
	for b := uint32(0); b < n; b++ {
		stat := blockStat{empty: true}
		end := min((b+1)*blockSize, c.docCount)
		for doc := b * blockSize; doc < end; doc++ {
			for _, v := range c.Values(doc) {
				if stat.empty {
					stat = blockStat{min: v, max: v}
					continue
				}
				stat.min = min(stat.min, v)
				stat.max = max(stat.max, v)
			}
		}
		c.blocks[b] = stat
	}
}

// HasSkipIndex reports whether block statistics were built.
func (c *NumericColumn) HasSkipIndex() bool { return c.blocks != nil }

// ScanRange visits every document and yields those with at least one value
// inside rng. With useSkip, blocks whose min/max cannot intersect rng are
// passed over without reading their values.
func (c *NumericColumn) ScanRange(ctx context.Context, rng term.SortableRange, useSkip bool) DocIterator {
	if rng.Empty || c.docCount == 0 {
		return Empty()
	}
	return &numericScan{
		col:     c,
		rng:     rng,
		useSkip: useSkip && c.blocks != nil,
		check:   cancelCheck{ctx: ctx},
	}
}

type numericScan struct {
	col     *NumericColumn
	rng     term.SortableRange
	useSkip bool
	check   cancelCheck
	next    uint32
	doc     uint32
	err     error
}

func (s *numericScan) Next() bool {
	if s.err != nil {
		return false
	}
	c := s.col
	for s.next < c.docCount {
		if s.useSkip && s.next%c.blockSize == 0 {
			blk := c.blocks[s.next/c.blockSize]
			if blk.empty || blk.max < s.rng.Lo || blk.min > s.rng.Hi {
				s.next = min(s.next+c.blockSize, c.docCount)
				continue
			}
		}
		if err := s.check.tick(); err != nil {
			s.err = err
			return false
		}
		doc := s.next
		s.next++
		for _, v := range c.Values(doc) {
			if s.rng.Contains(v) {
				s.doc = doc
				return true
			}
		}
	}
	return false
}

func (s *numericScan) Doc() uint32 { return s.doc }
func (s *numericScan) Err() error { return s.err }

// BytesColumn holds the FAST values of a bytes field.
type BytesColumn struct {
	field    schema.Field
	docCount uint32
	offsets  []uint32
	values   [][]byte
}

func (c *BytesColumn) Field() schema.Field { return c.field }
func (c *BytesColumn) DocCount() uint32 { return c.docCount }

// Values returns the values of doc. The slices must not be modified.
func (c *BytesColumn) Values(doc uint32) [][]byte {
	if doc >= c.docCount {
		return nil
	}
	if c.offsets == nil {
		return c.values[doc : doc+1]
	}
	return c.values[c.offsets[doc]:c.offsets[doc+1]]
}

func (c *BytesColumn) ValueAt(doc uint32) (schema.Value, bool) {
	vals := c.Values(doc)
	if len(vals) == 0 {
		return schema.Value{}, false
	}
	return schema.BytesValue(vals[0]), true
}

// ScanRange compares every value of every document against the bounds.
func (c *BytesColumn) ScanRange(ctx context.Context, lower, upper term.Bound) DocIterator {
	if c.docCount == 0 {
		return Empty()
	}
	return &bytesScan{col: c, lower: lower, upper: upper, check: cancelCheck{ctx: ctx}}
}

type bytesScan struct {
	col          *BytesColumn
	lower, upper term.Bound
	check        cancelCheck
	next         uint32
	doc          uint32
	err          error
}

func (s *bytesScan) Next() bool {
	if s.err != nil {
		return false
	}
	for s.next < s.col.docCount {
		if err := s.check.tick(); err != nil {
			s.err = err
			return false
		}
		doc := s.next
		s.next++
		for _, v := range s.col.Values(doc) {
			if s.lower.AboveLower(v) && s.upper.BelowUpper(v) {
				s.doc = doc
				return true
			}
		}
	}
	return false
}

func (s *bytesScan) Doc() uint32 { return s.doc }
func (s *bytesScan) Err() error { return s.err }

func decodeColumns(buf []byte, docCount, blockSize uint32) (map[schema.Field]*NumericColumn, map[schema.Field]*BytesColumn, error) {
	dec := &decoder{buf: buf}
	n := dec.uvarint()
	numeric := make(map[schema.Field]*NumericColumn)
	byteCols := make(map[schema.Field]*BytesColumn)
	for i := uint64(0); i < n && dec.err == nil; i++ {
		field := schema.Field(dec.uvarint())
		kind := schema.FieldType(dec.byte())
		offsets, err := decodeOffsets(dec, docCount)
		if err != nil {
			return nil, nil, corrupt("column of field %d: %v", field, err)
		}
		count := dec.uvarint()
		if dec.err != nil {
			break
		}
		if want := expectedValues(offsets, docCount); count != want {
			return nil, nil, corrupt("column of field %d has %d values, offsets need %d", field, count, want)
		}
		if count > uint64(len(buf)) {
			return nil, nil, corrupt("column of field %d claims %d values", field, count)
		}
		switch {
		case kind == bytesColumnKind:
			col := &BytesColumn{field: field, docCount: docCount, offsets: offsets, values: make([][]byte, 0, count)}
			for j := uint64(0); j < count && dec.err == nil; j++ {
				col.values = append(col.values, dec.next(dec.uvarint()))
			}
			byteCols[field] = col
		case kind.Numeric():
			col := &NumericColumn{field: field, typ: kind, docCount: docCount, offsets: offsets, values: make([]uint64, 0, count)}
			for j := uint64(0); j < count && dec.err == nil; j++ {
				col.values = append(col.values, dec.u64())
			}
			col.buildSkipIndex(blockSize)
			numeric[field] = col
		default:
			return nil, nil, corrupt("column of field %d has unknown kind %d", field, kind)
		}
	}
	if dec.err != nil {
		return nil, nil, corrupt("decoding columns: %v", dec.err)
	}
	return numeric, byteCols, nil
}

func decodeOffsets(dec *decoder, docCount uint32) ([]uint32, error) {
	switch dec.byte() {
	case cardinalitySingle:
		return nil, dec.err
	case cardinalityMulti:
	default:
		return nil, errors.New("unknown cardinality")
	}
	if uint64(docCount)+1 > uint64(len(dec.buf)-dec.pos) {
		return nil, errors.New("offsets truncated")
	}
	offsets := make([]uint32, docCount+1)
	prev := uint64(0)
	for i := range offsets {
		prev += dec.uvarint()
		offsets[i] = uint32(prev)
	}
	if dec.err != nil {
		return nil, dec.err
	}
	if offsets[0] != 0 {
		return nil, errors.New("offsets do not start at zero")
	}
	return offsets, nil
}

func expectedValues(offsets []uint32, docCount uint32) uint64 {
	if offsets == nil {
		return uint64(docCount)
	}
	return uint64(offsets[len(offsets)-1])
}
