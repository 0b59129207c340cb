package segment

import (
	"bytes"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
)

// DictEntry locates the postings of one term inside the postings section.
type DictEntry struct {
	Term       []byte
	PostOffset int64
	PostLen    uint32
	DocFreq    uint32
}

// Dictionary is the sorted term dictionary of one field.
type Dictionary struct {
	field   schema.Field
	typ     schema.FieldType
	entries []DictEntry
}

// DictRange is the half-open span [Start, End) of dictionary entries whose
// terms fall inside a bound pair.
type DictRange struct {
	Field      schema.Field
	Start, End int
}

func (r DictRange) Len() int { return r.End - r.Start }
func (r DictRange) Empty() bool { return r.End <= r.Start }

func (d *Dictionary) Field() schema.Field { return d.field }
func (d *Dictionary) Type() schema.FieldType { return d.typ }
func (d *Dictionary) Len() int { return len(d.entries) }
func (d *Dictionary) Entry(i int) DictEntry { return d.entries[i] }

// Term returns entry i as a term of the dictionary's field.
func (d *Dictionary) Term(i int) term.Term {
	return term.FromEncoded(d.field, d.typ, d.entries[i].Term)
}

// ResolveRange locates the entries inside [lower, upper] with two binary
// searches. An inverted or empty interval yields an empty range.
func (d *Dictionary) ResolveRange(lower, upper term.Bound) DictRange {
	n := len(d.entries)
	start := 0
	switch lower.Kind {
	case term.KindIncluded:
		start = d.search(lower.Term.Bytes(), false)
	case term.KindExcluded:
		start = d.search(lower.Term.Bytes(), true)
	}
	end := n
	switch upper.Kind {
	case term.KindIncluded:
		end = d.search(upper.Term.Bytes(), true)
	case term.KindExcluded:
		end = d.search(upper.Term.Bytes(), false)
	}
	if end < start {
		end = start
	}
	return DictRange{Field: d.field, Start: start, End: end}
}

// search returns the first entry >= key, or > key when strict.
func (d *Dictionary) search(key []byte, strict bool) int {
	return sort.Search(len(d.entries), func(i int) bool {
		c := bytes.Compare(d.entries[i].Term, key)
		if strict {
			return c > 0
		}
		return c >= 0
	})
}

// Lookup finds the entry holding exactly t.
func (d *Dictionary) Lookup(t term.Term) (int, bool) {
	i := d.search(t.Bytes(), false)
	if i < len(d.entries) && bytes.Equal(d.entries[i].Term, t.Bytes()) {
		return i, true
	}
	return i, false
}

// span returns the byte range of the postings of r, relative to the start of
// the postings section. Entries of a range are contiguous on disk.
func (d *Dictionary) span(r DictRange) (int64, int64) {
	first := d.entries[r.Start]
	last := d.entries[r.End-1]
	return first.PostOffset, last.PostOffset + int64(last.PostLen)
}

// decodeDictionaries parses the dictionary section and returns the total
// postings length it describes.
func decodeDictionaries(buf []byte, docCount uint32) (map[schema.Field]*Dictionary, int64, error) {
	dec := &decoder{buf: buf}
	nFields := dec.uvarint()
	dicts := make(map[schema.Field]*Dictionary, nFields)
	var offset int64
	for i := uint64(0); i < nFields && dec.err == nil; i++ {
		d := &Dictionary{
			field: schema.Field(dec.uvarint()),
			typ:   schema.FieldType(dec.byte()),
		}
		n := dec.uvarint()
		if dec.err == nil && n > uint64(len(buf)) {
			return nil, 0, corrupt("dictionary of field %d claims %d entries", d.field, n)
		}
		d.entries = make([]DictEntry, 0, n)
		for j := uint64(0); j < n && dec.err == nil; j++ {
			t := dec.next(dec.uvarint())
			e := DictEntry{
				Term:       t,
				PostOffset: offset,
				PostLen:    uint32(dec.uvarint()),
				DocFreq:    uint32(dec.uvarint()),
			}
			if e.DocFreq > docCount {
				return nil, 0, corrupt("term of field %d has doc freq %d above doc count %d", d.field, e.DocFreq, docCount)
			}
			if k := len(d.entries); k > 0 && bytes.Compare(d.entries[k-1].Term, t) >= 0 {
				return nil, 0, corrupt("dictionary of field %d is not strictly sorted", d.field)
			}
			offset += int64(e.PostLen)
			d.entries = append(d.entries, e)
		}
		dicts[d.field] = d
	}
	if dec.err != nil {
		return nil, 0, corrupt("decoding dictionary: %v", dec.err)
	}
	return dicts, offset, nil
}
