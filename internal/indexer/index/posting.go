package index

import (
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
)

// TermEntry is one dictionary entry: an encoded term and the ascending,
// duplicate-free ids of the documents containing it.
type TermEntry struct {
	Term []byte
	Docs []uint32
}

// FieldTerms holds every term of one INDEXED field, sorted by term bytes.
type FieldTerms struct {
	Field   schema.Field
	Type    schema.FieldType
	Entries []TermEntry
}

// NumericColumn holds the values of a FAST numeric field in sortable form.
// Offsets has DocCount+1 entries; the values of doc d are
// Values[Offsets[d]:Offsets[d+1]].
type NumericColumn struct {
	Field   schema.Field
	Type    schema.FieldType
	Offsets []uint32
	Values  []uint64
}

// BytesColumn is the FAST column of a bytes field, laid out like
// NumericColumn.
type BytesColumn struct {
	Field   schema.Field
	Offsets []uint32
	Values  [][]byte
}

// SegmentData is everything a segment writer needs. Fields are sorted by
// field id.
type SegmentData struct {
	DocCount uint32
	Terms    []FieldTerms
	Numeric  []NumericColumn
	Bytes    []BytesColumn
	Stored   []schema.Document
}

// Empty reports whether there is nothing to write.
func (d *SegmentData) Empty() bool { return d == nil || d.DocCount == 0 }

// TermCount is the number of dictionary entries across all fields.
func (d *SegmentData) TermCount() int {
	n := 0
	for _, ft := range d.Terms {
		n += len(ft.Entries)
	}
	return n
}
