// Package index buffers added documents in memory until the engine commits
// them into an immutable segment.
package index

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
)

// MemoryIndex is the document sink. Doc ids are assigned densely in
// insertion order starting at zero after every Reset.
type MemoryIndex struct {
	mu       sync.RWMutex
	schema   *schema.Schema
	analyzer *tokenizer.Analyzer
	terms    map[schema.Field]map[string][]uint32
	numeric  map[schema.Field]*NumericColumn
	bytesCol map[schema.Field]*BytesColumn
	stored   []schema.Document
	docCount uint32
	size     int64
}

func NewMemoryIndex(s *schema.Schema) *MemoryIndex {
	m := &MemoryIndex{schema: s, analyzer: tokenizer.Default()}
	m.resetLocked()
	return m
}

// AddDocument validates doc and buffers it. It returns the segment-local id
// the document will have once committed.
func (m *MemoryIndex) AddDocument(doc schema.Document) (uint32, error) {
	if err := doc.Validate(m.schema); err != nil {
		return 0, err
	}

	docTerms := make(map[schema.Field][]string)
	fastNumeric := make(map[schema.Field][]uint64)
	fastBytes := make(map[schema.Field][][]byte)
	for _, fv := range doc.FieldValues {
		entry := m.schema.Entry(fv.Field)
		if entry.Options.Has(schema.Indexed) {
			if entry.Type == schema.Text {
				docTerms[fv.Field] = append(docTerms[fv.Field], m.analyzer.Terms(fv.Value.Text)...)
			} else {
				t, err := term.Encode(fv.Field, entry.Type, fv.Value)
				if err != nil {
					return 0, fmt.Errorf("encoding field %q: %w", entry.Name, err)
				}
				docTerms[fv.Field] = append(docTerms[fv.Field], string(t.Bytes()))
			}
		}
		if entry.Options.Has(schema.Fast) {
			if entry.Type == schema.Bytes {
				fastBytes[fv.Field] = append(fastBytes[fv.Field], bytes.Clone(fv.Value.Bytes))
			} else if v, ok := term.ValueToSortable(fv.Value); ok {
				fastNumeric[fv.Field] = append(fastNumeric[fv.Field], v)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docID := m.docCount
	for field, terms := range docTerms {
		postings := m.terms[field]
		for _, t := range terms {
			docs := postings[t]
			// Repeated values of one document must not repeat the id.
			if n := len(docs); n > 0 && docs[n-1] == docID {
				continue
			}
			if docs == nil {
				m.size += int64(len(t)) + 48
			}
			postings[t] = append(docs, docID)
			m.size += 4
		}
	}
	for field, col := range m.numeric {
		col.Values = append(col.Values, fastNumeric[field]...)
		col.Offsets = append(col.Offsets, uint32(len(col.Values)))
		m.size += int64(8*len(fastNumeric[field]) + 4)
	}
	for field, col := range m.bytesCol {
		for _, b := range fastBytes[field] {
			col.Values = append(col.Values, b)
			m.size += int64(len(b) + 24)
		}
		col.Offsets = append(col.Offsets, uint32(len(col.Values)))
		m.size += 4
	}
	stored := doc.Stored(m.schema)
	m.stored = append(m.stored, stored)
	m.size += storedSize(stored)
	m.docCount++
	return docID, nil
}

// Snapshot copies the buffered state into sorted, immutable segment data.
func (m *MemoryIndex) Snapshot() *SegmentData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := &SegmentData{DocCount: m.docCount}
	for i, fe := range m.schema.Fields() {
		field := schema.Field(i)
		if postings, ok := m.terms[field]; ok {
			entries := make([]TermEntry, 0, len(postings))
			for t, docs := range postings {
				entries = append(entries, TermEntry{Term: []byte(t), Docs: append([]uint32(nil), docs...)})
			}
			sort.Slice(entries, func(i, j int) bool {
				return bytes.Compare(entries[i].Term, entries[j].Term) < 0
			})
			data.Terms = append(data.Terms, FieldTerms{Field: field, Type: fe.Type, Entries: entries})
		}
		if col, ok := m.numeric[field]; ok {
			data.Numeric = append(data.Numeric, NumericColumn{
				Field:   field,
				Type:    col.Type,
				Offsets: append([]uint32(nil), col.Offsets...),
				Values:  append([]uint64(nil), col.Values...),
			})
		}
		if col, ok := m.bytesCol[field]; ok {
			data.Bytes = append(data.Bytes, BytesColumn{
				Field:   field,
				Offsets: append([]uint32(nil), col.Offsets...),
				Values:  append([][]byte(nil), col.Values...),
			})
		}
	}
	data.Stored = append([]schema.Document(nil), m.stored...)
	return data
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *MemoryIndex) resetLocked() {
	m.terms = make(map[schema.Field]map[string][]uint32)
	m.numeric = make(map[schema.Field]*NumericColumn)
	m.bytesCol = make(map[schema.Field]*BytesColumn)
	for i, fe := range m.schema.Fields() {
		field := schema.Field(i)
		if fe.Options.Has(schema.Indexed) {
			m.terms[field] = make(map[string][]uint32)
		}
		if !fe.Options.Has(schema.Fast) {
			continue
		}
		if fe.Type == schema.Bytes {
			m.bytesCol[field] = &BytesColumn{Field: field, Offsets: []uint32{0}}
		} else if fe.Type.Numeric() {
			m.numeric[field] = &NumericColumn{Field: field, Type: fe.Type, Offsets: []uint32{0}}
		}
	}
	m.stored = nil
	m.docCount = 0
	m.size = 0
}

func storedSize(doc schema.Document) int64 {
	var n int64
	for _, fv := range doc.FieldValues {
		n += int64(len(fv.Value.Text)+len(fv.Value.Bytes)) + 32
	}
	return n
}
