package segment

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

// Options tune how a segment is opened.
type Options struct {
	// ColumnBlockSize is the skip index granularity. Zero disables the
	// skip index.
	ColumnBlockSize uint32
	// MergeFanIn bounds the heap merge of postings lists.
	MergeFanIn int
}

func DefaultOptions() Options {
	return Options{ColumnBlockSize: DefaultColumnBlockSize, MergeFanIn: DefaultMergeFanIn}
}

// Reader is an open, immutable segment. It is safe for concurrent use.
type Reader struct {
	name     string
	closer   io.Closer
	header   SegmentHeader
	dicts    map[schema.Field]*Dictionary
	postings *PostingsResolver
	numeric  map[schema.Field]*NumericColumn
	byteCols map[schema.Field]*BytesColumn
	store    *docStore
}

// OpenFile opens the segment at path. Closing the reader closes the file.
func OpenFile(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := Open(f, info.Size(), filepath.Base(path), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// OpenBytes opens a segment held in memory.
func OpenBytes(data []byte, name string, opts Options) (*Reader, error) {
	return Open(bytes.NewReader(data), int64(len(data)), name, opts)
}

// Open reads the header, dictionary and columns of a segment. Postings and
// stored documents are read on demand from r.
func Open(r io.ReaderAt, size int64, name string, opts Options) (*Reader, error) {
	if size < int64(HeaderSize+FooterSize) {
		return nil, corrupt("segment %s is %d bytes, too small", name, size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := r.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", name, err)
	}
	header := decodeHeader(headerBytes)
	if err := header.validate(size); err != nil {
		return nil, corrupt("segment %s: %v", name, err)
	}

	footerBytes := make([]byte, FooterSize)
	if _, err := r.ReadAt(footerBytes, header.FooterOff); err != nil {
		return nil, fmt.Errorf("reading footer of %s: %w", name, err)
	}
	foot, err := decodeFooter(footerBytes)
	if err != nil {
		return nil, corrupt("segment %s: %v", name, err)
	}

	dictBytes := make([]byte, header.ColOffset-header.DictOffset)
	if _, err := r.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary of %s: %w", name, err)
	}
	if crc32.ChecksumIEEE(dictBytes) != foot.DictCRC {
		return nil, corrupt("segment %s: dictionary checksum mismatch", name)
	}
	dicts, postSize, err := decodeDictionaries(dictBytes, header.DocCount)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}
	if postSize != header.DictOffset-header.PostOffset {
		return nil, corrupt("segment %s: dictionary describes %d postings bytes, section has %d",
			name, postSize, header.DictOffset-header.PostOffset)
	}

	colBytes := make([]byte, header.StoreOffset-header.ColOffset)
	if _, err := r.ReadAt(colBytes, header.ColOffset); err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	if crc32.ChecksumIEEE(colBytes) != foot.ColCRC {
		return nil, corrupt("segment %s: column checksum mismatch", name)
	}
	numeric, byteCols, err := decodeColumns(colBytes, header.DocCount, opts.ColumnBlockSize)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}

	store, err := openDocStore(r, header.StoreOffset, header.FooterOff-header.StoreOffset, header.DocCount, foot.Compression)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}

	fanIn := opts.MergeFanIn
	if fanIn <= 0 {
		fanIn = DefaultMergeFanIn
	}
	return &Reader{
		name:   name,
		header: header,
		dicts:  dicts,
		postings: &PostingsResolver{
			r:          r,
			base:       header.PostOffset,
			size:       postSize,
			mergeFanIn: fanIn,
		},
		numeric:  numeric,
		byteCols: byteCols,
		store:    store,
	}, nil
}

func (r *Reader) Name() string { return r.name }
func (r *Reader) Header() SegmentHeader { return r.header }
func (r *Reader) DocCount() uint32 { return r.header.DocCount }
func (r *Reader) Terms() int { return int(r.header.TermCount) }
func (r *Reader) Postings() *PostingsResolver { return r.postings }

// Dictionary returns the term dictionary of field, or nil when the field is
// not INDEXED or has no terms in this segment.
func (r *Reader) Dictionary(field schema.Field) *Dictionary { return r.dicts[field] }

// NumericColumn returns the FAST column of a numeric field, or nil.
func (r *Reader) NumericColumn(field schema.Field) *NumericColumn { return r.numeric[field] }

// BytesColumn returns the FAST column of a bytes field, or nil.
func (r *Reader) BytesColumn(field schema.Field) *BytesColumn { return r.byteCols[field] }

// Doc returns the stored fields of doc.
func (r *Reader) Doc(doc uint32) (schema.Document, error) {
	d, err := r.store.doc(doc)
	if err != nil {
		return schema.Document{}, fmt.Errorf("segment %s: %w", r.name, err)
	}
	return d, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func corrupt(format string, args ...any) error {
	return apperrors.Corruptf(format, args...)
}
