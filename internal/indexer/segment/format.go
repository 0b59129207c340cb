// Package segment reads and writes immutable segment files. A segment holds
// the sorted term dictionary, roaring postings, FAST columns and the stored
// documents of one commit.
//
// Layout (little endian):
//
//	header   64 bytes: magic, version, term count, doc count, created at,
//	         offsets of the postings, dictionary, columns, store and footer
//	postings roaring bitmaps, one per dictionary entry, in dictionary order
//	dict     per field: id, type, entries (term, postings length, doc freq)
//	columns  per FAST field: id, type, cardinality, offsets, values
//	store    block index followed by compressed blocks of stored documents
//	footer   16 bytes: crc32 of dict, crc32 of columns, codec, end magic
package segment

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	MagicBytes    uint32 = 0x52534547
	EndMagic      uint32 = 0x47455352
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	FileExt              = ".rseg"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	DocCount    uint32
	CreatedAt   int64
	PostOffset  int64
	DictOffset  int64
	ColOffset   int64
	StoreOffset int64
	FooterOff   int64
}

func (h SegmentHeader) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.ColOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.StoreOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.FooterOff))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		TermCount:   binary.LittleEndian.Uint32(b[8:12]),
		DocCount:    binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset:  int64(binary.LittleEndian.Uint64(b[24:32])),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[32:40])),
		ColOffset:   int64(binary.LittleEndian.Uint64(b[40:48])),
		StoreOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		FooterOff:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

func (h SegmentHeader) Created() time.Time { return time.Unix(0, h.CreatedAt) }

// validate checks that the sections are ordered and fit in size bytes.
func (h SegmentHeader) validate(size int64) error {
	switch {
	case h.Magic != MagicBytes:
		return errors.New("bad magic bytes")
	case h.Version != FormatVersion:
		return errors.New("unsupported format version")
	case h.PostOffset != int64(HeaderSize),
		h.DictOffset < h.PostOffset,
		h.ColOffset < h.DictOffset,
		h.StoreOffset < h.ColOffset,
		h.FooterOff < h.StoreOffset,
		h.FooterOff+int64(FooterSize) != size:
		return errors.New("section offsets out of range")
	}
	return nil
}

type footer struct {
	DictCRC     uint32
	ColCRC      uint32
	Compression Compression
}

func (f footer) encode() []byte {
	b := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(b[0:4], f.DictCRC)
	binary.LittleEndian.PutUint32(b[4:8], f.ColCRC)
	b[8] = byte(f.Compression)
	binary.LittleEndian.PutUint32(b[12:16], EndMagic)
	return b
}

func decodeFooter(b []byte) (footer, error) {
	if binary.LittleEndian.Uint32(b[12:16]) != EndMagic {
		return footer{}, errors.New("bad end magic")
	}
	return footer{
		DictCRC:     binary.LittleEndian.Uint32(b[0:4]),
		ColCRC:      binary.LittleEndian.Uint32(b[4:8]),
		Compression: Compression(b[8]),
	}, nil
}

// decoder walks a section buffer. The first failure sticks; callers check
// err once after a run of reads.
type decoder struct {
	buf []byte
	pos int
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		d.err = errors.New("malformed uvarint")
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.buf) {
		d.err = errors.New("unexpected end of section")
		return 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b
}

// next returns the following n bytes without copying.
func (d *decoder) next(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)-d.pos) {
		d.err = errors.New("unexpected end of section")
		return nil
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b
}

func (d *decoder) u64() uint64 {
	b := d.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
