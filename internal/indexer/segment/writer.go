package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/index"
	"github.com/RoaringBitmap/roaring/v2"
)

// storeBlockSize is the raw size at which a doc store block is cut.
const storeBlockSize = 16 * 1024

const (
	cardinalitySingle byte = 0
	cardinalityMulti  byte = 1
)

// Writer serialises memory index snapshots into segment files.
type Writer struct {
	dataDir     string
	compression Compression
}

func NewWriter(dataDir string, compression Compression) *Writer {
	return &Writer{dataDir: dataDir, compression: compression}
}

// Write atomically creates a new segment file. It writes to a .tmp file
// first and renames on success.
func (w *Writer) Write(data *index.SegmentData) (string, error) {
	if data.Empty() {
		return "", fmt.Errorf("cannot write empty segment")
	}
	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileExt)
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	err := writeAtomic(filepath.Join(w.dataDir, segmentName), func(dst io.Writer) error {
		_, err := Encode(dst, data, w.compression)
		return err
	})
	if err != nil {
		return "", err
	}
	return segmentName, nil
}

// writeAtomic writes path through a .tmp sibling that is synced and renamed
// into place. The .tmp file is removed whenever a step fails.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp segment file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := write(f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming segment file: %w", err)
	}
	return nil
}

// Encode writes data as a complete segment to dst and returns the number of
// bytes written.
func Encode(dst io.Writer, data *index.SegmentData, compression Compression) (int64, error) {
	postings, dict, err := encodeTerms(data)
	if err != nil {
		return 0, err
	}
	columns := encodeColumns(data)
	store, err := encodeStore(data, compression)
	if err != nil {
		return 0, err
	}

	header := SegmentHeader{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(data.TermCount()),
		DocCount:   data.DocCount,
		CreatedAt:  time.Now().UnixNano(),
		PostOffset: int64(HeaderSize),
	}
	header.DictOffset = header.PostOffset + int64(len(postings))
	header.ColOffset = header.DictOffset + int64(len(dict))
	header.StoreOffset = header.ColOffset + int64(len(columns))
	header.FooterOff = header.StoreOffset + int64(len(store))
	foot := footer{
		DictCRC:     crc32.ChecksumIEEE(dict),
		ColCRC:      crc32.ChecksumIEEE(columns),
		Compression: compression,
	}

	var written int64
	for _, part := range []struct {
		name string
		b    []byte
	}{
		{"header", header.encode()},
		{"postings", postings},
		{"dictionary", dict},
		{"columns", columns},
		{"doc store", store},
		{"footer", foot.encode()},
	} {
		n, err := dst.Write(part.b)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("writing %s: %w", part.name, err)
		}
	}
	return written, nil
}

func encodeTerms(data *index.SegmentData) ([]byte, []byte, error) {
	var postings bytes.Buffer
	dict := binary.AppendUvarint(nil, uint64(len(data.Terms)))
	bm := roaring.New()
	for _, ft := range data.Terms {
		dict = binary.AppendUvarint(dict, uint64(ft.Field))
		dict = append(dict, byte(ft.Type))
		dict = binary.AppendUvarint(dict, uint64(len(ft.Entries)))
		for _, entry := range ft.Entries {
			bm.Clear()
			bm.AddMany(entry.Docs)
			bm.RunOptimize()
			n, err := bm.WriteTo(&postings)
			if err != nil {
				return nil, nil, fmt.Errorf("writing postings for term %x: %w", entry.Term, err)
			}
			dict = binary.AppendUvarint(dict, uint64(len(entry.Term)))
			dict = append(dict, entry.Term...)
			dict = binary.AppendUvarint(dict, uint64(n))
			dict = binary.AppendUvarint(dict, uint64(len(entry.Docs)))
		}
	}
	return postings.Bytes(), dict, nil
}

func encodeColumns(data *index.SegmentData) []byte {
	out := binary.AppendUvarint(nil, uint64(len(data.Numeric)+len(data.Bytes)))
	for _, col := range data.Numeric {
		out = binary.AppendUvarint(out, uint64(col.Field))
		out = append(out, byte(col.Type))
		out = appendOffsets(out, col.Offsets)
		out = binary.AppendUvarint(out, uint64(len(col.Values)))
		for _, v := range col.Values {
			out = binary.LittleEndian.AppendUint64(out, v)
		}
	}
	for _, col := range data.Bytes {
		out = binary.AppendUvarint(out, uint64(col.Field))
		out = append(out, byte(bytesColumnKind))
		out = appendOffsets(out, col.Offsets)
		out = binary.AppendUvarint(out, uint64(len(col.Values)))
		for _, v := range col.Values {
			out = binary.AppendUvarint(out, uint64(len(v)))
			out = append(out, v...)
		}
	}
	return out
}

// appendOffsets stores doc-to-value offsets, or a single marker byte when
// every document has exactly one value.
func appendOffsets(out []byte, offsets []uint32) []byte {
	single := true
	for i, off := range offsets {
		if off != uint32(i) {
			single = false
			break
		}
	}
	if single {
		return append(out, cardinalitySingle)
	}
	out = append(out, cardinalityMulti)
	prev := uint32(0)
	for _, off := range offsets {
		out = binary.AppendUvarint(out, uint64(off-prev))
		prev = off
	}
	return out
}

func encodeStore(data *index.SegmentData, compression Compression) ([]byte, error) {
	var (
		blocks   bytes.Buffer
		idx      []byte
		raw      []byte
		first    uint32
		nBlocks  int
		flushErr error
	)
	flush := func(next uint32) {
		if len(raw) == 0 || flushErr != nil {
			return
		}
		block, err := compressBlock(raw, compression)
		if err != nil {
			flushErr = err
			return
		}
		idx = binary.AppendUvarint(idx, uint64(first))
		idx = binary.AppendUvarint(idx, uint64(len(block)))
		blocks.Write(block)
		nBlocks++
		raw = raw[:0]
		first = next
	}
	for i, doc := range data.Stored {
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding stored document %d: %w", i, err)
		}
		raw = binary.AppendUvarint(raw, uint64(len(encoded)))
		raw = append(raw, encoded...)
		if len(raw) >= storeBlockSize {
			flush(uint32(i + 1))
		}
	}
	flush(uint32(len(data.Stored)))
	if flushErr != nil {
		return nil, fmt.Errorf("compressing doc store: %w", flushErr)
	}
	out := binary.AppendUvarint(nil, uint64(nBlocks))
	out = append(out, idx...)
	return append(out, blocks.Bytes()...), nil
}
