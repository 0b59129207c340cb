package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

type storeBlock struct {
	firstDoc uint32
	offset   int64
	length   int64
}

// docStore reads stored documents back from compressed blocks. The most
// recently decompressed block is kept for sequential reads.
type docStore struct {
	r           io.ReaderAt
	docCount    uint32
	compression Compression
	blocks      []storeBlock

	mu        sync.Mutex
	lastBlock int
	lastRaw   []byte
}

func openDocStore(r io.ReaderAt, offset, size int64, docCount uint32, c Compression) (*docStore, error) {
	// The block index is small; read at most its worst-case prefix.
	head := make([]byte, min(size, int64(binary.MaxVarintLen64)*(2*int64(docCount)+1)))
	if _, err := r.ReadAt(head, offset); err != nil {
		return nil, fmt.Errorf("reading doc store index: %w", err)
	}
	dec := &decoder{buf: head}
	n := dec.uvarint()
	if dec.err == nil && n > uint64(docCount)+1 {
		return nil, corrupt("doc store claims %d blocks for %d docs", n, docCount)
	}
	type raw struct{ first, length uint64 }
	entries := make([]raw, 0, n)
	for i := uint64(0); i < n && dec.err == nil; i++ {
		entries = append(entries, raw{first: dec.uvarint(), length: dec.uvarint()})
	}
	if dec.err != nil {
		return nil, corrupt("decoding doc store index: %v", dec.err)
	}
	s := &docStore{r: r, docCount: docCount, compression: c, lastBlock: -1}
	pos := offset + int64(dec.pos)
	for i, e := range entries {
		if i > 0 && uint32(e.first) <= s.blocks[i-1].firstDoc {
			return nil, corrupt("doc store blocks out of order")
		}
		s.blocks = append(s.blocks, storeBlock{firstDoc: uint32(e.first), offset: pos, length: int64(e.length)})
		pos += int64(e.length)
	}
	if pos != offset+size {
		return nil, corrupt("doc store blocks cover %d bytes, section has %d", pos-offset, size)
	}
	return s, nil
}

func (s *docStore) doc(id uint32) (schema.Document, error) {
	if id >= s.docCount || len(s.blocks) == 0 {
		return schema.Document{}, fmt.Errorf("doc %d: %w", id, apperrors.ErrDocNotFound)
	}
	b := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].firstDoc > id }) - 1
	if b < 0 {
		return schema.Document{}, corrupt("doc %d precedes the first store block", id)
	}
	raw, err := s.block(b)
	if err != nil {
		return schema.Document{}, err
	}
	dec := &decoder{buf: raw}
	for cur := s.blocks[b].firstDoc; ; cur++ {
		payload := dec.next(dec.uvarint())
		if dec.err != nil {
			return schema.Document{}, corrupt("doc %d missing from store block %d", id, b)
		}
		if cur != id {
			continue
		}
		var doc schema.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return schema.Document{}, corrupt("decoding stored doc %d: %v", id, err)
		}
		return doc, nil
	}
}

func (s *docStore) block(i int) ([]byte, error) {
	s.mu.Lock()
	if s.lastBlock == i {
		raw := s.lastRaw
		s.mu.Unlock()
		return raw, nil
	}
	s.mu.Unlock()

	blk := s.blocks[i]
	buf := make([]byte, blk.length)
	if _, err := s.r.ReadAt(buf, blk.offset); err != nil {
		return nil, fmt.Errorf("reading store block %d: %w", i, err)
	}
	raw, err := decompressBlock(buf, s.compression)
	if err != nil {
		return nil, corrupt("store block %d: %v", i, err)
	}

	s.mu.Lock()
	s.lastBlock, s.lastRaw = i, raw
	s.mu.Unlock()
	return raw, nil
}
