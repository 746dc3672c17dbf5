package squashfs

import "fmt"

type metaChunk struct {
	payload []byte
	next    int64
}

// streamCursor identifies a byte position as (metadata block start offset,
// intra-block offset), the same addressing the on-disk format itself uses
// for inode and directory references.
type streamCursor struct {
	block  int64
	offset int
}

// metaStream provides random access across a chain of metadata blocks that
// are physically adjacent in the image, caching each block's decompressed
// payload by its absolute starting offset. Two independent instances exist
// on a Superblock — one for the inode table, one for the directory table —
// because a given absolute offset belongs to exactly one of the two tables
// and the caches must never be confused with each other.
//
// The cache only ever grows: once a block is decoded it is kept for the
// life of the Superblock, since the underlying image is immutable.
type metaStream struct {
	sb    *Superblock
	cache map[int64]*metaChunk
}

func newMetaStream(sb *Superblock) *metaStream {
	return &metaStream{sb: sb, cache: make(map[int64]*metaChunk)}
}

func (m *metaStream) fetch(block int64) (*metaChunk, error) {
	if c, ok := m.cache[block]; ok {
		return c, nil
	}
	payload, next, err := readMetaBlock(m.sb, block)
	if err != nil {
		return nil, err
	}
	c := &metaChunk{payload: payload, next: next}
	m.cache[block] = c
	return c, nil
}

// readAt returns the n bytes starting at cur, and the cursor immediately
// following them so the caller can keep reading sequentially across block
// boundaries without re-specifying a position.
func (m *metaStream) readAt(cur streamCursor, n int) ([]byte, streamCursor, error) {
	out := make([]byte, 0, n)
	block, offset := cur.block, cur.offset

	for len(out) < n {
		c, err := m.fetch(block)
		if err != nil {
			return nil, streamCursor{}, err
		}
		if offset > len(c.payload) {
			return nil, streamCursor{}, fmt.Errorf("%w: offset %d past end of metadata block (len %d)", ErrTruncatedImage, offset, len(c.payload))
		}

		avail := c.payload[offset:]
		need := n - len(out)
		if need <= len(avail) {
			out = append(out, avail[:need]...)
			offset += need
			if offset == len(c.payload) {
				// exactly exhausted this block: advance the cursor so the
				// next sequential read doesn't re-fetch a zero-length tail
				block, offset = c.next, 0
			}
			return out, streamCursor{block, offset}, nil
		}

		out = append(out, avail...)
		block, offset = c.next, 0
	}

	return out, streamCursor{block, offset}, nil
}

// reader returns an io.Reader-compatible cursor reader starting at
// (block, offset), for use with encoding/binary.Read.
func (m *metaStream) reader(block int64, offset int) *metaReader {
	return &metaReader{ms: m, cur: streamCursor{block, offset}}
}

// metaReader is a sequential io.Reader view over a metaStream, used to
// decode fixed-layout records (inode bodies, directory entries, block
// lists) with encoding/binary the way the rest of the format is decoded.
type metaReader struct {
	ms  *metaStream
	cur streamCursor
}

func (r *metaReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data, next, err := r.ms.readAt(r.cur, len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	r.cur = next
	return n, nil
}

func (r *metaReader) Cursor() streamCursor {
	return r.cur
}
