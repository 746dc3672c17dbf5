package squashfs

import (
	"encoding/binary"
	"fmt"
)

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// loadIDTable reads the uid/gid table (spec component 4.G): an index of
// 8-byte metadata block pointers at IdTableStart, each pointing to a block
// packed with up to 2048 4-byte little-endian ids.
func loadIDTable(sb *Superblock) ([]uint32, error) {
	noIDs := int(sb.IdCount)
	if noIDs == 0 {
		return nil, nil
	}

	ptrCount := ceilDiv(noIDs*4, metaBlockSize)
	ptrBuf := make([]byte, 8*ptrCount)
	if _, err := sb.fs.ReadAt(ptrBuf, int64(sb.IdTableStart)); err != nil {
		return nil, fmt.Errorf("%w: id table index: %v", ErrTruncatedImage, err)
	}

	ids := make([]uint32, 0, noIDs)
	remaining := noIDs
	for i := 0; i < ptrCount; i++ {
		ptr := binary.LittleEndian.Uint64(ptrBuf[i*8:])

		want := metaBlockSize / 4
		if remaining < want {
			want = remaining
		}

		payload, _, err := readMetaBlock(sb, int64(ptr))
		if err != nil {
			return nil, err
		}
		if len(payload) < want*4 {
			return nil, fmt.Errorf("%w: short id metadata block", ErrTruncatedImage)
		}

		for j := 0; j < want; j++ {
			ids = append(ids, binary.LittleEndian.Uint32(payload[j*4:]))
		}
		remaining -= want
	}

	return ids, nil
}

// lookupID resolves a compact id-table index to its 32-bit uid/gid value.
func (sb *Superblock) lookupID(idx uint16) (uint32, error) {
	if int(idx) >= len(sb.ids) {
		return 0, fmt.Errorf("%w: id index %d out of range (have %d)", ErrInvalidSuper, idx, len(sb.ids))
	}
	return sb.ids[idx], nil
}
