package squashfs

import (
	"encoding/binary"
	"fmt"
)

// fragmentEntrySize is the on-disk size of one fragment table record.
const fragmentEntrySize = 16

// invalidFragment marks a regular file with no fragment tail.
const invalidFragment = 0xFFFFFFFF

// fragmentEntry is one record of the fragment table (spec component 4.H):
// a data block shared by the tails of one or more small files.
type fragmentEntry struct {
	Start uint64
	Size  uint32
}

// loadFragmentTable reads the fragment table in full: an index of 8-byte
// metadata block pointers at FragTableStart, each pointing to a block
// packed with 16-byte fragment entries. Fragment tails themselves are
// fetched lazily, through readDataBlock, when a file referencing them is
// actually read.
func loadFragmentTable(sb *Superblock) ([]fragmentEntry, error) {
	n := int(sb.FragCount)
	if n == 0 {
		return nil, nil
	}

	ptrCount := ceilDiv(n*fragmentEntrySize, metaBlockSize)
	ptrBuf := make([]byte, 8*ptrCount)
	if _, err := sb.fs.ReadAt(ptrBuf, int64(sb.FragTableStart)); err != nil {
		return nil, fmt.Errorf("%w: fragment table index: %v", ErrTruncatedImage, err)
	}

	entries := make([]fragmentEntry, 0, n)
	remaining := n
	for i := 0; i < ptrCount; i++ {
		ptr := binary.LittleEndian.Uint64(ptrBuf[i*8:])

		want := metaBlockSize / fragmentEntrySize
		if remaining < want {
			want = remaining
		}

		payload, _, err := readMetaBlock(sb, int64(ptr))
		if err != nil {
			return nil, err
		}
		if len(payload) < want*fragmentEntrySize {
			return nil, fmt.Errorf("%w: short fragment metadata block", ErrTruncatedImage)
		}

		for j := 0; j < want; j++ {
			rec := payload[j*fragmentEntrySize:]
			entries = append(entries, fragmentEntry{
				Start: binary.LittleEndian.Uint64(rec[0:8]),
				Size:  binary.LittleEndian.Uint32(rec[8:12]),
				// rec[12:16] is unused padding.
			})
		}
		remaining -= want
	}

	return entries, nil
}

// fragmentTail reads length bytes starting at fragOfft from the data block
// backing fragment index fragIdx.
func (sb *Superblock) fragmentTail(fragIdx, fragOfft uint32, length int) ([]byte, error) {
	if int(fragIdx) >= len(sb.frags) {
		return nil, fmt.Errorf("%w: fragment index %d out of range (have %d)", ErrInvalidSuper, fragIdx, len(sb.frags))
	}
	e := sb.frags[fragIdx]

	data, err := readDataBlock(sb, int64(e.Start), e.Size, int(sb.BlockSize))
	if err != nil {
		return nil, err
	}
	if int(fragOfft)+length > len(data) {
		return nil, fmt.Errorf("%w: fragment tail exceeds decompressed block", ErrTruncatedImage)
	}
	return data[fragOfft : int(fragOfft)+length], nil
}
