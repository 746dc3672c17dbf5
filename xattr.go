package squashfs

import (
	"encoding/binary"
	"fmt"
)

// xattrHeaderSize is the fixed header preceding the xattr id index:
// {xattr_table_start u64, xattr_ids u32, unused u32}.
const xattrHeaderSize = 16

// xattrIDEntrySize is the on-disk size of one xattr id table record.
const xattrIDEntrySize = 16

// xattrValueOOL marks an xattr value as stored out-of-line: the inline
// bytes are themselves a reference to where the real value lives.
const xattrValueOOL = 0x100

// xattrPrefixMask isolates the name-prefix id from an xattr entry's type.
const xattrPrefixMask = 0xff

var xattrPrefixes = map[uint16]string{
	0: "user.",
	1: "trusted.",
	2: "security.",
}

// xattrIDEntry is one record of the xattr id table: a run of key/value
// pairs living in the xattr value region.
type xattrIDEntry struct {
	Ref   uint64 // packed (block<<16)|offset into the assembled value buffer
	Count uint32
	Size  uint32
}

// xattrTable holds the xattr id table and the flattened xattr value region
// (spec component 4.I).
type xattrTable struct {
	ids   []xattrIDEntry
	value []byte
}

// XattrPair is one decoded extended attribute: a namespaced name (e.g.
// "user.comment") and its raw value bytes.
type XattrPair struct {
	Name  string
	Value []byte
}

// loadXattrTable reads the xattr id table and assembles the xattr value
// region into one flat buffer, padding every source metadata block to 8192
// bytes in the assembled buffer so the format's (block<<16|offset)
// references into it remain valid — the region's actual compressed framing
// is not preserved. Returns (nil, nil) if the image carries no xattrs.
func loadXattrTable(sb *Superblock) (*xattrTable, error) {
	if sb.XattrIdTableStart == invalidBlkRef {
		return nil, nil
	}

	hdr := make([]byte, xattrHeaderSize)
	if _, err := sb.fs.ReadAt(hdr, int64(sb.XattrIdTableStart)); err != nil {
		return nil, fmt.Errorf("%w: xattr table header: %v", ErrTruncatedImage, err)
	}
	valueStart := binary.LittleEndian.Uint64(hdr[0:8])
	numIDs := int(binary.LittleEndian.Uint32(hdr[8:12]))

	idxStart := int64(sb.XattrIdTableStart) + xattrHeaderSize
	ptrCount := ceilDiv(numIDs*xattrIDEntrySize, metaBlockSize)

	ids := make([]xattrIDEntry, 0, numIDs)
	// The value region ends where the id metadata blocks begin, i.e. at the
	// first index pointer — not at XattrIdTableStart+16, since the id
	// blocks sit before the header, not after it.
	valueEnd := idxStart
	if ptrCount > 0 {
		ptrBuf := make([]byte, 8*ptrCount)
		if _, err := sb.fs.ReadAt(ptrBuf, idxStart); err != nil {
			return nil, fmt.Errorf("%w: xattr id index: %v", ErrTruncatedImage, err)
		}
		valueEnd = int64(binary.LittleEndian.Uint64(ptrBuf[0:8]))

		remaining := numIDs
		for i := 0; i < ptrCount; i++ {
			ptr := binary.LittleEndian.Uint64(ptrBuf[i*8:])

			want := metaBlockSize / xattrIDEntrySize
			if remaining < want {
				want = remaining
			}

			payload, _, err := readMetaBlock(sb, int64(ptr))
			if err != nil {
				return nil, err
			}
			if len(payload) < want*xattrIDEntrySize {
				return nil, fmt.Errorf("%w: short xattr id metadata block", ErrTruncatedImage)
			}

			for j := 0; j < want; j++ {
				rec := payload[j*xattrIDEntrySize:]
				ids = append(ids, xattrIDEntry{
					Ref:   binary.LittleEndian.Uint64(rec[0:8]),
					Count: binary.LittleEndian.Uint32(rec[8:12]),
					Size:  binary.LittleEndian.Uint32(rec[12:16]),
				})
			}
			remaining -= want
		}
	}

	var value []byte
	offset := int64(valueStart)
	for offset < valueEnd {
		payload, next, err := readMetaBlock(sb, offset)
		if err != nil {
			return nil, err
		}
		padded := make([]byte, metaBlockSize)
		copy(padded, payload)
		value = append(value, padded...)
		offset = next
	}

	return &xattrTable{ids: ids, value: value}, nil
}

// lookupXattrEntry resolves a compact xattr id (as stored in an LREG,
// LDIR, LSYMLINK, LBLKDEV, LCHRDEV, LFIFO or LSOCKET inode) to its id-table
// record.
func (sb *Superblock) lookupXattrEntry(idx uint32) (xattrIDEntry, error) {
	if sb.xattrs == nil {
		return xattrIDEntry{}, ErrNoXattrs
	}
	if int(idx) >= len(sb.xattrs.ids) {
		return xattrIDEntry{}, fmt.Errorf("%w: xattr id %d out of range", ErrInvalidSuper, idx)
	}
	return sb.xattrs.ids[idx], nil
}

// Xattrs decodes and returns the extended attributes attached to the
// inode, or (nil, nil) if the inode carries none.
func (i *Inode) Xattrs() ([]XattrPair, error) {
	if i.XattrIdx == invalidFragment {
		return nil, nil
	}
	sb := i.sb
	entry, err := sb.lookupXattrEntry(i.XattrIdx)
	if err != nil {
		return nil, err
	}

	pos := int(entry.Ref>>16) + int(entry.Ref&0xffff)
	buf := sb.xattrs.value
	pairs := make([]XattrPair, 0, entry.Count)

	for n := uint32(0); n < entry.Count; n++ {
		if pos+4 > len(buf) {
			return nil, fmt.Errorf("%w: xattr entry header past end of value region", ErrTruncatedImage)
		}
		typ := binary.LittleEndian.Uint16(buf[pos:])
		nameSize := int(binary.LittleEndian.Uint16(buf[pos+2:]))
		pos += 4

		if pos+nameSize > len(buf) {
			return nil, fmt.Errorf("%w: xattr name past end of value region", ErrTruncatedImage)
		}
		name := xattrPrefixes[typ&xattrPrefixMask] + string(buf[pos:pos+nameSize])
		pos += nameSize

		if pos+4 > len(buf) {
			return nil, fmt.Errorf("%w: xattr value header past end of value region", ErrTruncatedImage)
		}
		vsize := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4

		var val []byte
		if typ&xattrValueOOL != 0 {
			if vsize != 8 {
				return nil, fmt.Errorf("%w: out-of-line xattr value size must be 8", ErrInvalidSuper)
			}
			if pos+8 > len(buf) {
				return nil, fmt.Errorf("%w: xattr OOL reference past end of value region", ErrTruncatedImage)
			}
			ref := binary.LittleEndian.Uint64(buf[pos:])
			pos += 8

			oolPos := int(ref>>16) + int(ref&0xffff)
			if oolPos+4 > len(buf) {
				return nil, fmt.Errorf("%w: xattr OOL value header past end of value region", ErrTruncatedImage)
			}
			realSize := int(binary.LittleEndian.Uint32(buf[oolPos:]))
			oolPos += 4
			if oolPos+realSize > len(buf) {
				return nil, fmt.Errorf("%w: xattr OOL value past end of value region", ErrTruncatedImage)
			}
			val = buf[oolPos : oolPos+realSize]
		} else {
			if pos+vsize > len(buf) {
				return nil, fmt.Errorf("%w: xattr value past end of value region", ErrTruncatedImage)
			}
			val = buf[pos : pos+vsize]
			pos += vsize
		}

		pairs = append(pairs, XattrPair{Name: name, Value: val})
	}

	return pairs, nil
}
