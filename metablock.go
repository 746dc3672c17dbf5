package squashfs

import (
	"encoding/binary"
	"fmt"
)

// metaBlockSize is the maximum number of uncompressed bytes held by a
// single metadata block.
const metaBlockSize = 8192

// metaUncompressedFlag is bit 15 of a metadata block's length header: when
// set, the payload that follows is stored verbatim.
const metaUncompressedFlag = 1 << 15

// readMetaBlock reads and, if necessary, decompresses the metadata block
// starting at the absolute image offset start. It returns the decompressed
// payload and the absolute offset of the next block in the chain, per
// spec component 4.E.
func readMetaBlock(sb *Superblock, start int64) (payload []byte, next int64, err error) {
	hdr := make([]byte, 2)
	if _, err := sb.fs.ReadAt(hdr, start); err != nil {
		return nil, 0, fmt.Errorf("%w: metadata block header at %d: %v", ErrTruncatedImage, start, err)
	}

	lenN := binary.LittleEndian.Uint16(hdr)
	compressed := lenN&metaUncompressedFlag == 0
	size := int64(lenN &^ metaUncompressedFlag)

	// the CHECK flag (format historical baggage, see spec open questions)
	// inserts one extra byte between the header and the payload that we
	// must skip but never rely on for validation.
	headerLen := int64(2)
	if sb.Flags.Has(CHECK) {
		headerLen = 3
	}

	buf := make([]byte, size)
	if _, err := sb.fs.ReadAt(buf, start+headerLen); err != nil {
		return nil, 0, fmt.Errorf("%w: metadata block payload at %d: %v", ErrTruncatedImage, start, err)
	}

	next = start + headerLen + size

	if !compressed {
		return buf, next, nil
	}

	out, err := sb.Comp.decompress(buf, metaBlockSize)
	if err != nil {
		return nil, 0, err
	}
	return out, next, nil
}
