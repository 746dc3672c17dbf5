package squashfs

import (
	"fmt"
	"io"
	"io/fs"
)

// blockOutSize returns the expected decompressed size of data block index
// block of i: the filesystem block size, except for the final block of a
// file with no fragment tail, which holds exactly the byte count left over
// after the preceding full blocks.
func (i *Inode) blockOutSize(block int) int {
	blockSize := int(i.sb.BlockSize)
	if i.FragBlock == invalidFragment && block == i.numBlocks-1 {
		rem := int(i.Size) - block*blockSize
		if rem > 0 {
			return rem
		}
	}
	return blockSize
}

// ReadAt implements io.ReaderAt over the inode's file content (spec
// component 4.M), streaming full data blocks via readDataBlock and any
// fragment tail via fragmentTail. A data block whose packed size is zero is
// a sparse hole and reads back as zeroes without touching the byte source.
func (i *Inode) ReadAt(p []byte, off int64) (int, error) {
	if !i.Type.IsRegular() {
		return 0, fs.ErrInvalid
	}
	if len(p) == 0 {
		return 0, nil
	}
	if uint64(off) >= i.Size {
		return 0, io.EOF
	}
	if uint64(off)+uint64(len(p)) > i.Size {
		p = p[:i.Size-uint64(off)]
	}

	sizes, err := i.readBlockSizes()
	if err != nil {
		return 0, err
	}

	blockSize := int64(i.sb.BlockSize)
	block := int(off / blockSize)
	offset := int(off % blockSize)

	start := i.StartBlock
	for b := 0; b < block; b++ {
		start += uint64(sizes[b] & dataBlockSizeMask)
	}

	n := 0
	for n < len(p) {
		var buf []byte

		if block < i.numBlocks {
			sz := sizes[block]
			if sz&dataBlockSizeMask == 0 {
				buf = make([]byte, i.blockOutSize(block))
			} else {
				buf, err = readDataBlock(i.sb, int64(start), sz, i.blockOutSize(block))
				if err != nil {
					return n, err
				}
			}
			start += uint64(sz & dataBlockSizeMask)
		} else if i.FragBlock != invalidFragment {
			buf, err = i.sb.fragmentTail(i.FragBlock, i.FragOfft, i.fragBytes)
			if err != nil {
				return n, err
			}
		} else {
			return n, fmt.Errorf("%w: read past declared block count", ErrTruncatedImage)
		}

		if offset > 0 {
			if offset > len(buf) {
				return n, fmt.Errorf("%w: intra-block offset past decompressed block", ErrTruncatedImage)
			}
			buf = buf[offset:]
			offset = 0
		}

		c := copy(p[n:], buf)
		n += c
		block++
	}

	return n, nil
}
