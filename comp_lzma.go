package squashfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaHeaderSize is the classic .lzma-alone container header carried by
// every LZMA (compression id 2) block: a 1-byte properties byte, a 4-byte
// dictionary size, and an 8-byte uncompressed size.
const lzmaHeaderSize = 13

// lzmaDecompress handles compression id 2. Squashfs LZMA blocks are the
// classic .lzma-alone container, so lzma.NewReader must see the block
// unstripped — it parses the 13-byte header itself to recover the
// properties and dictionary size.
func lzmaDecompress(src []byte, outSize int) ([]byte, error) {
	if len(src) < lzmaHeaderSize {
		return nil, fmt.Errorf("%w: lzma block shorter than header", ErrTruncatedImage)
	}

	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, outSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
