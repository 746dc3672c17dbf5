package squashfs

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibDecompress handles compression id 1 (gzip/zlib), the default and most
// widely deployed SquashFS compressor. klauspost/compress's zlib reader is a
// drop-in replacement for the standard library's that avoids an extra copy.
func zlibDecompress(src []byte, outSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := make([]byte, outSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
