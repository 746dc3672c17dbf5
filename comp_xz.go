package squashfs

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
)

// xzDecompress handles compression id 4. Unlike LZMA (id 2), squashfs XZ
// blocks are full xz streams (magic, checked, framed), so the container's
// own reader handles everything.
func xzDecompress(src []byte, outSize int) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
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
