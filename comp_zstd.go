package squashfs

import "github.com/klauspost/compress/zstd"

// zstdDecompress handles compression id 6. squashfs zstd blocks are
// standard zstd frames, so the klauspost decoder needs no special framing
// handling beyond a single-shot decode.
func zstdDecompress(src []byte, outSize int) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(src, make([]byte, 0, outSize))
	if err != nil {
		return nil, err
	}
	return out, nil
}
