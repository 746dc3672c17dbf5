package squashfs

import "fmt"

// Compression identifies the compressor used for metadata and data blocks
// in a SquashFS image, as stored in the superblock.
type Compression uint16

const (
	GZip Compression = 1
	LZMA Compression = 2
	LZO  Compression = 3
	XZ   Compression = 4
	LZ4  Compression = 5
	ZSTD Compression = 6
)

func (c Compression) String() string {
	switch c {
	case GZip:
		return "GZip"
	case LZMA:
		return "LZMA"
	case LZO:
		return "LZO"
	case XZ:
		return "XZ"
	case LZ4:
		return "LZ4"
	case ZSTD:
		return "ZSTD"
	}
	return fmt.Sprintf("Compression(%d)", c)
}

// decompressFunc turns a compressed on-disk payload into exactly outSize
// bytes of uncompressed data.
type decompressFunc func(src []byte, outSize int) ([]byte, error)

var decompressors = map[Compression]decompressFunc{
	GZip: zlibDecompress,
	LZMA: lzmaDecompress,
	LZO:  lzoDecompress,
	XZ:   xzDecompress,
	LZ4:  lz4Decompress,
	ZSTD: zstdDecompress,
}

// decompress runs the registered decompressor for c against src, expecting
// outSize bytes of output.
func (c Compression) decompress(src []byte, outSize int) ([]byte, error) {
	fn, ok := decompressors[c]
	if !ok {
		return nil, fmt.Errorf("%w: compression id %d", ErrUnknownCompression, c)
	}
	return fn(src, outSize)
}

// knownCompression reports whether c is one of the six ids defined by the
// SquashFS 4.0 format, independently of whether a working decompressor is
// registered for it (see lzoDecompress, which is a known but unsupported id).
func knownCompression(c Compression) bool {
	switch c {
	case GZip, LZMA, LZO, XZ, LZ4, ZSTD:
		return true
	}
	return false
}
