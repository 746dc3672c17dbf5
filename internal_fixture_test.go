package squashfs

import (
	"bytes"
	"encoding/binary"
)

// Shared little-endian encoding helpers and a minimal in-memory ReaderAt,
// used by this package's internal (white-box) tests to hand-build the small
// byte sequences each table-loading function expects, without going through
// a full Superblock.

func ile16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func ile32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func ile64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

// byteSource is a trivial io.ReaderAt over a fixed buffer, used wherever a
// test needs a Superblock.fs without going through New.
type byteSource []byte

func (b byteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, bytes.ErrTooLarge
	}
	n := copy(p, b[off:])
	return n, nil
}

// metaBlockBytes wraps payload in an uncompressed metadata block header,
// mirroring metaBlockSize framing (CHECK flag never set by these tests).
func metaBlockBytes(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(ile16(uint16(len(payload)) | metaUncompressedFlag))
	buf.Write(payload)
	return buf.Bytes()
}

// testSuperblock returns a minimal Superblock wired only well enough to
// drive readMetaBlock/metaStream-based loaders: BlockSize/Comp/Flags are
// set to valid but unused-by-these-tests defaults.
func testSuperblock(fs byteSource) *Superblock {
	return &Superblock{
		fs:        fs,
		BlockSize: 4096,
		Comp:      GZip,
	}
}
