package squashfs_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/aperturerobotics/squashfs"
)

// fixture hand-assembles a tiny, fully uncompressed SquashFS 4.0 image in
// memory: a root directory containing a regular file, a symlink to it, and
// a subdirectory with one regular file of its own. Every metadata and data
// block is marked uncompressed so the test never depends on any of the
// registered codecs, only on the decoder's table and inode layout logic.
//
//	/hello.txt   "hello squashfs\n"
//	/link.txt -> hello.txt
//	/sub/inner.txt   "inner\n"
const (
	fixtureHelloContent = "hello squashfs\n"
	fixtureInnerContent = "inner\n"
	fixtureSymTarget    = "hello.txt"
	fixtureModTime      = 1700000000
	fixtureBlockSize    = 4096
	fixtureBlockLog     = 12
)

type dirEntSpec struct {
	name   string
	typ    uint16
	offset uint32 // byte offset of the target inode within the (single) inode metadata block
}

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func le64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

// buildDirRegion encodes one directory's header+entries run (a single
// header covering every entry, which is all a SquashFS directory needs
// when it has 256 entries or fewer).
func buildDirRegion(entries []dirEntSpec) []byte {
	var buf bytes.Buffer
	buf.Write(le32(uint32(len(entries) - 1))) // count field is entries-1
	buf.Write(le32(0))                        // start_block: inode table block 0
	buf.Write(le32(0))                        // inode_number base (unused by the decoder)

	for _, e := range entries {
		buf.Write(le16(uint16(e.offset))) // offset within the inode table block
		buf.Write(le16(0))                // inode number delta (unused)
		buf.Write(le16(e.typ))
		buf.Write(le16(uint16(len(e.name) - 1)))
		buf.WriteString(e.name)
	}
	return buf.Bytes()
}

// buildFixtureImage returns the raw bytes of the synthetic image described
// above. Every inode uses uid/gid index 0, and the id table holds the single
// id 0.
func buildFixtureImage(t *testing.T) []byte {
	t.Helper()

	var inodeBuf bytes.Buffer
	writeCommon := func(typ uint16, perm uint16, ino uint32) {
		inodeBuf.Write(le16(typ))
		inodeBuf.Write(le16(perm))
		inodeBuf.Write(le16(0)) // uid index
		inodeBuf.Write(le16(0)) // gid index
		inodeBuf.Write(le32(fixtureModTime))
		inodeBuf.Write(le32(ino))
	}

	// -- data blocks (placed right after the 96-byte superblock) --
	var dataBuf bytes.Buffer
	helloDataOff := dataBuf.Len()
	dataBuf.WriteString(fixtureHelloContent)
	innerDataOff := dataBuf.Len()
	dataBuf.WriteString(fixtureInnerContent)

	const superblockSize = 96
	helloDataAbs := superblockSize + helloDataOff
	innerDataAbs := superblockSize + innerDataOff

	// -- leaf inodes (no forward dependencies) --
	helloOff := uint32(inodeBuf.Len())
	writeCommon(2, 0o644, 2) // FileType
	inodeBuf.Write(le32(uint32(helloDataAbs)))
	inodeBuf.Write(le32(0xffffffff)) // fragment block index: none
	inodeBuf.Write(le32(0))          // fragment offset
	inodeBuf.Write(le32(uint32(len(fixtureHelloContent))))
	inodeBuf.Write(le32(uint32(len(fixtureHelloContent)) | (1 << 24))) // block size list[0], uncompressed

	innerOff := uint32(inodeBuf.Len())
	writeCommon(2, 0o644, 4) // FileType
	inodeBuf.Write(le32(uint32(innerDataAbs)))
	inodeBuf.Write(le32(0xffffffff))
	inodeBuf.Write(le32(0))
	inodeBuf.Write(le32(uint32(len(fixtureInnerContent))))
	inodeBuf.Write(le32(uint32(len(fixtureInnerContent)) | (1 << 24)))

	linkOff := uint32(inodeBuf.Len())
	writeCommon(3, 0o777, 5) // SymlinkType
	inodeBuf.Write(le32(1)) // nlink
	inodeBuf.Write(le32(uint32(len(fixtureSymTarget))))
	inodeBuf.WriteString(fixtureSymTarget)

	// -- sub/ directory: built now that inner.txt's inode offset is known --
	subRegion := buildDirRegion([]dirEntSpec{{"inner.txt", 2, innerOff}})
	subDirStart := uint32(0) // single dir metadata block, so always block 0
	subDirOffset := uint32(0)
	// sub's own region sits right after root's in the dir metadata block;
	// its offset within that block is resolved once root's region size is
	// known, so the actual value is patched in below.

	subOff := uint32(inodeBuf.Len())
	writeCommon(1, 0o755, 3) // DirType
	inodeBuf.Write(le32(subDirStart))
	inodeBuf.Write(le32(2))                         // nlink
	inodeBuf.Write(le16(uint16(len(subRegion) + 3))) // size
	inodeBuf.Write(le16(uint16(subDirOffset)))       // patched below via rebuild
	inodeBuf.Write(le32(1))                          // parent inode: root

	// -- root directory --
	rootRegion := buildDirRegion([]dirEntSpec{
		{"hello.txt", 2, helloOff},
		{"link.txt", 3, linkOff},
		{"sub", 1, subOff},
	})
	// now that root's region length is known, sub's region is placed right
	// after it in the dir metadata block.
	subDirOffset = uint32(len(rootRegion))

	// patch the sub inode's dir offset field (last 4 bytes written were
	// parent_inode; the offset field is the 2 bytes before that)
	subInodeBytes := inodeBuf.Bytes()
	binary.LittleEndian.PutUint16(subInodeBytes[subOff+16+4+4+2:], uint16(subDirOffset))

	rootOff := uint32(inodeBuf.Len())
	writeCommon(1, 0o755, 1) // DirType
	inodeBuf.Write(le32(0)) // start_block
	inodeBuf.Write(le32(3)) // nlink
	inodeBuf.Write(le16(uint16(len(rootRegion) + 3)))
	inodeBuf.Write(le16(0)) // offset
	inodeBuf.Write(le32(1)) // parent inode: self

	var dirBuf bytes.Buffer
	dirBuf.Write(rootRegion)
	dirBuf.Write(subRegion)

	// -- assemble metadata blocks --
	metaBlock := func(payload []byte) []byte {
		var b bytes.Buffer
		b.Write(le16(uint16(len(payload)) | (1 << 15)))
		b.Write(payload)
		return b.Bytes()
	}

	inodeTableStart := superblockSize + dataBuf.Len()
	inodeMeta := metaBlock(inodeBuf.Bytes())

	dirTableStart := inodeTableStart + len(inodeMeta)
	dirMeta := metaBlock(dirBuf.Bytes())

	idDataOff := dirTableStart + len(dirMeta)
	idMeta := metaBlock(le32(0))

	idTableStart := idDataOff + len(idMeta)

	var img bytes.Buffer
	img.Grow(idTableStart + 8)
	sb := make([]byte, superblockSize)
	binary.LittleEndian.PutUint32(sb[0:], 0x73717368) // magic
	binary.LittleEndian.PutUint32(sb[4:], 5)           // inode count
	binary.LittleEndian.PutUint32(sb[8:], fixtureModTime)
	binary.LittleEndian.PutUint32(sb[12:], fixtureBlockSize)
	binary.LittleEndian.PutUint32(sb[16:], 0) // fragment count
	binary.LittleEndian.PutUint16(sb[20:], uint16(squashfs.GZip))
	binary.LittleEndian.PutUint16(sb[22:], fixtureBlockLog)
	binary.LittleEndian.PutUint16(sb[24:], uint16(squashfs.NO_FRAGMENTS|squashfs.NO_XATTRS))
	binary.LittleEndian.PutUint16(sb[26:], 1) // id count
	binary.LittleEndian.PutUint16(sb[28:], 4) // version major
	binary.LittleEndian.PutUint16(sb[30:], 0) // version minor
	binary.LittleEndian.PutUint64(sb[32:], uint64(rootOff))
	binary.LittleEndian.PutUint64(sb[40:], uint64(idTableStart+8))
	binary.LittleEndian.PutUint64(sb[48:], uint64(idTableStart))
	binary.LittleEndian.PutUint64(sb[56:], ^uint64(0)) // no xattr table
	binary.LittleEndian.PutUint64(sb[64:], uint64(inodeTableStart))
	binary.LittleEndian.PutUint64(sb[72:], uint64(dirTableStart))
	binary.LittleEndian.PutUint64(sb[80:], ^uint64(0)) // no fragment table
	binary.LittleEndian.PutUint64(sb[88:], ^uint64(0)) // no export table

	img.Write(sb)
	img.Write(dataBuf.Bytes())
	img.Write(inodeMeta)
	img.Write(dirMeta)
	img.Write(idMeta)
	img.Write(le64(uint64(idDataOff)))

	return img.Bytes()
}

func openFixture(t *testing.T) *squashfs.Superblock {
	t.Helper()
	sb, err := squashfs.New(bytes.NewReader(buildFixtureImage(t)))
	if err != nil {
		t.Fatalf("squashfs.New on synthetic fixture: %s", err)
	}
	return sb
}
