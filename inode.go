package squashfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync/atomic"
)

// Inode is a decoded SquashFS inode: the fields actually populated depend
// on Type, mirroring the fourteen on-disk inode types (seven basic types and
// their extended forms; spec component 4.J).
type Inode struct {
	// refcnt is first to get guaranteed 64-bit alignment for atomic use by
	// the optional FUSE export surface.
	refcnt uint64

	sb *Superblock

	Type    Type
	Perm    uint16
	UidIdx  uint16
	GidIdx  uint16
	ModTime int32
	Ino     uint32

	// directory (DirType, XDirType)
	StartBlock uint64
	Offset     uint32
	ParentIno  uint32
	Size       uint64
	IdxCount   uint16

	NLink uint32

	// regular file (FileType, XFileType)
	FragBlock uint32
	FragOfft  uint32
	Sparse    uint64
	numBlocks int
	fragBytes int
	blockCur  streamCursor

	// symlink (SymlinkType, XSymlinkType)
	SymTarget []byte

	// device (Block/CharDevType and extended forms)
	Rdev uint32

	// XattrIdx is invalidFragment (0xFFFFFFFF) when the inode carries no xattrs.
	XattrIdx uint32
}

// variantBodySize documents the fixed-size portion of each of the fourteen
// inode types, after the 16-byte common header and before any
// variable-length tail (block list, symlink target, directory index), and
// doubles as the authoritative list of types GetInodeRef understands.
var variantBodySize = map[Type]int{
	DirType:       16,
	FileType:      16,
	SymlinkType:   8,
	BlockDevType:  8,
	CharDevType:   8,
	FifoType:      4,
	SocketType:    4,
	XDirType:      24,
	XFileType:     40,
	XSymlinkType:  8,
	XBlockDevType: 12,
	XCharDevType:  12,
	XFifoType:     8,
	XSocketType:   8,
}

func (sb *Superblock) newInodeReader(ref inodeRef) *metaReader {
	return sb.inodeStream.reader(int64(sb.InodeTableStart)+int64(ref.Index()), int(ref.Offset()))
}

// readFields reads a sequence of fixed-width little-endian fields in order,
// stopping at the first error.
func readFields(r io.Reader, fields ...interface{}) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncatedImage, err)
		}
	}
	return nil
}

func ceilDivU64(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// GetInodeRef decodes the inode located by ref.
func (sb *Superblock) GetInodeRef(ref inodeRef) (*Inode, error) {
	r := sb.newInodeReader(ref)
	ino := &Inode{sb: sb, XattrIdx: invalidFragment}

	var typ uint16
	if err := readFields(r, &typ, &ino.Perm, &ino.UidIdx, &ino.GidIdx, &ino.ModTime, &ino.Ino); err != nil {
		return nil, fmt.Errorf("inode header: %w", err)
	}
	ino.Type = Type(typ)

	if _, ok := variantBodySize[ino.Type]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInodeType, typ)
	}

	switch ino.Type {
	case DirType:
		var startBlock uint32
		var size, offset uint16
		if err := readFields(r, &startBlock, &ino.NLink, &size, &offset, &ino.ParentIno); err != nil {
			return nil, fmt.Errorf("directory inode: %w", err)
		}
		ino.StartBlock = uint64(startBlock)
		ino.Size = uint64(size)
		ino.Offset = uint32(offset)

	case XDirType:
		var size, startBlock uint32
		var offset uint16
		if err := readFields(r, &ino.NLink, &size, &startBlock, &ino.ParentIno, &ino.IdxCount, &offset, &ino.XattrIdx); err != nil {
			return nil, fmt.Errorf("extended directory inode: %w", err)
		}
		ino.Size = uint64(size)
		ino.StartBlock = uint64(startBlock)
		ino.Offset = uint32(offset)
		// The directory index that follows (IdxCount entries) only
		// accelerates large-directory lookups; the directory reader
		// re-derives the same information by scanning, so it is
		// intentionally not parsed here.

	case FileType:
		var startBlock, size uint32
		if err := readFields(r, &startBlock, &ino.FragBlock, &ino.FragOfft, &size); err != nil {
			return nil, fmt.Errorf("file inode: %w", err)
		}
		ino.StartBlock = uint64(startBlock)
		ino.Size = uint64(size)
		ino.setBlockGeometry(r)

	case XFileType:
		if err := readFields(r, &ino.StartBlock, &ino.Size, &ino.Sparse, &ino.NLink, &ino.FragBlock, &ino.FragOfft, &ino.XattrIdx); err != nil {
			return nil, fmt.Errorf("extended file inode: %w", err)
		}
		ino.setBlockGeometry(r)

	case SymlinkType, XSymlinkType:
		if err := binary.Read(r, binary.LittleEndian, &ino.NLink); err != nil {
			return nil, fmt.Errorf("%w: symlink inode: %v", ErrTruncatedImage, err)
		}
		var targetLen uint32
		if err := binary.Read(r, binary.LittleEndian, &targetLen); err != nil {
			return nil, fmt.Errorf("%w: symlink inode: %v", ErrTruncatedImage, err)
		}
		if targetLen > 4096 {
			return nil, fmt.Errorf("%w: symlink target too long (%d)", ErrInvalidSuper, targetLen)
		}
		ino.Size = uint64(targetLen)
		buf := make([]byte, targetLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: symlink target: %v", ErrTruncatedImage, err)
		}
		ino.SymTarget = buf
		if ino.Type == XSymlinkType {
			if err := binary.Read(r, binary.LittleEndian, &ino.XattrIdx); err != nil {
				return nil, fmt.Errorf("%w: extended symlink inode: %v", ErrTruncatedImage, err)
			}
		}

	case BlockDevType, CharDevType:
		if err := readFields(r, &ino.NLink, &ino.Rdev); err != nil {
			return nil, fmt.Errorf("device inode: %w", err)
		}

	case XBlockDevType, XCharDevType:
		if err := readFields(r, &ino.NLink, &ino.Rdev, &ino.XattrIdx); err != nil {
			return nil, fmt.Errorf("extended device inode: %w", err)
		}

	case FifoType, SocketType:
		if err := binary.Read(r, binary.LittleEndian, &ino.NLink); err != nil {
			return nil, fmt.Errorf("%w: fifo/socket inode: %v", ErrTruncatedImage, err)
		}

	case XFifoType, XSocketType:
		if err := readFields(r, &ino.NLink, &ino.XattrIdx); err != nil {
			return nil, fmt.Errorf("extended fifo/socket inode: %w", err)
		}
	}

	return ino, nil
}

// setBlockGeometry derives the number of full data blocks and the length of
// any fragment tail from the already-decoded size and fragment reference,
// then records the current stream cursor as the position of the inline
// block list. The list itself (numBlocks * 4 bytes) is read lazily, on each
// content read (ReadAt), through a fresh reader over the same cached
// metadata blocks — see readBlockSizes.
func (i *Inode) setBlockGeometry(r *metaReader) {
	blockSize := uint64(i.sb.BlockSize)
	if i.FragBlock == invalidFragment {
		i.numBlocks = int(ceilDivU64(i.Size, blockSize))
		i.fragBytes = 0
	} else {
		i.numBlocks = int(i.Size / blockSize)
		i.fragBytes = int(i.Size % blockSize)
	}
	i.blockCur = r.Cursor()
}

// readBlockSizes streams the inode's inline block-size list (one packed
// uint32 per full block) starting from the cursor recorded at decode time.
func (i *Inode) readBlockSizes() ([]uint32, error) {
	if i.numBlocks == 0 {
		return nil, nil
	}
	r := i.sb.inodeStream.reader(i.blockCur.block, i.blockCur.offset)
	sizes := make([]uint32, i.numBlocks)
	for n := range sizes {
		if err := binary.Read(r, binary.LittleEndian, &sizes[n]); err != nil {
			return nil, fmt.Errorf("%w: block size list: %v", ErrTruncatedImage, err)
		}
	}
	return sizes, nil
}

// GetInode resolves an inode by its on-disk inode number, using the index
// populated as directories are walked and as lookups occur.
func (sb *Superblock) GetInode(ino uint64) (*Inode, error) {
	if ino == sb.rootInoN {
		return sb.GetInodeRef(inodeRef(sb.RootInode))
	}

	sb.inoIdxL.RLock()
	ref, ok := sb.inoIdx[uint32(ino)]
	sb.inoIdxL.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: inode %d: %w", ErrInodeNotExported, ino, fs.ErrNotExist)
	}
	return sb.GetInodeRef(ref)
}

func (sb *Superblock) cacheInodeRef(ino uint32, ref inodeRef) {
	sb.inoIdxL.Lock()
	sb.inoIdx[ino] = ref
	sb.inoIdxL.Unlock()
}

// Mode returns the fs.FileMode for this inode, combining its type and
// stored permission bits.
func (i *Inode) Mode() fs.FileMode {
	return UnixToMode(uint32(i.Perm)) | i.Type.Mode()
}

// IsDir reports whether the inode is a (possibly extended) directory.
func (i *Inode) IsDir() bool {
	return i.Type.IsDir()
}

// Readlink returns the symlink target for a symlink inode.
func (i *Inode) Readlink() ([]byte, error) {
	if !i.Type.IsSymlink() {
		return nil, fs.ErrInvalid
	}
	return i.SymTarget, nil
}

// GetUid resolves the inode's uid index through the id table.
func (i *Inode) GetUid() (uint32, error) {
	return i.sb.lookupID(i.UidIdx)
}

// GetGid resolves the inode's gid index through the id table.
func (i *Inode) GetGid() (uint32, error) {
	return i.sb.lookupID(i.GidIdx)
}

// AddRef and DelRef maintain a reference count used only by the optional
// FUSE export surface; the core reader never consults it.
func (i *Inode) AddRef(count uint64) uint64 {
	return atomic.AddUint64(&i.refcnt, count)
}

func (i *Inode) DelRef(count uint64) uint64 {
	return atomic.AddUint64(&i.refcnt, ^(count - 1))
}

// LookupRelativeInode looks up a single path component inside a directory
// inode by scanning its directory region. fs.FS operations use the eagerly
// built tree (tree.go) instead, since it avoids re-scanning the same
// directory region on every lookup; this is the primitive the FUSE export
// surface and LookupRelativeInodePath build on.
func (i *Inode) LookupRelativeInode(name string) (*Inode, error) {
	if !i.IsDir() {
		return nil, ErrNotDirectory
	}

	dr, err := i.sb.dirReader(i)
	if err != nil {
		return nil, err
	}
	for {
		ent, err := dr.next()
		if err != nil {
			if err == io.EOF {
				return nil, fs.ErrNotExist
			}
			return nil, err
		}
		if ent.name == name {
			found, err := i.sb.GetInodeRef(ent.ref)
			if err != nil {
				return nil, err
			}
			i.sb.cacheInodeRef(found.Ino, ent.ref)
			return found, nil
		}
	}
}

// LookupRelativeInodePath resolves a '/'-separated relative path starting
// at i, without following symlinks.
func (i *Inode) LookupRelativeInodePath(name string) (*Inode, error) {
	cur := i
	for len(name) > 0 {
		pos := strings.IndexByte(name, '/')
		if pos == 0 {
			name = name[1:]
			continue
		}
		if pos == -1 {
			return cur.LookupRelativeInode(name)
		}
		next, err := cur.LookupRelativeInode(name[:pos])
		if err != nil {
			return nil, err
		}
		cur = next
		name = name[pos+1:]
	}
	return cur, nil
}
