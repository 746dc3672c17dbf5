package squashfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// magic is the little-endian SquashFS 4 signature, "hsqs" read as a u32.
const magic = 0x73717368

// superblockSize is the fixed on-disk size of the superblock, in bytes.
const superblockSize = 96

// invalidBlkRef marks an absent table (xattr id table start when no image
// xattrs exist).
const invalidBlkRef = 0xFFFFFFFFFFFFFFFF

// Superblock is the decoded SquashFS 4.0 superblock together with all the
// open-time state built from it: the metadata-block caches, id table,
// fragment table, xattr table and the eagerly-built directory tree.
//
// https://dr-emann.github.io/squashfs/
type Superblock struct {
	fs         io.ReaderAt
	closeSrc   closer
	baseOffset int64
	inoOfft    uint64

	Magic             uint32
	InodeCnt          uint32
	ModTime           int32
	BlockSize         uint32
	FragCount         uint32
	Comp              Compression
	BlockLog          uint16
	Flags             Flags
	IdCount           uint16
	VMajor            uint16
	VMinor            uint16
	RootInode         uint64
	BytesUsed         uint64
	IdTableStart      uint64
	XattrIdTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	LookupTableStart  uint64

	inodeStream *metaStream
	dirStream   *metaStream

	ids    []uint32
	frags  []fragmentEntry
	xattrs *xattrTable

	dataCache *dataBlockCache

	root     *node
	rootInoN uint64

	inoIdxL sync.RWMutex
	inoIdx  map[uint32]inodeRef
}

// New parses a SquashFS 4.0 image from r and builds the full directory tree.
// The returned Superblock does not own r, so Close does nothing for it (it
// is always safe to simply stop using the Superblock).
func New(r io.ReaderAt, opts ...Option) (*Superblock, error) {
	sb := &Superblock{
		inoIdx: make(map[uint32]inodeRef),
	}

	for _, opt := range opts {
		if err := opt(sb); err != nil {
			return nil, err
		}
	}

	if sb.baseOffset != 0 {
		r = &offsetReaderAt{r: r, base: sb.baseOffset}
	}
	sb.fs = r

	head := make([]byte, superblockSize)
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedImage, err)
	}
	if err := sb.unmarshal(head); err != nil {
		return nil, err
	}
	if err := sb.validate(); err != nil {
		return nil, err
	}

	sb.inodeStream = newMetaStream(sb)
	sb.dirStream = newMetaStream(sb)
	sb.dataCache = newDataBlockCache(256)

	var err error
	sb.ids, err = loadIDTable(sb)
	if err != nil {
		return nil, fmt.Errorf("squashfs: id table: %w", err)
	}
	sb.frags, err = loadFragmentTable(sb)
	if err != nil {
		return nil, fmt.Errorf("squashfs: fragment table: %w", err)
	}
	sb.xattrs, err = loadXattrTable(sb)
	if err != nil {
		return nil, fmt.Errorf("squashfs: xattr table: %w", err)
	}

	root, err := sb.GetInodeRef(inodeRef(sb.RootInode))
	if err != nil {
		return nil, fmt.Errorf("squashfs: root inode: %w", err)
	}
	sb.rootInoN = uint64(root.Ino)

	sb.root, err = buildTree(sb, root)
	if err != nil {
		return nil, fmt.Errorf("squashfs: building directory tree: %w", err)
	}

	return sb, nil
}

// Close releases the underlying byte source, if Open was used to obtain it.
// Nodes and inodes returned before Close remain valid to inspect (their
// decoded fields stay in memory) but any method that reads file content
// will fail once the source is closed.
func (sb *Superblock) Close() error {
	if sb.closeSrc != nil {
		return sb.closeSrc.Close()
	}
	return nil
}

func (sb *Superblock) unmarshal(data []byte) error {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{'h', 's', 'q', 's'}) {
		return ErrInvalidFile
	}

	r := bytes.NewReader(data)
	fields := []interface{}{
		&sb.Magic, &sb.InodeCnt, &sb.ModTime, &sb.BlockSize, &sb.FragCount,
		&sb.Comp, &sb.BlockLog, &sb.Flags, &sb.IdCount, &sb.VMajor, &sb.VMinor,
		&sb.RootInode, &sb.BytesUsed, &sb.IdTableStart, &sb.XattrIdTableStart,
		&sb.InodeTableStart, &sb.DirTableStart, &sb.FragTableStart, &sb.LookupTableStart,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSuper, err)
		}
	}
	return nil
}

func (sb *Superblock) validate() error {
	if sb.Magic != magic {
		return ErrInvalidFile
	}
	if sb.VMajor != 4 || sb.VMinor != 0 {
		return ErrInvalidVersion
	}
	if sb.BlockSize == 0 || sb.BlockSize&(sb.BlockSize-1) != 0 {
		return fmt.Errorf("%w: block size %d is not a power of two", ErrInvalidSuper, sb.BlockSize)
	}
	if uint32(1)<<sb.BlockLog != sb.BlockSize {
		return fmt.Errorf("%w: block_log %d does not match block size %d", ErrInvalidSuper, sb.BlockLog, sb.BlockSize)
	}
	if !knownCompression(sb.Comp) {
		return fmt.Errorf("%w: compression id %d", ErrUnknownCompression, sb.Comp)
	}
	return nil
}
