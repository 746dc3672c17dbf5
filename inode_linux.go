//go:build linux && fuse

package squashfs

import (
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FillAttr populates a FUSE attribute structure from the inode, resolving
// uid/gid through the id table.
func (i *Inode) FillAttr(attr *fuse.Attr) error {
	attr.Size = i.Size
	attr.Blocks = uint64(i.numBlocks) + 1
	attr.Mode = ModeToUnix(i.Mode())
	attr.Nlink = i.NLink
	if attr.Nlink == 0 {
		attr.Nlink = 1
	}
	attr.Blksize = i.sb.BlockSize
	attr.Atime = uint64(i.ModTime)
	attr.Mtime = uint64(i.ModTime)
	attr.Ctime = uint64(i.ModTime)

	if uid, err := i.GetUid(); err == nil {
		attr.Owner.Uid = uid
	}
	if gid, err := i.GetGid(); err == nil {
		attr.Owner.Gid = gid
	}
	switch i.Type.Basic() {
	case BlockDevType, CharDevType:
		attr.Rdev = i.Rdev
	}
	return nil
}
