//go:build darwin && fuse

package squashfs

import (
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FillAttr populates a FUSE attribute structure from the inode. Darwin's
// fuse.Attr carries no owner field, so uid/gid resolution is skipped here.
func (i *Inode) FillAttr(attr *fuse.Attr) error {
	attr.Size = i.Size
	attr.Blocks = uint64(i.numBlocks) + 1
	attr.Mode = ModeToUnix(i.Mode())
	attr.Nlink = i.NLink
	if attr.Nlink == 0 {
		attr.Nlink = 1
	}
	attr.Atime = uint64(i.ModTime)
	attr.Mtime = uint64(i.ModTime)
	attr.Ctime = uint64(i.ModTime)
	switch i.Type.Basic() {
	case BlockDevType, CharDevType:
		attr.Rdev = i.Rdev
	}
	return nil
}
