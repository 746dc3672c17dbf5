//go:build fuse

package squashfs

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Lookup resolves name inside directory inode i for the optional FUSE
// export surface, returning a public (cross-image-stable) inode number.
func (i *Inode) Lookup(ctx context.Context, name string) (uint64, error) {
	res, err := i.LookupRelativeInode(name)
	if err != nil {
		return 0, err
	}
	return res.publicInodeNum(), nil
}

// Open always succeeds: the image is read-only, so FUSE is told it can
// cache file contents across opens.
func (i *Inode) Open(flags uint32) (uint32, error) {
	return fuse.FOPEN_KEEP_CACHE, nil
}

func (i *Inode) OpenDir() (uint32, error) {
	if i.IsDir() {
		return fuse.FOPEN_KEEP_CACHE, nil
	}
	return 0, os.ErrInvalid
}

// publicInodeNum returns an inode number suitable for mounts combining
// multiple squashfs images: the root is required to be inode 1 by FUSE, so
// the image's real root inode and whatever inode happens to be numbered 1
// are swapped, then InodeOffset is applied.
func (i *Inode) publicInodeNum() uint64 {
	switch {
	case i.Ino == uint32(i.sb.rootInoN):
		return 1 + i.sb.inoOfft
	case i.Ino == 1:
		return i.sb.rootInoN + i.sb.inoOfft
	default:
		return uint64(i.Ino) + i.sb.inoOfft
	}
}

func (i *Inode) fillEntry(entry *fuse.EntryOut) {
	entry.NodeId = i.publicInodeNum()
	entry.Attr.Ino = entry.NodeId
	i.FillAttr(&entry.Attr)
	entry.SetEntryTimeout(time.Second)
	entry.SetAttrTimeout(time.Second)
}

// ReadDir streams directory entries, including synthetic "." and ".."
// entries, into a FUSE response buffer.
func (i *Inode) ReadDir(input *fuse.ReadIn, out *fuse.DirEntryList, plus bool) error {
	if !i.IsDir() {
		return os.ErrInvalid
	}

	pos := input.Offset + 1
	dr, err := i.sb.dirReader(i)
	if err != nil {
		return err
	}

	var ent dirEnt
	cur := uint64(0)
	for {
		cur++
		if cur > 2 {
			ent, err = dr.next()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
		if cur < pos {
			continue
		}

		switch cur {
		case 1:
			if !addDirEntry(out, plus, i, ".", i.publicInodeNum(), uint32(i.Perm)) {
				return nil
			}
		case 2:
			// TODO: return attributes for the actual parent, not self.
			if !addDirEntry(out, plus, i, "..", i.publicInodeNum(), uint32(i.Perm)) {
				return nil
			}
		default:
			ino, err := i.sb.GetInodeRef(ent.ref)
			if err != nil {
				return err
			}
			i.sb.cacheInodeRef(ino.Ino, ent.ref)
			if !addDirEntry(out, plus, ino, ent.name, ino.publicInodeNum(), uint32(ino.Perm)) {
				return nil
			}
		}
	}
}

func addDirEntry(out *fuse.DirEntryList, plus bool, ino *Inode, name string, publicIno uint64, mode uint32) bool {
	if !plus {
		return out.Add(0, name, publicIno, mode)
	}
	entry := out.AddDirLookupEntry(fuse.DirEntry{Mode: mode, Name: name, Ino: publicIno})
	if entry == nil {
		return false
	}
	ino.fillEntry(entry)
	return true
}
