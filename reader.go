package squashfs

import (
	"io"
	"os"
)

// offsetReaderAt rebases an io.ReaderAt so absolute offset 0 in the
// SquashFS image lands at byte base of the underlying source. This is the
// whole of component A's "base offset" support: every other component only
// ever sees image-relative offsets.
type offsetReaderAt struct {
	r    io.ReaderAt
	base int64
}

func (o *offsetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return o.r.ReadAt(p, off+o.base)
}

// closer wraps an io.ReaderAt that also wants to be closed (typically an
// *os.File opened by Open) so Superblock.Close can release it.
type closer interface {
	Close() error
}

// Open opens the SquashFS image stored in the named file and parses its
// superblock. The returned Superblock owns the file and must be closed by
// the caller.
func Open(name string, opts ...Option) (*Superblock, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	sb, err := New(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	sb.closeSrc = f
	return sb, nil
}
