package squashfs

import (
	"io/fs"
	"path"
	"strings"
)

var (
	_ fs.FS         = (*Superblock)(nil)
	_ fs.StatFS     = (*Superblock)(nil)
	_ fs.ReadDirFS  = (*Superblock)(nil)
	_ fs.SubFS      = (*Superblock)(nil)
	_ fs.GlobFS     = (*Superblock)(nil)
	_ fs.ReadFileFS = (*Superblock)(nil)
)

// maxSymlinkDepth bounds the number of symlinks resolved by FindInode
// before giving up, matching the conventional Linux limit.
const maxSymlinkDepth = 40

// nodeDirEntry implements fs.DirEntry directly over an already-decoded tree
// node, avoiding a second inode decode for entries ReadDir already holds.
type nodeDirEntry struct {
	n *node
}

func (e *nodeDirEntry) Name() string               { return e.n.name }
func (e *nodeDirEntry) IsDir() bool                 { return e.n.ino.IsDir() }
func (e *nodeDirEntry) Type() fs.FileMode           { return e.n.ino.Type.Mode() }
func (e *nodeDirEntry) Info() (fs.FileInfo, error) {
	return &fileinfo{name: e.n.name, ino: e.n.ino}, nil
}

// FindInode resolves a '/'-separated path rooted at the filesystem root to
// an Inode, optionally following a trailing symlink.
func (sb *Superblock) FindInode(name string, followSymlink bool) (*Inode, error) {
	n, err := sb.resolve(name, 0)
	if err != nil {
		return nil, err
	}
	if followSymlink && n.ino.Type.IsSymlink() {
		return sb.followSymlink(n, 0)
	}
	return n.ino, nil
}

func (sb *Superblock) resolve(name string, depth int) (*node, error) {
	clean := path.Clean("/" + name)[1:]
	cur := sb.root
	if clean == "" {
		return cur, nil
	}

	for _, part := range splitPath(clean) {
		if cur.ino.Type.IsSymlink() {
			var err error
			cur, err = sb.followSymlinkNode(cur, depth)
			if err != nil {
				return nil, err
			}
		}
		if !cur.ino.IsDir() {
			return nil, ErrNotDirectory
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, fs.ErrNotExist
		}
		cur = next
	}
	return cur, nil
}

func (sb *Superblock) followSymlinkNode(n *node, depth int) (*node, error) {
	if depth > maxSymlinkDepth {
		return nil, ErrTooManySymlinks
	}
	target, err := n.ino.Readlink()
	if err != nil {
		return nil, err
	}
	dir := "/"
	if n.parent != nil {
		dir = sb.nodePath(n.parent)
	}
	dest := string(target)
	if !strings.HasPrefix(dest, "/") {
		dest = path.Join(dir, dest)
	}
	return sb.resolve(dest, depth+1)
}

func (sb *Superblock) followSymlink(n *node, depth int) (*Inode, error) {
	resolved, err := sb.followSymlinkNode(n, depth)
	if err != nil {
		return nil, err
	}
	if resolved.ino.Type.IsSymlink() {
		return sb.followSymlink(resolved, depth+1)
	}
	return resolved.ino, nil
}

func (sb *Superblock) nodePath(n *node) string {
	if n.parent == nil {
		return "/"
	}
	return path.Join(sb.nodePath(n.parent), n.name)
}

// Open implements fs.FS.
func (sb *Superblock) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	n, err := sb.resolve(name, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return n.ino.OpenFile(name), nil
}

// Stat implements fs.StatFS, following a trailing symlink.
func (sb *Superblock) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	n, err := sb.resolve(name, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	ino := n.ino
	if ino.Type.IsSymlink() {
		ino, err = sb.followSymlink(n, 0)
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
	}
	return &fileinfo{name: path.Base(name), ino: ino}, nil
}

// Lstat behaves like Stat but does not follow a trailing symlink.
func (sb *Superblock) Lstat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrInvalid}
	}
	n, err := sb.resolve(name, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	return &fileinfo{name: path.Base(name), ino: n.ino}, nil
}

// ReadDir implements fs.ReadDirFS.
func (sb *Superblock) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	n, err := sb.resolve(name, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !n.ino.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}

	entries := make([]fs.DirEntry, 0, len(n.order))
	for _, childName := range n.order {
		entries = append(entries, &nodeDirEntry{n.children[childName]})
	}
	return entries, nil
}

// ReadFile implements fs.ReadFileFS.
func (sb *Superblock) ReadFile(name string) ([]byte, error) {
	f, err := sb.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, st.Size())
	if _, err := readFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(f fs.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		c, err := f.Read(buf[n:])
		n += c
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Glob implements fs.GlobFS using the standard library's fs.Glob. Directory
// listings come from opening each directory and reading its entries, which
// scans the on-disk directory region rather than the eagerly-built tree.
func (sb *Superblock) Glob(pattern string) ([]string, error) {
	return fs.Glob(globAdapter{sb}, pattern)
}

type globAdapter struct{ sb *Superblock }

func (g globAdapter) Open(name string) (fs.File, error) { return g.sb.Open(name) }

// Sub implements fs.SubFS, returning a filesystem rooted at dir.
func (sb *Superblock) Sub(dir string) (fs.FS, error) {
	if dir == "." {
		return sb, nil
	}
	if !fs.ValidPath(dir) {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: fs.ErrInvalid}
	}
	n, err := sb.resolve(dir, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: err}
	}
	if !n.ino.IsDir() {
		return nil, &fs.PathError{Op: "sub", Path: dir, Err: ErrNotDirectory}
	}
	return &subFS{sb: sb, root: n}, nil
}

// subFS is the fs.FS returned by Sub: every path is resolved relative to
// root instead of the image's real root.
type subFS struct {
	sb   *Superblock
	root *node
}

func (s *subFS) resolve(name string) (*node, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" {
		return s.root, nil
	}
	cur := s.root
	for _, part := range splitPath(clean) {
		if !cur.ino.IsDir() {
			return nil, ErrNotDirectory
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, fs.ErrNotExist
		}
		cur = next
	}
	return cur, nil
}

func (s *subFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	n, err := s.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return n.ino.OpenFile(name), nil
}

func (s *subFS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := s.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !n.ino.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	entries := make([]fs.DirEntry, 0, len(n.order))
	for _, childName := range n.order {
		entries = append(entries, &nodeDirEntry{n.children[childName]})
	}
	return entries, nil
}

func (s *subFS) Stat(name string) (fs.FileInfo, error) {
	n, err := s.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return &fileinfo{name: path.Base(name), ino: n.ino}, nil
}

var (
	_ fs.FS        = (*subFS)(nil)
	_ fs.ReadDirFS = (*subFS)(nil)
	_ fs.StatFS    = (*subFS)(nil)
)
