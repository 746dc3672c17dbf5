package squashfs

import (
	"fmt"
	"io"
	"io/fs"
)

// node is one entry of the eagerly-built in-memory directory tree: fs.FS
// operations walk this structure instead of re-scanning directory regions
// on every path lookup, trading a single up-front pass (at New time) for
// O(1) component lookups afterwards.
type node struct {
	name     string
	ino      *Inode
	parent   *node
	children map[string]*node
	order    []string // child names in on-disk directory order
}

// buildTree recursively decodes every directory reachable from root and
// assembles them into a node tree, registering each visited inode's
// (ino number -> ref) mapping as it goes so GetInode and the FUSE export
// surface can resolve arbitrary inode numbers afterwards.
func buildTree(sb *Superblock, root *Inode) (*node, error) {
	n := &node{name: "", ino: root}
	if root.IsDir() {
		if err := populateDir(sb, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func populateDir(sb *Superblock, n *node) error {
	dr, err := sb.dirReader(n.ino)
	if err != nil {
		return err
	}

	n.children = make(map[string]*node)
	for {
		ent, err := dr.next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		ino, err := sb.GetInodeRef(ent.ref)
		if err != nil {
			return fmt.Errorf("squashfs: decoding %q: %w", ent.name, err)
		}
		sb.cacheInodeRef(ino.Ino, ent.ref)

		child := &node{name: ent.name, ino: ino, parent: n}
		if ino.IsDir() {
			if err := populateDir(sb, child); err != nil {
				return err
			}
		}

		n.children[ent.name] = child
		n.order = append(n.order, ent.name)
	}

	return nil
}

// lookup walks a '/'-separated path (already cleaned, no leading slash)
// from n, returning fs.ErrNotExist if any component is missing and
// ErrNotDirectory if the path descends through a non-directory.
func (n *node) lookup(name string) (*node, error) {
	cur := n
	if name == "." || name == "" {
		return cur, nil
	}
	for _, part := range splitPath(name) {
		if cur.children == nil {
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

func splitPath(name string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '/' {
			if i > start {
				parts = append(parts, name[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
