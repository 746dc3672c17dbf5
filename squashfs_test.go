package squashfs_test

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/aperturerobotics/squashfs"
)

func TestSquashfs(t *testing.T) {
	sqfs := openFixture(t)

	data, err := fs.ReadFile(sqfs, "hello.txt")
	if err != nil {
		t.Errorf("failed to read hello.txt: %s", err)
	} else if string(data) != fixtureHelloContent {
		t.Errorf("bad content for hello.txt: %q", data)
	}

	// ensure we get the right inode
	ino, err := sqfs.FindInode("hello.txt", false)
	if err != nil {
		t.Errorf("failed to find hello.txt: %s", err)
	} else if ino.Ino != 2 {
		t.Errorf("invalid inode found for hello.txt: %d", ino.Ino)
	}

	// test glob (exercises readdir through Open on the root directory)
	res, err := fs.Glob(sqfs, "*.txt")
	if err != nil {
		t.Errorf("failed to glob *.txt: %s", err)
	} else if len(res) != 2 || res[0] != "hello.txt" || res[1] != "link.txt" {
		t.Errorf("bad response for glob *.txt: %v", res)
	}

	st, err := fs.Stat(sqfs, "hello.txt")
	if err != nil {
		t.Errorf("failed to stat hello.txt: %s", err)
	} else if st.Size() != int64(len(fixtureHelloContent)) {
		t.Errorf("bad file size on stat hello.txt: %d", st.Size())
	}

	// test stat vs lstat across a symlink
	st, err = fs.Stat(sqfs, "link.txt")
	if err != nil {
		t.Errorf("failed to stat link.txt: %s", err)
	} else if st.IsDir() {
		t.Errorf("stat(link.txt) should follow the link to a regular file")
	} else if st.Size() != int64(len(fixtureHelloContent)) {
		t.Errorf("stat(link.txt) size should match the link target, got %d", st.Size())
	}

	st, err = sqfs.Lstat("link.txt")
	if err != nil {
		t.Errorf("failed to lstat link.txt: %s", err)
	} else if st.Mode()&fs.ModeSymlink == 0 {
		t.Errorf("lstat(link.txt) should report a symlink, got mode %s", st.Mode())
	}

	// test error
	_, err = fs.ReadFile(sqfs, "hello.txt/foo")
	if !errors.Is(err, squashfs.ErrNotDirectory) {
		t.Errorf("readfile hello.txt/foo returned unexpected err=%s", err)
	}

	_, err = fs.Stat(sqfs, "does/not/exist")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("stat of a missing path returned unexpected err=%s", err)
	}
}

func TestSubdirectory(t *testing.T) {
	sqfs := openFixture(t)

	data, err := fs.ReadFile(sqfs, "sub/inner.txt")
	if err != nil {
		t.Fatalf("failed to read sub/inner.txt: %s", err)
	}
	if string(data) != fixtureInnerContent {
		t.Errorf("bad content for sub/inner.txt: %q", data)
	}

	entries, err := fs.ReadDir(sqfs, "sub")
	if err != nil {
		t.Fatalf("failed to readdir sub: %s", err)
	}
	if len(entries) != 1 || entries[0].Name() != "inner.txt" {
		t.Errorf("unexpected entries in sub: %v", entries)
	}

	sub, err := sqfs.Sub("sub")
	if err != nil {
		t.Fatalf("failed to Sub(sub): %s", err)
	}
	data, err = fs.ReadFile(sub, "inner.txt")
	if err != nil {
		t.Fatalf("failed to read inner.txt through Sub: %s", err)
	}
	if string(data) != fixtureInnerContent {
		t.Errorf("bad content for inner.txt through Sub: %q", data)
	}
}

func TestRootReadDir(t *testing.T) {
	sqfs := openFixture(t)

	entries, err := fs.ReadDir(sqfs, ".")
	if err != nil {
		t.Fatalf("failed to readdir root: %s", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"hello.txt", "link.txt", "sub"}
	if len(names) != len(want) {
		t.Fatalf("unexpected root entries: %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("root entries not sorted as expected: got %v, want %v", names, want)
			break
		}
	}
}
