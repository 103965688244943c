package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/michaelscutari/dirscan/internal/entry"
)

type memNode struct {
	st       Stat
	children []string
}

// memFS is a scripted FS used to inject devices and failures.
type memFS struct {
	nodes     map[string]*memNode
	nextInode uint64

	resolveErr error
	enterErr   map[string]error
	readErr    map[string]error
	partialErr map[string]error
	lstatErr   map[string]error
	returnErr  map[string]error

	reads int
}

func newMemFS(root string) *memFS {
	m := &memFS{
		nodes:      make(map[string]*memNode),
		enterErr:   make(map[string]error),
		readErr:    make(map[string]error),
		partialErr: make(map[string]error),
		lstatErr:   make(map[string]error),
		returnErr:  make(map[string]error),
	}
	m.nodes[root] = &memNode{st: m.stat(fs.ModeDir|0o755, 1, 2, 0, 8)}
	return m
}

func (m *memFS) stat(mode fs.FileMode, dev, nlink uint64, size, blocks int64) Stat {
	m.nextInode++
	return Stat{
		Mode:    mode,
		Dev:     dev,
		Inode:   m.nextInode,
		Nlink:   nlink,
		Size:    size,
		Blocks:  blocks,
		ModTime: time.Unix(1700000000, 0),
	}
}

func (m *memFS) add(path string, st Stat) {
	parent := m.nodes[filepath.Dir(path)]
	if parent == nil {
		panic("memfs: missing parent for " + path)
	}
	parent.children = append(parent.children, filepath.Base(path))
	m.nodes[path] = &memNode{st: st}
}

func (m *memFS) dir(path string, dev uint64) {
	m.add(path, m.stat(fs.ModeDir|0o755, dev, 2, 4096, 8))
}

func (m *memFS) file(path string, size, blocks int64, nlink uint64) {
	m.add(path, m.stat(0o644, 1, nlink, size, blocks))
}

func (m *memFS) Resolve(path string) (string, error) {
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return filepath.Clean(path), nil
}

func (m *memFS) Enter(dir string) error {
	if err := m.enterErr[dir]; err != nil {
		return err
	}
	n, ok := m.nodes[dir]
	if !ok || !n.st.Mode.IsDir() {
		return fmt.Errorf("enter %s: not a directory", dir)
	}
	return nil
}

func (m *memFS) Return(dir string, id entry.Identity) error {
	if err := m.returnErr[dir]; err != nil {
		return err
	}
	n, ok := m.nodes[dir]
	if !ok || n.st.Identity() != id {
		return fmt.Errorf("return %s: identity mismatch", dir)
	}
	return nil
}

func (m *memFS) ReadCatalog(dir string) ([]string, error) {
	m.reads++
	if err := m.readErr[dir]; err != nil {
		return nil, err
	}
	n, ok := m.nodes[dir]
	if !ok {
		return nil, fs.ErrNotExist
	}
	names := append([]string(nil), n.children...)
	if err := m.partialErr[dir]; err != nil {
		return names[:len(names)/2], fmt.Errorf("%w: %w", ErrPartialCatalog, err)
	}
	return names, nil
}

func (m *memFS) Lstat(path string) (Stat, error) {
	if err := m.lstatErr[path]; err != nil {
		return Stat{}, err
	}
	n, ok := m.nodes[path]
	if !ok {
		return Stat{}, fs.ErrNotExist
	}
	return n.st, nil
}
