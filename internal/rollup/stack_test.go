package rollup

import (
	"testing"

	"github.com/michaelscutari/dirscan/internal/entry"
)

func dirEntry(name string) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindDir, Flags: entry.FlagDir, Size: 4096, Blocks: 4096, Descended: true}
}

func fileEntry(name string, size int64) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindFile, Flags: entry.FlagFile, Size: size, Blocks: size}
}

func leaf(t *testing.T, s *Stack, e *entry.Entry) entry.Rollup {
	t.Helper()
	s.Enter(e)
	r, err := s.Leave()
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	return r
}

func TestStackNested(t *testing.T) {
	s := NewStack()
	s.Enter(dirEntry("root"))
	leaf(t, s, fileEntry("a", 100))
	s.Enter(dirEntry("sub"))
	leaf(t, s, fileEntry("b", 10))
	leaf(t, s, fileEntry("c", 20))

	sub, err := s.Leave()
	if err != nil {
		t.Fatalf("Leave sub: %v", err)
	}
	if sub.TotalSize != 4096+30 || sub.TotalFiles != 2 || sub.TotalDirs != 0 {
		t.Fatalf("unexpected sub rollup: %+v", sub)
	}

	root, err := s.Leave()
	if err != nil {
		t.Fatalf("Leave root: %v", err)
	}
	if root.TotalSize != 2*4096+130 {
		t.Fatalf("expected root size %d, got %d", 2*4096+130, root.TotalSize)
	}
	if root.TotalFiles != 3 || root.TotalDirs != 1 {
		t.Fatalf("unexpected root counts: %+v", root)
	}
	if s.Depth() != 0 {
		t.Fatalf("expected empty stack, got depth %d", s.Depth())
	}
}

func TestStackHardLinksCountedOnce(t *testing.T) {
	s := NewStack()
	s.Enter(dirEntry("root"))
	for _, name := range []string{"x", "y"} {
		e := fileEntry(name, 500)
		e.Flags |= entry.FlagHardLinked
		e.DevID, e.Inode, e.Nlink = 1, 42, 2
		leaf(t, s, e)
	}
	root, _ := s.Leave()

	if root.TotalSize != 4096+500 {
		t.Fatalf("expected hard link counted once, got size %d", root.TotalSize)
	}
	if root.TotalFiles != 2 {
		t.Fatalf("expected both names counted as files, got %d", root.TotalFiles)
	}
	if s.Unique() != 1 {
		t.Fatalf("expected 1 unique identity, got %d", s.Unique())
	}
}

func TestStackUnmeasuredEntries(t *testing.T) {
	s := NewStack()
	s.Enter(dirEntry("root"))

	mnt := &entry.Entry{Name: "mnt", Kind: entry.KindDir, Flags: entry.FlagDir | entry.FlagOtherFS}
	leaf(t, s, mnt)

	bad := fileEntry("bad", 0)
	bad.Fail()
	leaf(t, s, bad)

	root, _ := s.Leave()
	if root.TotalSize != 4096 {
		t.Fatalf("expected only root size, got %d", root.TotalSize)
	}
	if root.TotalDirs != 1 || root.TotalFiles != 1 {
		t.Fatalf("unexpected counts: %+v", root)
	}
	if root.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", root.Errors)
	}
}

func TestStackUnbalanced(t *testing.T) {
	s := NewStack()
	if _, err := s.Leave(); err != ErrUnbalanced {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
}
