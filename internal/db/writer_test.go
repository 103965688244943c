package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/michaelscutari/dirscan/internal/entry"
)

func newTestWriter(t *testing.T, batch int) (*Writer, func(string) int64) {
	t.Helper()
	database := openTestDB(t)
	w, err := NewWriter(database, batch, nil)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	if err := w.Begin("scan-1", "/r", time.Now()); err != nil {
		t.Fatalf("begin: %v", err)
	}

	count := func(query string) int64 {
		t.Helper()
		var n int64
		if err := database.QueryRow(query).Scan(&n); err != nil {
			t.Fatalf("%s: %v", query, err)
		}
		return n
	}
	return w, count
}

func dirAt(name string) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindDir, Flags: entry.FlagDir, Size: 4096, Blocks: 4096, Descended: true}
}

func fileAt(name string, size int64) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindFile, Flags: entry.FlagFile, Size: size, Blocks: size, Nlink: 1}
}

func mustLeaf(t *testing.T, w *Writer, e *entry.Entry) {
	t.Helper()
	if err := w.Enter(e); err != nil {
		t.Fatalf("enter %s: %v", e.Name, err)
	}
	if err := w.Leave(); err != nil {
		t.Fatalf("leave %s: %v", e.Name, err)
	}
}

func mustEnter(t *testing.T, w *Writer, e *entry.Entry) {
	t.Helper()
	if err := w.Enter(e); err != nil {
		t.Fatalf("enter %s: %v", e.Name, err)
	}
}

func mustLeave(t *testing.T, w *Writer) {
	t.Helper()
	if err := w.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
}

func TestWriterStoresTreeAndRollups(t *testing.T) {
	// Small batches force several flushes mid-scan.
	w, count := newTestWriter(t, 2)

	mustEnter(t, w, dirAt("/r"))
	mustLeaf(t, w, fileAt("a", 100))
	mustEnter(t, w, dirAt("sub"))
	mustLeaf(t, w, fileAt("b", 10))
	x := fileAt("x", 1000)
	x.Flags |= entry.FlagHardLinked
	x.DevID, x.Inode, x.Nlink = 1, 7, 2
	mustLeaf(t, w, x)
	mustLeave(t, w)
	y := *x
	y.Name = "y"
	mustLeaf(t, w, &y)
	mustLeaf(t, w, &entry.Entry{Name: "mnt", Kind: entry.KindDir, Flags: entry.FlagDir | entry.FlagOtherFS})
	mustLeave(t, w)

	action, err := w.Finalize(entry.Outcome{Root: "/r", Status: entry.StatusComplete})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if action != entry.ActionContinue {
		t.Fatalf("expected continue, got %v", action)
	}

	if n := count(`SELECT COUNT(*) FROM dirs`); n != 2 {
		t.Fatalf("expected 2 walked dirs, got %d", n)
	}
	if n := count(`SELECT COUNT(*) FROM entries`); n != 5 {
		t.Fatalf("expected 5 leaf entries, got %d", n)
	}
	if n := count(`SELECT parent_id FROM entries WHERE name = 'b'`); n != 2 {
		t.Fatalf("expected b under dir 2, got %d", n)
	}

	root, err := GetRollup(w.db, "/r")
	if err != nil || root == nil {
		t.Fatalf("root rollup: %+v, %v", root, err)
	}
	if want := int64(2*4096 + 100 + 10 + 1000); root.TotalSize != want {
		t.Fatalf("expected root size %d, got %d", want, root.TotalSize)
	}
	if root.TotalFiles != 4 || root.TotalDirs != 2 {
		t.Fatalf("unexpected root counts: %+v", root)
	}

	sub, err := GetRollup(w.db, "/r/sub")
	if err != nil || sub == nil {
		t.Fatalf("sub rollup: %+v, %v", sub, err)
	}
	if sub.TotalSize != 4096+10+1000 {
		t.Fatalf("unexpected sub size %d", sub.TotalSize)
	}

	meta, err := GetScanMeta(w.db)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.ScanID != "scan-1" || meta.Status != entry.StatusComplete || meta.TotalSize != root.TotalSize {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.FileCount != 4 || meta.DirCount != 3 {
		t.Fatalf("unexpected meta counts: files=%d dirs=%d", meta.FileCount, meta.DirCount)
	}
}

func TestWriterSamplesErrors(t *testing.T) {
	w, count := newTestWriter(t, 0)

	mustEnter(t, w, dirAt("/r"))
	for i := 0; i < maxErrorsSampled+5; i++ {
		w.Report(fmt.Sprintf("/r/f%d", i), errors.New("permission denied"))
	}
	mustLeave(t, w)

	if _, err := w.Finalize(entry.Outcome{Root: "/r", Status: entry.StatusPartial, Errors: maxErrorsSampled + 5}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if n := count(`SELECT COUNT(*) FROM scan_errors`); n != maxErrorsSampled {
		t.Fatalf("expected %d sampled errors, got %d", maxErrorsSampled, n)
	}
	if w.ErrorCount() != maxErrorsSampled+5 {
		t.Fatalf("expected all errors counted, got %d", w.ErrorCount())
	}

	errs, err := ListErrors(w.db, 2)
	if err != nil {
		t.Fatalf("list errors: %v", err)
	}
	if len(errs) != 2 || errs[0].Path != "/r/f0" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestWriterAbortedScanKeepsPartialTree(t *testing.T) {
	w, count := newTestWriter(t, 0)

	mustEnter(t, w, dirAt("/r"))
	mustEnter(t, w, dirAt("deep"))
	mustLeaf(t, w, fileAt("f", 5))

	action, err := w.Finalize(entry.Outcome{Root: "/r", Status: entry.StatusAborted, Err: errors.New("too many errors")})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if action != entry.ActionTerminate {
		t.Fatalf("expected terminate, got %v", action)
	}
	if n := count(`SELECT COUNT(*) FROM rollups`); n != 2 {
		t.Fatalf("expected rollups for open dirs, got %d", n)
	}

	meta, err := GetScanMeta(w.db)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Status != entry.StatusAborted || meta.FatalError != "too many errors" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	if _, err := w.Finalize(entry.Outcome{}); err == nil {
		t.Fatalf("expected second finalize to fail")
	}
}

func TestWriterUnbalancedLeave(t *testing.T) {
	w, _ := newTestWriter(t, 0)
	if err := w.Leave(); err == nil {
		t.Fatalf("expected error for leave without enter")
	}
	if err := w.Enter(fileAt("orphan", 1)); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}
