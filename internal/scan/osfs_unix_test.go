//go:build unix

package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestOSFSScanTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), 4096)
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	writeFile(t, filepath.Join(root, "b", "c"), 10)
	require.NoError(t, os.Link(filepath.Join(root, "a"), filepath.Join(root, "a-link")))
	require.NoError(t, os.Symlink("b", filepath.Join(root, "b-link")))

	rec := &Recorder{}
	res, err := NewScanner(rec, DefaultOptions()).Run(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, entry.StatusComplete, res.Outcome.Status)
	require.Zero(t, rec.Depth())
	require.Len(t, rec.Entries, 6)

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	require.Equal(t, resolved, rec.Entries[0].Name)

	a := rec.Find("a")
	require.EqualValues(t, 4096, a.Size)
	require.True(t, a.Flags.Has(entry.FlagFile|entry.FlagHardLinked))
	require.NotZero(t, a.Inode)

	b := rec.Find("b")
	require.True(t, b.Descended)
	require.False(t, b.Flags.Has(entry.FlagHardLinked))
	require.NotNil(t, rec.Find("c"))

	link := rec.Find("b-link")
	require.Equal(t, entry.KindSymlink, link.Kind)
	require.False(t, link.Flags.Any(entry.FlagFile|entry.FlagDir), "symlinks are leaves")
	require.False(t, link.Descended)
}

func TestOSFSReadCatalog(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"z", "y", "x"} {
		writeFile(t, filepath.Join(root, n), 1)
	}

	names, err := OSFS{}.ReadCatalog(root)
	require.NoError(t, err)
	sort.Strings(names)
	require.Equal(t, []string{"x", "y", "z"}, names)

	_, err = OSFS{}.ReadCatalog(filepath.Join(root, "missing"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPartialCatalog)
}

func TestOSFSReturnDetectsReplacedDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "d")
	require.NoError(t, os.Mkdir(dir, 0o755))

	fs := OSFS{}
	st, err := fs.Lstat(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Return(dir, st.Identity()))

	require.NoError(t, os.Rename(dir, filepath.Join(root, "moved")))
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Error(t, fs.Return(dir, st.Identity()))
}

func TestOSFSRootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f")
	writeFile(t, file, 1)

	rec := &Recorder{}
	_, err := NewScanner(rec, DefaultOptions()).Run(context.Background(), file)
	require.Error(t, err)
	require.Equal(t, 1, rec.Finals)
	require.True(t, rec.Outcome.Fatal())

	_, err = NewScanner(&Recorder{}, DefaultOptions()).Run(context.Background(), filepath.Join(root, "missing"))
	require.ErrorIs(t, err, ErrResolveRoot)
}

func TestOSFSUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o755))
	writeFile(t, filepath.Join(locked, "secret"), 1)
	writeFile(t, filepath.Join(root, "sibling"), 1)
	require.NoError(t, os.Chmod(locked, 0o311))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	rec := &Recorder{}
	res, err := NewScanner(rec, DefaultOptions()).Run(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, entry.StatusPartial, res.Outcome.Status)
	require.True(t, rec.Find("locked").Flags.Has(entry.FlagError))
	require.Nil(t, rec.Find("secret"))
	require.NotNil(t, rec.Find("sibling"))
}
