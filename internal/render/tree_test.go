package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/stretchr/testify/require"
)

type event struct {
	e     *entry.Entry
	leave bool
}

func dir(name string, blocks int64) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindDir, Flags: entry.FlagDir, Size: blocks, Blocks: blocks, Descended: true}
}

func file(name string, size, blocks int64) *entry.Entry {
	return &entry.Entry{Name: name, Kind: entry.KindFile, Flags: entry.FlagFile, Size: size, Blocks: blocks, Nlink: 1}
}

// feed drives t with a nested description: leaves are closed immediately,
// directories are closed by an explicit leave event.
func feed(t *testing.T, tree *Tree, events []event) {
	t.Helper()
	for _, ev := range events {
		if ev.leave {
			require.NoError(t, tree.Leave())
			continue
		}
		require.NoError(t, tree.Enter(ev.e))
		if !ev.e.Descended {
			require.NoError(t, tree.Leave())
		}
	}
}

func open(e *entry.Entry) event { return event{e: e} }
func closeDir() event           { return event{leave: true} }

func sampleEvents() []event {
	link := &entry.Entry{Name: "ln", Kind: entry.KindSymlink, Size: 3, Blocks: 0}
	bad := &entry.Entry{Name: "locked", Kind: entry.KindDir, Flags: entry.FlagDir}
	bad.Fail()
	return []event{
		open(dir("/r", 4096)),
		open(file("small", 10, 4096)),
		open(dir("big", 4096)),
		open(file("blob", 100000, 102400)),
		closeDir(),
		open(link),
		open(bad),
		closeDir(),
	}
}

func TestTreeOrdersBySize(t *testing.T) {
	tree := NewTree(Options{MaxDepth: -1})
	feed(t, tree, sampleEvents())
	action, err := tree.Finalize(entry.Outcome{Root: "/r", Status: entry.StatusPartial, Errors: 1})
	require.NoError(t, err)
	require.Equal(t, entry.ActionContinue, action)

	root := tree.Root()
	require.NotNil(t, root)
	require.EqualValues(t, 4096+4096+4096+102400, root.Totals.TotalBlocks)

	var names []string
	for _, c := range root.Children() {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"big", "small", "ln", "locked"}, names)

	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf))
	out := buf.String()
	require.Contains(t, out, "/r/\n")
	require.Contains(t, out, "├── big/")
	require.Contains(t, out, "│   └── blob")
	require.Contains(t, out, "@ ├── ln")
	require.Contains(t, out, "! └── locked/")
	require.Contains(t, out, "1 errors (partial)")
	require.NotContains(t, out, "\x1b[", "no colors when not writing to a terminal")
}

func TestTreeApparentSizes(t *testing.T) {
	tree := NewTree(Options{MaxDepth: -1, Apparent: true})
	feed(t, tree, sampleEvents())
	_, err := tree.Finalize(entry.Outcome{Status: entry.StatusComplete})
	require.NoError(t, err)

	kids := tree.Root().Children()
	require.Equal(t, "big", kids[0].Name)
	require.Equal(t, "small", kids[1].Name)
	require.EqualValues(t, 10, kids[1].Totals.TotalSize)
}

func TestTreeDepthAndTopLimits(t *testing.T) {
	tree := NewTree(Options{MaxDepth: 1, Top: 2})
	feed(t, tree, sampleEvents())
	_, err := tree.Finalize(entry.Outcome{Status: entry.StatusComplete})
	require.NoError(t, err)

	root := tree.Root()
	kids := root.Children()
	require.Len(t, kids, 2)
	require.Equal(t, 2, root.Hidden())
	require.Empty(t, kids[0].Children(), "depth limit drops grandchildren")
	require.EqualValues(t, 4096+102400, kids[0].Totals.TotalBlocks, "totals still include them")

	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf))
	require.Contains(t, buf.String(), "… 2 more")
	require.NotContains(t, buf.String(), "blob")
}

func TestTreeAbortedScan(t *testing.T) {
	tree := NewTree(Options{MaxDepth: -1})
	feed(t, tree, []event{open(dir("/r", 4096)), open(dir("half", 4096)), open(file("f", 1, 512))})

	action, err := tree.Finalize(entry.Outcome{Status: entry.StatusAborted, Err: errors.New("canceled")})
	require.NoError(t, err)
	require.Equal(t, entry.ActionTerminate, action)
	require.NotNil(t, tree.Root())
	require.EqualValues(t, 1, tree.Root().Totals.TotalDirs)

	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf))
	require.True(t, strings.HasSuffix(buf.String(), "aborted: canceled\n"))

	require.Error(t, tree.Enter(file("late", 1, 1)))
}

func TestRenderBeforeFinalize(t *testing.T) {
	require.Error(t, NewTree(Options{}).Render(&bytes.Buffer{}))
}
