// Package render prints a scanned tree in the style of du and ncdu.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/rollup"
	"github.com/tidwall/btree"
)

// Options controls what the tree keeps and how it prints.
type Options struct {
	// MaxDepth limits printed levels below the root. Negative means
	// unlimited. Deeper entries still count toward their ancestors.
	MaxDepth int
	// Top keeps only the largest N children of each directory; the rest
	// are folded into a single summary line. Zero keeps all.
	Top int
	// Apparent orders and prints by apparent size instead of disk usage.
	Apparent bool
}

// Node is one entry of the rendered tree with its subtree totals.
type Node struct {
	Name      string
	Kind      entry.Kind
	Flags     entry.Flag
	Descended bool
	Totals    entry.Rollup

	depth    int
	children *btree.BTreeG[*Node]
	hidden   int
	rest     entry.Rollup
}

// Children returns the kept children, largest first.
func (n *Node) Children() []*Node {
	if n.children == nil {
		return nil
	}
	out := make([]*Node, 0, n.children.Len())
	n.children.Scan(func(c *Node) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Hidden returns how many children were folded away by Options.Top.
func (n *Node) Hidden() int {
	return n.hidden
}

// Tree is a scan sink that keeps the largest entries of each directory
// in order. It must be finalized before Render.
type Tree struct {
	opts    Options
	stack   []*Node
	rollups *rollup.Stack
	root    *Node
	outcome *entry.Outcome
}

// NewTree creates an empty tree sink.
func NewTree(opts Options) *Tree {
	return &Tree{opts: opts, rollups: rollup.NewStack()}
}

func (t *Tree) size(r entry.Rollup) int64 {
	if t.opts.Apparent {
		return r.TotalSize
	}
	return r.TotalBlocks
}

func (t *Tree) less(a, b *Node) bool {
	sa, sb := t.size(a.Totals), t.size(b.Totals)
	if sa != sb {
		return sa > sb
	}
	return a.Name < b.Name
}

// Enter implements scan.Sink.
func (t *Tree) Enter(e *entry.Entry) error {
	if t.outcome != nil {
		return errors.New("tree already finalized")
	}
	n := &Node{Name: e.Name, Kind: e.Kind, Flags: e.Flags, Descended: e.Descended, depth: len(t.stack)}
	if e.Descended {
		n.children = btree.NewBTreeGOptions(t.less, btree.Options{NoLocks: true})
	}
	t.rollups.Enter(e)
	t.stack = append(t.stack, n)
	return nil
}

// Leave implements scan.Sink.
func (t *Tree) Leave() error {
	r, err := t.rollups.Leave()
	if err != nil {
		return err
	}
	last := len(t.stack) - 1
	n := t.stack[last]
	t.stack = t.stack[:last]
	n.Totals = r

	if last == 0 {
		t.root = n
		return nil
	}
	t.attach(t.stack[last-1], n)
	return nil
}

// attach adds n below parent unless it is too deep to print, keeping only
// the Top largest children.
func (t *Tree) attach(parent, n *Node) {
	if t.opts.MaxDepth >= 0 && n.depth > t.opts.MaxDepth {
		return
	}
	parent.children.Set(n)
	if t.opts.Top > 0 && parent.children.Len() > t.opts.Top {
		if dropped, ok := parent.children.PopMax(); ok {
			parent.hidden++
			parent.rest.TotalSize += dropped.Totals.TotalSize
			parent.rest.TotalBlocks += dropped.Totals.TotalBlocks
		}
	}
}

// Finalize implements scan.Sink.
func (t *Tree) Finalize(o entry.Outcome) (entry.Action, error) {
	if t.outcome != nil {
		return entry.ActionTerminate, errors.New("tree already finalized")
	}
	for len(t.stack) > 0 {
		if err := t.Leave(); err != nil {
			return entry.ActionTerminate, err
		}
	}
	t.outcome = &o
	if o.Fatal() {
		return entry.ActionTerminate, nil
	}
	return entry.ActionContinue, nil
}

// Root returns the root node, or nil when nothing was scanned.
func (t *Tree) Root() *Node {
	return t.root
}

type styles struct {
	size   lipgloss.Style
	dir    lipgloss.Style
	marker lipgloss.Style
	err    lipgloss.Style
	guide  lipgloss.Style
	footer lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		size:   r.NewStyle().Foreground(lipgloss.Color("6")).Width(9).Align(lipgloss.Right),
		dir:    r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		marker: r.NewStyle().Foreground(lipgloss.Color("11")),
		err:    r.NewStyle().Foreground(lipgloss.Color("9")),
		guide:  r.NewStyle().Foreground(lipgloss.Color("8")),
		footer: r.NewStyle().Faint(true),
	}
}

// Render writes the tree to w. Colors are used only when w is a terminal.
func (t *Tree) Render(w io.Writer) error {
	if t.outcome == nil {
		return errors.New("tree not finalized")
	}
	st := newStyles(lipgloss.NewRenderer(w))
	var b strings.Builder

	if t.root != nil {
		t.line(&b, st, t.root, "", t.root.Name)
		t.children(&b, st, t.root, "")
	}

	o := t.outcome
	var totals entry.Rollup
	if t.root != nil {
		totals = t.root.Totals
	}
	footer := fmt.Sprintf("%s total, %s files, %s dirs",
		humanize.Bytes(uint64(t.size(totals))),
		humanize.Comma(totals.TotalFiles),
		humanize.Comma(totals.TotalDirs))
	if o.Errors > 0 {
		footer += fmt.Sprintf(", %s errors", humanize.Comma(o.Errors))
	}
	footer += " (" + o.Status.String() + ")"
	b.WriteString(st.footer.Render(footer))
	b.WriteByte('\n')
	if o.Err != nil {
		b.WriteString(st.err.Render("aborted: " + o.Err.Error()))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Tree) children(b *strings.Builder, st styles, n *Node, indent string) {
	kids := n.Children()
	for i, c := range kids {
		lastChild := i == len(kids)-1 && n.hidden == 0
		branch, next := "├── ", "│   "
		if lastChild {
			branch, next = "└── ", "    "
		}
		t.line(b, st, c, st.guide.Render(indent+branch), c.Name)
		if c.children != nil {
			t.children(b, st, c, indent+next)
		}
	}
	if n.hidden > 0 {
		b.WriteString(st.size.Render(humanize.Bytes(uint64(t.size(n.rest)))))
		b.WriteString("   ")
		b.WriteString(st.guide.Render(indent + "└── "))
		b.WriteString(st.footer.Render(fmt.Sprintf("… %d more", n.hidden)))
		b.WriteByte('\n')
	}
}

func (t *Tree) line(b *strings.Builder, st styles, n *Node, guide, name string) {
	b.WriteString(st.size.Render(humanize.Bytes(uint64(t.size(n.Totals)))))
	b.WriteByte(' ')

	marker := n.Flags.Marker(n.Kind)
	switch {
	case marker == "!":
		b.WriteString(st.err.Render(marker))
	case marker != " ":
		b.WriteString(st.marker.Render(marker))
	default:
		b.WriteString(marker)
	}
	b.WriteByte(' ')
	b.WriteString(guide)

	if n.Kind == entry.KindDir {
		b.WriteString(st.dir.Render(strings.TrimSuffix(name, "/") + "/"))
	} else {
		b.WriteString(name)
	}
	b.WriteByte('\n')
}
