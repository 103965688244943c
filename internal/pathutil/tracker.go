package pathutil

import "os"

// Tracker maintains the logical path of a scan as a stack of segments.
// It performs no I/O.
type Tracker struct {
	buf  []byte
	offs []int
}

// NewTracker returns a tracker positioned at root.
func NewTracker(root string) *Tracker {
	t := &Tracker{}
	t.Reset(root)
	return t
}

// Reset discards all segments and positions the tracker at root.
func (t *Tracker) Reset(root string) {
	t.buf = append(t.buf[:0], Normalize(root)...)
	t.offs = t.offs[:0]
}

// Enter appends name to the current path.
func (t *Tracker) Enter(name string) {
	t.offs = append(t.offs, len(t.buf))
	if n := len(t.buf); n > 0 && t.buf[n-1] != os.PathSeparator {
		t.buf = append(t.buf, os.PathSeparator)
	}
	t.buf = append(t.buf, name...)
}

// Leave removes the most recently entered segment. Leaving the root is a
// no-op.
func (t *Tracker) Leave() {
	n := len(t.offs)
	if n == 0 {
		return
	}
	t.buf = t.buf[:t.offs[n-1]]
	t.offs = t.offs[:n-1]
}

// Current returns the full logical path.
func (t *Tracker) Current() string {
	return string(t.buf)
}

// Parent returns the path one segment above the current one, or the root
// when no segment is entered.
func (t *Tracker) Parent() string {
	n := len(t.offs)
	if n == 0 {
		return string(t.buf)
	}
	return string(t.buf[:t.offs[n-1]])
}

// Depth returns the number of entered segments.
func (t *Tracker) Depth() int {
	return len(t.offs)
}
