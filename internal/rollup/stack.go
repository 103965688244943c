package rollup

import (
	"errors"

	"github.com/michaelscutari/dirscan/internal/entry"
)

// ErrUnbalanced is returned when Leave is called with no open entry.
var ErrUnbalanced = errors.New("rollup: leave without matching enter")

// Stack computes rollups from a stream of enter/leave events. Every open
// entry owns a frame; a frame's totals cover the entry itself and all of
// its descendants and are folded into the parent frame on Leave.
//
// Hard-linked files are counted once per identity. Entries that carry an
// unmeasured flag contribute to counts but not to sizes.
type Stack struct {
	frames []frame
	seen   map[entry.Identity]struct{}
}

type frame struct {
	dir    bool
	rollup entry.Rollup
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{seen: make(map[entry.Identity]struct{})}
}

// Enter opens a frame for e.
func (s *Stack) Enter(e *entry.Entry) {
	f := frame{dir: e.IsDir()}
	if e.Flags.Has(entry.FlagFile) {
		f.rollup.TotalFiles = 1
	}
	if e.Flags.Has(entry.FlagError) {
		f.rollup.Errors = 1
	}
	if e.Measured() && s.first(e) {
		f.rollup.TotalSize = e.Size
		f.rollup.TotalBlocks = e.Blocks
	}
	s.frames = append(s.frames, f)
}

// Leave closes the innermost frame, folds it into its parent and returns
// its totals.
func (s *Stack) Leave() (entry.Rollup, error) {
	n := len(s.frames)
	if n == 0 {
		return entry.Rollup{}, ErrUnbalanced
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]

	if n > 1 {
		parent := &s.frames[n-2].rollup
		if f.dir {
			parent.Add(f.rollup)
		} else {
			parent.TotalSize += f.rollup.TotalSize
			parent.TotalBlocks += f.rollup.TotalBlocks
			parent.TotalFiles += f.rollup.TotalFiles
			parent.Errors += f.rollup.Errors
		}
	}
	return f.rollup, nil
}

// Depth returns the number of open frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Unique returns the number of distinct hard-linked identities seen.
func (s *Stack) Unique() int {
	return len(s.seen)
}

func (s *Stack) first(e *entry.Entry) bool {
	if !e.Flags.Has(entry.FlagHardLinked) {
		return true
	}
	id := e.Identity()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}
