package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/pathutil"
)

// Fatal scan errors. Soft failures never surface as errors; they are
// flagged on the entry and passed to the Reporter.
var (
	ErrResolveRoot      = errors.New("failed to resolve root")
	ErrEnterRoot        = errors.New("failed to enter root")
	ErrRootNotDirectory = errors.New("root is not a directory")
	ErrReadRoot         = errors.New("failed to read root")
	ErrReturnToParent   = errors.New("failed to return to parent directory")
	ErrTooManyErrors    = errors.New("too many errors")
	ErrSink             = errors.New("sink failed")
)

// Sink consumes the scanned tree.
//
// Every entry is delivered as an Enter call followed, after the entry's
// children if it has any, by exactly one Leave call. Leave closes the most
// recent open Enter. Entries with Descended set are directories whose
// children were walked; all other entries (files, symlinks, and directories
// that were excluded, on another filesystem or unreadable) are closed by the
// Leave that immediately follows their Enter.
//
// Finalize is called exactly once when the scan ends, including after a
// fatal error that happened before any entry was emitted.
type Sink interface {
	Enter(e *entry.Entry) error
	Leave() error
	Finalize(o entry.Outcome) (entry.Action, error)
}

// Result describes a finished scan.
type Result struct {
	Outcome  entry.Outcome
	Action   entry.Action
	Duration time.Duration
}

// Scanner walks a directory tree and streams it to a Sink.
type Scanner struct {
	opts *ScanOptions
	sink Sink
}

// NewScanner creates a new scanner.
func NewScanner(sink Sink, opts *ScanOptions) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Scanner{
		opts: opts,
		sink: sink,
	}
}

// Run scans root and delivers the tree to the sink. The returned error is
// non-nil when the scan was aborted; the sink has been finalized either way.
func (s *Scanner) Run(ctx context.Context, root string) (Result, error) {
	start := time.Now()
	w := &walker{
		ctx:       ctx,
		fs:        s.opts.fs(),
		sink:      s.sink,
		exclude:   s.opts.ShouldExclude,
		reporter:  s.opts.Reporter,
		logger:    s.opts.logger(),
		maxErrors: s.opts.MaxErrors,
		xdev:      s.opts.Xdev,
		path:      pathutil.NewTracker(root),
	}

	resolved, err := s.scanRoot(w, root)
	out := entry.Outcome{Root: resolved, Errors: w.errors}
	switch {
	case err != nil:
		out.Status = entry.StatusAborted
		out.Err = err
	case w.errors > 0:
		out.Status = entry.StatusPartial
	default:
		out.Status = entry.StatusComplete
	}

	action, ferr := s.sink.Finalize(out)
	if ferr != nil {
		action = entry.ActionTerminate
		if err == nil {
			err = fmt.Errorf("%w: finalize: %w", ErrSink, ferr)
		}
	}

	w.logger.Debug("scan finished", "root", resolved, "status", out.Status, "errors", out.Errors, "took", time.Since(start))
	return Result{Outcome: out, Action: action, Duration: time.Since(start)}, err
}

// scanRoot resolves and validates the root, then walks it. Every failure in
// here before the walk starts is fatal.
func (s *Scanner) scanRoot(w *walker, root string) (string, error) {
	if err := w.ctx.Err(); err != nil {
		return root, err
	}
	resolved, err := w.fs.Resolve(root)
	if err != nil {
		return root, fmt.Errorf("%w %q: %w", ErrResolveRoot, root, err)
	}
	if err := w.fs.Enter(resolved); err != nil {
		return resolved, fmt.Errorf("%w %q: %w", ErrEnterRoot, resolved, err)
	}

	st, err := w.fs.Lstat(resolved)
	if err != nil {
		return resolved, fmt.Errorf("%w %q: %w", ErrEnterRoot, resolved, err)
	}
	if !st.Mode.IsDir() {
		return resolved, fmt.Errorf("%w: %q", ErrRootNotDirectory, resolved)
	}

	w.rootDev = st.Dev
	w.path.Reset(resolved)
	w.logger.Debug("scan started", "root", resolved, "dev", w.rootDev, "xdev", w.xdev)

	names, err := w.fs.ReadCatalog(resolved)
	if err != nil && !errors.Is(err, ErrPartialCatalog) {
		return resolved, fmt.Errorf("%w %q: %w", ErrReadRoot, resolved, err)
	}

	rootEntry := entry.New(resolved)
	applyStat(rootEntry, st, w.rootDev, w.xdev)
	var walkErr error
	if err != nil {
		walkErr = w.fail(rootEntry, resolved, err)
	}
	rootEntry.Descended = true

	if err := w.enter(rootEntry); err != nil {
		return resolved, err
	}
	if walkErr == nil {
		walkErr = w.walk(st.Identity(), names)
	}
	if err := w.leave(); err != nil && walkErr == nil {
		walkErr = err
	}
	return resolved, walkErr
}
