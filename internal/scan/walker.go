package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/pathutil"
)

// walker holds the state of one scan. It is not safe for concurrent use.
type walker struct {
	ctx       context.Context
	fs        FS
	sink      Sink
	exclude   func(path string) bool
	reporter  Reporter
	logger    *log.Logger
	maxErrors int
	xdev      bool

	path    *pathutil.Tracker
	rootDev uint64
	errors  int64
}

// walk visits every name of the catalog of the directory identified by dir.
func (w *walker) walk(dir entry.Identity, names []string) error {
	for _, name := range names {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if name == "." || name == ".." {
			continue
		}

		w.path.Enter(name)
		err := w.item(dir, name)
		w.path.Leave()
		if err != nil {
			return err
		}
	}
	return nil
}

// item classifies one entry and either recurses into it or emits it as a
// closed leaf.
func (w *walker) item(parent entry.Identity, name string) error {
	e := entry.New(name)
	path := w.path.Current()

	if err := w.classify(e, path); err != nil {
		return firstErr(w.leaf(e), err)
	}
	if e.IsDir() && !e.Flags.Any(entry.Unmeasured) {
		return w.recurse(e, parent, path)
	}
	return w.leaf(e)
}

func (w *walker) recurse(e *entry.Entry, parent entry.Identity, path string) error {
	if err := w.fs.Enter(path); err != nil {
		budget := w.fail(e, path, err)
		return firstErr(w.leaf(e), budget)
	}

	names, err := w.fs.ReadCatalog(path)
	var budget error
	if err != nil {
		budget = w.fail(e, path, err)
		if !errors.Is(err, ErrPartialCatalog) {
			if err := w.leaf(e); err != nil {
				return err
			}
			if err := w.back(parent); err != nil {
				return err
			}
			return budget
		}
	}

	e.Descended = true
	if err := w.enter(e); err != nil {
		return err
	}
	walkErr := budget
	if walkErr == nil {
		walkErr = w.walk(e.Identity(), names)
	}
	if err := w.leave(); err != nil && walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		return walkErr
	}
	return w.back(parent)
}

// back returns to the parent of the current path.
func (w *walker) back(parent entry.Identity) error {
	dir := w.path.Parent()
	if err := w.fs.Return(dir, parent); err != nil {
		return fmt.Errorf("%w %s: %w", ErrReturnToParent, dir, err)
	}
	return nil
}

// leaf emits e as a closed entry with no children.
func (w *walker) leaf(e *entry.Entry) error {
	if err := w.enter(e); err != nil {
		return err
	}
	return w.leave()
}

func (w *walker) enter(e *entry.Entry) error {
	if err := w.sink.Enter(e); err != nil {
		return fmt.Errorf("%w: enter %s: %w", ErrSink, w.path.Current(), err)
	}
	return nil
}

func (w *walker) leave() error {
	if err := w.sink.Leave(); err != nil {
		return fmt.Errorf("%w: leave %s: %w", ErrSink, w.path.Current(), err)
	}
	return nil
}

// fail records a soft failure on e. It returns ErrTooManyErrors once the
// error budget is used up.
func (w *walker) fail(e *entry.Entry, path string, err error) error {
	e.Fail()
	w.errors++
	w.logger.Debug("soft failure", "path", path, "err", err)
	if w.reporter != nil {
		w.reporter.Report(path, err)
	}
	if w.maxErrors > 0 && w.errors >= int64(w.maxErrors) {
		return fmt.Errorf("%w: %d errors", ErrTooManyErrors, w.errors)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
