package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/rollup"
)

const insertDirSQL = `INSERT OR REPLACE INTO dirs (id, path, name, parent_id, depth, flags, dev_id, inode) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
const insertEntrySQL = `INSERT INTO entries (parent_id, name, kind, flags, size, blocks, mtime, dev_id, inode, nlink) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
const insertRollupSQL = `INSERT OR REPLACE INTO rollups (dir_id, total_size, total_blocks, total_files, total_dirs, total_errors) VALUES (?, ?, ?, ?, ?, ?)`
const insertErrorSQL = `INSERT INTO scan_errors (path, message) VALUES (?, ?)`

const maxErrorsSampled = 1000

// DefaultBatchSize is the number of rows buffered per table before a flush.
const DefaultBatchSize = 10000

var errUnbalanced = errors.New("leave without matching enter")

// Writer is a scan sink that stores the tree in SQLite. Directories that
// were walked go to dirs and rollups, everything else to entries.
type Writer struct {
	db        *sql.DB
	batchSize int
	logger    *log.Logger

	stack   []frame
	nextID  int64
	rollups *rollup.Stack

	dirBatch    []entry.Dir
	entryBatch  []entryRow
	rollupBatch []entry.Rollup
	errorBatch  []entry.ScanError
	errorCapped bool
	sampled     int

	// Progress tracking (atomic)
	fileCount  int64
	dirCount   int64
	errorCount int64
	totalBytes int64

	dirStmt    *sql.Stmt
	entryStmt  *sql.Stmt
	rollupStmt *sql.Stmt
	errorStmt  *sql.Stmt

	rootRollup *entry.Rollup
	finalized  bool
}

type frame struct {
	dirID int64 // zero for entries that were not walked
	path  string
	depth int
}

type entryRow struct {
	parentID int64
	e        *entry.Entry
}

// Progress holds current scan progress.
type Progress struct {
	Files      int64
	Dirs       int64
	Errors     int64
	TotalBytes int64
}

// NewWriter prepares statements against database. The schema must exist.
func NewWriter(database *sql.DB, batchSize int, logger *log.Logger) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	w := &Writer{
		db:          database,
		batchSize:   batchSize,
		logger:      logger,
		rollups:     rollup.NewStack(),
		dirBatch:    make([]entry.Dir, 0, batchSize),
		entryBatch:  make([]entryRow, 0, batchSize),
		rollupBatch: make([]entry.Rollup, 0, batchSize),
		errorBatch:  make([]entry.ScanError, 0, 100),
	}

	var err error
	if w.dirStmt, err = database.Prepare(insertDirSQL); err != nil {
		return nil, fmt.Errorf("failed to prepare dir statement: %w", err)
	}
	if w.entryStmt, err = database.Prepare(insertEntrySQL); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to prepare entry statement: %w", err)
	}
	if w.rollupStmt, err = database.Prepare(insertRollupSQL); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to prepare rollup statement: %w", err)
	}
	if w.errorStmt, err = database.Prepare(insertErrorSQL); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to prepare error statement: %w", err)
	}
	return w, nil
}

// Begin records the scan start in scan_meta.
func (w *Writer) Begin(scanID, root string, start time.Time) error {
	_, err := w.db.Exec(
		`INSERT INTO scan_meta (id, scan_id, root_path, start_time) VALUES (1, ?, ?, ?)`,
		scanID, root, start.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record scan start: %w", err)
	}
	return nil
}

// Enter implements scan.Sink.
func (w *Writer) Enter(e *entry.Entry) error {
	if w.finalized {
		return errors.New("writer already finalized")
	}
	var parent *frame
	if n := len(w.stack); n > 0 {
		parent = &w.stack[n-1]
	}
	if parent == nil && !e.Descended {
		return errors.New("root entry was not descended")
	}

	w.rollups.Enter(e)
	atomic.AddInt64(&w.totalBytes, e.Blocks)

	if e.Descended {
		w.nextID++
		f := frame{dirID: w.nextID, path: e.Name}
		d := entry.Dir{ID: w.nextID, Path: e.Name, Name: e.Name, Flags: e.Flags, DevID: e.DevID, Inode: e.Inode}
		if parent != nil {
			f.path = filepath.Join(parent.path, e.Name)
			f.depth = parent.depth + 1
			d.Path, d.ParentID, d.Depth = f.path, parent.dirID, f.depth
		} else {
			d.Name = filepath.Base(e.Name)
		}
		w.stack = append(w.stack, f)
		atomic.AddInt64(&w.dirCount, 1)

		w.dirBatch = append(w.dirBatch, d)
		if len(w.dirBatch) >= w.batchSize {
			return w.flushDirs()
		}
		return nil
	}

	w.stack = append(w.stack, frame{path: parent.path, depth: parent.depth + 1})
	if e.Flags.Has(entry.FlagFile) {
		atomic.AddInt64(&w.fileCount, 1)
	} else if e.IsDir() {
		atomic.AddInt64(&w.dirCount, 1)
	}

	w.entryBatch = append(w.entryBatch, entryRow{parentID: parent.dirID, e: e})
	if len(w.entryBatch) >= w.batchSize {
		return w.flushEntries()
	}
	return nil
}

// Leave implements scan.Sink.
func (w *Writer) Leave() error {
	n := len(w.stack)
	if n == 0 {
		return errUnbalanced
	}
	f := w.stack[n-1]
	w.stack = w.stack[:n-1]

	r, err := w.rollups.Leave()
	if err != nil {
		return err
	}
	if f.dirID == 0 {
		return nil
	}

	r.DirID = f.dirID
	if n == 1 {
		w.rootRollup = &r
	}
	w.rollupBatch = append(w.rollupBatch, r)
	if len(w.rollupBatch) >= w.batchSize {
		return w.flushRollups()
	}
	return nil
}

// Report implements scan.Reporter. Only the first failures are stored.
func (w *Writer) Report(path string, err error) {
	atomic.AddInt64(&w.errorCount, 1)
	if w.errorCapped {
		return
	}
	w.errorBatch = append(w.errorBatch, entry.ScanError{Path: path, Message: err.Error()})
	w.sampled++
	if w.sampled >= maxErrorsSampled {
		w.errorCapped = true
		w.logger.Warn("error sample limit reached", "limit", maxErrorsSampled)
	}
}

// Finalize implements scan.Sink. It flushes pending rows and completes
// scan_meta. An aborted scan keeps what was written and asks the host to
// terminate.
func (w *Writer) Finalize(o entry.Outcome) (entry.Action, error) {
	if w.finalized {
		return entry.ActionTerminate, errors.New("writer already finalized")
	}
	w.finalized = true

	action := entry.ActionContinue
	if o.Fatal() {
		action = entry.ActionTerminate
	}

	// Close directories left open by an aborted scan so their rollups
	// are still stored.
	for len(w.stack) > 0 {
		if err := w.Leave(); err != nil {
			return entry.ActionTerminate, err
		}
	}

	if err := w.flush(); err != nil {
		return entry.ActionTerminate, err
	}

	var totals entry.Rollup
	if w.rootRollup != nil {
		totals = *w.rootRollup
	}
	fatal := ""
	if o.Err != nil {
		fatal = o.Err.Error()
	}
	_, err := w.db.Exec(
		`UPDATE scan_meta SET root_path = ?, status = ?, end_time = ?, total_size = ?, total_blocks = ?,
		 file_count = ?, dir_count = ?, error_count = ?, fatal_error = ? WHERE id = 1`,
		o.Root, o.Status.String(), time.Now().Unix(), totals.TotalSize, totals.TotalBlocks,
		atomic.LoadInt64(&w.fileCount), atomic.LoadInt64(&w.dirCount), o.Errors, fatal,
	)
	if err != nil {
		return entry.ActionTerminate, fmt.Errorf("failed to finalize scan metadata: %w", err)
	}
	w.logger.Debug("writer finalized", "status", o.Status, "dirs", w.nextID, "errors", o.Errors)
	return action, nil
}

// Close releases prepared statements.
func (w *Writer) Close() error {
	for _, stmt := range []*sql.Stmt{w.dirStmt, w.entryStmt, w.rollupStmt, w.errorStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

// ErrorCount returns the total number of errors reported.
func (w *Writer) ErrorCount() int64 {
	return atomic.LoadInt64(&w.errorCount)
}

// Progress returns current scan progress (safe for concurrent access).
func (w *Writer) Progress() Progress {
	return Progress{
		Files:      atomic.LoadInt64(&w.fileCount),
		Dirs:       atomic.LoadInt64(&w.dirCount),
		Errors:     atomic.LoadInt64(&w.errorCount),
		TotalBytes: atomic.LoadInt64(&w.totalBytes),
	}
}

func (w *Writer) flush() error {
	if err := w.flushDirs(); err != nil {
		return err
	}
	if err := w.flushEntries(); err != nil {
		return err
	}
	if err := w.flushRollups(); err != nil {
		return err
	}
	return w.flushErrors()
}

func (w *Writer) flushDirs() error {
	if len(w.dirBatch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin dir transaction: %w", err)
	}

	stmt := tx.Stmt(w.dirStmt)
	for _, d := range w.dirBatch {
		_, err := stmt.Exec(d.ID, d.Path, d.Name, d.ParentID, d.Depth, d.Flags, d.DevID, d.Inode)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert dir %q: %w", d.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dir transaction: %w", err)
	}

	w.dirBatch = w.dirBatch[:0]
	return nil
}

func (w *Writer) flushEntries() error {
	if len(w.entryBatch) == 0 {
		return nil
	}

	batchLen := len(w.entryBatch)
	flushStart := time.Now()

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(w.entryStmt)
	for _, row := range w.entryBatch {
		e := row.e
		_, err := stmt.Exec(row.parentID, e.Name, e.Kind, e.Flags, e.Size, e.Blocks, e.ModTime.Unix(), e.DevID, e.Inode, e.Nlink)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert entry %q: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.logger.Debug("flushed entries", "count", batchLen, "took", time.Since(flushStart))
	w.entryBatch = w.entryBatch[:0]
	return nil
}

func (w *Writer) flushRollups() error {
	if len(w.rollupBatch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollup transaction: %w", err)
	}

	stmt := tx.Stmt(w.rollupStmt)
	for _, r := range w.rollupBatch {
		_, err := stmt.Exec(r.DirID, r.TotalSize, r.TotalBlocks, r.TotalFiles, r.TotalDirs, r.Errors)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert rollup %d: %w", r.DirID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollup transaction: %w", err)
	}

	w.rollupBatch = w.rollupBatch[:0]
	return nil
}

func (w *Writer) flushErrors() error {
	if len(w.errorBatch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}

	stmt := tx.Stmt(w.errorStmt)
	for _, e := range w.errorBatch {
		_, err := stmt.Exec(e.Path, e.Message)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}

	w.errorBatch = w.errorBatch[:0]
	return nil
}
