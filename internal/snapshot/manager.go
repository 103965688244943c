package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/michaelscutari/dirscan/internal/db"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/scan"
	"golang.org/x/sys/unix"

	_ "modernc.org/sqlite"
)

const (
	snapshotPrefix = "dirscan-"
	abortedPrefix  = "aborted-"
	lockName       = ".dirscan.lock"
	latestName     = "latest.db"
)

// ErrLocked is returned when another scan holds the output directory lock.
var ErrLocked = errors.New("another scan is in progress")

// ProgressFunc is called periodically with current scan progress.
type ProgressFunc func(p db.Progress)

// StageFunc is called when scan stage changes.
type StageFunc func(stage string)

// Snapshot describes a finished scan.
type Snapshot struct {
	Path   string
	ScanID string
	Result scan.Result
}

// Manager handles the scan lifecycle including locking and retention.
type Manager struct {
	outputDir        string
	retention        int
	lockFile         *os.File
	progressFunc     ProgressFunc
	progressInterval time.Duration
	stageFunc        StageFunc
	indexMode        string
	sqliteTmpDir     string
	logger           *log.Logger
}

// NewManager creates a new snapshot manager.
func NewManager(outputDir string, retention int) *Manager {
	return &Manager{
		outputDir:        outputDir,
		retention:        retention,
		progressInterval: 100 * time.Millisecond,
		logger:           log.New(io.Discard),
	}
}

// SetProgressFunc sets a callback for progress updates during scan.
func (m *Manager) SetProgressFunc(f ProgressFunc, interval time.Duration) {
	m.progressFunc = f
	if interval > 0 {
		m.progressInterval = interval
	}
}

// SetStageFunc sets a callback for scan stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetIndexMode sets the index build mode: memory|disk|skip.
func (m *Manager) SetIndexMode(mode string) {
	m.indexMode = mode
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

// SetLogger sets the logger for stage and warning messages.
func (m *Manager) SetLogger(l *log.Logger) {
	if l != nil {
		m.logger = l
	}
}

func (m *Manager) stage(name string) {
	m.logger.Info("stage", "name", name)
	if m.stageFunc != nil {
		m.stageFunc(name)
	}
}

// RunScan executes a complete scan workflow. A scan that ends aborted is
// kept as an aborted-*.db file for inspection and is never published as
// latest; its path is returned together with the scan error.
func (m *Manager) RunScan(ctx context.Context, root string, opts *scan.ScanOptions) (*Snapshot, error) {
	if opts == nil {
		opts = scan.DefaultOptions()
	}

	// Ensure output directory exists
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Acquire lock
	if err := m.acquireLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	scanID := uuid.Must(uuid.NewV7()).String()
	started := time.Now()

	// Create temp database file
	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".%stemp-%s.db", snapshotPrefix, scanID))
	database, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	fail := func(format string, err error) (*Snapshot, error) {
		database.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf(format, err)
	}

	// Initialize schema and pragmas
	if err := db.InitSchema(database); err != nil {
		return fail("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return fail("failed to apply pragmas: %w", err)
	}

	writer, err := db.NewWriter(database, db.DefaultBatchSize, m.logger.WithPrefix("db"))
	if err != nil {
		return fail("failed to create writer: %w", err)
	}
	defer writer.Close()
	if err := writer.Begin(scanID, root, started); err != nil {
		return fail("%w", err)
	}

	// The writer samples failures into scan_errors alongside any reporter
	// the caller configured.
	scanOpts := *opts
	scanOpts.Reporter = scan.Reporters(writer, opts.Reporter)

	m.stage("scan")
	m.logger.Info("scan started", "root", root, "scan_id", scanID)

	progressDone := make(chan struct{})
	if m.progressFunc != nil {
		go func() {
			ticker := time.NewTicker(m.progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-progressDone:
					return
				case <-ticker.C:
					m.progressFunc(writer.Progress())
				}
			}
		}()
	}

	res, scanErr := scan.NewScanner(writer, &scanOpts).Run(ctx, root)
	close(progressDone)
	if m.progressFunc != nil {
		m.progressFunc(writer.Progress())
	}
	snap := &Snapshot{ScanID: scanID, Result: res}

	if res.Action == entry.ActionTerminate {
		if errors.Is(scanErr, scan.ErrSink) {
			return fail("scan failed: %w", scanErr)
		}
		database.Close()
		abortedPath := filepath.Join(m.outputDir, fmt.Sprintf("%s%s-%s.db", abortedPrefix, started.Format("20060102-150405"), scanID))
		if err := os.Rename(tempPath, abortedPath); err != nil {
			os.Remove(tempPath)
			m.logger.Warn("failed to keep aborted snapshot", "err", err)
		} else {
			snap.Path = abortedPath
		}
		if scanErr == nil {
			scanErr = errors.New("sink requested termination")
		}
		return snap, fmt.Errorf("scan aborted: %w", scanErr)
	}

	// Build indexes
	if m.indexMode == "" {
		m.indexMode = "memory"
	}
	if m.indexMode != "skip" {
		m.stage("indexes")
		if err := db.ApplyIndexPragmas(database, m.indexMode == "disk", m.sqliteTmpDir); err != nil {
			return fail("failed to apply index pragmas: %w", err)
		}
		if err := db.BuildIndexes(database); err != nil {
			return fail("failed to build indexes: %w", err)
		}
	}

	// Finalize
	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		return fail("failed to finalize database: %w", err)
	}

	database.Close()

	// Atomic rename to final location. The scan id is time ordered, so
	// names sort chronologically even within the same second.
	finalName := fmt.Sprintf("%s%s-%s.db", snapshotPrefix, started.Format("20060102-150405"), scanID)
	finalPath := filepath.Join(m.outputDir, finalName)

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to rename database: %w", err)
	}
	snap.Path = finalPath

	// Update latest.db symlink atomically via temp symlink + rename
	latestPath := filepath.Join(m.outputDir, latestName)
	tempLink := filepath.Join(m.outputDir, "."+latestName+".tmp")
	os.Remove(tempLink) // Clean up any stale temp link
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			m.logger.Warn("failed to update latest.db symlink", "err", err)
		}
	} else {
		m.logger.Warn("failed to create latest.db symlink", "err", err)
	}

	// Prune old snapshots
	if err := m.pruneOldSnapshots(); err != nil {
		m.logger.Warn("failed to prune old snapshots", "err", err)
	}

	m.logger.Info("scan published", "path", finalPath, "status", res.Outcome.Status, "took", res.Duration)
	return snap, nil
}

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.outputDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	// Try to acquire exclusive lock
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return ErrLocked
	}

	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

func (m *Manager) pruneOldSnapshots() error {
	if m.retention <= 0 {
		return nil
	}

	snapshots, err := m.ListSnapshots()
	if err != nil {
		return err
	}

	// Remove oldest if over retention
	for len(snapshots) > m.retention {
		if err := os.Remove(snapshots[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(snapshots[0]), err)
		}
		m.logger.Debug("pruned snapshot", "path", snapshots[0])
		snapshots = snapshots[1:]
	}

	return nil
}

// GetLatest returns the path to the latest snapshot.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.outputDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest snapshot found: %w", err)
	}
	return resolved, nil
}

// ListSnapshots returns all published snapshots sorted by date.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) && strings.HasSuffix(e.Name(), ".db") {
			snapshots = append(snapshots, filepath.Join(m.outputDir, e.Name()))
		}
	}

	sort.Strings(snapshots)
	return snapshots, nil
}
