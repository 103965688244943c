package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dirscan/internal/db"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/scan"
	"github.com/michaelscutari/dirscan/internal/snapshot"
	"github.com/spf13/cobra"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a directory and create a database",
	Long:  `Scan a directory tree and store metadata in a SQLite database.`,
	RunE:  runScan,
}

func init() {
	addScanFlags(scanCmd)
	scanCmd.Flags().StringP("out", "o", "./data", "Output directory for database")
	scanCmd.Flags().Int("retention", 5, "Number of snapshots to retain (0 = unlimited)")
	scanCmd.Flags().Duration("progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
	scanCmd.Flags().String("index-mode", "memory", "Index build mode: memory|disk|skip")
	scanCmd.Flags().String("sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
}

// addScanFlags registers the flags shared by every command that scans.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("root", "r", ".", "Root directory to scan")
	cmd.Flags().Bool("xdev", true, "Don't cross filesystem boundaries")
	cmd.Flags().StringSliceP("exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	cmd.Flags().Int("max-errors", 0, "Stop after N errors (0 = unlimited)")
}

// scanOptions builds scanner options whose reporter logs every soft failure.
func scanOptions(name string) (*scan.ScanOptions, error) {
	l := commandLogger(name)
	opts, err := cfg.ScanOptions(l)
	if err != nil {
		return nil, err
	}
	opts.WithReporter(scan.ReporterFunc(func(path string, err error) {
		l.Warn("scan error", "path", path, "err", err)
	}))
	return opts, nil
}

// signalContext cancels on the first interrupt and exits on the second.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		if _, ok := <-sigCh; ok {
			os.Exit(130)
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
}

// scanExit maps a finished scan to the process exit status.
func scanExit(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &exitError{code: 130, err: errors.New("scan canceled")}
	}
	return &exitError{code: 2, err: err}
}

func runScan(cmd *cobra.Command, args []string) error {
	outDir, err := filepath.Abs(cfg.Out)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	opts, err := scanOptions("scan")
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", cfg.Root)

	mgr := snapshot.NewManager(outDir, cfg.Retention)
	mgr.SetIndexMode(cfg.IndexMode)
	mgr.SetLogger(commandLogger("snapshot"))
	if cfg.SQLiteTmpDir != "" {
		mgr.SetSQLiteTmpDir(cfg.SQLiteTmpDir)
	}

	ctx, stop := signalContext()
	defer stop()
	startTime := time.Now()

	// Set up progress display
	var progress atomic.Pointer[db.Progress]
	progress.Store(&db.Progress{})
	var stage atomic.Value
	stage.Store("scan")
	mgr.SetProgressFunc(func(p db.Progress) { progress.Store(&p) }, 0)
	mgr.SetStageFunc(func(s string) {
		if s != "" {
			stage.Store(s)
		}
	})

	isTTY := isTerminal()
	progressDone := make(chan struct{})
	go showProgress(progressDone, isTTY, startTime, &progress, &stage)

	snap, err := mgr.RunScan(ctx, cfg.Root, opts)
	close(progressDone)

	// Clear progress line
	if isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}

	if err != nil {
		if snap != nil && snap.Path != "" {
			fmt.Fprintf(os.Stderr, "Partial database kept at %s\n", snap.Path)
		}
		return scanExit(err)
	}

	fmt.Printf("Database: %s\n", snap.Path)
	fmt.Printf("Scan %s completed in %s\n", snap.ScanID, snap.Result.Duration.Round(time.Millisecond))

	database, err := db.Open(snap.Path)
	if err != nil {
		return err
	}
	defer db.Close(database)
	meta, err := db.GetScanMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read scan metadata: %w", err)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Status: %s\n", meta.Status)
	fmt.Printf("  Files: %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("  Directories: %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("  Apparent size: %s\n", humanize.IBytes(uint64(meta.TotalSize)))
	fmt.Printf("  Disk usage: %s\n", humanize.IBytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("  Errors: %s (list with: dirscan query --errors --db %s)\n", humanize.Comma(meta.ErrorCount), snap.Path)
	}
	if snap.Result.Outcome.Status == entry.StatusPartial {
		return &exitError{code: 1, err: fmt.Errorf("scan completed with %d errors", meta.ErrorCount)}
	}

	return nil
}

func showProgress(done <-chan struct{}, isTTY bool, startTime time.Time, progress *atomic.Pointer[db.Progress], stage *atomic.Value) {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	lastNonTTY := time.Now()
	var spinnerIdx int
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		stageStr, _ := stage.Load().(string)
		p := progress.Load()
		elapsed := time.Since(startTime).Round(time.Millisecond)
		rate := float64(0)
		if elapsed.Seconds() > 0 {
			rate = float64(p.Files+p.Dirs) / elapsed.Seconds()
		}

		if isTTY {
			spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
			spinnerIdx++
			if stageStr != "" && stageStr != "scan" {
				fmt.Fprintf(os.Stderr, "\r\033[K%s %s... | %s", spinner, stageStr, elapsed)
				continue
			}
			errStr := ""
			if p.Errors > 0 {
				errStr = fmt.Sprintf(" | %d errors", p.Errors)
			}
			fmt.Fprintf(os.Stderr, "\r\033[K%s Scanning... %d files | %d dirs | %s | %.0f/sec | %s%s",
				spinner, p.Files, p.Dirs, humanize.IBytes(uint64(p.TotalBytes)), rate, elapsed, errStr)
		} else if cfg.ProgressInterval > 0 && time.Since(lastNonTTY) >= cfg.ProgressInterval {
			if stageStr != "" && stageStr != "scan" {
				fmt.Fprintf(os.Stderr, "PROGRESS stage=%s elapsed=%s\n", stageStr, elapsed)
			} else {
				fmt.Fprintf(os.Stderr, "PROGRESS files=%d dirs=%d bytes=%s rate=%.0f/sec elapsed=%s errors=%d\n",
					p.Files, p.Dirs, humanize.IBytes(uint64(p.TotalBytes)), rate, elapsed, p.Errors)
			}
			lastNonTTY = time.Now()
		}
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
