// dirscanbench compares the sequential scanner against a parallel lstat
// walk over the same tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/scan"
)

// countingSink tallies events without keeping entries.
type countingSink struct {
	entries int64
	dirs    int64
	blocks  int64
	outcome entry.Outcome
}

func (c *countingSink) Enter(e *entry.Entry) error {
	c.entries++
	if e.Descended {
		c.dirs++
	}
	c.blocks += e.Blocks
	return nil
}

func (c *countingSink) Leave() error { return nil }

func (c *countingSink) Finalize(o entry.Outcome) (entry.Action, error) {
	c.outcome = o
	return entry.ActionContinue, nil
}

func main() {
	dir := flag.String("dir", ".", "Directory to probe")
	workers := flag.Int("workers", runtime.NumCPU(), "Concurrent workers for the parallel walk")
	mode := flag.String("mode", "both", "What to run: scanner|fastwalk|both")
	xdev := flag.Bool("xdev", true, "Don't cross filesystem boundaries in the scanner")
	flag.Parse()

	if *mode == "scanner" || *mode == "both" {
		sink := &countingSink{}
		opts := scan.DefaultOptions().WithXdev(*xdev)
		res, err := scan.NewScanner(sink, opts).Run(context.Background(), *dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan error: %v\n", err)
			os.Exit(1)
		}
		report("scanner", *dir, 1, sink.entries, sink.outcome.Errors, res.Duration)
		fmt.Printf("  dirs=%d bytes=%d status=%s\n", sink.dirs, sink.blocks, sink.outcome.Status)
	}

	if *mode == "fastwalk" || *mode == "both" {
		var count, errCount int64
		conf := fastwalk.Config{Follow: false, NumWorkers: *workers}
		start := time.Now()
		err := fastwalk.Walk(&conf, *dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				atomic.AddInt64(&errCount, 1)
				return nil
			}
			if _, err := os.Lstat(path); err != nil {
				atomic.AddInt64(&errCount, 1)
				return nil
			}
			atomic.AddInt64(&count, 1)
			return nil
		})
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "walk error: %v\n", err)
			os.Exit(1)
		}
		report("fastwalk", *dir, *workers, count, errCount, elapsed)
	}
}

func report(name, dir string, workers int, entries, errs int64, elapsed time.Duration) {
	fmt.Printf("%s: dir=%s entries=%d workers=%d errors=%d total=%v\n", name, dir, entries, workers, errs, elapsed)
	if elapsed.Seconds() > 0 {
		fmt.Printf("  throughput: %.0f entries/sec\n", float64(entries)/elapsed.Seconds())
	}
}
