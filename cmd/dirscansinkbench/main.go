// dirscansinkbench measures SQLite sink throughput with synthetic events.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/michaelscutari/dirscan/internal/db"
	"github.com/michaelscutari/dirscan/internal/entry"

	_ "modernc.org/sqlite"
)

func main() {
	outDir := flag.String("out", ".", "Output directory for temp DB")
	rows := flag.Int("rows", 100000, "Entries to write")
	fanout := flag.Int("fanout", 1000, "Files per synthetic directory")
	batch := flag.Int("batch", db.DefaultBatchSize, "Rows buffered per transaction")
	keep := flag.Bool("keep", false, "Keep the database after the run")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir error: %v\n", err)
		os.Exit(1)
	}
	if *fanout <= 0 {
		*fanout = 1
	}

	dbPath := filepath.Join(*outDir, fmt.Sprintf(".dirscansinkbench-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		database.Close()
		if !*keep {
			os.Remove(dbPath)
		}
	}()

	if err := db.InitSchema(database); err != nil {
		fail("schema", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		fail("pragma", err)
	}
	w, err := db.NewWriter(database, *batch, nil)
	if err != nil {
		fail("writer", err)
	}
	defer w.Close()
	if err := w.Begin("bench", "/bench", time.Now()); err != nil {
		fail("begin", err)
	}

	dir := func(name string) *entry.Entry {
		return &entry.Entry{Name: name, Kind: entry.KindDir, Flags: entry.FlagDir, Size: 4096, Blocks: 4096, Nlink: 2, Descended: true}
	}

	start := time.Now()
	if err := w.Enter(dir("/bench")); err != nil {
		fail("enter", err)
	}
	for i := 0; i < *rows; i++ {
		if i%*fanout == 0 {
			if i > 0 {
				if err := w.Leave(); err != nil {
					fail("leave", err)
				}
			}
			if err := w.Enter(dir("d" + strconv.Itoa(i / *fanout))); err != nil {
				fail("enter", err)
			}
		}
		f := &entry.Entry{Name: "f" + strconv.Itoa(i), Kind: entry.KindFile, Flags: entry.FlagFile, Size: 1234, Blocks: 4096, Nlink: 1}
		if err := w.Enter(f); err != nil {
			fail("enter", err)
		}
		if err := w.Leave(); err != nil {
			fail("leave", err)
		}
	}
	if _, err := w.Finalize(entry.Outcome{Root: "/bench", Status: entry.StatusComplete}); err != nil {
		fail("finalize", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("out=%s rows=%d fanout=%d batch=%d\n", *outDir, *rows, *fanout, *batch)
	fmt.Printf("total: %v\n", elapsed)
	if elapsed.Seconds() > 0 {
		fmt.Printf("throughput: %.0f rows/sec\n", float64(*rows)/elapsed.Seconds())
	}
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %v\n", stage, err)
	os.Exit(1)
}
