package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dirscan/internal/db"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the database non-interactively",
	Long:  `Query the scan database and output results for scripting.`,
	RunE:  runQuery,
}

var (
	queryDB     string
	queryPath   string
	querySort   string
	queryLimit  int
	queryErrors bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryDB, "db", "d", "./data/latest.db", "Path to database file")
	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "", "Directory path to query")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "size", "Sort by: size, disk, name, files")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of results")
	queryCmd.Flags().BoolVar(&queryErrors, "errors", false, "List sampled scan errors instead of entries")
}

func runQuery(cmd *cobra.Command, args []string) error {
	database, err := db.Open(queryDB)
	if err != nil {
		return err
	}
	defer db.Close(database)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if queryErrors {
		errs, err := db.ListErrors(database, queryLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "PATH\tERROR\n")
		for _, e := range errs {
			fmt.Fprintf(w, "%s\t%s\n", e.Path, e.Message)
		}
		return nil
	}

	// If no path specified, get root from scan_meta
	if queryPath == "" {
		meta, err := db.GetScanMeta(database)
		if err != nil {
			return fmt.Errorf("failed to get root path: %w", err)
		}
		queryPath = meta.RootPath
	}

	entries, err := db.LoadChildren(database, queryPath, querySort, queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Fprintf(w, "APPARENT\tDISK\tFILES\tDIRS\t \tNAME\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Bytes(uint64(e.TotalSize)),
			humanize.Bytes(uint64(e.TotalBlocks)),
			humanize.Comma(e.TotalFiles),
			humanize.Comma(e.TotalDirs),
			e.Marker(),
			e.Name,
		)
	}

	return nil
}
