package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dirscan/internal/db"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display scan metadata",
	Long:  `Print metadata about a scan database including timestamps, status and statistics.`,
	RunE:  runInfo,
}

var infoDB string

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "./data/latest.db", "Path to database file")
}

func runInfo(cmd *cobra.Command, args []string) error {
	database, err := db.Open(infoDB)
	if err != nil {
		return err
	}
	defer db.Close(database)

	meta, err := db.GetScanMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read scan metadata: %w", err)
	}

	fmt.Printf("Scan Information\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Scan ID:      %s\n", meta.ScanID)
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Status:       %s\n", meta.Status)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s (%s)\n", meta.EndTime.Sub(meta.StartTime).Round(time.Second), humanize.Time(meta.EndTime))
	}
	if meta.FatalError != "" {
		fmt.Printf("Fatal Error:  %s\n", meta.FatalError)
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Files:         %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("Directories:   %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("Apparent Size: %s\n", humanize.Bytes(uint64(meta.TotalSize)))
	fmt.Printf("Disk Usage:    %s\n", humanize.Bytes(uint64(meta.TotalBlocks)))
	if meta.ErrorCount > 0 {
		fmt.Printf("Errors:        %s\n", humanize.Comma(meta.ErrorCount))
	}

	return nil
}
