package main

import (
	"os"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/render"
	"github.com/michaelscutari/dirscan/internal/scan"
	"github.com/spf13/cobra"
)

var duCmd = &cobra.Command{
	Use:   "du [DIR]",
	Short: "Scan a directory and print its largest entries as a tree",
	Long: `Scan a directory tree without writing a database and print a size
ordered tree. Markers: ! error, < excluded, > other filesystem,
H hard link, @ symlink.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDu,
}

var (
	duDepth    int
	duTop      int
	duApparent bool
)

func init() {
	addScanFlags(duCmd)
	duCmd.Flags().IntVarP(&duDepth, "depth", "d", 1, "Levels below the root to print (-1 = unlimited)")
	duCmd.Flags().IntVarP(&duTop, "top", "n", 20, "Largest entries to print per directory (0 = all)")
	duCmd.Flags().BoolVar(&duApparent, "apparent", false, "Use apparent size instead of disk usage")
}

func runDu(cmd *cobra.Command, args []string) error {
	root := cfg.Root
	if len(args) == 1 {
		root = args[0]
	}

	opts, err := scanOptions("du")
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	tree := render.NewTree(render.Options{MaxDepth: duDepth, Top: duTop, Apparent: duApparent})
	res, scanErr := scan.NewScanner(tree, opts).Run(ctx, root)

	if err := tree.Render(os.Stdout); err != nil {
		return err
	}
	if res.Action == entry.ActionTerminate {
		return scanExit(scanErr)
	}
	return nil
}
